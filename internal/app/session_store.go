package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"mocktest-client/internal/countdown"
	"mocktest-client/internal/domain"
	"mocktest-client/internal/metrics"
)

const (
	// DefaultGraceDelay separates the expiry notice from the forced submission.
	DefaultGraceDelay = 2 * time.Second
	// DefaultTickSaveEvery persists elapsed time once per this many ticks.
	DefaultTickSaveEvery = 30
)

const (
	triggerManual = "manual"
	triggerExpiry = "expiry"
)

// SessionOptions tune a SessionStore. Zero values pick the defaults.
type SessionOptions struct {
	Clock         clockwork.Clock
	AutosaveDelay time.Duration
	GraceDelay    time.Duration
	TickSaveEvery int
	Logger        zerolog.Logger
}

// Progress counts answered questions.
type Progress struct {
	Answered   int `json:"answered"`
	Total      int `json:"total"`
	Percentage int `json:"percentage"`
}

// View is a read-only copy of the session handed to the presentation layer.
type View struct {
	Status           domain.Status      `json:"status"`
	Locked           bool               `json:"locked"`
	Notice           string             `json:"notice,omitempty"`
	Warning          countdown.Band     `json:"warning"`
	Config           *domain.TestConfig `json:"config,omitempty"`
	TestID           string             `json:"testId,omitempty"`
	Questions        []domain.Question  `json:"questions"`
	Answers          domain.AnswerMap   `json:"answers"`
	CurrentIndex     int                `json:"currentIndex"`
	CurrentQuestion  *domain.Question   `json:"currentQuestion,omitempty"`
	ActiveSubject    string             `json:"activeSubject,omitempty"`
	Subjects         []string           `json:"subjects"`
	ElapsedSeconds   int                `json:"elapsedSeconds"`
	RemainingSeconds int                `json:"remainingSeconds"`
	Progress         Progress           `json:"progress"`
	CanSubmit        bool               `json:"canSubmit"`
	Restored         bool               `json:"restored"`
	LastSaved        *time.Time         `json:"lastSaved,omitempty"`
	SaveStatus       domain.SaveStatus  `json:"autoSaveStatus"`
	Error            string             `json:"error,omitempty"`
	Results          *domain.Results    `json:"results,omitempty"`
}

// SessionStore is the state machine behind one test attempt:
//
//	empty -> creating -> in_progress -> submitting -> completed
//
// with error reachable from creating and submitting. Actions apply under the
// store lock in call order; network calls run outside it and their
// completions are dropped when the epoch moved on (reset, new test). Timer
// callbacks are bound to the loaded session instead, so a failed create or
// load leaves the running countdown attached.
type SessionStore struct {
	tests         TestService
	persist       *Persistence
	saver         *Autosaver
	clock         clockwork.Clock
	grace         time.Duration
	tickSaveEvery int
	log           zerolog.Logger
	submits       singleflight.Group

	mu            sync.Mutex
	epoch         uint64 // bumped per create/load/reset request
	gen           uint64 // bumped whenever the loaded session changes
	expiryDue     bool
	status        domain.Status
	resume        domain.Status
	locked        bool
	notice        string
	warning       countdown.Band
	config        *domain.TestConfig
	testID        string
	questions     []domain.Question
	positions     map[string]int
	answers       domain.AnswerMap
	current       int
	activeSubject string
	elapsed       int
	restored      bool
	lastSaved     *time.Time
	saveStatus    domain.SaveStatus
	err           error
	results       *domain.Results
	tickSaves     *rate.Sometimes
	timer         *countdown.Countdown
	subscribers   map[chan View]struct{}
}

// NewSessionStore builds an empty store.
func NewSessionStore(tests TestService, persist *Persistence, opts SessionOptions) *SessionStore {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.TickSaveEvery <= 0 {
		opts.TickSaveEvery = DefaultTickSaveEvery
	}
	if opts.GraceDelay < 0 {
		opts.GraceDelay = 0
	}

	s := &SessionStore{
		tests:         tests,
		persist:       persist,
		clock:         opts.Clock,
		grace:         opts.GraceDelay,
		tickSaveEvery: opts.TickSaveEvery,
		log:           opts.Logger.With().Str("component", "session_store").Logger(),
		status:        domain.StatusEmpty,
		resume:        domain.StatusEmpty,
		answers:       domain.AnswerMap{},
		saveStatus:    domain.SaveIdle,
		subscribers:   make(map[chan View]struct{}),
	}
	s.saver = NewAutosaver(opts.Clock, opts.AutosaveDelay, persist.Save, s.recordSave)
	s.tickSaves = &rate.Sometimes{Every: s.tickSaveEvery}
	return s
}

// CreateAndLoad creates a test from cfg and loads its questions.
// Callers gate re-entrancy; an overlapping call simply wins over the older one.
func (s *SessionStore) CreateAndLoad(ctx context.Context, cfg domain.TestConfig) error {
	cfg, err := cfg.Validate()
	if err != nil {
		s.mu.Lock()
		s.err = err
		s.broadcastLocked()
		s.mu.Unlock()
		return err
	}

	epoch, err := s.begin()
	if err != nil {
		return err
	}

	testID, err := s.tests.Create(ctx, cfg)
	var set domain.QuestionSet
	if err == nil {
		set, err = s.tests.FetchQuestions(ctx, testID, questionFilter(cfg))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if epoch != s.epoch {
		return domain.ErrStaleCompletion
	}
	if err == nil && len(set.Questions) == 0 {
		err = fmt.Errorf("test %s: %w", testID, errNoQuestions)
	}
	if err != nil {
		s.failLocked(fmt.Errorf("create test: %w", err))
		s.resumeExpiryLocked()
		return s.err
	}

	cfg.TestID = testID
	if set.Duration > 0 {
		cfg.Duration = set.Duration
	}
	s.loadLocked(testID, cfg, set.Questions)
	s.status = domain.StatusInProgress
	s.resume = domain.StatusInProgress
	s.saveStatus = domain.SaveSaving
	s.saver.Immediate(s.snapshotLocked())
	s.log.Info().Str("test_id", testID).Int("questions", len(s.questions)).Msg("test created")
	s.broadcastLocked()
	return nil
}

// LoadExisting opens a test by identifier, e.g. after a page reload. Question
// content always comes from the service; answers, position and elapsed time
// come from a fresh local snapshot when there is one.
func (s *SessionStore) LoadExisting(ctx context.Context, testID string) error {
	if testID == "" {
		return domain.ErrNoSession
	}
	epoch, err := s.begin()
	if err != nil {
		return err
	}

	set, err := s.tests.FetchQuestions(ctx, testID, "")
	var (
		snap     domain.Snapshot
		restored bool
	)
	if err == nil {
		snap, restored = s.persist.Restore(ctx, testID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if epoch != s.epoch {
		return domain.ErrStaleCompletion
	}
	if err == nil && len(set.Questions) == 0 {
		err = fmt.Errorf("test %s: %w", testID, errNoQuestions)
	}
	if err != nil {
		s.failLocked(fmt.Errorf("load test: %w", err))
		s.resumeExpiryLocked()
		return s.err
	}

	var prior *domain.TestConfig
	if restored {
		prior = snap.Config
	}
	cfg := configFromSet(testID, set, prior)
	s.loadLocked(testID, cfg, set.Questions)
	if restored {
		s.applySnapshotLocked(snap)
	}
	s.status = domain.StatusInProgress
	s.resume = domain.StatusInProgress
	s.log.Info().
		Str("test_id", testID).
		Bool("restored", restored).
		Int("answered", len(s.answers)).
		Msg("test loaded")
	s.broadcastLocked()
	return nil
}

// RecordAnswer sets the chosen option for a question in the current session.
func (s *SessionStore) RecordAnswer(questionID, optionKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.editableLocked(); err != nil {
		return err
	}
	pos, ok := s.positions[questionID]
	if !ok {
		s.log.Debug().Str("question_id", questionID).Msg("answer for unknown question rejected")
		return fmt.Errorf("%w: %s", domain.ErrQuestionNotFound, questionID)
	}
	if q := s.questions[pos]; len(q.Options) > 0 && !q.HasOption(optionKey) {
		return fmt.Errorf("%w: %s for %s", domain.ErrOptionNotFound, optionKey, questionID)
	}

	s.answers[questionID] = optionKey
	s.scheduleSaveLocked()
	s.broadcastLocked()
	return nil
}

// Navigate moves to a question, clamping the index into range.
func (s *SessionStore) Navigate(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.editableLocked(); err != nil {
		return err
	}
	s.moveLocked(index)
	return nil
}

// Next moves one question forward.
func (s *SessionStore) Next() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.editableLocked(); err != nil {
		return err
	}
	s.moveLocked(s.current + 1)
	return nil
}

// Previous moves one question back.
func (s *SessionStore) Previous() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.editableLocked(); err != nil {
		return err
	}
	s.moveLocked(s.current - 1)
	return nil
}

// NavigateToSubject jumps to the first question of subject.
func (s *SessionStore) NavigateToSubject(subject string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.editableLocked(); err != nil {
		return err
	}
	for i, q := range s.questions {
		if q.Subject == subject {
			s.moveLocked(i)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", domain.ErrSubjectNotFound, subject)
}

// Tick records elapsed seconds reported by the countdown. Values never move
// backwards, and only every Nth tick reaches the local store.
func (s *SessionStore) Tick(elapsedSeconds int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tickLocked(elapsedSeconds)
}

func (s *SessionStore) tickFor(gen uint64, elapsedSeconds int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return
	}
	s.tickLocked(elapsedSeconds)
}

func (s *SessionStore) tickLocked(elapsedSeconds int) {
	if !s.liveLocked() || elapsedSeconds <= s.elapsed {
		return
	}
	s.elapsed = elapsedSeconds
	s.tickSaves.Do(s.scheduleSaveLocked)
	s.broadcastLocked()
}

func (s *SessionStore) warnFor(gen uint64, band countdown.Band) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen || !s.liveLocked() {
		return
	}
	s.warning = band
	s.broadcastLocked()
}

// Submit hands the test in. Concurrent calls share one network submission;
// calls after completion return the stored results with ErrAlreadySubmitted.
func (s *SessionStore) Submit(ctx context.Context) (domain.Results, error) {
	return s.submitAs(ctx, triggerManual)
}

func (s *SessionStore) submitAs(ctx context.Context, trigger string) (domain.Results, error) {
	s.mu.Lock()
	testID := s.testID
	s.mu.Unlock()
	if testID == "" {
		return domain.Results{}, domain.ErrNoSession
	}

	v, err, _ := s.submits.Do(testID, func() (interface{}, error) {
		return s.submitOnce(ctx, testID, trigger)
	})
	res, _ := v.(domain.Results)
	return res, err
}

func (s *SessionStore) submitOnce(ctx context.Context, testID, trigger string) (domain.Results, error) {
	s.mu.Lock()
	if s.testID != testID {
		s.mu.Unlock()
		return domain.Results{}, domain.ErrStaleCompletion
	}
	switch {
	case s.status == domain.StatusCompleted && s.results != nil:
		res := *s.results
		s.mu.Unlock()
		return res, domain.ErrAlreadySubmitted
	case s.status == domain.StatusSubmitting:
		s.mu.Unlock()
		return domain.Results{}, domain.ErrSubmissionInFlight
	case s.status == domain.StatusInProgress,
		s.status == domain.StatusError && s.resume == domain.StatusInProgress:
	default:
		s.mu.Unlock()
		return domain.Results{}, domain.ErrSessionNotActive
	}

	epoch := s.epoch
	submission := domain.Submission{
		TestID:    testID,
		Answers:   s.answers.Clone(),
		TimeTaken: s.elapsed,
	}
	s.status = domain.StatusSubmitting
	s.err = nil
	s.broadcastLocked()
	s.mu.Unlock()

	s.log.Info().
		Str("test_id", testID).
		Str("trigger", trigger).
		Int("answered", len(submission.Answers)).
		Int("time_taken", submission.TimeTaken).
		Msg("submitting test")
	res, err := s.tests.Submit(ctx, testID, submission)

	s.mu.Lock()
	if epoch != s.epoch {
		s.mu.Unlock()
		return domain.Results{}, domain.ErrStaleCompletion
	}
	if err != nil {
		s.resume = domain.StatusInProgress
		s.failLocked(fmt.Errorf("submit test: %w", err))
		err = s.err
		s.mu.Unlock()
		metrics.Submissions.WithLabelValues(trigger, "failed").Inc()
		return domain.Results{}, err
	}

	if res.TestID == "" {
		res.TestID = testID
	}
	s.results = &res
	s.status = domain.StatusCompleted
	s.resume = domain.StatusCompleted
	timer := s.timer
	s.timer = nil
	s.broadcastLocked()
	s.mu.Unlock()

	metrics.Submissions.WithLabelValues(trigger, "ok").Inc()
	if timer != nil {
		timer.Stop()
	}
	// A completed test must not be resumable from local state.
	s.saver.Discard(testID)
	_ = s.persist.Clear(ctx, testID)
	return res, nil
}

// Expire is the countdown's expiry hook: it freezes answers and navigation,
// raises the expiry notice and submits after the grace delay. Repeated calls
// are no-ops; the submission itself still happens at most once.
func (s *SessionStore) Expire() {
	s.mu.Lock()
	gen := s.gen
	s.mu.Unlock()
	s.expireFor(gen)
}

func (s *SessionStore) expireFor(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen || !s.liveLocked() || s.locked {
		return
	}
	s.locked = true
	s.warning = countdown.BandExpired
	s.notice = countdown.BandExpired.Message()
	s.broadcastLocked()

	metrics.Expiries.Inc()
	s.log.Info().Str("test_id", s.testID).Msg("time expired, input locked")

	if s.status == domain.StatusCreating {
		// Submitted once the pending create or load settles on this session.
		s.expiryDue = true
		return
	}
	s.forceSubmitLocked()
}

// resumeExpiryLocked submits a session whose time ran out while a create or
// load was in flight and that failed, leaving this session loaded.
func (s *SessionStore) resumeExpiryLocked() {
	if !s.expiryDue {
		return
	}
	s.expiryDue = false
	s.forceSubmitLocked()
}

// forceSubmitLocked submits the current session after the grace delay.
func (s *SessionStore) forceSubmitLocked() {
	gen, testID := s.gen, s.testID
	run := func() {
		s.mu.Lock()
		current := s.gen
		s.mu.Unlock()
		if current != gen {
			return
		}
		if _, err := s.submitAs(context.Background(), triggerExpiry); err != nil &&
			!errors.Is(err, domain.ErrAlreadySubmitted) {
			s.log.Error().Err(err).Str("test_id", testID).Msg("forced submission failed")
		}
	}
	if s.grace <= 0 {
		go run()
		return
	}
	s.clock.AfterFunc(s.grace, run)
}

// liveLocked reports whether an in-progress session is loaded, including
// while a create or load runs over it or after one failed.
func (s *SessionStore) liveLocked() bool {
	switch s.status {
	case domain.StatusInProgress:
		return true
	case domain.StatusCreating, domain.StatusError:
		return s.testID != "" && s.resume == domain.StatusInProgress
	}
	return false
}

// StartTimer starts a countdown for the remaining test time, wired to Tick,
// the warning bands and Expire. Calling it again returns the running timer.
func (s *SessionStore) StartTimer() (*countdown.Countdown, error) {
	s.mu.Lock()
	if s.status != domain.StatusInProgress || s.config == nil {
		s.mu.Unlock()
		return nil, domain.ErrSessionNotActive
	}
	if s.timer != nil {
		cd := s.timer
		s.mu.Unlock()
		return cd, nil
	}
	gen := s.gen
	base := s.elapsed
	total := s.config.DurationSeconds() - base
	if total < 0 {
		total = 0
	}
	s.mu.Unlock()

	// Built outside the lock: construction reports the first tick synchronously.
	cd := countdown.New(total,
		countdown.WithClock(s.clock),
		countdown.OnTick(func(remaining int) { s.tickFor(gen, base+total-remaining) }),
		countdown.OnBand(func(b countdown.Band) { s.warnFor(gen, b) }),
		countdown.OnExpire(func() { s.expireFor(gen) }),
	)

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return nil, domain.ErrStaleCompletion
	}
	if s.timer != nil {
		existing := s.timer
		s.mu.Unlock()
		return existing, nil
	}
	s.timer = cd
	s.mu.Unlock()

	cd.Start()
	return cd, nil
}

// Reset returns the store to empty and forgets the local snapshot.
func (s *SessionStore) Reset(ctx context.Context) {
	s.mu.Lock()
	testID := s.testID
	timer := s.timer
	s.epoch++
	s.clearLocked()
	s.broadcastLocked()
	s.mu.Unlock()

	if timer != nil {
		timer.Stop()
	}
	if testID != "" {
		s.saver.Discard(testID)
		_ = s.persist.Clear(ctx, testID)
		s.log.Info().Str("test_id", testID).Msg("session reset")
	}
}

// RefreshResults fetches results for testID, or the current test when empty.
func (s *SessionStore) RefreshResults(ctx context.Context, testID string) (domain.Results, error) {
	s.mu.Lock()
	if testID == "" {
		testID = s.testID
	}
	epoch := s.epoch
	s.mu.Unlock()
	if testID == "" {
		return domain.Results{}, domain.ErrNoSession
	}

	res, err := s.tests.FetchResults(ctx, testID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if epoch != s.epoch {
		return domain.Results{}, domain.ErrStaleCompletion
	}
	if err != nil {
		s.err = fmt.Errorf("fetch results: %w", err)
		s.broadcastLocked()
		return domain.Results{}, s.err
	}
	if s.testID == "" || s.testID == testID {
		if res.TestID == "" {
			res.TestID = testID
		}
		s.testID = testID
		s.results = &res
		s.status = domain.StatusCompleted
		s.resume = domain.StatusCompleted
		s.err = nil
		s.broadcastLocked()
	}
	return res, nil
}

// DismissError clears the surfaced error and returns to the last stable state.
func (s *SessionStore) DismissError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = nil
	if s.status == domain.StatusError {
		s.status = s.resume
	}
	s.broadcastLocked()
}

// Flush writes any pending snapshot now.
func (s *SessionStore) Flush(ctx context.Context) {
	s.saver.Flush(ctx)
}

// Close stops the timer and flushes pending writes.
func (s *SessionStore) Close(ctx context.Context) {
	s.mu.Lock()
	timer := s.timer
	s.timer = nil
	s.mu.Unlock()
	if timer != nil {
		timer.Stop()
	}
	s.Flush(ctx)
}

// State returns the current view.
func (s *SessionStore) State() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

// Subscribe returns a channel of views, starting with the current one. The
// caller must invoke cancel to release it. Slow readers only see the latest view.
func (s *SessionStore) Subscribe() (<-chan View, func()) {
	ch := make(chan View, 8)

	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	ch <- s.viewLocked()
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

var errNoQuestions = errors.New("service returned no questions")

// begin moves to creating and returns the epoch the request belongs to.
func (s *SessionStore) begin() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == domain.StatusSubmitting {
		return 0, domain.ErrSubmissionInFlight
	}
	if s.status.Stable() {
		s.resume = s.status
	}
	s.epoch++
	s.status = domain.StatusCreating
	s.err = nil
	s.broadcastLocked()
	return s.epoch, nil
}

func (s *SessionStore) editableLocked() error {
	if s.status != domain.StatusInProgress {
		return domain.ErrSessionNotActive
	}
	if s.locked {
		return domain.ErrSessionLocked
	}
	return nil
}

func (s *SessionStore) moveLocked(index int) {
	if len(s.questions) == 0 {
		return
	}
	if index < 0 {
		index = 0
	}
	if index >= len(s.questions) {
		index = len(s.questions) - 1
	}
	s.current = index
	s.activeSubject = s.questions[index].Subject
	s.scheduleSaveLocked()
	s.broadcastLocked()
}

func (s *SessionStore) loadLocked(testID string, cfg domain.TestConfig, questions []domain.Question) {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.clearLocked()
	s.testID = testID
	s.config = &cfg
	s.questions = make([]domain.Question, len(questions))
	s.positions = make(map[string]int, len(questions))
	for i, q := range questions {
		// Answer keys stay hidden until results exist.
		q.CorrectAnswer = ""
		q.Explanation = ""
		s.questions[i] = q
		s.positions[q.ID] = i
	}
	s.current = 0
	primary := cfg.PrimarySubject()
	for i, q := range s.questions {
		if q.Subject == primary {
			s.current = i
			break
		}
	}
	s.activeSubject = s.questions[s.current].Subject
}

func (s *SessionStore) applySnapshotLocked(snap domain.Snapshot) {
	for qid, key := range snap.Answers {
		if _, ok := s.positions[qid]; ok {
			s.answers[qid] = key
		}
	}
	if snap.CurrentIndex >= 0 && snap.CurrentIndex < len(s.questions) {
		s.current = snap.CurrentIndex
	} else if snap.CurrentIndex >= len(s.questions) {
		s.current = len(s.questions) - 1
	}
	s.activeSubject = s.questions[s.current].Subject
	if snap.ElapsedSeconds > 0 {
		s.elapsed = snap.ElapsedSeconds
	}
	captured := snap.CapturedAt
	s.lastSaved = &captured
	s.saveStatus = domain.SaveSaved
	s.restored = true
}

func (s *SessionStore) clearLocked() {
	s.gen++
	s.expiryDue = false
	s.status = domain.StatusEmpty
	s.resume = domain.StatusEmpty
	s.locked = false
	s.notice = ""
	s.warning = countdown.BandNone
	s.config = nil
	s.testID = ""
	s.questions = nil
	s.positions = nil
	s.answers = domain.AnswerMap{}
	s.current = 0
	s.activeSubject = ""
	s.elapsed = 0
	s.restored = false
	s.lastSaved = nil
	s.saveStatus = domain.SaveIdle
	s.err = nil
	s.results = nil
	s.timer = nil
	s.tickSaves = &rate.Sometimes{Every: s.tickSaveEvery}
}

func (s *SessionStore) failLocked(err error) {
	s.err = err
	s.status = domain.StatusError
	s.log.Warn().Err(err).Str("test_id", s.testID).Str("resume", string(s.resume)).Msg("session action failed")
	s.broadcastLocked()
}

func (s *SessionStore) snapshotLocked() domain.Snapshot {
	var cfg *domain.TestConfig
	if s.config != nil {
		c := *s.config
		cfg = &c
	}
	return domain.Snapshot{
		TestID:         s.testID,
		Config:         cfg,
		Answers:        s.answers.Clone(),
		ElapsedSeconds: s.elapsed,
		CurrentIndex:   s.current,
		ActiveSubject:  s.activeSubject,
	}
}

func (s *SessionStore) scheduleSaveLocked() {
	if s.testID == "" {
		return
	}
	s.saveStatus = domain.SaveSaving
	s.saver.Schedule(s.snapshotLocked())
}

// recordSave is the autosave result hook.
func (s *SessionStore) recordSave(snap domain.Snapshot, err error) {
	if err != nil {
		metrics.AutosaveWrites.WithLabelValues("failed").Inc()
	} else {
		metrics.AutosaveWrites.WithLabelValues("ok").Inc()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if snap.TestID != s.testID {
		return
	}
	if err != nil {
		s.saveStatus = domain.SaveFailed
	} else {
		captured := snap.CapturedAt
		s.lastSaved = &captured
		s.saveStatus = domain.SaveSaved
	}
	s.broadcastLocked()
}

func (s *SessionStore) viewLocked() View {
	v := View{
		Status:         s.status,
		Locked:         s.locked,
		Notice:         s.notice,
		Warning:        s.warning,
		TestID:         s.testID,
		Questions:      append([]domain.Question(nil), s.questions...),
		Answers:        s.answers.Clone(),
		CurrentIndex:   s.current,
		ActiveSubject:  s.activeSubject,
		Subjects:       s.subjectsLocked(),
		ElapsedSeconds: s.elapsed,
		Restored:       s.restored,
		SaveStatus:     s.saveStatus,
	}
	if s.config != nil {
		c := *s.config
		v.Config = &c
		v.RemainingSeconds = c.DurationSeconds() - s.elapsed
		if v.RemainingSeconds < 0 {
			v.RemainingSeconds = 0
		}
	}
	if s.current < len(s.questions) {
		q := s.questions[s.current]
		v.CurrentQuestion = &q
	}
	if s.lastSaved != nil {
		t := *s.lastSaved
		v.LastSaved = &t
	}
	if s.err != nil {
		v.Error = s.err.Error()
	}
	if s.results != nil {
		r := *s.results
		v.Results = &r
	}
	v.Progress = progressOf(len(s.answers), len(s.questions))
	v.CanSubmit = v.Progress.Total > 0 && v.Progress.Answered == v.Progress.Total
	return v
}

func (s *SessionStore) subjectsLocked() []string {
	seen := make(map[string]bool)
	var out []string
	if s.config != nil {
		for _, subj := range s.config.Subjects {
			if !seen[subj] && s.hasSubjectLocked(subj) {
				seen[subj] = true
				out = append(out, subj)
			}
		}
	}
	for _, q := range s.questions {
		if q.Subject != "" && !seen[q.Subject] {
			seen[q.Subject] = true
			out = append(out, q.Subject)
		}
	}
	return out
}

func (s *SessionStore) hasSubjectLocked(subject string) bool {
	for _, q := range s.questions {
		if q.Subject == subject {
			return true
		}
	}
	return false
}

func (s *SessionStore) broadcastLocked() {
	if len(s.subscribers) == 0 {
		return
	}
	v := s.viewLocked()
	for ch := range s.subscribers {
		select {
		case ch <- v:
		default:
			// Drop the stale view so slow readers never block the store.
			select {
			case <-ch:
			default:
			}
			ch <- v
		}
	}
}

func progressOf(answered, total int) Progress {
	p := Progress{Answered: answered, Total: total}
	if total > 0 {
		p.Percentage = (answered*100 + total/2) / total
	}
	return p
}

// questionFilter narrows the question request to the subject for
// single-subject tests; multi-subject tests fetch the whole set.
func questionFilter(cfg domain.TestConfig) string {
	if len(cfg.Subjects) == 1 {
		return cfg.Subjects[0]
	}
	return ""
}

func configFromSet(testID string, set domain.QuestionSet, prior *domain.TestConfig) domain.TestConfig {
	var cfg domain.TestConfig
	if prior != nil {
		cfg = *prior
	}
	cfg.TestID = testID
	if set.Duration > 0 {
		cfg.Duration = set.Duration
	}
	subjects := set.Subjects
	if len(subjects) == 0 {
		seen := make(map[string]bool)
		for _, q := range set.Questions {
			if q.Subject != "" && !seen[q.Subject] {
				seen[q.Subject] = true
				subjects = append(subjects, q.Subject)
			}
		}
	}
	if len(subjects) > 0 {
		cfg.Subjects = append([]string(nil), subjects...)
		cfg.Subject = subjects[0]
	}
	if cfg.TotalQuestions == 0 {
		cfg.TotalQuestions = len(set.Questions)
	}
	return cfg
}
