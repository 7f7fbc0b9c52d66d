package memory

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"mocktest-client/internal/domain"
)

// TokenTTL is the lifetime of tokens issued by the offline service.
const TokenTTL = 24 * time.Hour

var errBadCredentials = errors.New("incorrect username or password")

// OfflineService plays the remote test, analysis and auth services in
// process, drawing questions from a QuestionBank. It backs the CLI's offline
// mode and end-to-end tests.
type OfflineService struct {
	bank  *QuestionBank
	clock clockwork.Clock
	key   []byte

	mu       sync.Mutex
	tests    map[string]*offlineTest
	analyses map[string]domain.Analysis // by session id
	byTest   map[string]string          // test id -> session id
	users    map[string]offlineUser
}

type offlineTest struct {
	cfg       domain.TestConfig
	questions []domain.Question
	results   *domain.Results
}

type offlineUser struct {
	user     domain.User
	password string
}

func NewOfflineService(bank *QuestionBank, clock clockwork.Clock) *OfflineService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &OfflineService{
		bank:     bank,
		clock:    clock,
		key:      []byte(uuid.NewString()),
		tests:    make(map[string]*offlineTest),
		analyses: make(map[string]domain.Analysis),
		byTest:   make(map[string]string),
		users:    make(map[string]offlineUser),
	}
}

// Create draws questions for every subject, splitting the total evenly.
func (s *OfflineService) Create(ctx context.Context, cfg domain.TestConfig) (string, error) {
	cfg, err := cfg.Validate()
	if err != nil {
		return "", err
	}

	per := cfg.TotalQuestions / len(cfg.Subjects)
	extra := cfg.TotalQuestions % len(cfg.Subjects)
	var questions []domain.Question
	for i, subject := range cfg.Subjects {
		n := per
		if i < extra {
			n++
		}
		picked, err := s.bank.Pick(ctx, subject, n, cfg.Difficulty, cfg.Topics)
		if err != nil {
			return "", fmt.Errorf("questions for %s: %w", subject, err)
		}
		questions = append(questions, picked...)
	}
	if len(questions) == 0 {
		return "", fmt.Errorf("no questions for %s: %w", strings.Join(cfg.Subjects, ", "), domain.ErrNotFound)
	}

	id := uuid.NewString()
	cfg.TestID = id
	s.mu.Lock()
	s.tests[id] = &offlineTest{cfg: cfg, questions: questions}
	s.mu.Unlock()
	return id, nil
}

func (s *OfflineService) FetchQuestions(_ context.Context, testID, subject string) (domain.QuestionSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	test, ok := s.tests[testID]
	if !ok {
		return domain.QuestionSet{}, domain.ErrNotFound
	}

	set := domain.QuestionSet{
		TestID:   testID,
		Duration: test.cfg.Duration,
		Subjects: append([]string(nil), test.cfg.Subjects...),
	}
	for _, q := range test.questions {
		if subject != "" && !strings.EqualFold(q.Subject, subject) {
			continue
		}
		if test.results == nil {
			q.CorrectAnswer = ""
			q.Explanation = ""
		}
		set.Questions = append(set.Questions, q)
	}
	return set, nil
}

// Submit scores the answers. A test is scored once; later calls return the
// stored results.
func (s *OfflineService) Submit(_ context.Context, testID string, submission domain.Submission) (domain.Results, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	test, ok := s.tests[testID]
	if !ok {
		return domain.Results{}, domain.ErrNotFound
	}
	if test.results != nil {
		return *test.results, nil
	}

	res := score(testID, test.questions, submission)
	now := s.clock.Now().UTC()
	res.SubmittedAt = &now
	test.results = &res
	return res, nil
}

func (s *OfflineService) FetchResults(_ context.Context, testID string) (domain.Results, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	test, ok := s.tests[testID]
	if !ok || test.results == nil {
		return domain.Results{}, domain.ErrNotFound
	}
	return *test.results, nil
}

// MyResults lists every scored test, newest first.
func (s *OfflineService) MyResults(_ context.Context) ([]domain.Results, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Results, 0, len(s.tests))
	for _, test := range s.tests {
		if test.results != nil {
			out = append(out, *test.results)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].SubmittedAt.After(*out[j].SubmittedAt)
	})
	return out, nil
}

// Generate writes a fresh analysis for a scored test.
func (s *OfflineService) Generate(_ context.Context, testID string) (domain.Analysis, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	test, ok := s.tests[testID]
	if !ok || test.results == nil {
		return domain.Analysis{}, domain.ErrNotFound
	}

	a := domain.Analysis{
		SessionID: uuid.NewString(),
		TestID:    testID,
		Markdown:  renderAnalysis(test.cfg, *test.results),
	}
	s.analyses[a.SessionID] = a
	s.byTest[testID] = a.SessionID
	return a, nil
}

func (s *OfflineService) FetchBySession(_ context.Context, sessionID string) (domain.Analysis, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.analyses[sessionID]
	if !ok {
		return domain.Analysis{}, domain.ErrNotFound
	}
	return a, nil
}

func (s *OfflineService) FetchByTest(_ context.Context, testID string) (domain.Analysis, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sessionID, ok := s.byTest[testID]
	if !ok {
		return domain.Analysis{}, domain.ErrNotFound
	}
	return s.analyses[sessionID], nil
}

func (s *OfflineService) Register(_ context.Context, creds domain.Credentials) (domain.AuthResponse, error) {
	if creds.Username == "" || creds.Password == "" {
		return domain.AuthResponse{}, fmt.Errorf("username and password are required: %w", domain.ErrInvalidConfig)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[creds.Username]; exists {
		return domain.AuthResponse{}, fmt.Errorf("username %q already registered", creds.Username)
	}
	u := offlineUser{
		user:     domain.User{ID: uuid.NewString(), Username: creds.Username, Email: creds.Email},
		password: creds.Password,
	}
	s.users[creds.Username] = u
	return s.issue(u.user)
}

func (s *OfflineService) Login(_ context.Context, creds domain.Credentials) (domain.AuthResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[creds.Username]
	if !ok || u.password != creds.Password {
		return domain.AuthResponse{}, fmt.Errorf("%w: %v", domain.ErrUnauthorized, errBadCredentials)
	}
	return s.issue(u.user)
}

func (s *OfflineService) issue(u domain.User) (domain.AuthResponse, error) {
	now := s.clock.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   u.Username,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)),
	})
	signed, err := token.SignedString(s.key)
	if err != nil {
		return domain.AuthResponse{}, fmt.Errorf("sign token: %w", err)
	}
	return domain.AuthResponse{AccessToken: signed, User: u}, nil
}

func score(testID string, questions []domain.Question, submission domain.Submission) domain.Results {
	res := domain.Results{
		TestID:           testID,
		TotalQuestions:   len(questions),
		TimeTaken:        submission.TimeTaken,
		SubjectBreakdown: make(map[string]float64),
		TopicBreakdown:   make(map[string]float64),
	}

	type tally struct{ correct, total int }
	subjects := make(map[string]*tally)
	topics := make(map[string]*tally)
	count := func(m map[string]*tally, key string, ok bool) {
		if key == "" {
			return
		}
		t := m[key]
		if t == nil {
			t = &tally{}
			m[key] = t
		}
		t.total++
		if ok {
			t.correct++
		}
	}

	for _, q := range questions {
		selected := submission.Answers[q.ID]
		correct := selected != "" && selected == q.CorrectAnswer
		if correct {
			res.CorrectAnswers++
			marks := q.Marks
			if marks == 0 {
				marks = 1
			}
			res.Score += float64(marks)
		}
		count(subjects, q.Subject, correct)
		count(topics, q.Topic, correct)
		res.Questions = append(res.Questions, domain.QuestionOutcome{
			QuestionID:    q.ID,
			Selected:      selected,
			CorrectAnswer: q.CorrectAnswer,
			Correct:       correct,
		})
	}

	res.Percentage = percent(res.CorrectAnswers, res.TotalQuestions)
	res.PerformanceLevel = performanceLevel(res.Percentage)
	for k, t := range subjects {
		res.SubjectBreakdown[k] = percent(t.correct, t.total)
	}
	for k, t := range topics {
		res.TopicBreakdown[k] = percent(t.correct, t.total)
	}
	return res
}

func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(n)*10000/float64(total)) / 100
}

func performanceLevel(pct float64) string {
	switch {
	case pct >= 90:
		return "Excellent"
	case pct >= 75:
		return "Good"
	case pct >= 50:
		return "Average"
	default:
		return "Needs Improvement"
	}
}

func renderAnalysis(cfg domain.TestConfig, res domain.Results) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Performance Analysis\n\n")
	fmt.Fprintf(&b, "**Subjects:** %s  \n", strings.Join(cfg.Subjects, ", "))
	fmt.Fprintf(&b, "**Score:** %d/%d (%.2f%%), %s  \n", res.CorrectAnswers, res.TotalQuestions, res.Percentage, res.PerformanceLevel)
	fmt.Fprintf(&b, "**Time taken:** %d seconds of %d\n\n", res.TimeTaken, cfg.DurationSeconds())

	writeBreakdown := func(title string, m map[string]float64) {
		if len(m) == 0 {
			return
		}
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fmt.Fprintf(&b, "## %s\n\n", title)
		for _, k := range keys {
			fmt.Fprintf(&b, "- %s: %.2f%%\n", k, m[k])
		}
		b.WriteString("\n")
	}
	writeBreakdown("By subject", res.SubjectBreakdown)
	writeBreakdown("By topic", res.TopicBreakdown)

	var weak []string
	for topic, pct := range res.TopicBreakdown {
		if pct < 50 {
			weak = append(weak, topic)
		}
	}
	sort.Strings(weak)
	b.WriteString("## Recommendations\n\n")
	if len(weak) == 0 {
		b.WriteString("- Keep practising at a higher difficulty.\n")
	}
	for _, topic := range weak {
		fmt.Fprintf(&b, "- Revise %s.\n", topic)
	}
	return b.String()
}
