package app_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"mocktest-client/internal/app"
	"mocktest-client/internal/domain"
	"mocktest-client/internal/infra/memory"
)

// fakeTests is a scriptable TestService. A non-nil gate blocks the matching
// call until it is closed.
type fakeTests struct {
	mu         sync.Mutex
	questions  []domain.Question
	duration   int
	createErr  error
	fetchErr   error
	submitErr  error
	createGate chan struct{}
	submitGate chan struct{}
	created    chan struct{}
	submitting chan struct{}
	nextID     int

	submits   atomic.Int32
	submitted domain.Submission
}

func newFakeTests(n int) *fakeTests {
	f := &fakeTests{
		duration:   1,
		created:    make(chan struct{}, 8),
		submitting: make(chan struct{}, 8),
	}
	for i := 1; i <= n; i++ {
		f.questions = append(f.questions, domain.Question{
			ID:            fmt.Sprintf("q%d", i),
			Subject:       "Physics",
			Text:          fmt.Sprintf("Question %d", i),
			Options:       map[string]string{"A": "a", "B": "b", "C": "c", "D": "d"},
			CorrectAnswer: "B",
		})
	}
	return f
}

func (f *fakeTests) Create(ctx context.Context, cfg domain.TestConfig) (string, error) {
	f.created <- struct{}{}
	f.mu.Lock()
	gate, err := f.createGate, f.createErr
	f.nextID++
	id := fmt.Sprintf("test-%d", f.nextID)
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if err != nil {
		return "", err
	}
	return id, nil
}

func (f *fakeTests) FetchQuestions(ctx context.Context, testID, subject string) (domain.QuestionSet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return domain.QuestionSet{}, f.fetchErr
	}
	return domain.QuestionSet{
		TestID:    testID,
		Questions: append([]domain.Question(nil), f.questions...),
		Duration:  f.duration,
		Subjects:  []string{"Physics"},
	}, nil
}

func (f *fakeTests) Submit(ctx context.Context, testID string, submission domain.Submission) (domain.Results, error) {
	f.submits.Add(1)
	f.submitting <- struct{}{}
	f.mu.Lock()
	gate, err := f.submitGate, f.submitErr
	f.submitted = submission
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if err != nil {
		return domain.Results{}, err
	}
	correct := 0
	for _, key := range submission.Answers {
		if key == "B" {
			correct++
		}
	}
	return domain.Results{
		TestID:         testID,
		CorrectAnswers: correct,
		TotalQuestions: len(f.questions),
		TimeTaken:      submission.TimeTaken,
	}, nil
}

func (f *fakeTests) FetchResults(ctx context.Context, testID string) (domain.Results, error) {
	return domain.Results{TestID: testID, TotalQuestions: len(f.questions)}, nil
}

func (f *fakeTests) set(fn func(f *fakeTests)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func (f *fakeTests) lastSubmission() domain.Submission {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submitted
}

type harness struct {
	store   *app.SessionStore
	tests   *fakeTests
	backend *memory.SnapshotStore
	persist *app.Persistence
	clock   *clockwork.FakeClock
}

func newHarness(t *testing.T, tests *fakeTests, backend *memory.SnapshotStore, clock *clockwork.FakeClock, grace time.Duration) *harness {
	t.Helper()
	if backend == nil {
		backend = memory.NewSnapshotStore()
	}
	if clock == nil {
		clock = clockwork.NewFakeClock()
	}
	persist := app.NewPersistence(backend, clock, app.DefaultFreshness, zerolog.Nop())
	store := app.NewSessionStore(tests, persist, app.SessionOptions{
		Clock:      clock,
		GraceDelay: grace,
		Logger:     zerolog.Nop(),
	})
	t.Cleanup(func() { store.Close(context.Background()) })
	return &harness{store: store, tests: tests, backend: backend, persist: persist, clock: clock}
}

func physics(n, minutes int) domain.TestConfig {
	return domain.TestConfig{Subject: "Physics", TotalQuestions: n, Duration: minutes}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}
