package app_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"

	"mocktest-client/internal/app"
	"mocktest-client/internal/domain"
)

type fakeAnalysis struct {
	mu        sync.Mutex
	stored    map[string]domain.Analysis
	lookupErr error
	gate      chan struct{}
	generates atomic.Int32
}

func (f *fakeAnalysis) Generate(ctx context.Context, testID string) (domain.Analysis, error) {
	f.generates.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	a := domain.Analysis{SessionID: "s-" + testID, TestID: testID, Markdown: "# Analysis"}
	f.mu.Lock()
	f.stored[testID] = a
	f.mu.Unlock()
	return a, nil
}

func (f *fakeAnalysis) FetchBySession(ctx context.Context, sessionID string) (domain.Analysis, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.stored {
		if a.SessionID == sessionID {
			return a, nil
		}
	}
	return domain.Analysis{}, domain.ErrNotFound
}

func (f *fakeAnalysis) FetchByTest(ctx context.Context, testID string) (domain.Analysis, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lookupErr != nil {
		return domain.Analysis{}, f.lookupErr
	}
	if a, ok := f.stored[testID]; ok {
		return a, nil
	}
	return domain.Analysis{}, domain.ErrNotFound
}

func TestAnalysisGenerateIsCacheFirst(t *testing.T) {
	ctx := context.Background()
	svc := &fakeAnalysis{stored: map[string]domain.Analysis{}}
	store := app.NewAnalysisStore(svc, zerolog.Nop())

	a, err := store.Generate(ctx, "t1")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if a.SessionID != "s-t1" || svc.generates.Load() != 1 {
		t.Fatalf("expected one generation, got %+v after %d", a, svc.generates.Load())
	}
	if _, err := store.Generate(ctx, "t1"); err != nil {
		t.Fatalf("generate again: %v", err)
	}
	if svc.generates.Load() != 1 {
		t.Fatalf("expected cached analysis reused, got %d generations", svc.generates.Load())
	}

	if _, err := store.Regenerate(ctx, "t1"); err != nil {
		t.Fatalf("regenerate: %v", err)
	}
	if svc.generates.Load() != 2 {
		t.Fatalf("expected regenerate to skip the cache")
	}

	v := store.State()
	if v.Loading || v.Analysis == nil || v.TestID != "t1" {
		t.Fatalf("unexpected view %+v", v)
	}
}

func TestAnalysisGenerateIgnoresLookupFailure(t *testing.T) {
	svc := &fakeAnalysis{
		stored:    map[string]domain.Analysis{},
		lookupErr: errors.New("internal server error"),
	}
	store := app.NewAnalysisStore(svc, zerolog.Nop())

	a, err := store.Generate(context.Background(), "t2")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if a.TestID != "t2" || svc.generates.Load() != 1 {
		t.Fatalf("expected a fresh analysis, got %+v after %d generations", a, svc.generates.Load())
	}
	if v := store.State(); v.Error != "" || v.Analysis == nil {
		t.Fatalf("unexpected view %+v", v)
	}
}

func TestAnalysisRetrieveMissing(t *testing.T) {
	store := app.NewAnalysisStore(&fakeAnalysis{stored: map[string]domain.Analysis{}}, zerolog.Nop())

	if _, err := store.Retrieve(context.Background(), "nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if v := store.State(); v.Error == "" || v.Loading {
		t.Fatalf("expected captured error, got %+v", v)
	}
}

func TestAnalysisDropsStaleCompletion(t *testing.T) {
	ctx := context.Background()
	gate := make(chan struct{})
	svc := &fakeAnalysis{stored: map[string]domain.Analysis{}, gate: gate}
	store := app.NewAnalysisStore(svc, zerolog.Nop())

	done := make(chan error, 1)
	go func() {
		_, err := store.Regenerate(ctx, "t1")
		done <- err
	}()
	waitFor(t, func() bool { return svc.generates.Load() == 1 })

	store.Clear()
	close(gate)
	if err := <-done; !errors.Is(err, domain.ErrStaleCompletion) {
		t.Fatalf("expected stale completion, got %v", err)
	}
	if v := store.State(); v.Analysis != nil || v.TestID != "" {
		t.Fatalf("cleared store must stay empty, got %+v", v)
	}
}
