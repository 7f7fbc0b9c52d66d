package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"mocktest-client/internal/domain"
)

// AnalysisView is the read-only projection of the analysis store.
type AnalysisView struct {
	Loading  bool             `json:"loading"`
	TestID   string           `json:"testId,omitempty"`
	Analysis *domain.Analysis `json:"analysis,omitempty"`
	Error    string           `json:"error,omitempty"`
}

// AnalysisStore holds the analysis for the test currently being viewed.
// Only the latest request may write the result; older completions are dropped.
type AnalysisStore struct {
	svc AnalysisService
	log zerolog.Logger
	sf  singleflight.Group

	mu       sync.Mutex
	seq      uint64
	loading  bool
	testID   string
	analysis *domain.Analysis
	err      error
}

func NewAnalysisStore(svc AnalysisService, log zerolog.Logger) *AnalysisStore {
	return &AnalysisStore{
		svc: svc,
		log: log.With().Str("component", "analysis_store").Logger(),
	}
}

// Generate returns the stored analysis for testID, generating one when the
// service has none yet or the lookup fails.
func (s *AnalysisStore) Generate(ctx context.Context, testID string) (domain.Analysis, error) {
	return s.run(testID, "generate:"+testID, func() (domain.Analysis, error) {
		a, err := s.svc.FetchByTest(ctx, testID)
		if err == nil {
			return a, nil
		}
		// Any lookup failure is a miss; the service may not serve the lookup at all.
		ev := s.log.Debug().Str("test_id", testID)
		if !errors.Is(err, domain.ErrNotFound) {
			ev = ev.Err(err)
		}
		ev.Msg("no stored analysis, generating")
		return s.svc.Generate(ctx, testID)
	})
}

// Regenerate always asks the service for a new analysis.
func (s *AnalysisStore) Regenerate(ctx context.Context, testID string) (domain.Analysis, error) {
	return s.run(testID, "regenerate:"+testID, func() (domain.Analysis, error) {
		return s.svc.Generate(ctx, testID)
	})
}

// Retrieve loads an analysis by its session identifier.
func (s *AnalysisStore) Retrieve(ctx context.Context, sessionID string) (domain.Analysis, error) {
	return s.run("", "session:"+sessionID, func() (domain.Analysis, error) {
		return s.svc.FetchBySession(ctx, sessionID)
	})
}

// State returns the current projection.
func (s *AnalysisStore) State() AnalysisView {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := AnalysisView{Loading: s.loading, TestID: s.testID}
	if s.analysis != nil {
		a := *s.analysis
		v.Analysis = &a
	}
	if s.err != nil {
		v.Error = s.err.Error()
	}
	return v
}

// Clear forgets the current analysis and error.
func (s *AnalysisStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.loading = false
	s.testID = ""
	s.analysis = nil
	s.err = nil
}

func (s *AnalysisStore) run(testID, key string, fetch func() (domain.Analysis, error)) (domain.Analysis, error) {
	s.mu.Lock()
	s.seq++
	seq := s.seq
	s.loading = true
	s.err = nil
	if testID != "" {
		s.testID = testID
	}
	s.mu.Unlock()

	v, err, _ := s.sf.Do(key, func() (interface{}, error) {
		return fetch()
	})
	a, _ := v.(domain.Analysis)

	s.mu.Lock()
	defer s.mu.Unlock()
	if seq != s.seq {
		return a, domain.ErrStaleCompletion
	}
	s.loading = false
	if err != nil {
		s.err = fmt.Errorf("analysis: %w", err)
		s.log.Warn().Err(err).Str("key", key).Msg("analysis request failed")
		return domain.Analysis{}, s.err
	}
	if a.TestID != "" {
		s.testID = a.TestID
	}
	s.analysis = &a
	return a, nil
}
