package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"mocktest-client/internal/domain"
)

const (
	// SnapshotNamespace prefixes every snapshot key in the local store.
	SnapshotNamespace = "mocktest_autosave:"
	// DefaultFreshness is how long a snapshot stays restorable.
	DefaultFreshness = 24 * time.Hour
)

// SnapshotKey derives the local store key for a test.
func SnapshotKey(testID string) string {
	return SnapshotNamespace + testID
}

// Persistence reads and writes session snapshots. Failures never reach the
// caller as panics: writes return a non-fatal error, reads fail open.
type Persistence struct {
	backend   SnapshotBackend
	clock     clockwork.Clock
	freshness time.Duration
	log       zerolog.Logger
}

// NewPersistence wires the adapter to a backend.
func NewPersistence(backend SnapshotBackend, clock clockwork.Clock, freshness time.Duration, log zerolog.Logger) *Persistence {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if freshness <= 0 {
		freshness = DefaultFreshness
	}
	return &Persistence{
		backend:   backend,
		clock:     clock,
		freshness: freshness,
		log:       log.With().Str("component", "persistence").Logger(),
	}
}

// Save stamps the snapshot with the capture time and overwrites the stored
// value for its test. The returned snapshot carries the stamp.
func (p *Persistence) Save(ctx context.Context, snap domain.Snapshot) (domain.Snapshot, error) {
	if snap.TestID == "" {
		return snap, domain.ErrNoSession
	}
	snap.Version = domain.SnapshotVersion
	snap.CapturedAt = p.clock.Now().UTC()
	if snap.Answers == nil {
		snap.Answers = domain.AnswerMap{}
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return snap, fmt.Errorf("encode snapshot: %w", err)
	}
	if err := p.backend.Put(ctx, SnapshotKey(snap.TestID), data); err != nil {
		p.log.Warn().Err(err).Str("test_id", snap.TestID).Msg("autosave failed")
		return snap, fmt.Errorf("write snapshot: %w", err)
	}
	return snap, nil
}

// Load returns the stored snapshot regardless of age. Missing, unreadable
// or malformed data all report "not found".
func (p *Persistence) Load(ctx context.Context, testID string) (domain.Snapshot, bool) {
	data, err := p.backend.Get(ctx, SnapshotKey(testID))
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			p.log.Warn().Err(err).Str("test_id", testID).Msg("read snapshot failed")
		}
		return domain.Snapshot{}, false
	}

	var snap domain.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		p.log.Warn().Err(err).Str("test_id", testID).Msg("discarding malformed snapshot")
		return domain.Snapshot{}, false
	}
	if snap.TestID != testID {
		p.log.Warn().Str("test_id", testID).Str("stored_id", snap.TestID).Msg("discarding snapshot for another test")
		return domain.Snapshot{}, false
	}
	if snap.Answers == nil {
		snap.Answers = domain.AnswerMap{}
	}
	return snap, true
}

// Restore is Load plus the freshness window: stale snapshots are not found.
func (p *Persistence) Restore(ctx context.Context, testID string) (domain.Snapshot, bool) {
	snap, ok := p.Load(ctx, testID)
	if !ok {
		return snap, false
	}
	if age := p.clock.Since(snap.CapturedAt); age > p.freshness {
		p.log.Info().Str("test_id", testID).Dur("age", age).Msg("ignoring stale snapshot")
		return domain.Snapshot{}, false
	}
	return snap, true
}

// Clear removes the snapshot for a test. Missing entries are fine.
func (p *Persistence) Clear(ctx context.Context, testID string) error {
	if testID == "" {
		return nil
	}
	if err := p.backend.Delete(ctx, SnapshotKey(testID)); err != nil && !errors.Is(err, domain.ErrNotFound) {
		p.log.Warn().Err(err).Str("test_id", testID).Msg("clear snapshot failed")
		return fmt.Errorf("clear snapshot: %w", err)
	}
	return nil
}
