package app

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"mocktest-client/internal/domain"
)

// DefaultAutosaveDelay is the debounce window for snapshot writes.
const DefaultAutosaveDelay = time.Second

// SaveFunc performs the actual write of a snapshot.
type SaveFunc func(ctx context.Context, snap domain.Snapshot) (domain.Snapshot, error)

// ResultFunc observes the outcome of each write.
type ResultFunc func(snap domain.Snapshot, err error)

// Autosaver coalesces snapshot writes: only the most recent pending snapshot
// is kept, a single timer flushes it, and writes never overlap. A delay of
// zero flushes right away in the background.
type Autosaver struct {
	clock    clockwork.Clock
	delay    time.Duration
	save     SaveFunc
	onResult ResultFunc

	writeMu sync.Mutex // serializes writes

	mu      sync.Mutex
	pending *domain.Snapshot
	timer   clockwork.Timer
}

// NewAutosaver builds the write queue.
func NewAutosaver(clock clockwork.Clock, delay time.Duration, save SaveFunc, onResult ResultFunc) *Autosaver {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if delay < 0 {
		delay = 0
	}
	return &Autosaver{
		clock:    clock,
		delay:    delay,
		save:     save,
		onResult: onResult,
	}
}

// Schedule queues snap, superseding anything still pending. It never blocks
// on a write, so it is safe to call while holding the caller's own lock.
func (a *Autosaver) Schedule(snap domain.Snapshot) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pending = &snap
	if a.delay == 0 {
		go a.Flush(context.Background())
		return
	}
	if a.timer == nil {
		a.timer = a.clock.AfterFunc(a.delay, func() {
			a.Flush(context.Background())
		})
	}
}

// Immediate queues snap and writes it without waiting for the debounce window.
func (a *Autosaver) Immediate(snap domain.Snapshot) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pending = &snap
	go a.Flush(context.Background())
}

// Pending reports whether a write is queued.
func (a *Autosaver) Pending() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pending != nil
}

// Flush writes the pending snapshot now, if any.
func (a *Autosaver) Flush(ctx context.Context) {
	a.writeMu.Lock()
	a.mu.Lock()
	snap := a.pending
	a.pending = nil
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	a.mu.Unlock()

	if snap == nil {
		a.writeMu.Unlock()
		return
	}
	saved, err := a.save(ctx, *snap)
	a.writeMu.Unlock()

	if a.onResult != nil {
		a.onResult(saved, err)
	}
}

// Discard drops a pending snapshot for testID and waits for any write in
// progress, so a later Clear cannot be overtaken by a queued write.
func (a *Autosaver) Discard(testID string) {
	a.mu.Lock()
	if a.pending != nil && a.pending.TestID == testID {
		a.pending = nil
		if a.timer != nil {
			a.timer.Stop()
			a.timer = nil
		}
	}
	a.mu.Unlock()

	// Wait out an in-flight write.
	a.writeMu.Lock()
	a.writeMu.Unlock()
}
