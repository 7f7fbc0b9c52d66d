package app_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"mocktest-client/internal/app"
	"mocktest-client/internal/domain"
)

type recordingSaver struct {
	mu    sync.Mutex
	saved []domain.Snapshot
}

func (r *recordingSaver) save(_ context.Context, snap domain.Snapshot) (domain.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saved = append(r.saved, snap)
	return snap, nil
}

func (r *recordingSaver) writes() []domain.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Snapshot(nil), r.saved...)
}

func TestAutosaverCoalescesWrites(t *testing.T) {
	clock := clockwork.NewFakeClock()
	rec := &recordingSaver{}
	results := make(chan domain.Snapshot, 4)
	saver := app.NewAutosaver(clock, time.Second, rec.save, func(s domain.Snapshot, err error) {
		results <- s
	})

	for i := 1; i <= 3; i++ {
		saver.Schedule(domain.Snapshot{TestID: "t1", ElapsedSeconds: i})
	}
	if len(rec.writes()) != 0 || !saver.Pending() {
		t.Fatalf("expected write held for the debounce window")
	}

	clock.BlockUntil(1)
	clock.Advance(time.Second)
	select {
	case s := <-results:
		if s.ElapsedSeconds != 3 {
			t.Fatalf("expected latest snapshot written, got %+v", s)
		}
	case <-time.After(time.Second):
		t.Fatalf("debounced write never happened")
	}
	if got := len(rec.writes()); got != 1 {
		t.Fatalf("expected one coalesced write, got %d", got)
	}
}

func TestAutosaverDiscardDropsPending(t *testing.T) {
	clock := clockwork.NewFakeClock()
	rec := &recordingSaver{}
	saver := app.NewAutosaver(clock, time.Second, rec.save, nil)

	saver.Schedule(domain.Snapshot{TestID: "t1"})
	saver.Discard("t2")
	if !saver.Pending() {
		t.Fatalf("discard for another test must keep the pending write")
	}
	saver.Discard("t1")
	if saver.Pending() {
		t.Fatalf("expected pending write dropped")
	}
	saver.Flush(context.Background())
	if len(rec.writes()) != 0 {
		t.Fatalf("expected no writes, got %d", len(rec.writes()))
	}
}

func TestAutosaverFlushWritesNow(t *testing.T) {
	rec := &recordingSaver{}
	saver := app.NewAutosaver(clockwork.NewFakeClock(), time.Minute, rec.save, nil)

	saver.Schedule(domain.Snapshot{TestID: "t1", CurrentIndex: 4})
	saver.Flush(context.Background())
	writes := rec.writes()
	if len(writes) != 1 || writes[0].CurrentIndex != 4 {
		t.Fatalf("unexpected writes %+v", writes)
	}
	if saver.Pending() {
		t.Fatalf("expected queue empty after flush")
	}
}
