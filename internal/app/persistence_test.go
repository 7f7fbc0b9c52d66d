package app_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"mocktest-client/internal/app"
	"mocktest-client/internal/domain"
	"mocktest-client/internal/infra/memory"
)

func TestPersistenceRoundTrip(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC))
	backend := memory.NewSnapshotStore()
	p := app.NewPersistence(backend, clock, 0, zerolog.Nop())

	saved, err := p.Save(ctx, domain.Snapshot{
		TestID:         "t1",
		Answers:        domain.AnswerMap{"q1": "B"},
		ElapsedSeconds: 30,
		CurrentIndex:   2,
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if saved.Version != domain.SnapshotVersion || !saved.CapturedAt.Equal(clock.Now()) {
		t.Fatalf("expected stamped snapshot, got %+v", saved)
	}

	raw, err := backend.Get(ctx, "mocktest_autosave:t1")
	if err != nil {
		t.Fatalf("expected namespaced key: %v", err)
	}
	var onDisk map[string]any
	if err := json.Unmarshal(raw, &onDisk); err != nil {
		t.Fatalf("stored value is not JSON: %v", err)
	}
	if onDisk["testId"] != "t1" || onDisk["capturedAt"] == nil {
		t.Fatalf("unexpected stored document %v", onDisk)
	}

	got, ok := p.Restore(ctx, "t1")
	if !ok || got.Answers["q1"] != "B" || got.CurrentIndex != 2 || got.ElapsedSeconds != 30 {
		t.Fatalf("unexpected restore %+v ok=%v", got, ok)
	}
}

func TestPersistenceFailsOpen(t *testing.T) {
	ctx := context.Background()
	backend := memory.NewSnapshotStore()
	p := app.NewPersistence(backend, clockwork.NewFakeClock(), 0, zerolog.Nop())

	if _, ok := p.Load(ctx, "missing"); ok {
		t.Fatalf("expected missing snapshot not found")
	}
	_ = backend.Put(ctx, app.SnapshotKey("bad"), []byte("{not json"))
	if _, ok := p.Load(ctx, "bad"); ok {
		t.Fatalf("expected malformed snapshot not found")
	}
	_ = backend.Put(ctx, app.SnapshotKey("other"), []byte(`{"testId":"someone-else"}`))
	if _, ok := p.Load(ctx, "other"); ok {
		t.Fatalf("expected mismatched snapshot not found")
	}
}

func TestPersistenceFreshnessWindow(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	p := app.NewPersistence(memory.NewSnapshotStore(), clock, 0, zerolog.Nop())

	if _, err := p.Save(ctx, domain.Snapshot{TestID: "t1"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	clock.Advance(23 * time.Hour)
	if _, ok := p.Restore(ctx, "t1"); !ok {
		t.Fatalf("expected snapshot fresh within 24h")
	}
	clock.Advance(2 * time.Hour)
	if _, ok := p.Restore(ctx, "t1"); ok {
		t.Fatalf("expected snapshot stale after 24h")
	}
	if _, ok := p.Load(ctx, "t1"); !ok {
		t.Fatalf("Load ignores freshness")
	}
}

func TestPersistenceClearIsIdempotent(t *testing.T) {
	ctx := context.Background()
	p := app.NewPersistence(memory.NewSnapshotStore(), nil, 0, zerolog.Nop())

	_, _ = p.Save(ctx, domain.Snapshot{TestID: "t1"})
	if err := p.Clear(ctx, "t1"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if err := p.Clear(ctx, "t1"); err != nil {
		t.Fatalf("second clear: %v", err)
	}
	if _, ok := p.Load(ctx, "t1"); ok {
		t.Fatalf("expected snapshot gone")
	}
}

func TestPersistenceWriteFailureIsReported(t *testing.T) {
	p := app.NewPersistence(failingBackend{}, nil, 0, zerolog.Nop())
	if _, err := p.Save(context.Background(), domain.Snapshot{TestID: "t1"}); err == nil {
		t.Fatalf("expected write error")
	}
	if _, ok := p.Load(context.Background(), "t1"); ok {
		t.Fatalf("expected read failure to look like not found")
	}
}

type failingBackend struct{}

var errQuota = errors.New("quota exceeded")

func (failingBackend) Put(context.Context, string, []byte) error   { return errQuota }
func (failingBackend) Get(context.Context, string) ([]byte, error) { return nil, errQuota }
func (failingBackend) Delete(context.Context, string) error        { return errQuota }
