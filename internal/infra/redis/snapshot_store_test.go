package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"mocktest-client/internal/domain"
)

func TestSnapshotStoreSetsAndClearsKeys(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	store := NewSnapshotStore(newClient(mr), time.Hour)

	if err := store.Put(ctx, "mocktest_autosave:t1", []byte(`{"testId":"t1"}`)); err != nil {
		t.Fatalf("put: %v", err)
	}
	if !mr.Exists("mocktest_autosave:t1") {
		t.Fatalf("expected redis key to be set")
	}
	if ttl := mr.TTL("mocktest_autosave:t1"); ttl != time.Hour {
		t.Fatalf("expected 1h ttl, got %s", ttl)
	}

	got, err := store.Get(ctx, "mocktest_autosave:t1")
	if err != nil || string(got) != `{"testId":"t1"}` {
		t.Fatalf("unexpected get %q %v", got, err)
	}

	if err := store.Delete(ctx, "mocktest_autosave:t1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if mr.Exists("mocktest_autosave:t1") {
		t.Fatalf("expected redis key to be removed")
	}
	if _, err := store.Get(ctx, "mocktest_autosave:t1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSnapshotStoreExpires(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	store := NewSnapshotStore(newClient(mr), time.Minute)
	_ = store.Put(ctx, "k", []byte("v"))

	mr.FastForward(2 * time.Minute)
	if _, err := store.Get(ctx, "k"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected expired key, got %v", err)
	}
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}
