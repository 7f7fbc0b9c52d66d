package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"mocktest-client/internal/domain"
	"mocktest-client/internal/infra/memory"
)

func TestQuestionCacheCachesInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	loader := &countingLoader{QuestionLoader: memory.NewStaticQuestionLoader(memory.SampleQuestions())}
	cache := NewQuestionCache(newClient(mr), loader, time.Minute)

	pool, err := cache.LoadQuestions(context.Background(), "Physics")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(pool) == 0 || loader.calls != 1 {
		t.Fatalf("expected loader called once, got %d (pool %d)", loader.calls, len(pool))
	}
	if !mr.Exists("mocktest:questions:physics") {
		t.Fatalf("expected pool cached in redis")
	}

	// Second call should hit cache, loader not incremented.
	again, _ := cache.LoadQuestions(context.Background(), "physics")
	if loader.calls != 1 || len(again) != len(pool) {
		t.Fatalf("expected cache hit, loader calls=%d", loader.calls)
	}
	if again[0].CorrectAnswer == "" {
		t.Fatalf("expected answer keys kept in the cached pool")
	}
}

type countingLoader struct {
	memory.QuestionLoader
	calls int
}

func (l *countingLoader) LoadQuestions(ctx context.Context, subject string) ([]domain.Question, error) {
	l.calls++
	return l.QuestionLoader.LoadQuestions(ctx, subject)
}
