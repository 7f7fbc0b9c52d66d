package memory

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"mocktest-client/internal/domain"
)

// QuestionLoader fetches the question pool for a subject from a backing store.
type QuestionLoader interface {
	LoadQuestions(ctx context.Context, subject string) ([]domain.Question, error)
}

// QuestionBank caches subject pools with TTL to avoid repeated loader hits.
type QuestionBank struct {
	loader QuestionLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedPool
}

type cachedPool struct {
	questions []domain.Question
	expiresAt time.Time
}

func NewQuestionBank(loader QuestionLoader, ttl time.Duration) *QuestionBank {
	return &QuestionBank{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedPool),
	}
}

// Pool returns every question known for subject (case-insensitive).
func (b *QuestionBank) Pool(ctx context.Context, subject string) ([]domain.Question, error) {
	key := strings.ToLower(subject)
	now := b.clock()

	b.mu.RLock()
	if entry, ok := b.cache[key]; ok && entry.expiresAt.After(now) {
		b.mu.RUnlock()
		return entry.questions, nil
	}
	b.mu.RUnlock()

	result, err, _ := b.sf.Do(key, func() (interface{}, error) {
		now := b.clock()
		b.mu.RLock()
		if entry, ok := b.cache[key]; ok && entry.expiresAt.After(now) {
			b.mu.RUnlock()
			return entry.questions, nil
		}
		b.mu.RUnlock()

		questions, err := b.loader.LoadQuestions(ctx, subject)
		if err != nil {
			return nil, err
		}

		b.mu.Lock()
		b.cache[key] = cachedPool{
			questions: questions,
			expiresAt: now.Add(b.ttlWithJitter()),
		}
		b.mu.Unlock()
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

// Pick draws up to n questions for subject, preferring the requested
// difficulty and topics, in a stable order.
func (b *QuestionBank) Pick(ctx context.Context, subject string, n int, difficulty string, topics []string) ([]domain.Question, error) {
	pool, err := b.Pool(ctx, subject)
	if err != nil {
		return nil, err
	}

	wanted := make(map[string]bool, len(topics))
	for _, t := range topics {
		wanted[strings.ToLower(t)] = true
	}
	rank := func(q domain.Question) int {
		r := 0
		if difficulty != "" && strings.EqualFold(q.Difficulty, difficulty) {
			r += 2
		}
		if wanted[strings.ToLower(q.Topic)] {
			r++
		}
		return r
	}

	picked := make([]domain.Question, 0, n)
	for best := 3; best >= 0 && len(picked) < n; best-- {
		for _, q := range pool {
			if len(picked) == n {
				break
			}
			if rank(q) == best {
				picked = append(picked, q)
			}
		}
	}
	return picked, nil
}

// StaticQuestionLoader is a loader backed by an in-memory map keyed by
// lowercase subject (useful for tests/demos).
type StaticQuestionLoader struct {
	pools map[string][]domain.Question
}

func NewStaticQuestionLoader(questions []domain.Question) *StaticQuestionLoader {
	pools := make(map[string][]domain.Question)
	for _, q := range questions {
		key := strings.ToLower(q.Subject)
		pools[key] = append(pools[key], q)
	}
	return &StaticQuestionLoader{pools: pools}
}

func (l *StaticQuestionLoader) LoadQuestions(_ context.Context, subject string) ([]domain.Question, error) {
	if pool, ok := l.pools[strings.ToLower(subject)]; ok {
		return pool, nil
	}
	return nil, domain.ErrNotFound
}

func (b *QuestionBank) ttlWithJitter() time.Duration {
	if b.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(b.ttl) / 10
	return b.ttl + time.Duration(b.rnd.Int63n(jitterMax+1))
}
