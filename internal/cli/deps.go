package cli

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"mocktest-client/internal/app"
	"mocktest-client/internal/config"
	"mocktest-client/internal/infra/file"
	"mocktest-client/internal/infra/memory"
	pgstore "mocktest-client/internal/infra/postgres"
	redisstore "mocktest-client/internal/infra/redis"
	"mocktest-client/internal/infra/remote"
)

// services is everything a command needs, wired from config.
type services struct {
	cfg      config.Config
	log      zerolog.Logger
	clock    clockwork.Clock
	backend  app.SnapshotBackend
	tests    app.TestService
	analyses app.AnalysisService
	history  app.HistoryService
	auth     *app.Auth
	closers  []func()
}

func (s *services) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func (s *services) persistence() *app.Persistence {
	freshness := config.TTLDuration(s.cfg.Store.Freshness, app.DefaultFreshness)
	return app.NewPersistence(s.backend, s.clock, freshness, s.log)
}

func (s *services) sessionStore() *app.SessionStore {
	return app.NewSessionStore(s.tests, s.persistence(), app.SessionOptions{
		Clock:         s.clock,
		AutosaveDelay: config.TTLDuration(s.cfg.Session.AutosaveDelay, app.DefaultAutosaveDelay),
		GraceDelay:    config.TTLDuration(s.cfg.Session.GraceDelay, app.DefaultGraceDelay),
		TickSaveEvery: s.cfg.Session.TickSaveEvery,
		Logger:        s.log,
	})
}

func (s *services) analysisStore() *app.AnalysisStore {
	return app.NewAnalysisStore(s.analyses, s.log)
}

func buildServices(ctx context.Context, cfg config.Config, log zerolog.Logger) (*services, error) {
	s := &services{cfg: cfg, log: log, clock: clockwork.NewRealClock()}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		s.closers = append(s.closers, func() { _ = redisClient.Close() })
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" && (cfg.Store.Driver == config.DriverPostgres || cfg.API.Offline) {
		if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
			s.Close()
			return nil, err
		}
		var err error
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		s.closers = append(s.closers, pool.Close)
	}

	freshness := config.TTLDuration(cfg.Store.Freshness, app.DefaultFreshness)
	switch cfg.Store.Driver {
	case config.DriverMemory:
		s.backend = memory.NewSnapshotStore()
	case config.DriverFile:
		store, err := file.NewSnapshotStore(cfg.Store.Dir)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.backend = store
	case config.DriverRedis:
		s.backend = redisstore.NewSnapshotStore(redisClient, freshness)
	case config.DriverPostgres:
		s.backend = pgstore.NewSnapshotStore(pool)
	default:
		s.Close()
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}

	if cfg.API.Offline {
		var loader memory.QuestionLoader = memory.NewStaticQuestionLoader(memory.SampleQuestions())
		if pool != nil {
			loader = pgstore.NewQuestionLoader(pool)
		}
		ttl := config.TTLDuration(cfg.Questions.TTL, 10*time.Minute)
		if redisClient != nil {
			loader = redisstore.NewQuestionCache(redisClient, loader, ttl)
		}
		offline := memory.NewOfflineService(memory.NewQuestionBank(loader, ttl), s.clock)
		s.tests, s.analyses, s.history = offline, offline, offline
		s.auth = app.NewAuth(offline, s.backend, s.clock, log)
		log.Debug().Msg("using offline test service")
		return s, nil
	}

	var auth *app.Auth
	client, err := remote.New(cfg.API.URL,
		remote.WithHTTPClient(&http.Client{Timeout: config.TTLDuration(cfg.API.Timeout, 0)}),
		remote.WithTokenSource(app.TokenSourceFunc(func(ctx context.Context) (string, bool) {
			return auth.Token(ctx)
		})),
		remote.WithLogger(log),
	)
	if err != nil {
		s.Close()
		return nil, err
	}
	auth = app.NewAuth(client, s.backend, s.clock, log)
	s.tests, s.analyses, s.history, s.auth = client, client, client, auth
	return s, nil
}
