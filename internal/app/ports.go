package app

import (
	"context"

	"mocktest-client/internal/domain"
)

// TestService is the remote service that creates, serves and scores tests.
type TestService interface {
	Create(ctx context.Context, cfg domain.TestConfig) (string, error)
	FetchQuestions(ctx context.Context, testID, subject string) (domain.QuestionSet, error)
	Submit(ctx context.Context, testID string, submission domain.Submission) (domain.Results, error)
	FetchResults(ctx context.Context, testID string) (domain.Results, error)
}

// AnalysisService generates and serves markdown performance reports.
type AnalysisService interface {
	Generate(ctx context.Context, testID string) (domain.Analysis, error)
	FetchBySession(ctx context.Context, sessionID string) (domain.Analysis, error)
	FetchByTest(ctx context.Context, testID string) (domain.Analysis, error)
}

// AuthService issues opaque access tokens.
type AuthService interface {
	Register(ctx context.Context, creds domain.Credentials) (domain.AuthResponse, error)
	Login(ctx context.Context, creds domain.Credentials) (domain.AuthResponse, error)
}

// SnapshotBackend abstracts the durable local key-value store (memory, file,
// Redis, Postgres). Get returns domain.ErrNotFound for a missing key; Delete
// of a missing key is not an error.
type SnapshotBackend interface {
	Put(ctx context.Context, key string, value []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// HistoryService lists the signed-in user's past results.
type HistoryService interface {
	MyResults(ctx context.Context) ([]domain.Results, error)
}

// TokenSource supplies the bearer token for remote calls, if any.
type TokenSource interface {
	Token(ctx context.Context) (string, bool)
}

// TokenSourceFunc adapts a function to TokenSource.
type TokenSourceFunc func(ctx context.Context) (string, bool)

func (f TokenSourceFunc) Token(ctx context.Context) (string, bool) { return f(ctx) }
