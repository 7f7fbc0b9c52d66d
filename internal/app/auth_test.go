package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"mocktest-client/internal/app"
	"mocktest-client/internal/domain"
	"mocktest-client/internal/infra/memory"
)

func newOffline(clock clockwork.Clock) *memory.OfflineService {
	bank := memory.NewQuestionBank(memory.NewStaticQuestionLoader(memory.SampleQuestions()), time.Minute)
	return memory.NewOfflineService(bank, clock)
}

func TestAuthKeepsTokenUntilLogout(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	backend := memory.NewSnapshotStore()
	auth := app.NewAuth(newOffline(clock), backend, clock, zerolog.Nop())

	if _, ok := auth.Token(ctx); ok {
		t.Fatalf("expected no token before login")
	}
	user, err := auth.Register(ctx, domain.Credentials{Username: "asha", Email: "asha@example.com", Password: "pw"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.Username != "asha" {
		t.Fatalf("unexpected user %+v", user)
	}
	if _, ok := auth.Token(ctx); !ok {
		t.Fatalf("expected stored token")
	}
	if u, ok := auth.User(ctx); !ok || u.Email != "asha@example.com" {
		t.Fatalf("expected stored user, got %+v", u)
	}

	if err := auth.Logout(ctx); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, ok := auth.Token(ctx); ok {
		t.Fatalf("expected token removed")
	}
	if backend.Len() != 0 {
		t.Fatalf("expected backend empty after logout")
	}
	if err := auth.Logout(ctx); err != nil {
		t.Fatalf("second logout: %v", err)
	}
}

func TestAuthTreatsExpiredJWTAsAbsent(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	svc := newOffline(clock)
	auth := app.NewAuth(svc, memory.NewSnapshotStore(), clock, zerolog.Nop())

	if _, err := auth.Register(ctx, domain.Credentials{Username: "asha", Password: "pw"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	clock.Advance(memory.TokenTTL + time.Minute)
	if _, ok := auth.Token(ctx); ok {
		t.Fatalf("expected expired token ignored")
	}
	if _, ok := auth.User(ctx); ok {
		t.Fatalf("expected no user with an expired token")
	}
}

func TestAuthOpaqueTokenAndFailedLogin(t *testing.T) {
	ctx := context.Background()
	backend := memory.NewSnapshotStore()
	_ = backend.Put(ctx, app.TokenKey, []byte("opaque-token"))
	auth := app.NewAuth(newOffline(nil), backend, nil, zerolog.Nop())

	if token, ok := auth.Token(ctx); !ok || token != "opaque-token" {
		t.Fatalf("expected opaque token kept, got %q", token)
	}
	if _, err := auth.Login(ctx, domain.Credentials{Username: "ghost", Password: "x"}); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}
