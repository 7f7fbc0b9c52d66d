package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"mocktest-client/internal/domain"
)

// Keys under which the session credentials are kept in the local store.
const (
	TokenKey = "auth_token"
	UserKey  = "auth_user"
)

// Auth keeps the access token issued by the auth service. The token is
// treated as opaque; a JWT whose exp claim has passed counts as absent.
type Auth struct {
	svc     AuthService
	backend SnapshotBackend
	clock   clockwork.Clock
	log     zerolog.Logger
}

func NewAuth(svc AuthService, backend SnapshotBackend, clock clockwork.Clock, log zerolog.Logger) *Auth {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Auth{
		svc:     svc,
		backend: backend,
		clock:   clock,
		log:     log.With().Str("component", "auth").Logger(),
	}
}

// Register creates an account and stores the issued token.
func (a *Auth) Register(ctx context.Context, creds domain.Credentials) (domain.User, error) {
	resp, err := a.svc.Register(ctx, creds)
	if err != nil {
		return domain.User{}, fmt.Errorf("register: %w", err)
	}
	return a.keep(ctx, resp)
}

// Login exchanges credentials for a token and stores it.
func (a *Auth) Login(ctx context.Context, creds domain.Credentials) (domain.User, error) {
	resp, err := a.svc.Login(ctx, creds)
	if err != nil {
		return domain.User{}, fmt.Errorf("login: %w", err)
	}
	return a.keep(ctx, resp)
}

// Logout forgets the stored token and user.
func (a *Auth) Logout(ctx context.Context) error {
	var errs []error
	for _, key := range []string{TokenKey, UserKey} {
		if err := a.backend.Delete(ctx, key); err != nil && !errors.Is(err, domain.ErrNotFound) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Token returns the stored access token, if there is a usable one.
func (a *Auth) Token(ctx context.Context) (string, bool) {
	raw, err := a.backend.Get(ctx, TokenKey)
	if err != nil || len(raw) == 0 {
		return "", false
	}
	token := string(raw)
	if a.expired(token) {
		a.log.Info().Msg("stored token expired")
		return "", false
	}
	return token, true
}

// User returns the stored account, if any.
func (a *Auth) User(ctx context.Context) (domain.User, bool) {
	if _, ok := a.Token(ctx); !ok {
		return domain.User{}, false
	}
	raw, err := a.backend.Get(ctx, UserKey)
	if err != nil {
		return domain.User{}, false
	}
	var u domain.User
	if err := json.Unmarshal(raw, &u); err != nil {
		a.log.Warn().Err(err).Msg("discarding malformed stored user")
		return domain.User{}, false
	}
	return u, true
}

func (a *Auth) keep(ctx context.Context, resp domain.AuthResponse) (domain.User, error) {
	if resp.AccessToken == "" {
		return domain.User{}, fmt.Errorf("auth response without token: %w", domain.ErrUnauthorized)
	}
	user, err := json.Marshal(resp.User)
	if err != nil {
		return domain.User{}, fmt.Errorf("encode user: %w", err)
	}
	if err := a.backend.Put(ctx, TokenKey, []byte(resp.AccessToken)); err != nil {
		return domain.User{}, fmt.Errorf("store token: %w", err)
	}
	if err := a.backend.Put(ctx, UserKey, user); err != nil {
		return domain.User{}, fmt.Errorf("store user: %w", err)
	}
	a.log.Info().Str("username", resp.User.Username).Msg("signed in")
	return resp.User, nil
}

func (a *Auth) expired(token string) bool {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return false // not a JWT; stays opaque
	}
	return claims.ExpiresAt != nil && !a.clock.Now().Before(claims.ExpiresAt.Time)
}
