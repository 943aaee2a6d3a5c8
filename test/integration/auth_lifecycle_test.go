//go:build integration

package integration

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/sandeepkv93/taskgate/internal/apperr"
	"github.com/sandeepkv93/taskgate/internal/domain"
	"github.com/sandeepkv93/taskgate/internal/repository"
	"github.com/sandeepkv93/taskgate/internal/service"
	"github.com/sandeepkv93/taskgate/internal/session"
)

const integrationSecret = "integration-secret-0123456789abcdef"

type authStack struct {
	users    repository.UserRepository
	sessions *session.ServerStore
	auth     *service.AuthService
	repo     repository.SessionRepository
}

func newAuthStack(env *postgresIntegrationEnv) *authStack {
	users := repository.NewUserRepository(env.db)
	sessionRepo := repository.NewSessionRepository(env.db)
	sessions := session.NewServerStore(sessionRepo, users, session.ServerStoreOptions{
		Secret: integrationSecret,
		TTL:    7 * 24 * time.Hour,
		Cache:  session.NewMemoryCache(),
	})
	return &authStack{
		users:    users,
		sessions: sessions,
		auth:     service.NewAuthService(env.db, users, repository.NewCredentialRepository(env.db), sessions),
		repo:     sessionRepo,
	}
}

func TestAuthLifecycleOnPostgres(t *testing.T) {
	env := newPostgresIntegrationEnv(t)
	st := newAuthStack(env)
	ctx := context.Background()
	meta := domain.SessionMeta{UserAgent: "integration", IP: "10.0.0.1"}

	if _, err := st.auth.Login(ctx, "nobody@x.com", "whatever", meta); !errors.Is(err, apperr.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials for unknown account, got %v", err)
	}

	signed, err := st.auth.Signup(ctx, "a@b.com", "secret1", "A", meta)
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if signed.User.Email != "a@b.com" || signed.Token == "" {
		t.Fatalf("unexpected signup record %+v", signed)
	}
	if got := time.Until(signed.ExpiresAt); got < 7*24*time.Hour-time.Minute {
		t.Fatalf("expected seven day session, got %v", got)
	}

	if _, err := st.auth.Login(ctx, "a@b.com", "wrong-password", meta); !errors.Is(err, apperr.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials for wrong password, got %v", err)
	}
	logged, err := st.auth.Login(ctx, "a@b.com", "secret1", meta)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if logged.User.ID != signed.User.ID || logged.Token == signed.Token {
		t.Fatalf("expected a fresh session for the same user, got %+v", logged)
	}

	p, err := st.sessions.ValidateServerSide(ctx, logged.Token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if p.User.ID != signed.User.ID {
		t.Fatalf("principal mismatch %+v", p)
	}

	if err := st.auth.Logout(ctx, logged.Token); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := st.sessions.ValidateServerSide(ctx, logged.Token); !errors.Is(err, session.ErrInvalidSession) {
		t.Fatalf("expected revoked session to be invalid, got %v", err)
	}
	if _, err := st.sessions.ValidateServerSide(ctx, signed.Token); err != nil {
		t.Fatalf("other session must survive logout: %v", err)
	}
}

func TestConcurrentDuplicateSignupOnPostgres(t *testing.T) {
	env := newPostgresIntegrationEnv(t)
	st := newAuthStack(env)
	ctx := context.Background()

	const attempts = 4
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		ok      int
		taken   int
		unknown []error
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := st.auth.Signup(ctx, "race@b.com", "secret1", "Race", domain.SessionMeta{})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, apperr.ErrEmailTaken):
				taken++
			default:
				unknown = append(unknown, err)
			}
		}()
	}
	wg.Wait()

	if len(unknown) > 0 {
		t.Fatalf("unexpected signup errors: %v", unknown)
	}
	if ok != 1 || taken != attempts-1 {
		t.Fatalf("expected exactly one winner, got ok=%d taken=%d", ok, taken)
	}

	var users, creds int64
	if err := env.db.Model(&domain.User{}).Where("email = ?", "race@b.com").Count(&users).Error; err != nil {
		t.Fatalf("count users: %v", err)
	}
	if err := env.db.Model(&domain.Credential{}).Count(&creds).Error; err != nil {
		t.Fatalf("count credentials: %v", err)
	}
	if users != 1 || creds != 1 {
		t.Fatalf("losing signups must roll back, got users=%d credentials=%d", users, creds)
	}
}

func TestSessionCleanupOnPostgres(t *testing.T) {
	env := newPostgresIntegrationEnv(t)
	st := newAuthStack(env)
	ctx := context.Background()

	live, err := st.auth.Signup(ctx, "keep@b.com", "secret1", "Keep", domain.SessionMeta{})
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	now := time.Now().UTC()
	if err := st.repo.Create(ctx, &domain.Session{
		ID:        uuid.NewString(),
		UserID:    live.User.ID,
		TokenHash: "expired-" + uuid.NewString(),
		ExpiresAt: now.Add(-time.Hour),
		CreatedAt: now.Add(-8 * 24 * time.Hour),
	}); err != nil {
		t.Fatalf("seed expired session: %v", err)
	}

	deleted, err := st.sessions.Cleanup(ctx)
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected one expired row removed, got %d", deleted)
	}
	if _, err := st.sessions.ValidateServerSide(ctx, live.Token); err != nil {
		t.Fatalf("live session must survive cleanup: %v", err)
	}
}
