package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/sandeepkv93/taskgate/internal/domain"
	"github.com/sandeepkv93/taskgate/internal/observability"
	"github.com/sandeepkv93/taskgate/internal/repository"
	"github.com/sandeepkv93/taskgate/internal/security"
)

// ErrInvalidSession covers absent, unknown, expired and revoked tokens.
var ErrInvalidSession = errors.New("invalid or expired session")

// lookupTimeout bounds a shared table lookup, which no longer follows the
// cancellation of the request that started it.
const lookupTimeout = 5 * time.Second

// Principal is the identity behind a server-validated token.
type Principal struct {
	User      domain.Identity `json:"user"`
	SessionID string          `json:"session_id"`
	ExpiresAt time.Time       `json:"expires_at"`
}

// ServerStore issues, validates and revokes tokens against the session
// table. The table is authoritative; the cache only shortens repeat lookups.
type ServerStore struct {
	sessions repository.SessionRepository
	users    repository.UserRepository
	secret   string
	ttl      time.Duration
	cache    Cache
	cacheTTL time.Duration
	logger   *slog.Logger
	now      func() time.Time
	sf       singleflight.Group

	// revocations counts completed revokes. A lookup that saw the count
	// move while it ran must not leave its principal in the cache.
	revocations atomic.Uint64
}

type ServerStoreOptions struct {
	Secret   string
	TTL      time.Duration
	Cache    Cache
	CacheTTL time.Duration
	Logger   *slog.Logger
	Now      func() time.Time
}

func NewServerStore(sessions repository.SessionRepository, users repository.UserRepository, opts ServerStoreOptions) *ServerStore {
	s := &ServerStore{
		sessions: sessions,
		users:    users,
		secret:   opts.Secret,
		ttl:      opts.TTL,
		cache:    opts.Cache,
		cacheTTL: opts.CacheTTL,
		logger:   opts.Logger,
		now:      opts.Now,
	}
	if s.ttl <= 0 || s.ttl > security.SessionCookieMaxAge*time.Second {
		s.ttl = security.SessionCookieMaxAge * time.Second
	}
	if s.cache == nil {
		s.cache = NewNoopCache()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (s *ServerStore) TTL() time.Duration { return s.ttl }

// Issue mints a token for user and records it through the store's
// repository.
func (s *ServerStore) Issue(ctx context.Context, user *domain.User, meta domain.SessionMeta) (*domain.SessionRecord, error) {
	return s.IssueWith(ctx, s.sessions, user, meta)
}

// IssueWith records the session through repo, which lets callers bind the
// write to an open transaction.
func (s *ServerStore) IssueWith(ctx context.Context, repo repository.SessionRepository, user *domain.User, meta domain.SessionMeta) (*domain.SessionRecord, error) {
	if user == nil || user.ID == "" {
		return nil, fmt.Errorf("issue session: missing user")
	}
	token, err := security.NewSessionToken()
	if err != nil {
		return nil, fmt.Errorf("generate session token: %w", err)
	}
	now := s.now().UTC()
	expiresAt := now.Add(s.ttl)
	row := &domain.Session{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		TokenHash: security.HashSessionToken(token, s.secret),
		UserAgent: truncate(meta.UserAgent, 512),
		IP:        truncate(meta.IP, 64),
		ExpiresAt: expiresAt,
		CreatedAt: now,
	}
	if err := repo.Create(ctx, row); err != nil {
		return nil, fmt.Errorf("persist session: %w", err)
	}
	return &domain.SessionRecord{User: user.Identity(), Token: token, ExpiresAt: expiresAt}, nil
}

// ValidateServerSide resolves token to its owner. It returns
// ErrInvalidSession when the token is absent, unknown, expired or revoked,
// and a wrapped error when the lookup itself fails.
func (s *ServerStore) ValidateServerSide(ctx context.Context, token string) (*Principal, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		observability.RecordSessionValidation(ctx, "invalid", "none")
		return nil, ErrInvalidSession
	}
	key := security.HashSessionToken(token, s.secret)

	if p, ok := s.cached(ctx, key); ok {
		observability.RecordSessionValidation(ctx, "valid", "cache")
		return p, nil
	}

	result, err, shared := s.sf.Do(key, func() (interface{}, error) {
		lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), lookupTimeout)
		defer cancel()
		return s.lookup(lookupCtx, key)
	})
	source := "db"
	if shared {
		source = "db_shared"
	}
	if err != nil {
		if errors.Is(err, ErrInvalidSession) {
			observability.RecordSessionValidation(ctx, "invalid", source)
		} else {
			observability.RecordSessionValidation(ctx, "error", source)
		}
		return nil, err
	}
	p, ok := result.(*Principal)
	if !ok {
		return nil, fmt.Errorf("invalid session lookup result type")
	}
	observability.RecordSessionValidation(ctx, "valid", source)
	cp := *p
	return &cp, nil
}

func (s *ServerStore) cached(ctx context.Context, key string) (*Principal, bool) {
	p, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.WarnContext(ctx, "session cache read failed", "error", err)
		return nil, false
	}
	if !ok || !s.now().Before(p.ExpiresAt) {
		return nil, false
	}
	return p, true
}

func (s *ServerStore) lookup(ctx context.Context, key string) (*Principal, error) {
	gen := s.revocations.Load()
	now := s.now().UTC()
	row, err := s.sessions.FindValidByHash(ctx, key, now)
	if errors.Is(err, repository.ErrSessionNotFound) {
		if delErr := s.sessions.DeleteExpiredByHash(ctx, key, now); delErr != nil {
			s.logger.DebugContext(ctx, "expired session cleanup failed", "error", delErr)
		}
		return nil, ErrInvalidSession
	}
	if err != nil {
		return nil, fmt.Errorf("lookup session: %w", err)
	}
	user, err := s.users.FindByID(ctx, row.UserID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, ErrInvalidSession
	}
	if err != nil {
		return nil, fmt.Errorf("lookup session user: %w", err)
	}
	p := &Principal{User: user.Identity(), SessionID: row.ID, ExpiresAt: row.ExpiresAt}
	if ttl := s.cacheWindow(row.ExpiresAt, now); ttl > 0 && s.revocations.Load() == gen {
		if err := s.cache.Set(ctx, key, p, ttl); err != nil {
			s.logger.WarnContext(ctx, "session cache write failed", "error", err)
		}
		if s.revocations.Load() != gen {
			s.evict(ctx, key)
		}
	}
	return p, nil
}

func (s *ServerStore) evict(ctx context.Context, key string) {
	if err := s.cache.Delete(ctx, key); err != nil {
		s.logger.WarnContext(ctx, "session cache evict failed", "error", err)
	}
}

func (s *ServerStore) cacheWindow(expiresAt, now time.Time) time.Duration {
	ttl := s.cacheTTL
	if remaining := expiresAt.Sub(now); remaining < ttl {
		ttl = remaining
	}
	return ttl
}

// Revoke ends the session behind token. Unknown tokens are not an error.
func (s *ServerStore) Revoke(ctx context.Context, token string) (bool, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return false, nil
	}
	key := security.HashSessionToken(token, s.secret)
	revoked, err := s.sessions.RevokeByHash(ctx, key)
	if err != nil {
		return false, fmt.Errorf("revoke session: %w", err)
	}
	// The row is gone before the cache entry, so nothing read after this
	// point can re-cache it.
	s.revocations.Add(1)
	s.sf.Forget(key)
	s.evict(ctx, key)
	return revoked, nil
}

// Cleanup deletes expired and revoked rows.
func (s *ServerStore) Cleanup(ctx context.Context) (int64, error) {
	n, err := s.sessions.CleanupExpired(ctx, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("cleanup sessions: %w", err)
	}
	observability.RecordSessionCleanup(ctx, n)
	return n, nil
}

func truncate(v string, n int) string {
	if len(v) <= n {
		return v
	}
	return v[:n]
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func PrincipalFrom(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*Principal)
	return p, ok && p != nil
}
