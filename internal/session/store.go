// Package session owns the session record life cycle: the client-held copy
// (cookie, local file, memory) and the server-side session table that is the
// only authority on whether a token is still valid.
package session

import (
	"context"
	"time"

	"github.com/sandeepkv93/taskgate/internal/domain"
)

// Store persists the client-held SessionRecord.
//
// Read never fails: malformed or unreadable values are reported as absent.
// Save fails loudly because it is the only path that can lose a login.
// Clear is idempotent.
type Store interface {
	Save(ctx context.Context, rec *domain.SessionRecord) error
	Read(ctx context.Context) (*domain.SessionRecord, bool)
	Clear(ctx context.Context) error
}

// TokenSource exposes the token of the stored record for outbound calls.
type TokenSource struct {
	Store Store
}

// Token returns the stored token, or "" when no record is present.
func (t TokenSource) Token(ctx context.Context) (string, error) {
	if t.Store == nil {
		return "", nil
	}
	rec, ok := t.Store.Read(ctx)
	if !ok {
		return "", nil
	}
	return rec.Token, nil
}

// Current returns the stored record only when it is present and unexpired.
func Current(ctx context.Context, store Store, now time.Time) (*domain.SessionRecord, bool) {
	rec, ok := store.Read(ctx)
	if !ok || !rec.Valid(now) {
		return nil, false
	}
	return rec, true
}

func wellFormed(rec *domain.SessionRecord) bool {
	return rec != nil && rec.User.ID != "" && rec.Token != "" && !rec.ExpiresAt.IsZero()
}
