package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/sandeepkv93/taskgate/internal/domain"
	"github.com/sandeepkv93/taskgate/internal/security"
)

// CookieStore is the per-request cookie medium. Writes made during the
// request are visible to later reads in the same request.
type CookieStore struct {
	cookies *security.CookieManager
	w       http.ResponseWriter
	r       *http.Request
	now     func() time.Time

	written bool
	current *domain.SessionRecord
}

func NewCookieStore(cookies *security.CookieManager, w http.ResponseWriter, r *http.Request) *CookieStore {
	return &CookieStore{cookies: cookies, w: w, r: r, now: time.Now}
}

func (s *CookieStore) Save(_ context.Context, rec *domain.SessionRecord) error {
	if !wellFormed(rec) {
		return fmt.Errorf("save session cookie: incomplete record")
	}
	if s.w == nil {
		return fmt.Errorf("save session cookie: no response writer")
	}
	if err := s.cookies.SetSession(s.w, rec, s.now()); err != nil {
		return fmt.Errorf("save session cookie: %w", err)
	}
	cp := *rec
	s.written = true
	s.current = &cp
	return nil
}

func (s *CookieStore) Read(ctx context.Context) (*domain.SessionRecord, bool) {
	if s.written {
		if s.current == nil {
			return nil, false
		}
		cp := *s.current
		return &cp, true
	}
	if s.r == nil {
		return nil, false
	}
	rec, err := s.cookies.ReadSession(s.r)
	if err != nil {
		if !errors.Is(err, security.ErrNoSessionCookie) {
			slog.DebugContext(ctx, "discarding unreadable session cookie", "error", err)
		}
		return nil, false
	}
	if !wellFormed(rec) {
		return nil, false
	}
	return rec, true
}

func (s *CookieStore) Clear(_ context.Context) error {
	if s.w != nil {
		s.cookies.ClearSession(s.w)
	}
	s.written = true
	s.current = nil
	return nil
}
