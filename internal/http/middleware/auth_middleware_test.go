package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sandeepkv93/taskgate/internal/domain"
	"github.com/sandeepkv93/taskgate/internal/security"
	"github.com/sandeepkv93/taskgate/internal/session"
)

type validatorFunc func(ctx context.Context, token string) (*session.Principal, error)

func (f validatorFunc) ValidateServerSide(ctx context.Context, token string) (*session.Principal, error) {
	return f(ctx, token)
}

func TestRequireSession(t *testing.T) {
	cookies := security.NewCookieManager("", false, "lax")
	validator := validatorFunc(func(_ context.Context, token string) (*session.Principal, error) {
		switch token {
		case "live":
			return &session.Principal{User: domain.Identity{ID: "u-1"}, SessionID: "s-1", ExpiresAt: time.Now().Add(time.Hour)}, nil
		case "outage":
			return nil, errors.New("db down")
		}
		return nil, session.ErrInvalidSession
	})

	var seen *session.Principal
	h := RequireSession(validator, cookies)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = session.PrincipalFrom(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	cookieValue, err := security.EncodeSessionRecord(&domain.SessionRecord{
		User:      domain.Identity{ID: "u-1"},
		Token:     "live",
		ExpiresAt: time.Now().Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	tests := []struct {
		name       string
		bearer     string
		cookie     string
		want       int
		wantHeader bool
	}{
		{"missing", "", "", http.StatusUnauthorized, true},
		{"bearer live", "live", "", http.StatusOK, false},
		{"cookie live", "", cookieValue, http.StatusOK, false},
		{"revoked", "revoked", "", http.StatusUnauthorized, true},
		{"outage", "outage", "", http.StatusServiceUnavailable, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			seen = nil
			req := httptest.NewRequest(http.MethodGet, "/api/u-1/tasks", nil)
			if tc.bearer != "" {
				req.Header.Set("Authorization", "Bearer "+tc.bearer)
			}
			if tc.cookie != "" {
				req.AddCookie(&http.Cookie{Name: security.SessionCookieName, Value: tc.cookie})
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			if rr.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, rr.Code)
			}
			if got := rr.Header().Get("WWW-Authenticate") == "Bearer"; got != tc.wantHeader {
				t.Fatalf("unexpected WWW-Authenticate %q", rr.Header().Get("WWW-Authenticate"))
			}
			if tc.want == http.StatusOK && (seen == nil || seen.User.ID != "u-1") {
				t.Fatalf("expected principal on context, got %+v", seen)
			}
		})
	}
}
