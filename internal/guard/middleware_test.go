package guard

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sandeepkv93/taskgate/internal/security"
)

func TestMiddlewareUsesCookiePresenceOnly(t *testing.T) {
	p := DefaultPolicy()
	h := p.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	tests := []struct {
		name     string
		path     string
		cookie   string
		status   int
		location string
	}{
		{"protected without cookie", "/tasks", "", http.StatusFound, "/login?redirect=/tasks"},
		{"protected with any cookie", "/chat", "garbage", http.StatusTeapot, ""},
		{"login with cookie", "/login", "garbage", http.StatusFound, "/tasks"},
		{"login without cookie", "/login", "", http.StatusTeapot, ""},
		{"public", "/", "", http.StatusTeapot, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			if tc.cookie != "" {
				req.AddCookie(&http.Cookie{Name: security.SessionCookieName, Value: tc.cookie})
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)
			if rr.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, rr.Code)
			}
			if got := rr.Header().Get("Location"); got != tc.location {
				t.Fatalf("expected location %q, got %q", tc.location, got)
			}
		})
	}
}
