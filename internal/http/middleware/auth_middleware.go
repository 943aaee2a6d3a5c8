package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sandeepkv93/taskgate/internal/http/response"
	"github.com/sandeepkv93/taskgate/internal/observability"
	"github.com/sandeepkv93/taskgate/internal/security"
	"github.com/sandeepkv93/taskgate/internal/session"
)

type SessionValidator interface {
	ValidateServerSide(ctx context.Context, token string) (*session.Principal, error)
}

// RequireSession validates the bearer token (or the session cookie's token)
// server-side on every request and puts the principal on the context.
func RequireSession(validator SessionValidator, cookies *security.CookieManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, _ := cookies.RequestToken(r)
			if token == "" {
				observability.RecordGuardDecision(r.Context(), "api", "missing_token")
				unauthorized(w, r, "Not authenticated")
				return
			}
			p, err := validator.ValidateServerSide(r.Context(), token)
			if err != nil {
				if errors.Is(err, session.ErrInvalidSession) {
					observability.RecordGuardDecision(r.Context(), "api", "invalid_token")
					unauthorized(w, r, "Invalid or expired session")
					return
				}
				slog.ErrorContext(r.Context(), "session validation failed", "error", err)
				response.Detail(w, r, http.StatusServiceUnavailable, "Session service unavailable")
				return
			}
			observability.RecordGuardDecision(r.Context(), "api", "authorized")
			next.ServeHTTP(w, r.WithContext(session.WithPrincipal(r.Context(), p)))
		})
	}
}

func unauthorized(w http.ResponseWriter, r *http.Request, detail string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	response.Detail(w, r, http.StatusUnauthorized, detail)
}
