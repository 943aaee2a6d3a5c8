package guard

import (
	"net/http"

	"github.com/sandeepkv93/taskgate/internal/observability"
	"github.com/sandeepkv93/taskgate/internal/security"
)

// Middleware is the request-time layer. It only looks at cookie presence
// and runs before any page code.
func (p Policy) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authenticated := security.GetCookie(r, p.CookieName) != ""
		d := p.Decide(r.URL.Path, authenticated)
		observability.RecordGuardDecision(r.Context(), "request", string(d.State))
		if d.State == StateRedirecting {
			http.Redirect(w, r, d.Location, http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}
