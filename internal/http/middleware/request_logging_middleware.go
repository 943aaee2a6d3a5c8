package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// RequestLogger emits one structured line per request. Probe traffic logs
// at debug. Query strings are never logged since redirect targets and form
// errors travel there.
func RequestLogger(logger *slog.Logger, cookieName string) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			routePattern := ""
			if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
				routePattern = routeCtx.RoutePattern()
			}
			_, cookieErr := r.Cookie(cookieName)

			attrs := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"route", routePattern,
				"status", status,
				"bytes", ww.BytesWritten(),
				"duration_ms", float64(time.Since(start).Microseconds()) / 1000.0,
				"request_id", chimiddleware.GetReqID(r.Context()),
				"client_ip", r.RemoteAddr,
				"has_session", cookieErr == nil || r.Header.Get("Authorization") != "",
			}

			ctx := r.Context()
			switch {
			case status >= http.StatusInternalServerError:
				logger.ErrorContext(ctx, "http.request", attrs...)
			case strings.HasPrefix(r.URL.Path, "/health/"):
				logger.DebugContext(ctx, "http.request", attrs...)
			default:
				logger.InfoContext(ctx, "http.request", attrs...)
			}
		})
	}
}
