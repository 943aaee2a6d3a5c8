package router

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/sandeepkv93/taskgate/internal/guard"
	"github.com/sandeepkv93/taskgate/internal/health"
	"github.com/sandeepkv93/taskgate/internal/http/handler"
	"github.com/sandeepkv93/taskgate/internal/http/middleware"
	"github.com/sandeepkv93/taskgate/internal/http/response"
	"github.com/sandeepkv93/taskgate/internal/security"
)

type Dependencies struct {
	AuthHandler *handler.AuthHandler
	TaskHandler *handler.TaskHandler
	PageHandler *handler.PageHandler
	Gate        *guard.Gate
	Sessions    middleware.SessionValidator
	Cookies     *security.CookieManager
	CORSOrigins []string
	Logger      *slog.Logger

	// Limiter backs both rate limit groups; nil uses an in-process window.
	Limiter          middleware.Limiter
	LimiterMode      middleware.FailureMode
	AuthRateLimitRPM int
	APIRateLimitRPM  int

	Readiness      *health.ProbeRunner
	EnableOTelHTTP bool
}

const maxBodyBytes = 1 << 20

func NewRouter(dep Dependencies) http.Handler {
	limiter := dep.Limiter
	mode := dep.LimiterMode
	if limiter == nil {
		limiter = middleware.NewLocalFixedWindowLimiter()
		mode = middleware.FailClosed
	}
	loginLimiter := middleware.NewRateLimiter(limiter, dep.AuthRateLimitRPM, time.Minute, mode, "login").Middleware()
	signupLimiter := middleware.NewRateLimiter(limiter, dep.AuthRateLimitRPM, time.Minute, mode, "signup").Middleware()
	apiLimiter := middleware.NewRateLimiter(limiter, dep.APIRateLimitRPM, time.Minute, mode, "api").WithDetailErrors().Middleware()

	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger(dep.Logger, dep.Cookies.Name))
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CORS(dep.CORSOrigins))
	r.Use(middleware.SameOrigin(dep.CORSOrigins))
	r.Use(middleware.BodyLimit(maxBodyBytes))

	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		ready, results := dep.Readiness.Ready(r.Context())
		if results == nil {
			results = []health.CheckResult{}
		}
		if ready {
			response.JSON(w, r, http.StatusOK, map[string]any{"status": "ready", "checks": results})
			return
		}
		response.JSON(w, r, http.StatusServiceUnavailable, map[string]any{"status": "unready", "checks": results})
	})

	r.With(loginLimiter).Post("/login", dep.AuthHandler.Login)
	r.With(signupLimiter).Post("/signup", dep.AuthHandler.Signup)
	r.Get("/session", dep.AuthHandler.Session)
	r.Post("/logout", dep.AuthHandler.Logout)

	r.Group(func(r chi.Router) {
		r.Use(dep.Gate.Policy().Middleware)
		r.Use(dep.Gate.Serve)
		r.Get("/", dep.PageHandler.Home)
		r.Get("/login", dep.PageHandler.Login)
		r.Get("/signup", dep.PageHandler.Signup)
		r.Get("/tasks", dep.PageHandler.Tasks)
		r.Post("/tasks", dep.PageHandler.CreateTask)
		r.Get("/chat", dep.PageHandler.Chat)
		r.Post("/chat", dep.PageHandler.SendChat)
	})

	r.Route("/api/{userId}", func(r chi.Router) {
		r.Use(apiLimiter)
		r.Use(middleware.RequireSession(dep.Sessions, dep.Cookies))
		r.Get("/tasks", dep.TaskHandler.List)
		r.Post("/tasks", dep.TaskHandler.Create)
		r.Put("/tasks/{id}", dep.TaskHandler.Update)
		r.Delete("/tasks/{id}", dep.TaskHandler.Delete)
		r.Patch("/tasks/{id}/complete", dep.TaskHandler.ToggleComplete)
		r.Post("/chat", dep.TaskHandler.Chat)
	})

	var h http.Handler = r
	if dep.EnableOTelHTTP {
		h = otelhttp.NewHandler(r, "http.server")
	}
	return h
}
