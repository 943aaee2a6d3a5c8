package di

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/wire"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/sandeepkv93/taskgate/internal/apiclient"
	"github.com/sandeepkv93/taskgate/internal/app"
	"github.com/sandeepkv93/taskgate/internal/config"
	"github.com/sandeepkv93/taskgate/internal/database"
	"github.com/sandeepkv93/taskgate/internal/guard"
	"github.com/sandeepkv93/taskgate/internal/health"
	"github.com/sandeepkv93/taskgate/internal/http/handler"
	"github.com/sandeepkv93/taskgate/internal/http/middleware"
	"github.com/sandeepkv93/taskgate/internal/http/router"
	"github.com/sandeepkv93/taskgate/internal/observability"
	"github.com/sandeepkv93/taskgate/internal/repository"
	"github.com/sandeepkv93/taskgate/internal/security"
	"github.com/sandeepkv93/taskgate/internal/service"
	"github.com/sandeepkv93/taskgate/internal/session"
)

var ConfigSet = wire.NewSet(config.Load)

var ObservabilitySet = wire.NewSet(
	provideObservabilityRuntime,
	provideAppLogger,
)

var RuntimeInfraSet = wire.NewSet(
	provideRuntimeDB,
	provideRedisClient,
	provideReadinessProbeRunner,
)

var RepositorySet = wire.NewSet(
	repository.NewUserRepository,
	repository.NewSessionRepository,
	repository.NewCredentialRepository,
)

var SecuritySet = wire.NewSet(
	provideCookieManager,
	provideBackendTokenIssuer,
	provideLoginThrottle,
)

var SessionSet = wire.NewSet(
	provideSessionCache,
	provideServerStore,
)

var ServiceSet = wire.NewSet(
	service.NewAuthService,
	service.NewTokenService,
	provideBackendClient,
	wire.Bind(new(service.AuthServiceInterface), new(*service.AuthService)),
	wire.Bind(new(service.SessionValidator), new(*session.ServerStore)),
	wire.Bind(new(handler.TaskBackend), new(*apiclient.Client)),
)

var HTTPSet = wire.NewSet(
	guard.DefaultPolicy,
	guard.NewGate,
	handler.NewAuthHandler,
	handler.NewTaskHandler,
	handler.NewPageHandler,
	provideRouterDependencies,
	router.NewRouter,
	provideHTTPServer,
)

var AppSet = wire.NewSet(provideApp)

// backendHealthPath is the task service's unauthenticated liveness route.
const backendHealthPath = "/health"

func provideObservabilityRuntime(cfg *config.Config) (*observability.Runtime, error) {
	bootstrapLogger := observability.NewBootstrapLogger(cfg)
	return observability.InitRuntime(context.Background(), cfg, bootstrapLogger)
}

func provideAppLogger(cfg *config.Config, runtime *observability.Runtime) *slog.Logger {
	return observability.InitLogger(cfg, runtime.LoggerProvider)
}

// provideRuntimeDB opens the pool and creates the schema. There is no
// separate migration step.
func provideRuntimeDB(cfg *config.Config) (*gorm.DB, error) {
	db, err := database.Open(cfg)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db); err != nil {
		_ = database.Close(db)
		return nil, err
	}
	return db, nil
}

func provideRedisClient(cfg *config.Config, logger *slog.Logger) redis.UniversalClient {
	if !cfg.RedisEnabled {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	observability.InstrumentRedisClient(client, logger)
	return client
}

func provideCookieManager(cfg *config.Config) *security.CookieManager {
	return security.NewCookieManager(cfg.CookieDomain, cfg.CookieSecure, "lax")
}

func provideBackendTokenIssuer(cfg *config.Config) *security.BackendTokenIssuer {
	return security.NewBackendTokenIssuer(cfg.BackendTokenIssuer, cfg.AuthSecret, cfg.BackendTokenTTL)
}

// provideLoginThrottle shares failure counters through redis when it is
// enabled so every gateway instance sees the same cooldown.
func provideLoginThrottle(cfg *config.Config, redisClient redis.UniversalClient) service.LoginThrottle {
	policy := service.ThrottlePolicy{
		FreeAttempts: cfg.LoginThrottleFreeAttempts,
		BaseDelay:    cfg.LoginThrottleBaseDelay,
		Multiplier:   2,
		MaxDelay:     cfg.LoginThrottleMaxDelay,
		ResetWindow:  cfg.LoginThrottleResetWindow,
	}
	if redisClient != nil {
		return service.NewRedisLoginThrottle(redisClient, cfg.RedisKeyPrefix, policy)
	}
	return service.NewMemoryLoginThrottle(policy)
}

func provideSessionCache(cfg *config.Config, redisClient redis.UniversalClient) session.Cache {
	if cfg.SessionCacheTTL <= 0 {
		return session.NewNoopCache()
	}
	if redisClient != nil {
		return session.NewRedisCache(redisClient, cfg.RedisKeyPrefix)
	}
	return session.NewMemoryCache()
}

func provideServerStore(
	cfg *config.Config,
	sessions repository.SessionRepository,
	users repository.UserRepository,
	cache session.Cache,
	logger *slog.Logger,
) *session.ServerStore {
	return session.NewServerStore(sessions, users, session.ServerStoreOptions{
		Secret:   cfg.AuthSecret,
		TTL:      cfg.SessionTTL,
		Cache:    cache,
		CacheTTL: cfg.SessionCacheTTL,
		Logger:   logger,
	})
}

func provideBackendClient(cfg *config.Config, tokens *service.TokenService, logger *slog.Logger) *apiclient.Client {
	return apiclient.New(apiclient.Options{
		BaseURL:      cfg.BackendURL,
		Timeout:      cfg.BackendTimeout,
		Tokens:       tokens,
		AuthEnforced: cfg.BackendAuthEnforced,
		Logger:       logger,
	})
}

func provideRouterDependencies(
	cfg *config.Config,
	logger *slog.Logger,
	authHandler *handler.AuthHandler,
	taskHandler *handler.TaskHandler,
	pageHandler *handler.PageHandler,
	gate *guard.Gate,
	sessions *session.ServerStore,
	cookies *security.CookieManager,
	redisClient redis.UniversalClient,
	readiness *health.ProbeRunner,
) router.Dependencies {
	dep := router.Dependencies{
		AuthHandler:      authHandler,
		TaskHandler:      taskHandler,
		PageHandler:      pageHandler,
		Gate:             gate,
		Sessions:         sessions,
		Cookies:          cookies,
		CORSOrigins:      cfg.CORSAllowedOrigins,
		Logger:           logger,
		AuthRateLimitRPM: cfg.AuthRateLimitPerMin,
		APIRateLimitRPM:  cfg.APIRateLimitPerMin,
		Readiness:        readiness,
		EnableOTelHTTP:   cfg.OTELMetricsEnabled || cfg.OTELTracingEnabled,
	}
	if redisClient != nil {
		// Shared counters across replicas; a redis outage must not lock
		// everyone out of the task list.
		dep.Limiter = middleware.NewRedisFixedWindowLimiter(redisClient, cfg.RedisKeyPrefix)
		dep.LimiterMode = middleware.FailOpen
	}
	return dep
}

func provideHTTPServer(cfg *config.Config, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           h,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.BackendTimeout + 10*time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func provideReadinessProbeRunner(cfg *config.Config, db *gorm.DB, redisClient redis.UniversalClient) *health.ProbeRunner {
	probes := []health.Probe{
		{Checker: health.NewDBChecker(db), Critical: true},
		{Checker: health.NewBackendChecker(cfg.BackendURL, backendHealthPath, nil)},
	}
	if redisClient != nil {
		probes = append(probes, health.Probe{Checker: health.NewRedisChecker(redisClient), Critical: true})
	}
	return health.NewProbeRunner(cfg.ReadinessProbeTimeout, cfg.ServerStartGracePeriod, probes...)
}

func provideApp(
	cfg *config.Config,
	logger *slog.Logger,
	server *http.Server,
	runtime *observability.Runtime,
	db *gorm.DB,
	redisClient redis.UniversalClient,
	sessions *session.ServerStore,
) *app.App {
	return app.New(cfg, logger, server, runtime, db, redisClient, sessions)
}
