package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// MaxSessionTTL bounds SESSION_TTL; it is also the cookie Max-Age ceiling.
const MaxSessionTTL = 7 * 24 * time.Hour

type Config struct {
	Env      string
	HTTPPort string

	DatabaseURL       string
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration

	BackendURL          string
	BackendAuthEnforced bool
	BackendTimeout      time.Duration
	BackendTokenTTL     time.Duration
	BackendTokenIssuer  string

	AuthSecret             string
	SessionTTL             time.Duration
	SessionCacheTTL        time.Duration
	SessionCleanupInterval time.Duration
	CookieDomain           string
	CookieSecure           bool
	CORSAllowedOrigins     []string

	AuthRateLimitPerMin int
	APIRateLimitPerMin  int

	LoginThrottleFreeAttempts int
	LoginThrottleBaseDelay    time.Duration
	LoginThrottleMaxDelay     time.Duration
	LoginThrottleResetWindow  time.Duration

	RedisEnabled   bool
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	RedisKeyPrefix string

	ReadinessProbeTimeout        time.Duration
	ServerStartGracePeriod       time.Duration
	ShutdownTimeout              time.Duration
	ShutdownHTTPDrainTimeout     time.Duration
	ShutdownObservabilityTimeout time.Duration

	OTELServiceName           string
	OTELEnvironment           string
	OTELExporterOTLPEndpoint  string
	OTELExporterOTLPInsecure  bool
	OTELMetricsExportInterval time.Duration
	OTELTraceSamplingRatio    float64
	OTELMetricsEnabled        bool
	OTELTracingEnabled        bool
	OTELLogsEnabled           bool
	OTELLogLevel              string
}

func Load() (*Config, error) {
	env := getEnv("APP_ENV", "development")

	cfg := &Config{
		Env:                 env,
		HTTPPort:            getEnv("HTTP_PORT", "3000"),
		DatabaseURL:         strings.TrimSpace(os.Getenv("DATABASE_URL")),
		DBMaxOpenConns:      getEnvInt("DB_MAX_OPEN_CONNS", 10),
		DBMaxIdleConns:      getEnvInt("DB_MAX_IDLE_CONNS", 5),
		BackendURL:          strings.TrimRight(strings.TrimSpace(os.Getenv("BACKEND_URL")), "/"),
		BackendAuthEnforced: getEnvBool("BACKEND_AUTH_ENFORCED", true),
		BackendTokenIssuer:  getEnv("BACKEND_TOKEN_ISSUER", "taskgate"),
		AuthSecret:          os.Getenv("AUTH_SECRET"),
		CookieDomain:        os.Getenv("COOKIE_DOMAIN"),
		CookieSecure:        getEnvBool("COOKIE_SECURE", !isLocalLikeEnv(env)),
		CORSAllowedOrigins:  splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),
		AuthRateLimitPerMin: getEnvInt("AUTH_RATE_LIMIT_PER_MIN", 30),
		APIRateLimitPerMin:  getEnvInt("API_RATE_LIMIT_PER_MIN", 240),

		LoginThrottleFreeAttempts: getEnvInt("LOGIN_THROTTLE_FREE_ATTEMPTS", 5),

		RedisEnabled:        getEnvBool("REDIS_ENABLED", false),
		RedisAddr:           getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:       os.Getenv("REDIS_PASSWORD"),
		RedisDB:             getEnvInt("REDIS_DB", 0),
		RedisKeyPrefix:      getEnv("REDIS_KEY_PREFIX", "taskgate"),

		OTELServiceName:          getEnv("OTEL_SERVICE_NAME", "taskgate"),
		OTELEnvironment:          getEnv("OTEL_ENVIRONMENT", env),
		OTELExporterOTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		OTELExporterOTLPInsecure: getEnvBool("OTEL_EXPORTER_OTLP_INSECURE", true),
		OTELTraceSamplingRatio:   getEnvFloat("OTEL_TRACE_SAMPLING_RATIO", 1.0),
		OTELMetricsEnabled:       getEnvBool("OTEL_METRICS_ENABLED", false),
		OTELTracingEnabled:       getEnvBool("OTEL_TRACING_ENABLED", false),
		OTELLogsEnabled:          getEnvBool("OTEL_LOGS_ENABLED", false),
		OTELLogLevel:             strings.ToLower(getEnv("OTEL_LOG_LEVEL", "info")),
	}

	durations := []struct {
		key string
		def string
		dst *time.Duration
	}{
		{"DB_CONN_MAX_LIFETIME", "30m", &cfg.DBConnMaxLifetime},
		{"BACKEND_TIMEOUT", "10s", &cfg.BackendTimeout},
		{"BACKEND_TOKEN_TTL", "15m", &cfg.BackendTokenTTL},
		{"SESSION_TTL", "168h", &cfg.SessionTTL},
		{"SESSION_CACHE_TTL", "1m", &cfg.SessionCacheTTL},
		{"SESSION_CLEANUP_INTERVAL", "1h", &cfg.SessionCleanupInterval},
		{"LOGIN_THROTTLE_BASE_DELAY", "1s", &cfg.LoginThrottleBaseDelay},
		{"LOGIN_THROTTLE_MAX_DELAY", "5m", &cfg.LoginThrottleMaxDelay},
		{"LOGIN_THROTTLE_RESET_WINDOW", "15m", &cfg.LoginThrottleResetWindow},
		{"READINESS_PROBE_TIMEOUT", "1s", &cfg.ReadinessProbeTimeout},
		{"SERVER_START_GRACE_PERIOD", "0s", &cfg.ServerStartGracePeriod},
		{"SHUTDOWN_TIMEOUT", "20s", &cfg.ShutdownTimeout},
		{"SHUTDOWN_HTTP_DRAIN_TIMEOUT", "10s", &cfg.ShutdownHTTPDrainTimeout},
		{"SHUTDOWN_OBSERVABILITY_TIMEOUT", "8s", &cfg.ShutdownObservabilityTimeout},
		{"OTEL_METRICS_EXPORT_INTERVAL", "10s", &cfg.OTELMetricsExportInterval},
	}
	for _, d := range durations {
		v, err := time.ParseDuration(getEnv(d.key, d.def))
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", d.key, err)
		}
		*d.dst = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ErrMissingDatabaseURL is returned by Validate before any other check so
// callers can treat it as fatal.
var ErrMissingDatabaseURL = errors.New("DATABASE_URL is required")

func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return ErrMissingDatabaseURL
	}
	var errs []string
	if c.BackendURL == "" {
		errs = append(errs, "BACKEND_URL is required")
	} else if u, err := url.Parse(c.BackendURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, "BACKEND_URL must be an absolute http(s) URL")
	}
	if len(c.AuthSecret) < 32 {
		errs = append(errs, "AUTH_SECRET must be at least 32 chars")
	}
	if c.SessionTTL <= 0 || c.SessionTTL > MaxSessionTTL {
		errs = append(errs, "SESSION_TTL must be between 1s and 168h")
	}
	if c.SessionCacheTTL < 0 {
		errs = append(errs, "SESSION_CACHE_TTL must be >= 0")
	}
	if c.BackendTokenTTL <= 0 || c.BackendTokenTTL > MaxSessionTTL {
		errs = append(errs, "BACKEND_TOKEN_TTL must be between 1s and 168h")
	}
	if c.BackendTimeout <= 0 {
		errs = append(errs, "BACKEND_TIMEOUT must be > 0")
	}
	if c.DBMaxOpenConns <= 0 {
		errs = append(errs, "DB_MAX_OPEN_CONNS must be > 0")
	}
	if c.DBMaxIdleConns < 0 || c.DBMaxIdleConns > c.DBMaxOpenConns {
		errs = append(errs, "DB_MAX_IDLE_CONNS must be between 0 and DB_MAX_OPEN_CONNS")
	}
	if c.AuthRateLimitPerMin <= 0 {
		errs = append(errs, "AUTH_RATE_LIMIT_PER_MIN must be > 0")
	}
	if c.APIRateLimitPerMin <= 0 {
		errs = append(errs, "API_RATE_LIMIT_PER_MIN must be > 0")
	}
	if c.LoginThrottleFreeAttempts < 0 {
		errs = append(errs, "LOGIN_THROTTLE_FREE_ATTEMPTS must be >= 0")
	}
	if c.LoginThrottleBaseDelay <= 0 || c.LoginThrottleMaxDelay < c.LoginThrottleBaseDelay {
		errs = append(errs, "LOGIN_THROTTLE_MAX_DELAY must be >= LOGIN_THROTTLE_BASE_DELAY > 0")
	}
	if c.RedisEnabled && c.RedisAddr == "" {
		errs = append(errs, "REDIS_ADDR is required when REDIS_ENABLED=true")
	}
	if !isLocalLikeEnv(c.Env) && !c.CookieSecure {
		errs = append(errs, "COOKIE_SECURE must be true outside local environments")
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, "SHUTDOWN_TIMEOUT must be > 0")
	}
	if c.ShutdownHTTPDrainTimeout > c.ShutdownTimeout {
		errs = append(errs, "SHUTDOWN_HTTP_DRAIN_TIMEOUT must not exceed SHUTDOWN_TIMEOUT")
	}
	if (c.OTELMetricsEnabled || c.OTELTracingEnabled || c.OTELLogsEnabled) && c.OTELExporterOTLPEndpoint == "" {
		errs = append(errs, "OTEL_EXPORTER_OTLP_ENDPOINT is required when OTel is enabled")
	}
	if c.OTELTraceSamplingRatio < 0 || c.OTELTraceSamplingRatio > 1 {
		errs = append(errs, "OTEL_TRACE_SAMPLING_RATIO must be between 0 and 1")
	}
	if c.OTELMetricsExportInterval <= 0 {
		errs = append(errs, "OTEL_METRICS_EXPORT_INTERVAL must be > 0")
	}
	if !isValidLogLevel(c.OTELLogLevel) {
		errs = append(errs, "OTEL_LOG_LEVEL must be one of debug, info, warn, error")
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// IsProduction reports whether the deployment runs with production
// cookie and logging defaults.
func (c *Config) IsProduction() bool {
	return !isLocalLikeEnv(c.Env)
}

func isLocalLikeEnv(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "development", "dev", "local", "test":
		return true
	default:
		return false
	}
}

func isValidLogLevel(v string) bool {
	switch strings.ToLower(v) {
	case "debug", "info", "warn", "error":
		return true
	default:
		return false
	}
}

func getEnv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getEnvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getEnvFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		trim := strings.TrimSpace(p)
		if trim != "" {
			out = append(out, trim)
		}
	}
	return out
}
