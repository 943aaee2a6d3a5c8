package di

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/sandeepkv93/taskgate/internal/config"
	"github.com/sandeepkv93/taskgate/internal/http/middleware"
	"github.com/sandeepkv93/taskgate/internal/http/router"
	"github.com/sandeepkv93/taskgate/internal/security"
	"github.com/sandeepkv93/taskgate/internal/service"
	"github.com/sandeepkv93/taskgate/internal/session"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestProvideHTTPServer(t *testing.T) {
	cfg := &config.Config{HTTPPort: "9999", BackendTimeout: 5 * time.Second}
	srv := provideHTTPServer(cfg, nil)
	if srv.Addr != ":9999" {
		t.Fatalf("unexpected addr: %s", srv.Addr)
	}
	if srv.WriteTimeout <= cfg.BackendTimeout {
		t.Fatalf("write timeout %v must outlast backend timeout", srv.WriteTimeout)
	}
}

func TestProvideRouterDependencies(t *testing.T) {
	cfg := &config.Config{CORSAllowedOrigins: []string{"http://localhost:3000"}, AuthRateLimitPerMin: 10, APIRateLimitPerMin: 100, OTELMetricsEnabled: true}
	dep := provideRouterDependencies(cfg, discardLogger(), nil, nil, nil, nil, nil, nil, nil, nil)
	if dep.AuthRateLimitRPM != 10 || dep.APIRateLimitRPM != 100 {
		t.Fatalf("unexpected rate limits: %+v", dep)
	}
	if !dep.EnableOTelHTTP {
		t.Fatal("expected otel http enabled")
	}
	if dep.Limiter != nil {
		t.Fatal("expected in-process limiter when redis is off")
	}
	_ = router.Dependencies(dep)
}

func TestProvideRouterDependenciesUsesRedisLimiter(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	dep := provideRouterDependencies(&config.Config{RedisKeyPrefix: "tg"}, discardLogger(), nil, nil, nil, nil, nil, nil, client, nil)
	if _, ok := dep.Limiter.(*middleware.RedisFixedWindowLimiter); !ok {
		t.Fatalf("expected redis limiter, got %T", dep.Limiter)
	}
	if dep.LimiterMode != middleware.FailOpen {
		t.Fatalf("expected fail-open mode, got %v", dep.LimiterMode)
	}
}

func TestProvideSessionCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	tests := []struct {
		name   string
		ttl    time.Duration
		client redis.UniversalClient
		want   any
	}{
		{"disabled", 0, client, &session.NoopCache{}},
		{"memory", time.Minute, nil, &session.MemoryCache{}},
		{"redis", time.Minute, client, &session.RedisCache{}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := provideSessionCache(&config.Config{SessionCacheTTL: tc.ttl, RedisKeyPrefix: "tg"}, tc.client)
			switch tc.want.(type) {
			case *session.NoopCache:
				if _, ok := got.(*session.NoopCache); !ok {
					t.Fatalf("expected noop cache, got %T", got)
				}
			case *session.MemoryCache:
				if _, ok := got.(*session.MemoryCache); !ok {
					t.Fatalf("expected memory cache, got %T", got)
				}
			case *session.RedisCache:
				if _, ok := got.(*session.RedisCache); !ok {
					t.Fatalf("expected redis cache, got %T", got)
				}
			}
		})
	}
}

func TestProvideLoginThrottle(t *testing.T) {
	cfg := &config.Config{LoginThrottleFreeAttempts: 5, LoginThrottleBaseDelay: time.Second, LoginThrottleMaxDelay: time.Minute, RedisKeyPrefix: "tg"}
	if _, ok := provideLoginThrottle(cfg, nil).(*service.MemoryLoginThrottle); !ok {
		t.Fatal("expected in-memory throttle without redis")
	}
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	if _, ok := provideLoginThrottle(cfg, client).(*service.RedisLoginThrottle); !ok {
		t.Fatal("expected redis throttle when redis is enabled")
	}
}

func TestProvideRedisClientDisabled(t *testing.T) {
	if c := provideRedisClient(&config.Config{RedisEnabled: false}, discardLogger()); c != nil {
		t.Fatal("expected nil client when redis disabled")
	}
}

func TestProvideCookieManagerFollowsConfig(t *testing.T) {
	m := provideCookieManager(&config.Config{CookieSecure: true, CookieDomain: "example.com"})
	if m.Name != security.SessionCookieName || !m.Secure || m.Domain != "example.com" {
		t.Fatalf("unexpected cookie manager: %+v", m)
	}
}

func TestProvideBackendTokenIssuerSignsParsableTokens(t *testing.T) {
	cfg := &config.Config{BackendTokenIssuer: "taskgate", AuthSecret: "abcdefghijklmnopqrstuvwxyz123456", BackendTokenTTL: time.Minute}
	issuer := provideBackendTokenIssuer(cfg)
	tok, err := issuer.Sign("u-1", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	sub, err := backendTokenSubject(tok, cfg.AuthSecret)
	if err != nil || sub != "u-1" {
		t.Fatalf("parse: %q %v", sub, err)
	}
}

func TestProvideReadinessProbeRunner(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file:di_readiness?mode=memory&cache=shared"), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	// An unreachable backend is advisory and must not fail readiness.
	cfg := &config.Config{BackendURL: "http://127.0.0.1:1", ReadinessProbeTimeout: time.Second}
	runner := provideReadinessProbeRunner(cfg, db, client)

	ready, results := runner.Ready(context.Background())
	if !ready {
		t.Fatalf("expected ready, got %+v", results)
	}
	if len(results) != 3 {
		t.Fatalf("expected db, backend and redis checks, got %+v", results)
	}
}

// backendTokenSubject verifies tok as the backend task service does and
// returns its subject.
func backendTokenSubject(tok, secret string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(tok, claims, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer("taskgate"))
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}
