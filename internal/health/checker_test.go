package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type mockChecker struct {
	name string
	err  error
}

func (m mockChecker) Name() string                { return m.name }
func (m mockChecker) Check(context.Context) error { return m.err }

func TestProbeRunnerReady(t *testing.T) {
	runner := NewProbeRunner(200*time.Millisecond, 0,
		Probe{Checker: mockChecker{name: "db"}, Critical: true},
		Probe{Checker: mockChecker{name: "redis"}, Critical: true},
		Probe{Checker: nil, Critical: true},
	)
	ready, results := runner.Ready(context.Background())
	if !ready {
		t.Fatal("expected ready")
	}
	if len(results) != 2 {
		t.Fatalf("expected nil checker skipped, got %d results", len(results))
	}
}

func TestProbeRunnerCriticalFailureIsUnready(t *testing.T) {
	runner := NewProbeRunner(200*time.Millisecond, 0,
		Probe{Checker: mockChecker{name: "db", err: errors.New("down")}, Critical: true},
	)
	ready, results := runner.Ready(context.Background())
	if ready {
		t.Fatal("expected unready")
	}
	if results[0].Healthy || results[0].Error != "down" {
		t.Fatalf("unexpected result %+v", results[0])
	}
}

func TestProbeRunnerAdvisoryFailureStaysReady(t *testing.T) {
	runner := NewProbeRunner(200*time.Millisecond, 0,
		Probe{Checker: mockChecker{name: "db"}, Critical: true},
		Probe{Checker: mockChecker{name: "backend", err: errors.New("refused")}},
	)
	ready, results := runner.Ready(context.Background())
	if !ready {
		t.Fatal("advisory failure must not fail readiness")
	}
	if results[1].Healthy {
		t.Fatal("expected backend reported unhealthy")
	}
}

func TestProbeRunnerStartupGrace(t *testing.T) {
	runner := NewProbeRunner(200*time.Millisecond, 2*time.Second,
		Probe{Checker: mockChecker{name: "db"}, Critical: true},
	)
	ready, results := runner.Ready(context.Background())
	if ready {
		t.Fatal("expected unready during grace period")
	}
	if len(results) != 1 || results[0].Name != "startup_grace" {
		t.Fatalf("unexpected grace results: %+v", results)
	}

	runner.now = func() time.Time { return runner.startedAt.Add(3 * time.Second) }
	if ready, _ := runner.Ready(context.Background()); !ready {
		t.Fatal("expected ready after grace period")
	}
}

func TestRedisChecker(t *testing.T) {
	m := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	c := NewRedisChecker(client)
	if err := c.Check(context.Background()); err != nil {
		t.Fatalf("expected healthy redis: %v", err)
	}
	m.Close()
	if err := c.Check(context.Background()); err == nil {
		t.Fatal("expected error after redis shutdown")
	}
	if NewRedisChecker(nil) != nil {
		t.Fatal("expected nil checker for nil client")
	}
}

func TestBackendChecker(t *testing.T) {
	status := http.StatusOK
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("unexpected probe path %q", r.URL.Path)
		}
		w.WriteHeader(status)
	}))
	defer srv.Close()

	c := NewBackendChecker(srv.URL+"/", "/health", srv.Client())
	if err := c.Check(context.Background()); err != nil {
		t.Fatalf("expected healthy backend: %v", err)
	}
	status = http.StatusUnauthorized
	if err := c.Check(context.Background()); err != nil {
		t.Fatalf("a 401 still means reachable: %v", err)
	}
	status = http.StatusServiceUnavailable
	if err := c.Check(context.Background()); err == nil {
		t.Fatal("expected 503 to be unhealthy")
	}
}
