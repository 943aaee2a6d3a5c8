package observability

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/sandeepkv93/taskgate/internal/config"
)

func TestInitRuntimeDisabledExporters(t *testing.T) {
	ctx := context.Background()
	cfg := &config.Config{
		OTELServiceName:           "taskgate-test",
		OTELMetricsExportInterval: time.Second,
		OTELLogLevel:              "info",
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	rt, err := InitRuntime(ctx, cfg, logger)
	if err != nil {
		t.Fatalf("init runtime: %v", err)
	}
	if rt.LoggerProvider != nil {
		t.Fatal("expected no logger provider when otel logs are disabled")
	}
	if rt.MeterProvider == nil || rt.TracerProvider == nil {
		t.Fatal("expected noop meter and tracer providers")
	}
	if err := rt.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	var nilRuntime *Runtime
	if err := nilRuntime.Shutdown(ctx); err != nil {
		t.Fatalf("nil runtime shutdown: %v", err)
	}
}
