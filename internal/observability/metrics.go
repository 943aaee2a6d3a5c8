package observability

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sandeepkv93/taskgate/internal/config"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/exemplar"
)

const meterName = "taskgate"

type AppMetrics struct {
	authLoginCounter         metric.Int64Counter
	authSignupCounter        metric.Int64Counter
	authLogoutCounter        metric.Int64Counter
	authReqDuration          metric.Float64Histogram
	sessionValidationCounter metric.Int64Counter
	sessionCleanupDeleted    metric.Float64Histogram
	guardDecisionCounter     metric.Int64Counter
	backendAttemptCounter    metric.Int64Counter
	backendRetryCounter      metric.Int64Counter
	backendReqDuration       metric.Float64Histogram
	rateLimitDecisionCounter metric.Int64Counter
	middlewareEventCounter   metric.Int64Counter
	repositoryOpsCounter     metric.Int64Counter
	healthCheckResultCounter metric.Int64Counter
	healthCheckDuration      metric.Float64Histogram
	toolCommandRuns          metric.Int64Counter
}

var (
	metricsMu  sync.RWMutex
	appMetrics *AppMetrics
)

func InitMetrics(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*sdkmetric.MeterProvider, error) {
	if !cfg.OTELMetricsEnabled {
		mp := sdkmetric.NewMeterProvider()
		otel.SetMeterProvider(mp)
		logger.Info("otel metrics disabled")
		return mp, nil
	}

	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.OTELExporterOTLPEndpoint)}
	if cfg.OTELExporterOTLPInsecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create otlp metric exporter: %w", err)
	}

	res, err := newResource(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create metric resource: %w", err)
	}

	latencyBuckets := sdkmetric.Stream{
		Aggregation: sdkmetric.AggregationExplicitBucketHistogram{
			Boundaries: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
	}
	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(cfg.OTELMetricsExportInterval))
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
		sdkmetric.WithExemplarFilter(exemplar.TraceBasedFilter),
		sdkmetric.WithView(sdkmetric.NewView(sdkmetric.Instrument{Name: "auth.request.duration"}, latencyBuckets)),
		sdkmetric.WithView(sdkmetric.NewView(sdkmetric.Instrument{Name: "backend.client.request.duration"}, latencyBuckets)),
	)
	otel.SetMeterProvider(mp)

	m, err := newAppMetrics(mp.Meter(meterName))
	if err != nil {
		return nil, err
	}
	metricsMu.Lock()
	appMetrics = m
	metricsMu.Unlock()

	logger.Info("otel metrics initialized", "endpoint", cfg.OTELExporterOTLPEndpoint)
	return mp, nil
}

func newAppMetrics(meter metric.Meter) (*AppMetrics, error) {
	var errs []error
	counter := func(name string, opts ...metric.Int64CounterOption) metric.Int64Counter {
		c, err := meter.Int64Counter(name, opts...)
		if err != nil {
			errs = append(errs, fmt.Errorf("counter %s: %w", name, err))
		}
		return c
	}
	hist := func(name string, opts ...metric.Float64HistogramOption) metric.Float64Histogram {
		h, err := meter.Float64Histogram(name, opts...)
		if err != nil {
			errs = append(errs, fmt.Errorf("histogram %s: %w", name, err))
		}
		return h
	}

	m := &AppMetrics{
		authLoginCounter:         counter("auth.login.attempts"),
		authSignupCounter:        counter("auth.signup.attempts"),
		authLogoutCounter:        counter("auth.logout.attempts"),
		authReqDuration:          hist("auth.request.duration", metric.WithUnit("s"), metric.WithDescription("Duration of auth endpoint requests in seconds")),
		sessionValidationCounter: counter("session.validation.events"),
		sessionCleanupDeleted:    hist("session.cleanup.deleted_rows", metric.WithDescription("Expired or revoked session rows removed per cleanup run")),
		guardDecisionCounter:     counter("guard.decisions"),
		backendAttemptCounter:    counter("backend.client.attempts"),
		backendRetryCounter:      counter("backend.client.retries"),
		backendReqDuration:       hist("backend.client.request.duration", metric.WithUnit("s"), metric.WithDescription("Duration of backend calls including retries")),
		rateLimitDecisionCounter: counter("http.rate_limit.decisions"),
		middlewareEventCounter:   counter("http.middleware.validation.events"),
		repositoryOpsCounter:     counter("repository.operations"),
		healthCheckResultCounter: counter("health.check.results"),
		healthCheckDuration:      hist("health.check.duration", metric.WithUnit("s"), metric.WithDescription("Duration of health dependency checks in seconds")),
		toolCommandRuns:          counter("tool.command.runs"),
	}
	if len(errs) > 0 {
		return nil, errs[0]
	}
	return m, nil
}

func current() *AppMetrics {
	metricsMu.RLock()
	defer metricsMu.RUnlock()
	return appMetrics
}

func RecordAuthLogin(ctx context.Context, status string) {
	if m := current(); m != nil {
		m.authLoginCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
	}
}

func RecordAuthSignup(ctx context.Context, status string) {
	if m := current(); m != nil {
		m.authSignupCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
	}
}

func RecordAuthLogout(ctx context.Context, status string) {
	if m := current(); m != nil {
		m.authLogoutCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
	}
}

func RecordAuthRequestDuration(ctx context.Context, endpoint, status string, duration time.Duration) {
	if m := current(); m != nil {
		m.authReqDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
			attribute.String("endpoint", endpoint),
			attribute.String("status", status),
		))
	}
}

// RecordSessionValidation counts server-side token checks. source is
// "cache" or "db".
func RecordSessionValidation(ctx context.Context, outcome, source string) {
	if m := current(); m != nil {
		m.sessionValidationCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("outcome", outcome),
			attribute.String("source", source),
		))
	}
}

func RecordSessionCleanup(ctx context.Context, deleted int64) {
	if m := current(); m != nil {
		m.sessionCleanupDeleted.Record(ctx, float64(deleted))
	}
}

func RecordGuardDecision(ctx context.Context, layer, state string) {
	if m := current(); m != nil {
		m.guardDecisionCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("layer", layer),
			attribute.String("state", state),
		))
	}
}

func RecordBackendAttempt(ctx context.Context, method, outcome string) {
	if m := current(); m != nil {
		m.backendAttemptCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("method", method),
			attribute.String("outcome", outcome),
		))
	}
}

func RecordBackendRetry(ctx context.Context, reason string) {
	if m := current(); m != nil {
		m.backendRetryCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
	}
}

func RecordBackendRequestDuration(ctx context.Context, method, outcome string, duration time.Duration) {
	if m := current(); m != nil {
		m.backendReqDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
			attribute.String("method", method),
			attribute.String("outcome", outcome),
		))
	}
}

func RecordRateLimitDecision(ctx context.Context, scope, outcome, mode string) {
	if m := current(); m != nil {
		m.rateLimitDecisionCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("scope", scope),
			attribute.String("outcome", outcome),
			attribute.String("mode", mode),
		))
	}
}

func RecordMiddlewareValidationEvent(ctx context.Context, check, outcome string) {
	if m := current(); m != nil {
		m.middlewareEventCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("check", check),
			attribute.String("outcome", outcome),
		))
	}
}

func RecordRepositoryOperation(ctx context.Context, repository, operation, outcome string) {
	if m := current(); m != nil {
		m.repositoryOpsCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("repository", repository),
			attribute.String("operation", operation),
			attribute.String("outcome", outcome),
		))
	}
}

func RecordHealthCheckResult(ctx context.Context, check, outcome string) {
	if m := current(); m != nil {
		m.healthCheckResultCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("check", check),
			attribute.String("outcome", outcome),
		))
	}
}

func RecordHealthCheckDuration(ctx context.Context, check string, duration time.Duration) {
	if m := current(); m != nil {
		m.healthCheckDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.String("check", check)))
	}
}

func RecordToolCommandRun(ctx context.Context, tool, command, status string) {
	if m := current(); m != nil {
		m.toolCommandRuns.Add(ctx, 1, metric.WithAttributes(
			attribute.String("tool", tool),
			attribute.String("command", command),
			attribute.String("status", status),
		))
	}
}
