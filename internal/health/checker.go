package health

import (
	"context"
	"time"

	"github.com/sandeepkv93/taskgate/internal/observability"
)

type CheckResult struct {
	Name       string  `json:"name"`
	Healthy    bool    `json:"healthy"`
	Critical   bool    `json:"critical"`
	DurationMS float64 `json:"duration_ms"`
	Error      string  `json:"error,omitempty"`
}

type Checker interface {
	Name() string
	Check(ctx context.Context) error
}

// Probe pairs a checker with whether its failure makes the gateway unready.
// The task backend is advisory: the gateway still serves auth without it.
type Probe struct {
	Checker  Checker
	Critical bool
}

type ProbeRunner struct {
	probes      []Probe
	timeout     time.Duration
	gracePeriod time.Duration
	startedAt   time.Time
	now         func() time.Time
}

func NewProbeRunner(timeout, gracePeriod time.Duration, probes ...Probe) *ProbeRunner {
	if timeout <= 0 {
		timeout = time.Second
	}
	kept := probes[:0]
	for _, p := range probes {
		if p.Checker != nil {
			kept = append(kept, p)
		}
	}
	return &ProbeRunner{
		probes:      kept,
		timeout:     timeout,
		gracePeriod: gracePeriod,
		startedAt:   time.Now(),
		now:         time.Now,
	}
}

func (r *ProbeRunner) Ready(ctx context.Context) (bool, []CheckResult) {
	if r == nil {
		return true, nil
	}
	if r.gracePeriod > 0 && r.now().Sub(r.startedAt) < r.gracePeriod {
		return false, []CheckResult{{Name: "startup_grace", Critical: true, Error: "startup grace period active"}}
	}
	results := make([]CheckResult, 0, len(r.probes))
	ready := true
	for _, p := range r.probes {
		res := r.run(ctx, p)
		results = append(results, res)
		if !res.Healthy && p.Critical {
			ready = false
		}
	}
	return ready, results
}

func (r *ProbeRunner) run(ctx context.Context, p Probe) CheckResult {
	checkCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	name := p.Checker.Name()
	start := time.Now()
	err := p.Checker.Check(checkCtx)
	elapsed := time.Since(start)
	observability.RecordHealthCheckDuration(ctx, name, elapsed)

	res := CheckResult{
		Name:       name,
		Healthy:    err == nil,
		Critical:   p.Critical,
		DurationMS: float64(elapsed.Microseconds()) / 1000.0,
	}
	outcome := "healthy"
	if err != nil {
		res.Error = err.Error()
		outcome = "unhealthy"
	}
	observability.RecordHealthCheckResult(ctx, name, outcome)
	return res
}
