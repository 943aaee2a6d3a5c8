package loadgen

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

type Config struct {
	BaseURL     string
	Profile     string
	Duration    time.Duration
	RPS         int
	Concurrency int
}

type Result struct {
	TotalRequests int64
	Failures      int64
	Status2xx     int64
	Status3xx     int64
	Status4xx     int64
	Status5xx     int64

	// Latency percentiles over completed requests.
	P50 time.Duration
	P95 time.Duration
	Max time.Duration
}

// latencies collects per-request durations from every worker.
type latencies struct {
	mu      sync.Mutex
	samples []time.Duration
}

func (l *latencies) add(d time.Duration) {
	l.mu.Lock()
	l.samples = append(l.samples, d)
	l.mu.Unlock()
}

// summarize returns nearest-rank p50, p95 and the maximum.
func (l *latencies) summarize() (p50, p95, maxD time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := len(l.samples)
	if n == 0 {
		return 0, 0, 0
	}
	sorted := slices.Clone(l.samples)
	slices.Sort(sorted)
	rank := func(q float64) time.Duration {
		i := int(math.Ceil(q*float64(n))) - 1
		return sorted[max(i, 0)]
	}
	return rank(0.50), rank(0.95), sorted[n-1]
}

// probe is one synthetic request. Bodies are fixed so runs are repeatable.
type probe struct {
	method string
	path   string
	body   string
}

const badLogin = `{"email":"loadgen@example.invalid","password":"not-a-real-password"}`

var profiles = map[string][]probe{
	"mixed": {
		{http.MethodGet, "/health/live", ""},
		{http.MethodGet, "/session", ""},
		{http.MethodGet, "/", ""},
		{http.MethodGet, "/tasks", ""},
		{http.MethodPost, "/login", badLogin},
	},
	"auth": {
		{http.MethodPost, "/login", badLogin},
		{http.MethodGet, "/session", ""},
		{http.MethodPost, "/logout", ""},
	},
	"error-heavy": {
		{http.MethodPost, "/login", badLogin},
		{http.MethodGet, "/api/loadgen/tasks", ""},
		{http.MethodPost, "/signup", `{"email":"","password":"","name":""}`},
	},
}

func Run(ctx context.Context, cfg Config) (Result, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:3000"
	}
	if cfg.Duration <= 0 {
		cfg.Duration = 10 * time.Second
	}
	if cfg.RPS <= 0 {
		cfg.RPS = 15
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 5
	}
	profile := strings.ToLower(cfg.Profile)
	if profile == "" {
		profile = "mixed"
	}
	probes, ok := profiles[profile]
	if !ok {
		return Result{}, fmt.Errorf("unknown profile: %s", cfg.Profile)
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")

	// Redirects are counted, not followed: a guard bounce is a result.
	client := &http.Client{
		Timeout: 5 * time.Second,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Duration)
	defer cancel()

	var res Result
	var lat latencies
	jobs := make(chan probe, cfg.Concurrency*2)
	var wg sync.WaitGroup
	for range cfg.Concurrency {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range jobs {
				send(ctx, client, baseURL, p, &res, &lat)
			}
		}()
	}

	ticker := time.NewTicker(time.Second / time.Duration(cfg.RPS))
	defer ticker.Stop()
	for i := 0; ; i++ {
		select {
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			p50, p95, maxD := lat.summarize()
			return Result{
				TotalRequests: atomic.LoadInt64(&res.TotalRequests),
				Failures:      atomic.LoadInt64(&res.Failures),
				Status2xx:     atomic.LoadInt64(&res.Status2xx),
				Status3xx:     atomic.LoadInt64(&res.Status3xx),
				Status4xx:     atomic.LoadInt64(&res.Status4xx),
				Status5xx:     atomic.LoadInt64(&res.Status5xx),
				P50:           p50,
				P95:           p95,
				Max:           maxD,
			}, nil
		case <-ticker.C:
			select {
			case jobs <- probes[i%len(probes)]:
			case <-ctx.Done():
			}
		}
	}
}

func send(ctx context.Context, client *http.Client, baseURL string, p probe, res *Result, lat *latencies) {
	var body io.Reader
	if p.body != "" {
		body = strings.NewReader(p.body)
	}
	req, err := http.NewRequestWithContext(ctx, p.method, baseURL+p.path, body)
	if err != nil {
		atomic.AddInt64(&res.Failures, 1)
		return
	}
	if p.body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() == nil {
			atomic.AddInt64(&res.Failures, 1)
		}
		return
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	lat.add(time.Since(start))
	atomic.AddInt64(&res.TotalRequests, 1)
	switch {
	case resp.StatusCode >= 500:
		atomic.AddInt64(&res.Status5xx, 1)
	case resp.StatusCode >= 400:
		atomic.AddInt64(&res.Status4xx, 1)
	case resp.StatusCode >= 300:
		atomic.AddInt64(&res.Status3xx, 1)
	case resp.StatusCode >= 200:
		atomic.AddInt64(&res.Status2xx, 1)
	}
}
