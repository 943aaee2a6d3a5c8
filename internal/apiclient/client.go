// Package apiclient performs calls to the backend task service (and to the
// gateway's own auth routes for the CLI) with the current token attached,
// one bounded retry, and failures normalized into apperr.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/sandeepkv93/taskgate/internal/apperr"
	"github.com/sandeepkv93/taskgate/internal/observability"
)

const (
	DefaultNetworkBackoff = 500 * time.Millisecond
	DefaultAuthBackoff    = 100 * time.Millisecond
	DefaultMaxRetries     = 1

	maxErrorBody = 64 << 10
)

// TokenSource yields the bearer token for the next attempt. An empty token
// sends the request without an Authorization header.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

type TokenFunc func(ctx context.Context) (string, error)

func (f TokenFunc) Token(ctx context.Context) (string, error) { return f(ctx) }

type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
	Tokens     TokenSource

	// AuthEnforced mirrors the backend's auth enforcement. When false a
	// 401 is an ordinary request error and never signals an expired
	// session.
	AuthEnforced bool

	// MaxRetries is the extra attempt budget shared by every failure
	// type. Negative disables retries.
	MaxRetries     int
	NetworkBackoff time.Duration
	AuthBackoff    time.Duration
	Logger         *slog.Logger
}

type Client struct {
	baseURL        string
	http           *http.Client
	tokens         TokenSource
	authEnforced   bool
	maxRetries     uint64
	networkBackoff time.Duration
	authBackoff    time.Duration
	logger         *slog.Logger
}

func New(opts Options) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(opts.BaseURL, "/"),
		http:           opts.HTTPClient,
		tokens:         opts.Tokens,
		authEnforced:   opts.AuthEnforced,
		networkBackoff: opts.NetworkBackoff,
		authBackoff:    opts.AuthBackoff,
		logger:         opts.Logger,
	}
	if c.http == nil {
		c.http = &http.Client{
			Timeout:   opts.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	switch {
	case opts.MaxRetries < 0:
		c.maxRetries = 0
	case opts.MaxRetries == 0:
		c.maxRetries = DefaultMaxRetries
	default:
		c.maxRetries = uint64(opts.MaxRetries)
	}
	if c.networkBackoff <= 0 {
		c.networkBackoff = DefaultNetworkBackoff
	}
	if c.authBackoff <= 0 {
		c.authBackoff = DefaultAuthBackoff
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

func (c *Client) AuthEnforced() bool { return c.authEnforced }

// call describes one logical request. public calls hit the gateway's auth
// routes: they carry no token, are not retried on 401, and decode the
// gateway error shape.
type call struct {
	method string
	path   string
	body   any
	out    any
	public bool
}

// Do performs method on path. body, when non-nil, is sent as JSON; out,
// when non-nil, receives a JSON 2xx body.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	return c.do(ctx, call{method: method, path: path, body: body, out: out})
}

const (
	reasonNetwork      = "network"
	reasonUnauthorized = "unauthorized"
)

func (c *Client) do(ctx context.Context, cl call) error {
	var payload []byte
	if cl.body != nil {
		b, err := json.Marshal(cl.body)
		if err != nil {
			return apperr.Internal(fmt.Errorf("encode request body: %w", err))
		}
		payload = b
	}

	var (
		mu     sync.Mutex
		reason string
	)
	backoff := retry.WithMaxRetries(c.maxRetries, retry.BackoffFunc(func() (time.Duration, bool) {
		mu.Lock()
		r := reason
		mu.Unlock()
		observability.RecordBackendRetry(ctx, r)
		if r == reasonNetwork {
			return c.networkBackoff, false
		}
		return c.authBackoff, false
	}))

	start := time.Now()
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		retryReason, err := c.attempt(ctx, cl, payload)
		if retryReason != "" {
			mu.Lock()
			reason = retryReason
			mu.Unlock()
			return retry.RetryableError(err)
		}
		return err
	})
	err = normalize(err)
	observability.RecordBackendRequestDuration(ctx, cl.method, outcomeOf(err), time.Since(start))
	return err
}

// attempt runs one HTTP exchange. A non-empty reason marks the failure as
// eligible for the shared retry budget.
func (c *Client) attempt(ctx context.Context, cl call, payload []byte) (string, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, cl.method, c.baseURL+cl.path, body)
	if err != nil {
		return "", apperr.Internal(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if !cl.public && c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return "", apperr.Internal(fmt.Errorf("resolve token: %w", err))
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			observability.RecordBackendAttempt(ctx, cl.method, "cancelled")
			return "", ctx.Err()
		}
		observability.RecordBackendAttempt(ctx, cl.method, reasonNetwork)
		c.logger.DebugContext(ctx, "backend request failed", "method", cl.method, "path", cl.path, "error", err)
		return reasonNetwork, apperr.Network(err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
		_ = resp.Body.Close()
	}()
	observability.RecordBackendAttempt(ctx, cl.method, statusClass(resp.StatusCode))

	switch {
	case resp.StatusCode == http.StatusNoContent:
		return "", nil
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return "", decodeSuccess(resp, cl.out)
	case cl.public:
		return "", gatewayError(resp)
	case resp.StatusCode == http.StatusUnauthorized:
		detail := errorDetail(resp)
		if !c.authEnforced {
			return reasonUnauthorized, apperr.Server(http.StatusUnauthorized, detail)
		}
		return reasonUnauthorized, apperr.AuthExpired("")
	default:
		return "", apperr.Server(resp.StatusCode, errorDetail(resp))
	}
}

func decodeSuccess(resp *http.Response, out any) error {
	if out == nil || !isJSON(resp.Header.Get("Content-Type")) {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return apperr.Server(http.StatusBadGateway, "Invalid response from server")
	}
	return nil
}

func isJSON(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mt == "application/json" || strings.HasSuffix(mt, "+json")
}

// normalize maps context errors that escape retry.Do into the taxonomy.
func normalize(err error) error {
	if err == nil {
		return nil
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return ae
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return apperr.Network(err)
	}
	return apperr.Internal(err)
}

func outcomeOf(err error) string {
	if err == nil {
		return "success"
	}
	if k := apperr.KindOf(err); k != "" {
		return string(k)
	}
	return "error"
}

func statusClass(code int) string {
	switch {
	case code < 300:
		return "2xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
