package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"math"
	"strings"
	"sync"
	"time"
)

// LoginThrottle slows down repeated failed logins. Failures are counted
// twice, once against the email and once against the client address, and
// the longer of the two cooldowns wins.
type LoginThrottle interface {
	// Check returns the remaining cooldown, or zero when a login may proceed.
	Check(ctx context.Context, email, ip string) (time.Duration, error)
	// RegisterFailure records a failed attempt and returns the new cooldown.
	RegisterFailure(ctx context.Context, email, ip string) (time.Duration, error)
	// Reset forgets both counters after a successful login.
	Reset(ctx context.Context, email, ip string) error
}

// ThrottlePolicy shapes the cooldown curve. The first FreeAttempts
// failures cost nothing; after that the delay starts at BaseDelay and
// grows by Multiplier per failure up to MaxDelay. A quiet ResetWindow
// forgets the history.
type ThrottlePolicy struct {
	FreeAttempts int
	BaseDelay    time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	ResetWindow  time.Duration
}

func (p ThrottlePolicy) normalized() ThrottlePolicy {
	if p.FreeAttempts < 0 {
		p.FreeAttempts = 0
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = time.Second
	}
	if p.Multiplier < 1 {
		p.Multiplier = 2
	}
	if p.MaxDelay < p.BaseDelay {
		p.MaxDelay = 5 * time.Minute
	}
	if p.ResetWindow <= 0 {
		p.ResetWindow = 15 * time.Minute
	}
	return p
}

// delay is the cooldown owed after the n-th consecutive failure.
func (p ThrottlePolicy) delay(failures int) time.Duration {
	if failures <= p.FreeAttempts {
		return 0
	}
	d := time.Duration(float64(p.BaseDelay) * math.Pow(p.Multiplier, float64(failures-p.FreeAttempts-1)))
	if d > p.MaxDelay || d < 0 {
		return p.MaxDelay
	}
	return d
}

type NoopLoginThrottle struct{}

func (NoopLoginThrottle) Check(context.Context, string, string) (time.Duration, error) { return 0, nil }
func (NoopLoginThrottle) RegisterFailure(context.Context, string, string) (time.Duration, error) {
	return 0, nil
}
func (NoopLoginThrottle) Reset(context.Context, string, string) error { return nil }

type throttleEntry struct {
	failures      int
	lastFailure   time.Time
	cooldownUntil time.Time
}

// MemoryLoginThrottle keeps counters in process. Suitable for a single
// gateway instance.
type MemoryLoginThrottle struct {
	policy ThrottlePolicy
	now    func() time.Time

	mu      sync.Mutex
	entries map[string]throttleEntry
}

func NewMemoryLoginThrottle(policy ThrottlePolicy) *MemoryLoginThrottle {
	return &MemoryLoginThrottle{
		policy:  policy.normalized(),
		now:     time.Now,
		entries: make(map[string]throttleEntry),
	}
}

func (t *MemoryLoginThrottle) Check(_ context.Context, email, ip string) (time.Duration, error) {
	now := t.now()
	t.mu.Lock()
	defer t.mu.Unlock()
	var wait time.Duration
	for _, key := range throttleKeys(email, ip) {
		wait = max(wait, t.remainingLocked(now, key))
	}
	return wait, nil
}

func (t *MemoryLoginThrottle) RegisterFailure(_ context.Context, email, ip string) (time.Duration, error) {
	now := t.now()
	t.mu.Lock()
	defer t.mu.Unlock()
	var wait time.Duration
	for _, key := range throttleKeys(email, ip) {
		e := t.entries[key]
		if e.lastFailure.IsZero() || now.Sub(e.lastFailure) > t.policy.ResetWindow {
			e = throttleEntry{}
		}
		e.failures++
		e.lastFailure = now
		d := t.policy.delay(e.failures)
		e.cooldownUntil = now.Add(d)
		t.entries[key] = e
		wait = max(wait, d)
	}
	return wait, nil
}

func (t *MemoryLoginThrottle) Reset(_ context.Context, email, ip string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, key := range throttleKeys(email, ip) {
		delete(t.entries, key)
	}
	return nil
}

func (t *MemoryLoginThrottle) remainingLocked(now time.Time, key string) time.Duration {
	e, ok := t.entries[key]
	if !ok {
		return 0
	}
	if now.Sub(e.lastFailure) > t.policy.ResetWindow {
		delete(t.entries, key)
		return 0
	}
	if !now.Before(e.cooldownUntil) {
		return 0
	}
	return e.cooldownUntil.Sub(now)
}

// throttleKeys returns the email key then the address key. Values are
// hashed so raw emails never land in a shared store.
func throttleKeys(email, ip string) [2]string {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		email = "anonymous"
	}
	ip = strings.TrimSpace(ip)
	if ip == "" {
		ip = "unknown"
	}
	return [2]string{"email:" + digest(email), "ip:" + digest(ip)}
}

func digest(v string) string {
	sum := sha256.Sum256([]byte(v))
	return hex.EncodeToString(sum[:12])
}
