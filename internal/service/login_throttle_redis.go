package service

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// bumpScript increments one counter and returns the cooldown in ms. It
// runs atomically so concurrent gateways agree on the failure count.
var bumpScript = redis.NewScript(`
local key = KEYS[1]
local now_ms = tonumber(ARGV[1])
local free = tonumber(ARGV[2])
local base_ms = tonumber(ARGV[3])
local mult = tonumber(ARGV[4])
local max_ms = tonumber(ARGV[5])
local window_ms = tonumber(ARGV[6])

local failures = tonumber(redis.call("HGET", key, "failures") or "0")
local last_ms = tonumber(redis.call("HGET", key, "last_ms") or "0")
if last_ms == 0 or (now_ms - last_ms) > window_ms then
  failures = 0
end
failures = failures + 1

local delay = 0
if failures > free then
  delay = math.floor(base_ms * (mult ^ (failures - free - 1)))
  if delay > max_ms then
    delay = max_ms
  end
end

redis.call("HSET", key, "failures", string.format("%d", failures), "last_ms", ARGV[1], "until_ms", string.format("%d", now_ms + delay))
redis.call("PEXPIRE", key, string.format("%d", window_ms + delay))
return delay
`)

// RedisLoginThrottle shares counters between gateway instances.
type RedisLoginThrottle struct {
	client redis.UniversalClient
	prefix string
	policy ThrottlePolicy
	now    func() time.Time
}

func NewRedisLoginThrottle(client redis.UniversalClient, prefix string, policy ThrottlePolicy) *RedisLoginThrottle {
	if prefix == "" {
		prefix = "taskgate"
	}
	return &RedisLoginThrottle{client: client, prefix: prefix + ":login_throttle", policy: policy.normalized(), now: time.Now}
}

func (t *RedisLoginThrottle) Check(ctx context.Context, email, ip string) (time.Duration, error) {
	nowMS := t.now().UnixMilli()
	var wait time.Duration
	for _, key := range throttleKeys(email, ip) {
		vals, err := t.client.HMGet(ctx, t.key(key), "last_ms", "until_ms").Result()
		if err != nil {
			return 0, fmt.Errorf("login throttle check: %w", err)
		}
		lastMS, ok1 := redisInt(vals, 0)
		untilMS, ok2 := redisInt(vals, 1)
		if !ok1 || !ok2 || nowMS-lastMS > t.policy.ResetWindow.Milliseconds() || untilMS <= nowMS {
			continue
		}
		wait = max(wait, time.Duration(untilMS-nowMS)*time.Millisecond)
	}
	return wait, nil
}

func (t *RedisLoginThrottle) RegisterFailure(ctx context.Context, email, ip string) (time.Duration, error) {
	nowMS := t.now().UnixMilli()
	var wait time.Duration
	for _, key := range throttleKeys(email, ip) {
		ms, err := bumpScript.Run(ctx, t.client, []string{t.key(key)},
			nowMS,
			t.policy.FreeAttempts,
			t.policy.BaseDelay.Milliseconds(),
			t.policy.Multiplier,
			t.policy.MaxDelay.Milliseconds(),
			t.policy.ResetWindow.Milliseconds(),
		).Int64()
		if err != nil {
			return 0, fmt.Errorf("login throttle bump: %w", err)
		}
		wait = max(wait, time.Duration(ms)*time.Millisecond)
	}
	return wait, nil
}

func (t *RedisLoginThrottle) Reset(ctx context.Context, email, ip string) error {
	keys := throttleKeys(email, ip)
	if err := t.client.Del(ctx, t.key(keys[0]), t.key(keys[1])).Err(); err != nil {
		return fmt.Errorf("login throttle reset: %w", err)
	}
	return nil
}

func (t *RedisLoginThrottle) key(k string) string {
	return t.prefix + ":" + k
}

// redisInt reads a numeric HMGET slot. Hash fields come back as strings.
func redisInt(vals []interface{}, i int) (int64, bool) {
	if i >= len(vals) || vals[i] == nil {
		return 0, false
	}
	var n int64
	switch v := vals[i].(type) {
	case string:
		if _, err := fmt.Sscan(v, &n); err != nil {
			return 0, false
		}
	case int64:
		n = v
	default:
		return 0, false
	}
	return n, true
}

var (
	_ LoginThrottle = NoopLoginThrottle{}
	_ LoginThrottle = (*MemoryLoginThrottle)(nil)
	_ LoginThrottle = (*RedisLoginThrottle)(nil)
)
