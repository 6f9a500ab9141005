package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	rateLimitCallerTTL = 120 * time.Second
	rateLimitIPTTL     = 10 * time.Second
)

// RateLimitResult contains the result of a rate limit check.
type RateLimitResult struct {
	Allowed    bool
	Remaining  int64
	ResetAt    time.Time
	RetryAfter time.Duration
}

// tokenBucketScript refills and consumes one token atomically.
// Time is passed in milliseconds so sub-second refill rates work.
var tokenBucketScript = redis.NewScript(`
	local key = KEYS[1]
	local rate = tonumber(ARGV[1])      -- tokens per second
	local burst = tonumber(ARGV[2])     -- bucket capacity
	local now = tonumber(ARGV[3])       -- milliseconds
	local ttl = tonumber(ARGV[4])       -- milliseconds

	local data = redis.call('HMGET', key, 'tokens', 'ts')
	local tokens = tonumber(data[1]) or burst
	local ts = tonumber(data[2]) or now

	local elapsed = math.max(0, now - ts) / 1000
	tokens = math.min(burst, tokens + (elapsed * rate))

	local allowed = 0
	local retry_ms = 0
	if tokens >= 1 then
		tokens = tokens - 1
		allowed = 1
	else
		retry_ms = math.ceil(((1 - tokens) / rate) * 1000)
	end

	redis.call('HSET', key, 'tokens', tokens, 'ts', now)
	redis.call('PEXPIRE', key, ttl)

	return {allowed, retry_ms, math.floor(tokens)}
`)

// CheckCallerRateLimit applies a per-minute budget to an authenticated user.
// A zero rate disables the limit.
func (c *Cache) CheckCallerRateLimit(ctx context.Context, userID string, ratePerMinute, burst int) *RateLimitResult {
	if ratePerMinute <= 0 {
		return unlimited(burst)
	}
	return c.checkRateLimit(ctx, key("ratelimit", "user", hashKey(userID)), float64(ratePerMinute)/60.0, burst, rateLimitCallerTTL)
}

// CheckIPRateLimit applies a per-second budget to a client IP.
// The IP is hashed before it is used as a key.
func (c *Cache) CheckIPRateLimit(ctx context.Context, ip string, ratePerSecond, burst int) *RateLimitResult {
	if ratePerSecond <= 0 {
		return unlimited(burst)
	}
	return c.checkRateLimit(ctx, key("ratelimit", "ip", hashKey(ip)), float64(ratePerSecond), burst, rateLimitIPTTL)
}

// checkRateLimit fails open: a Redis error allows the request.
func (c *Cache) checkRateLimit(ctx context.Context, k string, rate float64, burst int, ttl time.Duration) *RateLimitResult {
	now := time.Now()

	res, err := tokenBucketScript.Run(ctx, c.client,
		[]string{k},
		rate, burst, now.UnixMilli(), ttl.Milliseconds(),
	).Int64Slice()
	if err != nil || len(res) != 3 {
		return unlimited(burst)
	}

	return &RateLimitResult{
		Allowed:    res[0] == 1,
		Remaining:  res[2],
		ResetAt:    now.Add(refillInterval(rate)),
		RetryAfter: time.Duration(res[1]) * time.Millisecond,
	}
}

func unlimited(burst int) *RateLimitResult {
	return &RateLimitResult{
		Allowed:   true,
		Remaining: int64(burst),
		ResetAt:   time.Now().Add(time.Minute),
	}
}

// refillInterval is the time to regain one token at rate tokens/second.
func refillInterval(rate float64) time.Duration {
	if rate <= 0 {
		return time.Minute
	}
	return time.Duration(math.Ceil(float64(time.Second) / rate))
}

// hashKey returns 16 hex chars of SHA-256 so raw identifiers are not stored.
func hashKey(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:8])
}
