package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// rateLimitScript is the sliding-window admission check from spec.md §4.F
// step 2, built on a Redis sorted set: expired entries are trimmed, the
// window is counted, and a new entry is only added if the count is still
// under the limit, all in one round trip.
var rateLimitScript = redis.NewScript(`
	local key = KEYS[1]
	local window_start = tonumber(ARGV[1])
	local now = tonumber(ARGV[2])
	local limit = tonumber(ARGV[3])
	local ttl = tonumber(ARGV[4])

	redis.call('ZREMRANGEBYSCORE', key, '-inf', window_start)
	local current = redis.call('ZCARD', key)

	if current < limit then
		redis.call('ZADD', key, now, now .. ':' .. math.random())
		redis.call('EXPIRE', key, ttl)
		return current + 1
	end
	return -1
`)

// RateLimiter enforces MAX_ATTEMPTS_PER_MINUTE per user via a Redis sorted
// set sliding window (rate_limit:<userId>, spec.md §6). The key's TTL is
// the window plus one second (61s for a 60s window).
type RateLimiter struct {
	client *redis.Client
	window time.Duration
	limit  int
}

// NewRateLimiter creates a RateLimiter with the given window and attempt
// limit.
func NewRateLimiter(client *redis.Client, window time.Duration, limit int) *RateLimiter {
	return &RateLimiter{client: client, window: window, limit: limit}
}

// Allow reports whether userID's request is within limit, recording it in
// the sliding window only when it is. count is the number of entries in the
// window including this one; when blocked, allowed is false and count is
// the limit.
func (r *RateLimiter) Allow(ctx context.Context, userID string) (allowed bool, count int, err error) {
	now := time.Now()
	windowStart := now.Add(-r.window)
	ttlSeconds := int(r.window.Seconds()) + 1

	result, err := rateLimitScript.Run(ctx, r.client,
		[]string{rateLimitKey(userID)},
		windowStart.UnixMilli(), now.UnixMilli(), r.limit, ttlSeconds,
	).Int()
	if err != nil {
		return false, 0, fmt.Errorf("rate limit check for %s: %w", userID, err)
	}
	if result < 0 {
		return false, r.limit, nil
	}
	return true, result, nil
}

// Reset clears the rate-limit counter for userID, primarily for tests.
func (r *RateLimiter) Reset(ctx context.Context, userID string) error {
	return r.client.Del(ctx, rateLimitKey(userID)).Err()
}
