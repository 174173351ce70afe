package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"
)

// admitScript performs evict, count, and conditional append as one atomic
// step server-side. Scores are nanosecond timestamps; members get a
// per-process sequence suffix so concurrent requests in the same
// nanosecond stay distinct.
var admitScript = redis.NewScript(`
redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', ARGV[1])
local count = redis.call('ZCARD', KEYS[1])
if count < tonumber(ARGV[2]) then
	redis.call('ZADD', KEYS[1], ARGV[3], ARGV[4])
	redis.call('PEXPIRE', KEYS[1], ARGV[5])
	return 1
end
return 0
`)

// RedisLimiter is the shared sliding-window Limiter for multi-process
// deployments. Semantics match SlidingWindow; atomicity comes from the
// Lua script instead of a per-key mutex.
type RedisLimiter struct {
	client *redis.Client
	prefix string

	maxRequests int
	window      time.Duration

	seq atomic.Uint64
}

// NewRedisLimiter creates a Redis-backed limiter using the given client.
func NewRedisLimiter(client *redis.Client, maxRequests int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{
		client:      client,
		prefix:      "ratelimit:",
		maxRequests: maxRequests,
		window:      window,
	}
}

// Allow reports whether the request is admitted. Errors reaching Redis
// are returned to the caller, who decides the failure policy.
func (r *RedisLimiter) Allow(ctx context.Context, key string, now time.Time) (bool, error) {
	score := now.UnixNano()
	cutoff := score - r.window.Nanoseconds()
	member := strconv.FormatInt(score, 10) + "-" + strconv.FormatUint(r.seq.Add(1), 10)

	res, err := admitScript.Run(ctx, r.client, []string{r.prefix + key},
		cutoff,
		r.maxRequests,
		score,
		member,
		r.window.Milliseconds(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("ratelimit: redis admission check: %w", err)
	}
	return res == 1, nil
}
