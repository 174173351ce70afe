package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"
)

func newTestRedisLimiter(t *testing.T, maxRequests int, window time.Duration) *RedisLimiter {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisLimiter(client, maxRequests, window)
}

func TestRedisLimiterBurst(t *testing.T) {
	limiter := newTestRedisLimiter(t, 3, time.Second)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		allowed, err := limiter.Allow(context.Background(), "client-a", now)
		require.NoError(t, err)
		require.True(t, allowed, "request %d", i+1)
	}

	allowed, err := limiter.Allow(context.Background(), "client-a", now)
	require.NoError(t, err)
	require.False(t, allowed, "request over the limit")
}

func TestRedisLimiterRecoversAfterWindow(t *testing.T) {
	limiter := newTestRedisLimiter(t, 1, time.Second)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	allowed, err := limiter.Allow(context.Background(), "client-a", now)
	require.NoError(t, err)
	require.True(t, allowed)

	allowed, err = limiter.Allow(context.Background(), "client-a", now.Add(500*time.Millisecond))
	require.NoError(t, err)
	require.False(t, allowed)

	allowed, err = limiter.Allow(context.Background(), "client-a", now.Add(time.Second+time.Millisecond))
	require.NoError(t, err)
	require.True(t, allowed, "request after the window elapsed")
}

func TestRedisLimiterKeysIndependent(t *testing.T) {
	limiter := newTestRedisLimiter(t, 1, time.Minute)
	now := time.Now()

	allowed, err := limiter.Allow(context.Background(), "client-a", now)
	require.NoError(t, err)
	require.True(t, allowed)

	allowed, err = limiter.Allow(context.Background(), "client-b", now)
	require.NoError(t, err)
	require.True(t, allowed, "key B affected by key A")
}

func TestRedisLimiterUnreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	defer client.Close()
	limiter := NewRedisLimiter(client, 1, time.Second)

	_, err := limiter.Allow(context.Background(), "client-a", time.Now())
	require.Error(t, err)
}
