package ratelimit

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	logger "github.com/parleychat/parley/middleware/log"
)

// setupTestRedis creates a miniredis instance for testing
func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	return client, mr
}

func testLogger(t *testing.T) *logger.Logger {
	log, err := logger.NewDevelopmentLogger()
	require.NoError(t, err)
	return log
}

func TestLimiter_Allow(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	limiter := NewLimiter(client, testLogger(t), false)

	ctx := context.Background()
	key := "send:user:123"
	limit := 5
	window := time.Minute

	for i := range limit {
		allowed, err := limiter.Allow(ctx, key, limit, window)
		assert.NoError(t, err)
		assert.True(t, allowed, "request %d should be allowed", i+1)
	}

	allowed, err := limiter.Allow(ctx, key, limit, window)
	assert.NoError(t, err)
	assert.False(t, allowed, "request should be denied after limit exceeded")
}

func TestLimiter_AllowN(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	limiter := NewLimiter(client, testLogger(t), false)

	ctx := context.Background()
	key := "send:user:456"

	allowed, err := limiter.AllowN(ctx, key, 3, 5, time.Minute)
	assert.NoError(t, err)
	assert.True(t, allowed)

	// 3 + 3 > 5
	allowed, err = limiter.AllowN(ctx, key, 3, 5, time.Minute)
	assert.NoError(t, err)
	assert.False(t, allowed)
}

func TestLimiter_KeysAreIndependent(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	limiter := NewLimiter(client, testLogger(t), false)
	ctx := context.Background()

	for range 3 {
		allowed, err := limiter.Allow(ctx, "send:user:1", 3, time.Minute)
		assert.NoError(t, err)
		assert.True(t, allowed)
	}

	// user 1 is exhausted, user 2 is not
	allowed, err := limiter.Allow(ctx, "send:user:1", 3, time.Minute)
	assert.NoError(t, err)
	assert.False(t, allowed)

	allowed, err = limiter.Allow(ctx, "send:user:2", 3, time.Minute)
	assert.NoError(t, err)
	assert.True(t, allowed)
}

func TestLimiter_Reset(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	limiter := NewLimiter(client, testLogger(t), false)
	ctx := context.Background()
	key := "send:user:789"

	for range 2 {
		allowed, err := limiter.Allow(ctx, key, 2, time.Minute)
		require.NoError(t, err)
		require.True(t, allowed)
	}

	allowed, err := limiter.Allow(ctx, key, 2, time.Minute)
	require.NoError(t, err)
	require.False(t, allowed)

	require.NoError(t, limiter.Reset(ctx, key))

	allowed, err = limiter.Allow(ctx, key, 2, time.Minute)
	assert.NoError(t, err)
	assert.True(t, allowed, "window should be empty after reset")
}

func TestLimiter_FailOpen(t *testing.T) {
	client, mr := setupTestRedis(t)
	mr.Close() // Redis is down from the start
	defer client.Close()

	ctx := context.Background()

	t.Run("fallback enabled allows request", func(t *testing.T) {
		limiter := NewLimiter(client, testLogger(t), true)
		allowed, err := limiter.Allow(ctx, "send:user:1", 1, time.Minute)
		assert.NoError(t, err)
		assert.True(t, allowed)
	})

	t.Run("fallback disabled returns error", func(t *testing.T) {
		limiter := NewLimiter(client, testLogger(t), false)
		allowed, err := limiter.Allow(ctx, "send:user:1", 1, time.Minute)
		assert.Error(t, err)
		assert.False(t, allowed)
	})
}
