package ratelimit

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	logger "github.com/parleychat/parley/middleware/log"
)

// Limiter is a fixed-window rate limiter backed by Redis, shared by all
// server instances. With fallback enabled it fails open when Redis is down.
type Limiter struct {
	redisClient *redis.Client
	logger      *logger.Logger
	fallback    bool
}

func NewLimiter(redisClient *redis.Client, log *logger.Logger, fallback bool) *Limiter {
	return &Limiter{
		redisClient: redisClient,
		logger:      log,
		fallback:    fallback,
	}
}

// Allow reports whether one more request may pass for key within the window.
func (l *Limiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	return l.AllowN(ctx, key, 1, limit, window)
}

// AllowN consumes n tokens at once.
func (l *Limiter) AllowN(ctx context.Context, key string, n, limit int, window time.Duration) (bool, error) {
	bucketKey := l.bucketKey(key, time.Now(), window)

	pipe := l.redisClient.Pipeline()
	incrCmd := pipe.IncrBy(ctx, bucketKey, int64(n))
	pipe.Expire(ctx, bucketKey, window+time.Second)

	if _, err := pipe.Exec(ctx); err != nil {
		if l.fallback {
			l.logger.Warn("rate limit check failed, allowing request (fail-open)",
				zap.String("key", key),
				zap.Error(err))
			return true, nil
		}
		return false, fmt.Errorf("rate limit check failed: %w", err)
	}

	return incrCmd.Val() <= int64(limit), nil
}

// Reset clears the current window for key.
func (l *Limiter) Reset(ctx context.Context, key string) error {
	pattern := fmt.Sprintf("ratelimit:%s:*", key)
	keys, err := l.redisClient.Keys(ctx, pattern).Result()
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return l.redisClient.Del(ctx, keys...).Err()
}

// bucketKey buckets time into fixed windows so all instances agree on the counter.
func (l *Limiter) bucketKey(key string, now time.Time, window time.Duration) string {
	bucket := now.UnixNano() / int64(window)
	return fmt.Sprintf("ratelimit:%s:%d", key, bucket)
}
