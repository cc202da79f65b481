package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/garyjia/biller/internal/application/port"
)

const keyPrefix = "biller:ratelimit:"

// RedisLimiter shares fixed-window counters between instances through Redis
type RedisLimiter struct {
	client redis.UniversalClient
}

// NewRedisLimiter creates a limiter backed by client
func NewRedisLimiter(client redis.UniversalClient) *RedisLimiter {
	return &RedisLimiter{client: client}
}

// NewRedisClient parses a redis:// URL into a client
func NewRedisClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}

// Allow implements port.RateLimiter. The counter key expires with its window:
// PEXPIRE NX in the same transaction sets the expiry only on the first request,
// so a counter can never be left without one.
func (l *RedisLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, time.Duration, error) {
	redisKey := keyPrefix + key

	var incr *redis.IntCmd
	var ttl *redis.DurationCmd
	_, err := l.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.Incr(ctx, redisKey)
		p.Do(ctx, "pexpire", redisKey, window.Milliseconds(), "nx")
		ttl = p.PTTL(ctx, redisKey)
		return nil
	})
	if err != nil {
		return false, 0, fmt.Errorf("failed to count request: %w", err)
	}

	if int(incr.Val()) <= limit {
		return true, 0, nil
	}

	remaining := ttl.Val()
	if remaining <= 0 {
		remaining = window
	}
	return false, remaining, nil
}

var _ port.RateLimiter = (*RedisLimiter)(nil)
