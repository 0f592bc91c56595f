package rate

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter is a [Limiter] backed by a shared Redis counter, for
// deployments with more than one process instance. INCR makes the
// increment-and-check atomic across instances.
type RedisLimiter struct {
	redis  redis.UniversalClient
	prefix string
	config Config
}

// NewRedisLimiter creates a limiter using the given client and key prefix.
func NewRedisLimiter(client redis.UniversalClient, prefix string, cfg Config) *RedisLimiter {
	if prefix == "" {
		prefix = "arl"
	}
	return &RedisLimiter{
		redis:  client,
		prefix: prefix,
		config: cfg,
	}
}

func (l *RedisLimiter) key(identifier string) string {
	return l.prefix + ":" + identifier
}

// Allow implements [Limiter].
func (l *RedisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	k := l.key(key)

	count, err := l.redis.Incr(ctx, k).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := l.redis.Expire(ctx, k, l.config.Window).Err(); err != nil {
			return Decision{}, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		}
	}

	if count > int64(l.config.Threshold) {
		retryAfter, err := l.redis.TTL(ctx, k).Result()
		if err != nil || retryAfter < 0 {
			retryAfter = l.config.Window
		}
		return Decision{
			Allowed:    false,
			RetryAfter: retryAfter,
		}, nil
	}

	remaining := l.config.Threshold - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return Decision{Allowed: true, Remaining: remaining}, nil
}

var _ Limiter = (*RedisLimiter)(nil)
var _ Limiter = (*MemoryLimiter)(nil)
