package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisRateLimitPrefix = "pixelclaim:ratelimit:"

// RedisRateLimitStore implements RateLimitStore with a fixed window counter in
// Redis, shared by every API instance. Redis errors fail open.
type RedisRateLimitStore struct {
	client  *redis.Client
	metrics *Metrics
	logger  *slog.Logger
}

// NewRedisRateLimitStore creates a store backed by client. metrics may be nil.
func NewRedisRateLimitStore(client *redis.Client, metrics *Metrics, logger *slog.Logger) *RedisRateLimitStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisRateLimitStore{client: client, metrics: metrics, logger: logger}
}

// Allow implements RateLimitStore.
func (s *RedisRateLimitStore) Allow(ctx context.Context, key string, config RateLimitConfig) (bool, int, int) {
	redisKey := redisRateLimitPrefix + key

	count, err := s.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return s.failOpen(ctx, key, config, err)
	}
	if count == 1 {
		if err := s.client.PExpire(ctx, redisKey, config.WindowDuration).Err(); err != nil {
			return s.failOpen(ctx, key, config, err)
		}
	}

	if count <= int64(config.RequestsPerWindow) {
		return true, config.RequestsPerWindow - int(count), 0
	}

	ttl, err := s.client.PTTL(ctx, redisKey).Result()
	if err != nil {
		return s.failOpen(ctx, key, config, err)
	}
	if ttl < 0 {
		// The key lost its expiry; start a fresh window.
		_ = s.client.PExpire(ctx, redisKey, config.WindowDuration).Err()
		ttl = config.WindowDuration
	}
	retryAfter := int((ttl + time.Second - 1) / time.Second)
	if retryAfter <= 0 {
		retryAfter = 1
	}
	return false, 0, retryAfter
}

func (s *RedisRateLimitStore) failOpen(ctx context.Context, key string, config RateLimitConfig, err error) (bool, int, int) {
	s.metrics.IncRateLimitRedisErrors()
	s.logger.WarnContext(ctx, "rate limit store unavailable, allowing request", "key", key, "error", err)
	return true, config.RequestsPerWindow, 0
}
