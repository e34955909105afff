package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRateLimitStore implements RateLimitStore using Redis.
// It uses a fixed window counter with INCR and EXPIRE, so multiple
// instances of the service share one rate limit budget per key.
//
// On Redis errors the store fails open: the request is allowed and the
// error is counted. Rate limiting is protection, not a correctness
// invariant, so a Redis outage must not take the API down with it.
type RedisRateLimitStore struct {
	client  *redis.Client
	logger  *slog.Logger
	metrics *Metrics
}

// RedisStoreOption configures a RedisRateLimitStore.
type RedisStoreOption func(*RedisRateLimitStore)

// WithStoreLogger sets the logger used for Redis error reporting.
func WithStoreLogger(logger *slog.Logger) RedisStoreOption {
	return func(s *RedisRateLimitStore) {
		s.logger = logger
	}
}

// WithStoreMetrics sets the metrics used to count Redis errors.
func WithStoreMetrics(m *Metrics) RedisStoreOption {
	return func(s *RedisRateLimitStore) {
		s.metrics = m
	}
}

// NewRedisRateLimitStore creates a rate limit store backed by the given
// Redis client.
func NewRedisRateLimitStore(client *redis.Client, opts ...RedisStoreOption) *RedisRateLimitStore {
	s := &RedisRateLimitStore{
		client: client,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Allow checks if a request from the given key should be allowed.
// Implements the RateLimitStore interface.
func (s *RedisRateLimitStore) Allow(ctx context.Context, key string, config RateLimitConfig) (bool, int) {
	redisKey := "ratelimit:" + key

	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.ExpireNX(ctx, redisKey, config.WindowDuration)
	if _, err := pipe.Exec(ctx); err != nil {
		s.logger.Warn("rate limit store unavailable, allowing request",
			slog.String("key", key),
			slog.String("error", err.Error()))
		if s.metrics != nil {
			s.metrics.rateLimitRedisErrors.Inc()
		}
		return true, 0
	}

	count := incr.Val()
	if count <= int64(config.RequestsPerWindow) {
		return true, 0
	}

	ttl, err := s.client.TTL(ctx, redisKey).Result()
	if err != nil || ttl <= 0 {
		ttl = config.WindowDuration
	}
	retryAfter := int(ttl / time.Second)
	if retryAfter <= 0 {
		retryAfter = 1
	}
	return false, retryAfter
}
