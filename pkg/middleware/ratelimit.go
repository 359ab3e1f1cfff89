package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/platinummonkey/fedgate/pkg/httputil"
	"github.com/platinummonkey/fedgate/pkg/observability"
)

// RateLimiter is a fixed window counter in Redis, shared across instances
type RateLimiter struct {
	redis    *redis.Client
	prefix   string
	requests int
	window   time.Duration
}

// NewRateLimiter creates a Redis-backed rate limiter allowing requests per
// window for each key
func NewRateLimiter(redisClient *redis.Client, prefix string, requests int, window time.Duration) *RateLimiter {
	if prefix == "" {
		prefix = "ratelimit"
	}
	return &RateLimiter{
		redis:    redisClient,
		prefix:   prefix,
		requests: requests,
		window:   window,
	}
}

// Allow checks whether the key has quota left in the current window. It
// returns an error only for Redis failures; callers decide whether to fail
// open.
func (rl *RateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	redisKey := fmt.Sprintf("%s:%s", rl.prefix, key)

	pipe := rl.redis.Pipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.Expire(ctx, redisKey, rl.window)

	if _, err := pipe.Exec(ctx); err != nil {
		return true, fmt.Errorf("redis error: %w", err)
	}

	return incr.Val() <= int64(rl.requests), nil
}

// Reset clears the counter for a key
func (rl *RateLimiter) Reset(ctx context.Context, key string) error {
	return rl.redis.Del(ctx, fmt.Sprintf("%s:%s", rl.prefix, key)).Err()
}

// RateLimit rejects requests over the per-client quota with 429. Redis
// failures fail open so the login flow stays available.
func RateLimit(limiter *RateLimiter, logger *observability.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed, err := limiter.Allow(r.Context(), httputil.ClientIP(r))
			if err != nil {
				logger.WithError(err).Warn("rate limiter unavailable, allowing request")
			}
			if !allowed {
				httputil.WriteTooManyRequests(w, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
