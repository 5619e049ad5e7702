package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"shadowrank/internal/metrics"
)

// NewRedisClient connects to Redis and verifies the connection.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

// RateLimiter is a fixed-window limiter backed by Redis INCR/EXPIRE.
// A nil client or a Redis error lets the request through.
type RateLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
}

// NewRateLimiter creates a limiter allowing limit requests per window.
func NewRateLimiter(client *redis.Client, limit int, window time.Duration) *RateLimiter {
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{client: client, limit: limit, window: window}
}

// Handler limits requests per authenticated profile, or per client IP before
// authentication. scope separates the counters of different routes.
// key format: rl:<scope>:<window_seconds>:<identifier>
func (l *RateLimiter) Handler(scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if l == nil || l.client == nil || l.limit <= 0 {
			c.Next()
			return
		}

		ident := c.ClientIP()
		if id, ok := ProfileID(c); ok {
			ident = id.String()
		}
		key := "rl:" + scope + ":" + strconv.FormatInt(int64(l.window.Seconds()), 10) + ":" + ident

		ctx, cancel := context.WithTimeout(c.Request.Context(), 500*time.Millisecond)
		defer cancel()

		val, err := l.client.Incr(ctx, key).Result()
		if err != nil {
			log.Warn().Err(err).Str("scope", scope).Msg("Rate limiter unavailable, allowing request")
			c.Header("X-RateLimit-Error", "redis-error")
			c.Next()
			return
		}
		if val == 1 {
			l.client.Expire(ctx, key, l.window)
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(l.limit))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(max(0, int64(l.limit)-val), 10))

		if val > int64(l.limit) {
			metrics.RLBlocked.WithLabelValues(scope).Inc()
			c.Header("Retry-After", strconv.Itoa(int(l.window.Seconds())))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate limit exceeded",
				"retry_after": int(l.window.Seconds()),
			})
			return
		}

		metrics.RLRequests.WithLabelValues(scope).Inc()
		c.Next()
	}
}
