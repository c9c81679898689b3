package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"moonyetis/internal/logger"
	"moonyetis/internal/metrics"

	"github.com/gin-gonic/gin"
	redis "github.com/redis/go-redis/v9"
)

const redisOpTimeout = 500 * time.Millisecond

// RateLimiter is a fixed-window limiter. With a Redis client the windows are
// shared by every instance; without one it counts in process. Redis errors
// fail open.
type RateLimiter struct {
	client *redis.Client
	local  *localWindows
}

// NewRedisClient connects to addr and pings it. An empty addr returns nil,
// which selects the in-process limiter.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	if addr == "" {
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

func NewRateLimiter(client *redis.Client) *RateLimiter {
	return &RateLimiter{client: client, local: newLocalWindows()}
}

// Limit allows max requests per window for each caller of the scope. Mounted
// after JWT it keys callers by user id; anywhere else by client IP.
// key format: rl:<scope>:<window_seconds>:<identifier>
func (l *RateLimiter) Limit(scope string, max int, window time.Duration) gin.HandlerFunc {
	windowSecs := strconv.FormatInt(int64(window.Seconds()), 10)
	return func(c *gin.Context) {
		ident := "ip:" + c.ClientIP()
		if uid, ok := UserID(c); ok {
			ident = "user:" + strconv.FormatInt(uid, 10)
		}
		key := "rl:" + scope + ":" + windowSecs + ":" + ident

		count, err := l.incr(c.Request.Context(), key, window)
		if err != nil {
			logger.WithContext(c.Request.Context()).Warn("rate limiter unavailable", "error", err)
			c.Header("X-RateLimit-Error", "redis-error")
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(max))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining(max, count), 10))

		if count > int64(max) {
			metrics.RLBlocked.WithLabelValues(scope).Inc()
			c.Header("Retry-After", windowSecs)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"success": false, "error": "rate limit exceeded"})
			return
		}

		metrics.RLRequests.WithLabelValues(scope).Inc()
		c.Next()
	}
}

func (l *RateLimiter) incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	if l.client == nil {
		return l.local.incr(key, window, time.Now()), nil
	}

	ctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()

	val, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if val == 1 {
		// first hit opens the window
		l.client.Expire(ctx, key, window)
	}
	return val, nil
}

func remaining(max int, count int64) int64 {
	if r := int64(max) - count; r > 0 {
		return r
	}
	return 0
}

// Ping reports whether the shared Redis is reachable.
func (l *RateLimiter) Ping(ctx context.Context) error {
	if l.client == nil {
		return nil
	}
	return l.client.Ping(ctx).Err()
}

// Shared reports whether windows are shared through Redis.
func (l *RateLimiter) Shared() bool { return l.client != nil }
