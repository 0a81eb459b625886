package middleware

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/studio-adp-api/pkg/cache"
	appErrors "github.com/noah-isme/studio-adp-api/pkg/errors"
	"github.com/noah-isme/studio-adp-api/pkg/response"
)

// RateLimitConfig configures a fixed-window limiter.
type RateLimitConfig struct {
	Name   string
	Limit  int
	Window time.Duration
	Logger *zap.Logger
}

// RateLimit limits requests per authenticated account (or client IP) using Redis counters.
// A nil client or non-positive limit disables it. Redis errors fail open.
func RateLimit(client redis.Cmdable, cfg RateLimitConfig) gin.HandlerFunc {
	if client == nil || cfg.Limit <= 0 || cfg.Window <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	return rateLimit(redisCounter{client: client}, cfg)
}

type windowCounter interface {
	Hit(ctx context.Context, key string, window time.Duration) (int64, error)
}

func rateLimit(counter windowCounter, cfg RateLimitConfig) gin.HandlerFunc {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		subject := "ip:" + c.ClientIP()
		if claims := Claims(c); claims != nil {
			subject = "user:" + claims.TenantID + ":" + claims.UserID
		}
		window := time.Now().UnixNano() / int64(cfg.Window)
		key := cache.Key("ratelimit", cfg.Name, subject, strconv.FormatInt(window, 10))

		count, err := counter.Hit(c.Request.Context(), key, cfg.Window)
		if err != nil {
			cfg.Logger.Warn("rate limiter unavailable", zap.String("key", key), zap.Error(err))
			c.Next()
			return
		}

		remaining := cfg.Limit - int(count)
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(cfg.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		if int(count) > cfg.Limit {
			c.Header("Retry-After", strconv.Itoa(int(cfg.Window.Seconds())))
			response.Error(c, appErrors.ErrTooManyRequests)
			c.Abort()
			return
		}
		c.Next()
	}
}

type redisCounter struct {
	client redis.Cmdable
}

// Hit increments the window counter and sets its expiry in one transaction.
func (r redisCounter) Hit(ctx context.Context, key string, window time.Duration) (int64, error) {
	pipe := r.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}
