package middleware

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"natal-book-ai/internal/config"
	"natal-book-ai/internal/interfaces/http/dto"
	"natal-book-ai/pkg/logger"
)

// RateLimiter 滑动窗口限流器
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// RateLimit 按客户端地址与路由限流。限流器故障时放行
func RateLimit(cfg config.RateLimitConfig, limiter RateLimiter, keyFn func(clientIP, endpoint string) string) gin.HandlerFunc {
	if !cfg.Enabled || limiter == nil {
		return func(c *gin.Context) { c.Next() }
	}
	limit := cfg.RequestsPerMinute
	if limit <= 0 {
		limit = 30
	}

	return func(c *gin.Context) {
		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = c.Request.URL.Path
		}
		key := keyFn(c.ClientIP(), endpoint)

		allowed, err := limiter.Allow(c.Request.Context(), key, limit, time.Minute)
		if err != nil {
			logger.Warn(c.Request.Context(), "rate limiter unavailable", "error", err.Error())
			c.Next()
			return
		}
		if !allowed {
			dto.TooManyRequests(c, "rate limit exceeded")
			return
		}
		c.Next()
	}
}
