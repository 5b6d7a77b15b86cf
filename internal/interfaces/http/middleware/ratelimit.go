// Package middleware 提供 HTTP 中间件
package middleware

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"tender-draft-api/internal/infrastructure/persistence/redis"
	apperrors "tender-draft-api/pkg/errors"
)

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	// Enabled 是否启用限流
	Enabled bool
	// RequestsPerSecond 每秒请求数
	RequestsPerSecond int
}

// RateLimiter 限流器接口
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// RateLimit 限流中间件，按调用方 IP 和路径限流
func RateLimit(cfg RateLimitConfig, limiter RateLimiter) gin.HandlerFunc {
	if !cfg.Enabled || limiter == nil {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 100
	}

	return func(c *gin.Context) {
		key := redis.BuildRateLimitKey(c.ClientIP(), c.FullPath())

		allowed, err := limiter.Allow(c.Request.Context(), key, cfg.RequestsPerSecond, time.Second)
		if err != nil {
			// 限流器故障时放行，避免影响业务
			c.Next()
			return
		}

		if !allowed {
			limitErr := apperrors.ErrTooManyRequests
			c.AbortWithStatusJSON(limitErr.HTTPStatus, gin.H{
				"code":     limitErr.HTTPStatus,
				"message":  limitErr.Message,
				"trace_id": c.GetString("trace_id"),
			})
			return
		}

		c.Next()
	}
}
