package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aura-platform/integrations/pkg/ratelimit"
	"github.com/aura-platform/integrations/pkg/response"
)

// RateLimit limits each client IP per endpoint. If the limiter itself fails the
// request is let through.
func RateLimit(limiter ratelimit.Limiter, endpoint string, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		key := endpoint + ":" + c.ClientIP()
		d, err := limiter.Allow(c.Request.Context(), key)
		if err != nil {
			logger.Error("rate limiter unavailable", zap.String("key", key), zap.Error(err))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(d.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))

		if !d.Allowed {
			c.Header("Retry-After", strconv.Itoa(retryAfter(d.ResetAt)))
			logger.Warn("rate limit exceeded", zap.String("endpoint", endpoint), zap.String("client_ip", c.ClientIP()))
			response.TooManyRequests(c, "Rate limit exceeded")
			c.Abort()
			return
		}
		c.Next()
	}
}

// retryAfter is whole seconds until reset, at least 1.
func retryAfter(reset time.Time) int {
	secs := int((time.Until(reset) + time.Second - 1) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}
