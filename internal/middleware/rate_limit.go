package middleware

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/tripmart/marketplace-backend/internal/utils"
)

// Limiter hands out request tokens per client key
type Limiter interface {
	Allow(key string) (bool, time.Duration)
}

// RateLimit throttles requests per authenticated user, falling back to the
// client IP for anonymous calls. Register it after AuthMiddleware to key by
// user.
func RateLimit(limiter Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := "ip:" + utils.GetRealIP(c)
		if userCtx, ok := GetUserContext(c); ok {
			key = "user:" + userCtx.UserID.String()
		}

		allowed, retryAfter := limiter.Allow(key)
		if !allowed {
			seconds := int(math.Ceil(retryAfter.Seconds()))
			logrus.WithFields(logrus.Fields{
				"client": key,
				"path":   c.FullPath(),
			}).Warn("Rate limit exceeded")

			c.Header("Retry-After", strconv.Itoa(seconds))
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate_limited",
				"message":     "Too many requests, please try again later",
				"retry_after": seconds,
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
