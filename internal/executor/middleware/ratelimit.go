package middleware

import (
	"fmt"
	"time"

	"execsvc/internal/executor/service"
	pkgerrors "execsvc/pkg/errors"
	"execsvc/pkg/utils/logger"
	"execsvc/pkg/utils/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type RateLimitPolicy struct {
	Window time.Duration
	IPMax  int
	// FailOpen lets requests through when the cache cannot be reached.
	FailOpen bool
}

// RateLimitMiddleware enforces a per client IP fixed window on routeKey.
func RateLimitMiddleware(rateService *service.RateLimitService, routeKey string, policy RateLimitPolicy) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rateService == nil || policy.IPMax <= 0 {
			c.Next()
			return
		}
		key := fmt.Sprintf("executor:rate:ip:%s:%s", c.ClientIP(), routeKey)
		if err := rateService.Allow(c.Request.Context(), key, policy.IPMax, policy.Window); err != nil {
			if policy.FailOpen && pkgerrors.GetCode(err) != pkgerrors.TooManyRequests {
				logger.Warn(c.Request.Context(), "rate limit check skipped", zap.Error(err))
				c.Next()
				return
			}
			response.AbortWithError(c, err)
			return
		}
		c.Next()
	}
}
