package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/harsha-e/unipass-api/internal/service"
	appErrors "github.com/harsha-e/unipass-api/pkg/errors"
	"github.com/harsha-e/unipass-api/pkg/response"
)

// RateLimit guards a workflow-mutating route with per-actor admission
// control. Requires Identity to have run first. Denials do not consume
// window capacity.
func RateLimit(limiter *service.RateLimitService, metrics *service.MetricsService, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := Actor(c)
		if actor == nil {
			response.Error(c, appErrors.ErrSessionExpired)
			c.Abort()
			return
		}

		ok, err := limiter.Allow(c.Request.Context(), actor.UID, action)
		if err != nil || !ok {
			if metrics != nil {
				metrics.ObserveRateLimited(action)
			}
			response.Error(c, appErrors.Clone(appErrors.ErrRateLimited, "too many requests, slow down"))
			c.Abort()
			return
		}
		c.Next()
	}
}
