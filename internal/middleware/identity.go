package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/harsha-e/unipass-api/internal/models"
	"github.com/harsha-e/unipass-api/internal/service"
	appErrors "github.com/harsha-e/unipass-api/pkg/errors"
	"github.com/harsha-e/unipass-api/pkg/response"
)

// ContextActorKey is the gin context key storing the resolved actor.
const ContextActorKey = "currentActor"

// Identity resolves the authenticated principal to a verified profile
// before any workflow handler runs. Runs after JWT: a valid token with
// no profile row, or a blocked profile, still fails here.
func Identity(identitySvc *service.IdentityService) gin.HandlerFunc {
	return func(c *gin.Context) {
		claimsValue, exists := c.Get(ContextUserKey)
		if !exists {
			response.Error(c, appErrors.ErrSessionExpired)
			c.Abort()
			return
		}
		claims := claimsValue.(*models.JWTClaims)

		actor, err := identitySvc.ResolveActor(c.Request.Context(), claims.UserID)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(ContextActorKey, actor)
		c.Next()
	}
}

// Actor returns the resolved actor from the context, or nil.
func Actor(c *gin.Context) *models.Actor {
	if value, exists := c.Get(ContextActorKey); exists {
		if actor, ok := value.(*models.Actor); ok {
			return actor
		}
	}
	return nil
}
