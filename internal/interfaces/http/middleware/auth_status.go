package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/sessionguard/internal/domain/models"
	"github.com/turtacn/sessionguard/internal/domain/service"
	"github.com/turtacn/sessionguard/pkg/constants"
)

// Resolver turns a raw token into a terminal authentication status.
type Resolver interface {
	Resolve(ctx context.Context, token string, origin service.OriginVerifier) models.RequestAuthStatus
}

// AuthStatus resolves the token carried in the cookieName cookie and stores
// the outcome for the gates and handlers downstream. It never aborts: the
// decision to reject belongs to the gates.
func AuthStatus(resolver Resolver, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie(cookieName)
		status := resolver.Resolve(c.Request.Context(), token, service.ExactOrigin(ClientOriginFrom(c)))
		c.Set(constants.GinKeyAuthStatus, status)
		c.Next()
	}
}

// AuthStatusFrom returns the status stored by AuthStatus. A request that was
// never resolved reads as carrying no token.
func AuthStatusFrom(c *gin.Context) models.RequestAuthStatus {
	if v, ok := c.Get(constants.GinKeyAuthStatus); ok {
		if status, ok := v.(models.RequestAuthStatus); ok {
			return status
		}
	}
	return models.NewRequestAuthStatus(models.AuthStatusNotPresentInRequest)
}
