package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/turtacn/sessionguard/internal/application/dto"
	"github.com/turtacn/sessionguard/internal/domain/models"
	"github.com/turtacn/sessionguard/pkg/errors"
)

// RequireValid lets through only requests whose status is VALID. Backend
// failures surface as a server error; every other outcome is reported as a
// plain 401 so the client cannot tell which check failed.
func RequireValid() gin.HandlerFunc {
	return func(c *gin.Context) {
		status := AuthStatusFrom(c)
		switch status.Status {
		case models.AuthStatusValid:
			c.Next()
		case models.AuthStatusError:
			dto.SendError(c, errors.ErrInternal)
		default:
			dto.SendError(c, errors.ErrUnauthorized)
		}
	}
}

// RequireRole must run after RequireValid.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !AuthStatusFrom(c).HasRole(role) {
			dto.SendError(c, errors.ErrForbidden.WithDetail("required_role", role))
			return
		}
		c.Next()
	}
}
