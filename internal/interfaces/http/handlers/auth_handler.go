package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/sessionguard/internal/application/dto"
	"github.com/turtacn/sessionguard/internal/application/service"
	"github.com/turtacn/sessionguard/internal/interfaces/http/middleware"
	"github.com/turtacn/sessionguard/pkg/constants"
	"github.com/turtacn/sessionguard/pkg/errors"
)

// AuthHandler handles login, logout and status requests.
type AuthHandler struct {
	sessions   service.SessionAppService
	cookies    *middleware.CookieWriter
	cookieName string
}

// NewAuthHandler creates a new AuthHandler. The token travels in the
// cookieName cookie.
func NewAuthHandler(sessions service.SessionAppService, cookies *middleware.CookieWriter, cookieName string) *AuthHandler {
	return &AuthHandler{
		sessions:   sessions,
		cookies:    cookies,
		cookieName: cookieName,
	}
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.SendError(c, errors.ErrInvalidRequest.WithError(err))
		return
	}

	result, err := h.sessions.Login(c.Request.Context(), &req, middleware.ClientOriginFrom(c))
	if err != nil {
		var appErr *errors.AppError
		if errors.As(err, &appErr) && appErr.HTTPStatus == http.StatusTooManyRequests {
			if retryAfter := appErr.Details["retry_after"]; retryAfter != "" {
				c.Header(constants.HeaderRetryAfter, retryAfter)
			}
		}
		dto.SendError(c, err)
		return
	}

	h.cookies.Set(c, h.cookieName, result.Token, result.MaxAge)
	dto.SendSuccess(c, http.StatusOK, result.Response)
}

// Logout handles POST /auth/logout. The route must be gated by
// middleware.RequireValid.
func (h *AuthHandler) Logout(c *gin.Context) {
	loggedOut, err := h.sessions.Logout(c.Request.Context(), middleware.AuthStatusFrom(c), middleware.ClientOriginFrom(c))
	if err != nil {
		dto.SendError(c, err)
		return
	}
	h.cookies.Expire(c, h.cookieName)
	dto.SendSuccess(c, http.StatusOK, dto.LogoutResponse{LoggedOut: loggedOut})
}

// Status handles GET /auth/status.
func (h *AuthHandler) Status(c *gin.Context) {
	dto.SendSuccess(c, http.StatusOK, dto.NewAuthStatusResponse(middleware.AuthStatusFrom(c)))
}
