package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/turtacn/sessionguard/internal/application/dto"
	"github.com/turtacn/sessionguard/internal/application/service"
	"github.com/turtacn/sessionguard/internal/interfaces/http/middleware"
	"github.com/turtacn/sessionguard/pkg/errors"
)

// AdminHandler serves the principal administration routes. Routes must be
// gated by middleware.RequireValid and middleware.RequireRole.
type AdminHandler struct {
	sessions service.SessionAppService
}

func NewAdminHandler(sessions service.SessionAppService) *AdminHandler {
	return &AdminHandler{sessions: sessions}
}

// InvalidatePrincipal handles POST /admin/principals/:id/invalidate.
func (h *AdminHandler) InvalidatePrincipal(c *gin.Context) {
	principalID, ok := principalParam(c)
	if !ok {
		return
	}
	if err := h.sessions.InvalidatePrincipal(c.Request.Context(), principalID, middleware.ClientOriginFrom(c)); err != nil {
		dto.SendError(c, err)
		return
	}
	dto.SendSuccess(c, http.StatusOK, dto.InvalidateResponse{PrincipalID: principalID, Invalidated: true})
}

// ActiveSessions handles GET /admin/principals/:id/sessions.
func (h *AdminHandler) ActiveSessions(c *gin.Context) {
	principalID, ok := principalParam(c)
	if !ok {
		return
	}
	count, err := h.sessions.ActiveSessions(c.Request.Context(), principalID)
	if err != nil {
		dto.SendError(c, err)
		return
	}
	dto.SendSuccess(c, http.StatusOK, dto.SessionCountResponse{PrincipalID: principalID, ActiveSessions: count})
}

func principalParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		dto.SendError(c, errors.ErrInvalidRequest.WithDetail("id", "must be a UUID"))
		return uuid.Nil, false
	}
	return id, true
}
