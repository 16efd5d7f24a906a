package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/sessionguard/internal/application/dto"
	"github.com/turtacn/sessionguard/pkg/constants"
	"github.com/turtacn/sessionguard/pkg/errors"
	"github.com/turtacn/sessionguard/pkg/logger"
)

// ResolveClientOrigin derives the client origin of r: the first
// X-Forwarded-For entry when present, otherwise the host of the remote
// address. The result is a normalised IP string; ok is false when neither
// source yields an IP.
func ResolveClientOrigin(r *http.Request) (origin string, ok bool) {
	if xff := r.Header.Get(constants.HeaderForwardedFor); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := net.ParseIP(strings.TrimSpace(first)); ip != nil {
			return ip.String(), true
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.String(), true
	}
	return "", false
}

// ClientOrigin rejects requests whose origin cannot be resolved and exposes
// the origin to the rest of the chain.
func ClientOrigin(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin, ok := ResolveClientOrigin(c.Request)
		if !ok {
			log.Warn(c.Request.Context(), "unresolvable client origin",
				logger.String("remote_addr", c.Request.RemoteAddr))
			dto.SendError(c, errors.ErrUnauthorized)
			return
		}
		c.Set(constants.GinKeyClientOrigin, origin)
		c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), constants.ContextKeyClientOrigin, origin))
		c.Next()
	}
}

// ClientOriginFrom returns the origin stored by ClientOrigin.
func ClientOriginFrom(c *gin.Context) string {
	return c.GetString(constants.GinKeyClientOrigin)
}
