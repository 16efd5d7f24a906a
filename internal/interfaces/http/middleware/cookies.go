package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/sessionguard/internal/config"
)

// CookieWriter sets the service's cookies. Every cookie is HttpOnly and
// scoped to the whole site.
type CookieWriter struct {
	secure   bool
	sameSite http.SameSite
}

func NewCookieWriter(cfg config.CookieConfig) *CookieWriter {
	return &CookieWriter{
		secure:   cfg.Secure,
		sameSite: parseSameSite(cfg.SameSite),
	}
}

// Set writes a cookie living for maxAge seconds.
func (w *CookieWriter) Set(c *gin.Context, name, value string, maxAge int) {
	c.SetSameSite(w.sameSite)
	c.SetCookie(name, value, maxAge, "/", "", w.secure, true)
}

// Expire instructs the client to drop the cookie immediately.
func (w *CookieWriter) Expire(c *gin.Context, name string) {
	c.SetSameSite(w.sameSite)
	c.SetCookie(name, "", -1, "/", "", w.secure, true)
}

func parseSameSite(s string) http.SameSite {
	switch strings.ToLower(s) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}
