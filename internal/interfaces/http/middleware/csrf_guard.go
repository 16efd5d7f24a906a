package middleware

import (
	"crypto/subtle"
	"net/http"
	"regexp"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/turtacn/sessionguard/internal/application/dto"
	"github.com/turtacn/sessionguard/internal/config"
	"github.com/turtacn/sessionguard/internal/domain/service"
	"github.com/turtacn/sessionguard/pkg/constants"
	"github.com/turtacn/sessionguard/pkg/errors"
	"github.com/turtacn/sessionguard/pkg/logger"
)

// CSRF outcomes reported through service.Metrics.
const (
	CSRFOutcomeAccepted      = "accepted"
	CSRFOutcomeReset         = "reset"
	CSRFOutcomeMissing       = "missing"
	CSRFOutcomeMismatch      = "mismatch"
	CSRFOutcomeMissingOrigin = "missing_origin"
)

// CsrfGuard implements the double-submit synchronizer token. A guarded
// request must echo the cookie value in a header of the same name; every
// request on a matching path is answered with a fresh token, so a token
// authorizes at most one request.
type CsrfGuard struct {
	tokenName     string
	ttlSeconds    int
	resetSeconds  int
	paths         *regexp.Regexp
	requireOrigin bool
	cookies       *CookieWriter
	metrics       service.Metrics
	logger        logger.Logger
	newToken      func() string
}

func NewCsrfGuard(cfg config.CSRFConfig, cookies *CookieWriter, metrics service.Metrics, log logger.Logger) (*CsrfGuard, error) {
	if cfg.TokenName == "" {
		return nil, errors.ErrInvalidConfig.WithDetail("csrf.token_name", "must not be empty")
	}
	paths, err := regexp.Compile(cfg.PathPattern)
	if err != nil {
		return nil, errors.ErrInvalidConfig.WithDetail("csrf.path_pattern", err.Error())
	}
	resetSeconds := cfg.ResetTTLSeconds
	if resetSeconds <= 0 {
		resetSeconds = int(constants.DefaultCSRFResetTTL.Seconds())
	}
	return &CsrfGuard{
		tokenName:     cfg.TokenName,
		ttlSeconds:    cfg.TTLSeconds,
		resetSeconds:  resetSeconds,
		paths:         paths,
		requireOrigin: cfg.RequireOrigin,
		cookies:       cookies,
		metrics:       metrics,
		logger:        log.WithComponent("CsrfGuard"),
		newToken:      uuid.NewString,
	}, nil
}

// Handler returns the guard as gin middleware.
func (g *CsrfGuard) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if guardedMethod(c.Request.Method) && !g.check(c) {
			return
		}
		if g.paths.MatchString(c.Request.URL.Path) {
			next := g.newToken()
			g.issue(c, next, g.ttlSeconds)
			c.Set(constants.GinKeyNextSyncToken, next)
		}
		c.Next()
	}
}

// check verifies the token pair and aborts the request when it fails.
func (g *CsrfGuard) check(c *gin.Context) bool {
	ctx := c.Request.Context()
	if g.requireOrigin && c.GetHeader(constants.HeaderOrigin) == "" && c.GetHeader(constants.HeaderReferer) == "" {
		g.logger.Warn(ctx, "origin and referer headers missing", logger.String("path", c.Request.URL.Path))
		g.metrics.RecordCSRFOutcome(CSRFOutcomeMissingOrigin)
		dto.SendError(c, errors.ErrInvalidRequest.WithDetail("origin", "Origin or Referer header required"))
		return false
	}

	cookieToken, _ := c.Cookie(g.tokenName)
	headerToken := c.GetHeader(g.tokenName)

	outcome := CompareSyncTokens(cookieToken, headerToken)
	g.metrics.RecordCSRFOutcome(outcome)
	switch outcome {
	case CSRFOutcomeAccepted:
		return true
	case CSRFOutcomeReset:
		g.logger.Info(ctx, "no sync tokens in request, issuing short-lived token")
		g.issue(c, g.newToken(), g.resetSeconds)
		c.AbortWithStatus(http.StatusResetContent)
	default:
		g.logger.Warn(ctx, "sync token check failed", logger.String("outcome", outcome))
		dto.SendError(c, errors.ErrInvalidRequest.WithDetail(g.tokenName, "request sync token missing or mismatched"))
	}
	return false
}

func (g *CsrfGuard) issue(c *gin.Context, token string, maxAge int) {
	g.cookies.Set(c, g.tokenName, token, maxAge)
	c.Header(g.tokenName, token)
}

// CompareSyncTokens classifies a cookie/header token pair.
func CompareSyncTokens(cookieToken, headerToken string) string {
	switch {
	case cookieToken == "" && headerToken == "":
		return CSRFOutcomeReset
	case cookieToken == "" || headerToken == "":
		return CSRFOutcomeMissing
	case subtle.ConstantTimeCompare([]byte(cookieToken), []byte(headerToken)) != 1:
		return CSRFOutcomeMismatch
	default:
		return CSRFOutcomeAccepted
	}
}

// NextSyncTokenFrom returns the token issued for this request, if any.
func NextSyncTokenFrom(c *gin.Context) string {
	return c.GetString(constants.GinKeyNextSyncToken)
}

func guardedMethod(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}
