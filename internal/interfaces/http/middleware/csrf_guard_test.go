package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/sessionguard/internal/config"
	"github.com/turtacn/sessionguard/internal/domain/models"
	"github.com/turtacn/sessionguard/pkg/logger"
)

type recordingMetrics struct {
	csrf       []string
	authStatus []models.AuthStatus
}

func (m *recordingMetrics) RecordAuthStatus(s models.AuthStatus)       { m.authStatus = append(m.authStatus, s) }
func (m *recordingMetrics) RecordStatusCache(string)                   {}
func (m *recordingMetrics) RecordBackendLookup(string, time.Duration) {}
func (m *recordingMetrics) RecordCSRFOutcome(o string)                 { m.csrf = append(m.csrf, o) }
func (m *recordingMetrics) RecordLoginThrottled()                      {}

func csrfConfig() config.CSRFConfig {
	return config.CSRFConfig{
		TokenName:       "rst",
		TTLSeconds:      3600,
		ResetTTLSeconds: 120,
		PathPattern:     `^/(auth|api)(/.*)?$`,
		RequireOrigin:   true,
	}
}

func newCSRFRouter(t *testing.T, cfg config.CSRFConfig, metrics *recordingMetrics) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	guard, err := NewCsrfGuard(cfg, NewCookieWriter(config.CookieConfig{Secure: true}), metrics, logger.NewNoopLogger())
	require.NoError(t, err)

	router := gin.New()
	router.Use(guard.Handler())
	handler := func(c *gin.Context) {
		c.String(http.StatusOK, NextSyncTokenFrom(c))
	}
	router.POST("/api/things", handler)
	router.GET("/api/things", handler)
	router.POST("/other", handler)
	return router
}

func csrfRequest(method, path, cookie, header string) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("Origin", "https://app.example.com")
	if cookie != "" {
		req.AddCookie(&http.Cookie{Name: "rst", Value: cookie})
	}
	if header != "" {
		req.Header.Set("rst", header)
	}
	return req
}

func findCookie(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestCompareSyncTokens(t *testing.T) {
	assert.Equal(t, CSRFOutcomeReset, CompareSyncTokens("", ""))
	assert.Equal(t, CSRFOutcomeMissing, CompareSyncTokens("a", ""))
	assert.Equal(t, CSRFOutcomeMissing, CompareSyncTokens("", "a"))
	assert.Equal(t, CSRFOutcomeMismatch, CompareSyncTokens("a", "b"))
	assert.Equal(t, CSRFOutcomeAccepted, CompareSyncTokens("a", "a"))
}

func TestNewCsrfGuard_RejectsBadConfig(t *testing.T) {
	cfg := csrfConfig()
	cfg.PathPattern = "("
	_, err := NewCsrfGuard(cfg, NewCookieWriter(config.CookieConfig{}), &recordingMetrics{}, logger.NewNoopLogger())
	assert.Error(t, err)

	cfg = csrfConfig()
	cfg.TokenName = ""
	_, err = NewCsrfGuard(cfg, NewCookieWriter(config.CookieConfig{}), &recordingMetrics{}, logger.NewNoopLogger())
	assert.Error(t, err)
}

func TestCsrfGuard_BothAbsentResets(t *testing.T) {
	metrics := &recordingMetrics{}
	router := newCSRFRouter(t, csrfConfig(), metrics)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, csrfRequest(http.MethodPost, "/api/things", "", ""))

	assert.Equal(t, http.StatusResetContent, w.Code)
	cookie := findCookie(w, "rst")
	require.NotNil(t, cookie)
	assert.NotEmpty(t, cookie.Value)
	assert.Equal(t, 120, cookie.MaxAge)
	assert.True(t, cookie.HttpOnly)
	assert.True(t, cookie.Secure)
	assert.Equal(t, "/", cookie.Path)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
	assert.Equal(t, cookie.Value, w.Header().Get("rst"))
	assert.Equal(t, []string{CSRFOutcomeReset}, metrics.csrf)
}

func TestCsrfGuard_RejectsPartialOrMismatchedTokens(t *testing.T) {
	tests := []struct {
		name    string
		cookie  string
		header  string
		outcome string
	}{
		{"cookie only", "tok", "", CSRFOutcomeMissing},
		{"header only", "", "tok", CSRFOutcomeMissing},
		{"mismatch", "tok", "other", CSRFOutcomeMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			metrics := &recordingMetrics{}
			router := newCSRFRouter(t, csrfConfig(), metrics)

			w := httptest.NewRecorder()
			router.ServeHTTP(w, csrfRequest(http.MethodPost, "/api/things", tt.cookie, tt.header))

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Nil(t, findCookie(w, "rst"))
			assert.Equal(t, []string{tt.outcome}, metrics.csrf)
		})
	}
}

func TestCsrfGuard_AcceptsAndRollsToken(t *testing.T) {
	router := newCSRFRouter(t, csrfConfig(), &recordingMetrics{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, csrfRequest(http.MethodPost, "/api/things", "first", "first"))

	require.Equal(t, http.StatusOK, w.Code)
	next := findCookie(w, "rst")
	require.NotNil(t, next)
	assert.NotEqual(t, "first", next.Value)
	assert.Equal(t, 3600, next.MaxAge)
	assert.Equal(t, next.Value, w.Header().Get("rst"))
	assert.Equal(t, next.Value, w.Body.String())
}

func TestCsrfGuard_ReplayOfRolledTokenIsRejected(t *testing.T) {
	router := newCSRFRouter(t, csrfConfig(), &recordingMetrics{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, csrfRequest(http.MethodPost, "/api/things", "first", "first"))
	require.Equal(t, http.StatusOK, w.Code)
	next := findCookie(w, "rst").Value

	// The browser now holds the rolled cookie; an attacker replays the old header.
	w = httptest.NewRecorder()
	router.ServeHTTP(w, csrfRequest(http.MethodPost, "/api/things", next, "first"))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, csrfRequest(http.MethodPost, "/api/things", next, next))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCsrfGuard_RequiresOriginOrReferer(t *testing.T) {
	metrics := &recordingMetrics{}
	router := newCSRFRouter(t, csrfConfig(), metrics)

	req := httptest.NewRequest(http.MethodPost, "/api/things", nil)
	req.AddCookie(&http.Cookie{Name: "rst", Value: "tok"})
	req.Header.Set("rst", "tok")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, []string{CSRFOutcomeMissingOrigin}, metrics.csrf)

	req = httptest.NewRequest(http.MethodPost, "/api/things", nil)
	req.AddCookie(&http.Cookie{Name: "rst", Value: "tok"})
	req.Header.Set("rst", "tok")
	req.Header.Set("Referer", "https://app.example.com/page")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	cfg := csrfConfig()
	cfg.RequireOrigin = false
	router = newCSRFRouter(t, cfg, &recordingMetrics{})
	req = httptest.NewRequest(http.MethodPost, "/api/things", nil)
	req.AddCookie(&http.Cookie{Name: "rst", Value: "tok"})
	req.Header.Set("rst", "tok")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCsrfGuard_SafeMethodsPassAndReceiveToken(t *testing.T) {
	metrics := &recordingMetrics{}
	router := newCSRFRouter(t, csrfConfig(), metrics)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/things", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotNil(t, findCookie(w, "rst"))
	assert.Empty(t, metrics.csrf)
}

func TestCsrfGuard_UnmatchedPathIsCheckedButNotRolled(t *testing.T) {
	router := newCSRFRouter(t, csrfConfig(), &recordingMetrics{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, csrfRequest(http.MethodPost, "/other", "tok", "tok"))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, findCookie(w, "rst"))
	assert.Empty(t, w.Body.String())

	w = httptest.NewRecorder()
	router.ServeHTTP(w, csrfRequest(http.MethodPost, "/other", "tok", "bad"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
