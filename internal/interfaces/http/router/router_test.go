package router

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	appservice "github.com/turtacn/sessionguard/internal/application/service"
	"github.com/turtacn/sessionguard/internal/config"
	"github.com/turtacn/sessionguard/internal/domain/service"
	"github.com/turtacn/sessionguard/internal/infrastructure/crypto"
	"github.com/turtacn/sessionguard/internal/infrastructure/monitoring"
	"github.com/turtacn/sessionguard/internal/infrastructure/oracle"
	"github.com/turtacn/sessionguard/internal/infrastructure/persistence/memory"
	"github.com/turtacn/sessionguard/internal/interfaces/http/handlers"
	"github.com/turtacn/sessionguard/pkg/logger"
)

var adminID = uuid.MustParse("0b6f0f5c-8e55-4f0f-a3a4-5d3c2a9e7b11")

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Host: "127.0.0.1", Port: 0, Environment: "test"},
		JWT:    config.JWTConfig{TTLSeconds: 3600, Issuer: "sessionguard-test"},
		StatusCache: config.StatusCacheConfig{
			TTLMinutes:    5,
			MaxSize:       50,
			LookupTimeout: time.Second,
		},
		CSRF: config.CSRFConfig{
			TokenName:       "rst",
			TTLSeconds:      3600,
			ResetTTLSeconds: 120,
			PathPattern:     `^/(auth|admin)(/.*)?$`,
			RequireOrigin:   true,
		},
		Cookie: config.CookieConfig{JWTName: "jwt"},
	}
}

func newTestRouter(t *testing.T) *Router {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := testConfig()
	log := logger.NewNoopLogger()

	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	require.NoError(t, err)
	backend, err := memory.NewBackend([]config.PrincipalConfig{
		{ID: adminID.String(), Username: "root", PasswordHash: string(hash), Roles: "admin", Active: true},
	}, log)
	require.NoError(t, err)

	secret, err := crypto.GenerateSharedSecret()
	require.NoError(t, err)
	codec, err := crypto.NewJWETokenCodec(secret)
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	metrics := monitoring.NewMetrics(reg)
	statusOracle, err := oracle.NewStatusOracle(backend, cfg.StatusCache, metrics, log)
	require.NoError(t, err)
	resolver, err := service.NewAuthResolver(codec, service.NewClaimsValidator(cfg.JWT.Issuer, nil), statusOracle, metrics, log)
	require.NoError(t, err)

	sessions := appservice.NewSessionAppService(backend, codec, statusOracle, nil, nil, metrics, cfg.JWT, log)
	health := handlers.NewHealthHandler(map[string]handlers.Pinger{"backend": backend}, log)

	r, err := NewRouter(cfg, Dependencies{
		Resolver: resolver,
		Sessions: sessions,
		Health:   health,
		Metrics:  metrics,
		Gatherer: reg,
	}, log)
	require.NoError(t, err)
	return r
}

// browser keeps cookies between requests and echoes the sync token the way
// the client script does.
type browser struct {
	t       *testing.T
	engine  http.Handler
	cookies map[string]string
}

func newBrowser(t *testing.T, engine http.Handler) *browser {
	return &browser{t: t, engine: engine, cookies: map[string]string{}}
}

func (b *browser) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	b.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(b.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Origin", "https://app.example.com")
	for name, value := range b.cookies {
		req.AddCookie(&http.Cookie{Name: name, Value: value})
	}
	if rst, ok := b.cookies["rst"]; ok {
		req.Header.Set("rst", rst)
	}

	w := httptest.NewRecorder()
	b.engine.ServeHTTP(w, req)
	for _, c := range w.Result().Cookies() {
		if c.MaxAge < 0 {
			delete(b.cookies, c.Name)
		} else {
			b.cookies[c.Name] = c.Value
		}
	}
	return w
}

func authStatus(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp struct {
		Data struct {
			Status string `json:"status"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Data.Status
}

func TestRouter_SessionLifecycle(t *testing.T) {
	r := newTestRouter(t)
	b := newBrowser(t, r.Engine())
	creds := map[string]string{"username": "root", "password": "hunter2"}

	w := b.do(http.MethodGet, "/auth/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "NOT_PRESENT_IN_REQUEST", authStatus(t, w))

	// First contact: the sync token is only issued by the GET above, so drop
	// it to exercise the reset path.
	delete(b.cookies, "rst")
	w = b.do(http.MethodPost, "/auth/login", creds)
	require.Equal(t, http.StatusResetContent, w.Code)
	require.NotEmpty(t, b.cookies["rst"])

	w = b.do(http.MethodPost, "/auth/login", creds)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	token := b.cookies["jwt"]
	require.NotEmpty(t, token)

	w = b.do(http.MethodGet, "/auth/status", nil)
	assert.Equal(t, "VALID", authStatus(t, w))

	w = b.do(http.MethodGet, "/admin/principals/"+adminID.String()+"/sessions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"active_sessions":1`)

	w = b.do(http.MethodPost, "/auth/logout", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Empty(t, b.cookies["jwt"])

	// A captured copy of the old token must not work once logged out.
	b.cookies["jwt"] = token
	w = b.do(http.MethodGet, "/auth/status", nil)
	assert.Equal(t, "NOT_PRESENT_BACKEND", authStatus(t, w))

	w = b.do(http.MethodPost, "/auth/logout", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRouter_TokenFromAnotherOriginIsRejected(t *testing.T) {
	r := newTestRouter(t)
	b := newBrowser(t, r.Engine())
	b.do(http.MethodGet, "/auth/status", nil)
	w := b.do(http.MethodPost, "/auth/login", map[string]string{"username": "root", "password": "hunter2"})
	require.Equal(t, http.StatusOK, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/auth/status", nil)
	req.Header.Set("X-Forwarded-For", "198.51.100.9")
	req.AddCookie(&http.Cookie{Name: "jwt", Value: b.cookies["jwt"]})
	w = httptest.NewRecorder()
	r.Engine().ServeHTTP(w, req)
	assert.Equal(t, "BAD_CLAIMS", authStatus(t, w))
}

func TestRouter_BadCredentials(t *testing.T) {
	r := newTestRouter(t)
	b := newBrowser(t, r.Engine())
	b.do(http.MethodGet, "/auth/status", nil)

	w := b.do(http.MethodPost, "/auth/login", map[string]string{"username": "root", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, b.cookies["jwt"])
}

func TestRouter_Infrastructure(t *testing.T) {
	r := newTestRouter(t)

	for path, want := range map[string]int{
		"/health/live":  http.StatusOK,
		"/health/ready": http.StatusOK,
		"/metrics":      http.StatusOK,
		"/nope":         http.StatusNotFound,
	} {
		w := httptest.NewRecorder()
		r.Engine().ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, want, w.Code, path)
	}
}

func TestNewRouter_RequiresDependencies(t *testing.T) {
	_, err := NewRouter(testConfig(), Dependencies{}, logger.NewNoopLogger())
	assert.Error(t, err)
}
