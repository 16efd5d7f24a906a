package router

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/turtacn/sessionguard/internal/application/dto"
	"github.com/turtacn/sessionguard/internal/application/service"
	"github.com/turtacn/sessionguard/internal/config"
	"github.com/turtacn/sessionguard/internal/infrastructure/monitoring"
	"github.com/turtacn/sessionguard/internal/interfaces/http/handlers"
	"github.com/turtacn/sessionguard/internal/interfaces/http/middleware"
	"github.com/turtacn/sessionguard/pkg/constants"
	"github.com/turtacn/sessionguard/pkg/errors"
	"github.com/turtacn/sessionguard/pkg/logger"
)

// Dependencies are the collaborators the HTTP surface is built from.
type Dependencies struct {
	Resolver middleware.Resolver
	Sessions service.SessionAppService
	Health   *handlers.HealthHandler
	Metrics  *monitoring.Metrics
	Tracer   *monitoring.Tracer
	Gatherer prometheus.Gatherer
}

// Router HTTP 路由器
type Router struct {
	engine       *gin.Engine
	config       *config.Config
	logger       logger.Logger
	deps         Dependencies
	csrfGuard    *middleware.CsrfGuard
	authHandler  *handlers.AuthHandler
	adminHandler *handlers.AdminHandler
	server       *http.Server
}

// NewRouter builds the engine and registers every route.
func NewRouter(cfg *config.Config, deps Dependencies, log logger.Logger) (*Router, error) {
	if deps.Resolver == nil || deps.Sessions == nil || deps.Health == nil || deps.Metrics == nil {
		return nil, errors.ErrInvalidConfig.WithDetail("router", "resolver, sessions, health handler and metrics are required")
	}
	if deps.Tracer == nil {
		deps.Tracer = monitoring.NewTracer()
	}
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}

	cookies := middleware.NewCookieWriter(cfg.Cookie)
	guard, err := middleware.NewCsrfGuard(cfg.CSRF, cookies, deps.Metrics, log)
	if err != nil {
		return nil, err
	}

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := &Router{
		engine:       gin.New(),
		config:       cfg,
		logger:       log.WithComponent("router"),
		deps:         deps,
		csrfGuard:    guard,
		authHandler:  handlers.NewAuthHandler(deps.Sessions, cookies, jwtCookieName(cfg)),
		adminHandler: handlers.NewAdminHandler(deps.Sessions),
	}
	r.setupRoutes()
	return r, nil
}

func jwtCookieName(cfg *config.Config) string {
	if cfg.Cookie.JWTName != "" {
		return cfg.Cookie.JWTName
	}
	return constants.DefaultJWTCookieName
}

// setupRoutes 设置路由
func (r *Router) setupRoutes() {
	// 全局中间件
	r.engine.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.Observability(r.deps.Tracer, r.deps.Metrics),
		middleware.AccessLog(r.logger),
	)

	if len(r.config.Server.AllowedOrigins) > 0 {
		r.engine.Use(cors.New(cors.Config{
			AllowOrigins:     r.config.Server.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", constants.HeaderRequestID, r.config.CSRF.TokenName},
			ExposeHeaders:    []string{constants.HeaderRequestID, constants.HeaderRetryAfter, r.config.CSRF.TokenName},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	// 健康检查路由（不需要认证）
	r.engine.GET("/health/live", r.deps.Health.LivenessCheck)
	r.engine.GET("/health/ready", r.deps.Health.ReadinessCheck)

	r.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(r.deps.Gatherer, promhttp.HandlerOpts{})))

	// Pprof 性能分析（仅在非生产环境）
	if r.config.Monitoring.PprofEnabled {
		pprof.Register(r.engine)
	}

	session := r.engine.Group("",
		middleware.ClientOrigin(r.logger),
		middleware.AuthStatus(r.deps.Resolver, jwtCookieName(r.config)),
		r.csrfGuard.Handler(),
	)
	{
		auth := session.Group("/auth")
		auth.POST("/login", r.authHandler.Login)
		auth.GET("/status", r.authHandler.Status)
		auth.POST("/logout", middleware.RequireValid(), r.authHandler.Logout)

		admin := session.Group("/admin", middleware.RequireValid(), middleware.RequireRole(constants.RoleAdmin))
		admin.POST("/principals/:id/invalidate", r.adminHandler.InvalidatePrincipal)
		admin.GET("/principals/:id/sessions", r.adminHandler.ActiveSessions)
	}

	// 404 处理
	r.engine.NoRoute(func(c *gin.Context) {
		dto.SendError(c, errors.ErrNotFound)
	})
}

// Start 启动 HTTP 服务器，阻塞直到服务器关闭
func (r *Router) Start() error {
	addr := fmt.Sprintf("%s:%d", r.config.Server.Host, r.config.Server.Port)
	r.server = &http.Server{
		Addr:           addr,
		Handler:        r.engine,
		ReadTimeout:    r.config.Server.ReadTimeout,
		WriteTimeout:   r.config.Server.WriteTimeout,
		IdleTimeout:    r.config.Server.IdleTimeout,
		MaxHeaderBytes: 1 << 20, // 1MB
	}

	r.logger.Info(context.Background(), "Starting HTTP server", logger.String("address", addr))

	if err := r.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop 停止 HTTP 服务器
func (r *Router) Stop(ctx context.Context) error {
	if r.server == nil {
		return nil
	}
	r.logger.Info(ctx, "Stopping HTTP server...")
	return r.server.Shutdown(ctx)
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
