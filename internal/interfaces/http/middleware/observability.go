package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/sessionguard/internal/infrastructure/monitoring"
	"github.com/turtacn/sessionguard/pkg/constants"
	"github.com/turtacn/sessionguard/pkg/logger"
)

// Observability starts a server span for every request and records the
// request count, latency and in-flight gauge. Metrics are labelled by the
// route template so that path parameters do not explode cardinality.
func Observability(tracer *monitoring.Tracer, metrics *monitoring.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = "not_found"
		}
		method := c.Request.Method

		ctx, span := tracer.StartRequestSpan(c.Request, path)
		c.Request = c.Request.WithContext(ctx)

		metrics.ActiveRequestsInc(path, method)
		defer metrics.ActiveRequestsDec(path, method)

		c.Next()

		status := c.Writer.Status()
		metrics.ObserveRequest(path, method, status, time.Since(start))
		monitoring.EndRequestSpan(span, status)
	}
}

// AccessLog writes one line per request once the handler chain has run.
func AccessLog(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []logger.Field{
			logger.String("method", c.Request.Method),
			logger.String("path", c.Request.URL.Path),
			logger.Int("status", c.Writer.Status()),
			logger.Duration("latency", time.Since(start)),
			logger.String("client_origin", c.GetString(constants.GinKeyClientOrigin)),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, logger.String("errors", c.Errors.String()))
		}
		log.Info(c.Request.Context(), "request processed", fields...)
	}
}
