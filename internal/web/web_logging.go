package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RequestLogger logs every request through zap and records its latency
func (s *WebServer) RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()
		s.metrics.requestDuration.WithLabelValues(c.Request.Method, strconv.Itoa(status)).Observe(latency.Seconds())

		if path == "/ping" || path == "/metrics" {
			return
		}
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", c.Request.URL.RawQuery),
			zap.Int("status", status),
			zap.Duration("latency", latency),
			zap.String("ip", c.ClientIP()),
		}
		if status >= http.StatusInternalServerError {
			s.Logger.Warn("[WEB]: request", fields...)
			return
		}
		s.Logger.Info("[WEB]: request", fields...)
	}
}

// recoverPanic is the gin recovery handler: log the panic and answer 500
func (s *WebServer) recoverPanic(c *gin.Context, recovered any) {
	s.Logger.Error("[WEB]: panic recovered",
		zap.Any("panic", recovered),
		zap.String("path", c.Request.URL.Path),
		zap.Stack("stack"),
	)
	s.renderError(c, http.StatusInternalServerError, "Internal server error", "panic")
	c.Abort()
}
