package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/tastequest-backend/internal/platform/ctxutil"
	"github.com/yungbote/tastequest-backend/internal/platform/logger"
)

// RequestLogger logs one line per request. Health and metrics scrapes log at
// debug so they do not drown scan traffic.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		if log == nil {
			return
		}

		status := c.Writer.Status()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		fields := []interface{}{
			"method", strings.ToUpper(c.Request.Method),
			"path", path,
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
		}
		if td := ctxutil.GetTraceData(c.Request.Context()); td != nil {
			if td.TraceID != "" {
				fields = append(fields, "trace_id", td.TraceID)
			}
			if td.RequestID != "" {
				fields = append(fields, "request_id", td.RequestID)
			}
			if td.GuestID != "" {
				fields = append(fields, "guest_id", td.GuestID)
			}
		}
		if outcome := c.GetString(ScanOutcomeKey); outcome != "" {
			fields = append(fields, "outcome", outcome)
		}
		if len(c.Errors) > 0 {
			fields = append(fields, "errors", c.Errors.String())
		}

		switch {
		case status >= 500:
			log.Error("HTTP request", fields...)
		case status >= 400:
			log.Warn("HTTP request", fields...)
		case isHealthRoute(path):
			log.Debug("HTTP request", fields...)
		default:
			log.Info("HTTP request", fields...)
		}
	}
}

func isHealthRoute(path string) bool {
	switch path {
	case "/healthcheck", "/readyz", "/metrics":
		return true
	}
	return false
}
