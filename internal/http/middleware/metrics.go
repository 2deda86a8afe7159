package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yungbote/tastequest-backend/internal/observability"
)

// ScanOutcomeKey holds the quest result a handler reports for the request:
// recorded, duplicate, a rejection reason, valid or invalid.
const ScanOutcomeKey = "scan_outcome"

// SetScanOutcome labels the request's metric series with outcome.
func SetScanOutcome(c *gin.Context, outcome string) {
	c.Set(ScanOutcomeKey, outcome)
}

// Metrics instruments request counts and latency per route and scan outcome.
func Metrics(m *observability.Metrics) gin.HandlerFunc {
	if m == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		start := time.Now()
		done := m.TrackInflight()
		defer done()

		c.Next()

		m.ObserveAPI(
			c.Request.Method,
			c.FullPath(),
			strconv.Itoa(c.Writer.Status()),
			c.GetString(ScanOutcomeKey),
			time.Since(start),
		)
	}
}
