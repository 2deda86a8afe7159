package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/yungbote/tastequest-backend/internal/platform/ctxutil"
)

const (
	headerTraceID   = "X-Trace-Id"
	headerRequestID = "X-Request-Id"
)

// AttachTraceContext gives every request a request id and a trace id and,
// on guest routes, the guest id. Handlers that learn the guest from a body
// call ctxutil.AttachGuest so the request log carries it too.
func AttachTraceContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		td := &ctxutil.TraceData{
			RequestID: requestID(c),
			TraceID:   traceID(c),
			GuestID:   strings.TrimSpace(c.Param("guest_id")),
		}
		span := trace.SpanFromContext(ctx)
		span.SetAttributes(attribute.String("http.request_id", td.RequestID))
		if td.GuestID != "" {
			span.SetAttributes(attribute.String("quest.guest_id", td.GuestID))
		}

		c.Request = c.Request.WithContext(ctxutil.WithTraceData(ctx, td))
		c.Writer.Header().Set(headerTraceID, td.TraceID)
		c.Writer.Header().Set(headerRequestID, td.RequestID)
		c.Next()
	}
}

func requestID(c *gin.Context) string {
	if id := strings.TrimSpace(c.GetHeader(headerRequestID)); id != "" {
		return id
	}
	return uuid.NewString()
}

// traceID prefers the caller's header, then the active span, then a fresh id.
func traceID(c *gin.Context) string {
	if id := strings.TrimSpace(c.GetHeader(headerTraceID)); id != "" {
		return id
	}
	if sc := trace.SpanContextFromContext(c.Request.Context()); sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return uuid.NewString()
}
