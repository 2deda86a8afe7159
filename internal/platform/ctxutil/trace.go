package ctxutil

import (
	"context"
	"strings"
)

type traceDataKey struct{}

// TraceData is the per-request correlation record. GuestID is filled once
// the request names a guest, either from the path or a bound scan body.
type TraceData struct {
	TraceID   string
	RequestID string
	GuestID   string
}

func WithTraceData(ctx context.Context, td *TraceData) context.Context {
	return context.WithValue(ctx, traceDataKey{}, td)
}

func GetTraceData(ctx context.Context) *TraceData {
	if ctx == nil {
		return nil
	}
	val := ctx.Value(traceDataKey{})
	if td, ok := val.(*TraceData); ok {
		return td
	}
	return nil
}

// RequestID returns the request id attached by the trace middleware, or "".
func RequestID(ctx context.Context) string {
	if td := GetTraceData(ctx); td != nil {
		return td.RequestID
	}
	return ""
}

// GuestID returns the guest the request acts for, or "".
func GuestID(ctx context.Context) string {
	if td := GetTraceData(ctx); td != nil {
		return td.GuestID
	}
	return ""
}

// AttachGuest records the guest on the request's trace data. It is a no-op
// without trace data or for a blank id, and never replaces a set guest.
func AttachGuest(ctx context.Context, guestID string) {
	td := GetTraceData(ctx)
	guestID = strings.TrimSpace(guestID)
	if td == nil || guestID == "" || td.GuestID != "" {
		return
	}
	td.GuestID = guestID
}
