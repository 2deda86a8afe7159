package aggregates

import (
	"strings"
	"time"

	"github.com/yungbote/tastequest-backend/internal/observability"
)

// Settled outcomes for one Collect call.
const (
	OutcomeRecorded  = "recorded"
	OutcomeDuplicate = "duplicate"
	OutcomeExhausted = "exhausted"
	OutcomeFailed    = "failed"
)

// Hooks observes stamp writes. ObserveAttempt fires for every transaction
// attempt; ObserveSettled fires once per Collect with the attempts it took.
type Hooks interface {
	ObserveAttempt(op, status string, dur time.Duration)
	IncConflict(op string)
	IncRetry(op string)
	ObserveSettled(op, outcome string, attempts int)
}

// NoopHooks drops every signal. Embed it to observe only some of them.
type NoopHooks struct{}

func (NoopHooks) ObserveAttempt(string, string, time.Duration) {}
func (NoopHooks) IncConflict(string)                           {}
func (NoopHooks) IncRetry(string)                              {}
func (NoopHooks) ObserveSettled(string, string, int)           {}

// NewObservabilityHooks feeds the stamp write series of m.
func NewObservabilityHooks(m *observability.Metrics) Hooks {
	if m == nil {
		return NoopHooks{}
	}
	return metricHooks{m: m}
}

type metricHooks struct {
	m *observability.Metrics
}

func (h metricHooks) ObserveAttempt(op, status string, dur time.Duration) {
	h.m.ObserveStampAttempt(opLabel(op), status, dur)
}

func (h metricHooks) IncConflict(op string) { h.m.IncStampConflict(opLabel(op)) }

func (h metricHooks) IncRetry(op string) { h.m.IncStampRetry(opLabel(op)) }

func (h metricHooks) ObserveSettled(op, outcome string, attempts int) {
	h.m.ObserveStampSettled(opLabel(op), outcome, attempts)
}

func opLabel(op string) string {
	if op = strings.TrimSpace(op); op == "" {
		return "aggregate.write"
	}
	return op
}
