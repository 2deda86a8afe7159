package testutil

import (
	"sync"
	"time"

	"github.com/yungbote/tastequest-backend/internal/data/aggregates"
)

// HooksRecorder captures stamp write signals. Safe for concurrent writers.
type HooksRecorder struct {
	mu sync.Mutex

	Attempts  []AttemptEvent
	Conflicts []string
	Retries   []string
	Settled   []SettledEvent
}

type AttemptEvent struct {
	Op       string
	Status   string
	Duration time.Duration
}

type SettledEvent struct {
	Op       string
	Outcome  string
	Attempts int
}

var _ aggregates.Hooks = (*HooksRecorder)(nil)

func (h *HooksRecorder) ObserveAttempt(op, status string, dur time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Attempts = append(h.Attempts, AttemptEvent{Op: op, Status: status, Duration: dur})
}

func (h *HooksRecorder) IncConflict(op string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Conflicts = append(h.Conflicts, op)
}

func (h *HooksRecorder) IncRetry(op string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Retries = append(h.Retries, op)
}

func (h *HooksRecorder) ObserveSettled(op, outcome string, attempts int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Settled = append(h.Settled, SettledEvent{Op: op, Outcome: outcome, Attempts: attempts})
}

// StatusCount returns how many attempts finished with status.
func (h *HooksRecorder) StatusCount(status string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, a := range h.Attempts {
		if a.Status == status {
			n++
		}
	}
	return n
}

func (h *HooksRecorder) RetryCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.Retries)
}

// LastSettled returns the most recent Collect outcome, or false if none.
func (h *HooksRecorder) LastSettled() (SettledEvent, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.Settled) == 0 {
		return SettledEvent{}, false
	}
	return h.Settled[len(h.Settled)-1], true
}
