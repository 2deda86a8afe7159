package aggregates

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"

	domainagg "github.com/yungbote/tastequest-backend/internal/domain/aggregates"
)

// RetryPolicy bounds how often a write that lost a race is re-run.
type RetryPolicy struct {
	MaxAttempts int
	MinBackoff  time.Duration
	MaxBackoff  time.Duration
	JitterFrac  float64
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 4,
		MinBackoff:  25 * time.Millisecond,
		MaxBackoff:  400 * time.Millisecond,
		JitterFrac:  0.2,
	}
}

// shouldRetry allows another attempt for lost races only: retryable store
// errors and version conflicts. A duplicate ledger insert is settled by the
// caller and never retried.
func shouldRetry(r RetryPolicy, attempts int, err error) bool {
	if err == nil || r.MaxAttempts <= 0 || attempts >= r.MaxAttempts {
		return false
	}
	if errors.Is(err, domainagg.ErrStampAlreadyCollected) {
		return false
	}
	switch domainagg.CodeOf(err) {
	case domainagg.CodeRetryable, domainagg.CodeConflict:
		return true
	default:
		return false
	}
}

func computeBackoff(r RetryPolicy, attempts int) time.Duration {
	minB := r.MinBackoff
	maxB := r.MaxBackoff
	j := r.JitterFrac
	if minB <= 0 {
		minB = 25 * time.Millisecond
	}
	if maxB <= 0 {
		maxB = 400 * time.Millisecond
	}
	if j <= 0 {
		j = 0.20
	}
	if attempts < 1 {
		attempts = 1
	}
	d := time.Duration(float64(minB) * math.Pow(2, float64(attempts-1)))
	if d > maxB {
		d = maxB
	}
	delta := float64(d) * j
	low := float64(d) - delta
	high := float64(d) + delta
	if low < 0 {
		low = 0
	}
	return time.Duration(low + rand.Float64()*(high-low))
}

// sleepCtx waits d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
