package aggregates

import (
	"errors"
	"strings"
)

// ErrorCode says why a quest read or stamp write did not complete, in terms
// a caller can act on.
type ErrorCode string

const (
	// CodeValidation: the request itself is wrong; resubmitting it unchanged fails again.
	CodeValidation ErrorCode = "validation"
	// CodeNotFound: the guest has no progress yet.
	CodeNotFound ErrorCode = "not_found"
	// CodeConflict: another writer changed the guest row first.
	CodeConflict ErrorCode = "conflict"
	// CodeInvariantViolation: stored state disagrees with the ledger rules.
	CodeInvariantViolation ErrorCode = "invariant_violation"
	// CodeRetryable: contention outlasted the retry budget.
	CodeRetryable ErrorCode = "retryable"
	// CodeUnavailable: the store could not be reached.
	CodeUnavailable ErrorCode = "unavailable"
	CodeInternal    ErrorCode = "internal"
)

// Transient codes are safe to resubmit because a stamp is recorded at most
// once per (guest, zone).
func (c ErrorCode) Transient() bool {
	return c == CodeRetryable || c == CodeUnavailable
}

// Error carries a code and the operation that produced it. Cause stays
// reachable through errors.Is / errors.As.
type Error struct {
	Code    ErrorCode
	Op      string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	detail := e.Message
	if detail == "" && e.Cause != nil {
		detail = e.Cause.Error()
	}
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		if detail != "" {
			b.WriteString(": ")
		}
	}
	b.WriteString(detail)
	if b.Len() == 0 {
		return string(e.Code)
	}
	b.WriteString(" (")
	b.WriteString(string(e.Code))
	b.WriteString(")")
	return b.String()
}

func (e *Error) Unwrap() error { return e.Cause }

func NewError(code ErrorCode, op, message string, cause error) error {
	return &Error{
		Code:    code,
		Op:      strings.TrimSpace(op),
		Message: strings.TrimSpace(message),
		Cause:   cause,
	}
}

// Wrap tags err with code; the message is taken from err.
func Wrap(code ErrorCode, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Op: strings.TrimSpace(op), Cause: err}
}

// As returns the outermost *Error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

func CodeOf(err error) ErrorCode {
	if e, ok := As(err); ok {
		return e.Code
	}
	return ""
}

func IsCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

// IsTransient reports whether the caller may resubmit the same request.
func IsTransient(err error) bool {
	return CodeOf(err).Transient()
}
