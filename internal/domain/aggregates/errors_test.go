package aggregates

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorText(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{NewError(CodeValidation, "quest.stamp.collect", "guest_id is required", nil), "quest.stamp.collect: guest_id is required (validation)"},
		{Wrap(CodeUnavailable, "quest.progress.get", errors.New("connection refused")), "quest.progress.get: connection refused (unavailable)"},
		{NewError(CodeConflict, "", "guest progress changed", nil), "guest progress changed (conflict)"},
		{&Error{Code: CodeInternal}, "internal"},
	}
	for _, tc := range cases {
		if got := tc.err.Error(); got != tc.want {
			t.Fatalf("got %q want %q", got, tc.want)
		}
	}
}

func TestCodeSurvivesWrapping(t *testing.T) {
	cause := errors.New("connection refused")
	err := fmt.Errorf("collect: %w", NewError(CodeUnavailable, "op", "store down", cause))
	if !IsCode(err, CodeUnavailable) {
		t.Fatalf("expected unavailable, got=%q", CodeOf(err))
	}
	if !errors.Is(err, cause) {
		t.Fatalf("cause should stay reachable")
	}
	if e, ok := As(err); !ok || e.Op != "op" {
		t.Fatalf("As: %+v ok=%v", e, ok)
	}
	if CodeOf(errors.New("plain")) != "" || IsCode(nil, "") {
		t.Fatalf("plain errors carry no code")
	}
	if Wrap(CodeInternal, "op", nil) != nil {
		t.Fatalf("wrapping nil stays nil")
	}
}

func TestTransientCodes(t *testing.T) {
	for code, want := range map[ErrorCode]bool{
		CodeRetryable:          true,
		CodeUnavailable:        true,
		CodeConflict:           false,
		CodeValidation:         false,
		CodeNotFound:           false,
		CodeInvariantViolation: false,
		CodeInternal:           false,
	} {
		if got := IsTransient(NewError(code, "op", "x", nil)); got != want {
			t.Fatalf("%s: transient=%v want %v", code, got, want)
		}
	}
}
