package logger

import (
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLoggerScrubsSensitiveFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := NewWithCore(core)

	log.Warn("scan rejected",
		"guest_id", "guest-123",
		"device_proof_id", "abc",
		"guest_token", "tok",
		"zone", "ferment",
		"raw", "eyJhbGciOiJIUzI1NiJ9.eyJ6b25lIjoiZmVybWVudCJ9.c2ln",
	)

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("entries: want=1 got=%d", len(entries))
	}
	fields := entries[0].ContextMap()

	gid, _ := fields["guest_id"].(string)
	if !strings.HasPrefix(gid, "hash:") || gid == "guest-123" {
		t.Fatalf("guest_id should be hashed, got=%q", gid)
	}
	if gid != HashGuestID("guest-123") {
		t.Fatalf("hash mismatch: log=%q helper=%q", gid, HashGuestID("guest-123"))
	}
	if fields["device_proof_id"] != "[REDACTED]" {
		t.Fatalf("device_proof_id should be redacted, got=%v", fields["device_proof_id"])
	}
	if fields["guest_token"] != "[REDACTED]" {
		t.Fatalf("guest_token should be redacted, got=%v", fields["guest_token"])
	}
	if fields["zone"] != "ferment" {
		t.Fatalf("zone should pass through, got=%v", fields["zone"])
	}
	if fields["raw"] != "[REDACTED]" {
		t.Fatalf("jwt-shaped value should be redacted, got=%v", fields["raw"])
	}
}

func TestWithCarriesScrubbedFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := NewWithCore(core).With("service", "QuestService", "guest_id", "g1")
	log.Info("hello")

	fields := logs.All()[0].ContextMap()
	if fields["service"] != "QuestService" {
		t.Fatalf("service: got=%v", fields["service"])
	}
	if fields["guest_id"] == "g1" {
		t.Fatalf("guest_id leaked through With")
	}
}

func TestNewModes(t *testing.T) {
	for _, mode := range []string{"production", "test", "development", ""} {
		l, err := New(mode)
		if err != nil {
			t.Fatalf("New(%q): %v", mode, err)
		}
		if l.SugaredLogger == nil {
			t.Fatalf("New(%q): nil sugared logger", mode)
		}
	}
}
