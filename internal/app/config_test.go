package app

import (
	"testing"
	"time"

	"github.com/yungbote/tastequest-backend/internal/modules/quest/scan"
	"github.com/yungbote/tastequest-backend/internal/platform/logger"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, k := range []string{"DB_DRIVER", "GUEST_TOKEN_MODE", "REQUIRE_NFC_PROOF", "VENUE_TIMEZONE", "STAMP_RETRY_MAX_ATTEMPTS", "STAMP_WRITE_TIMEOUT", "OTEL_SAMPLER_RATIO"} {
		t.Setenv(k, "")
	}
	cfg, err := LoadConfig(nil)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.DBDriver != "sqlite" || cfg.Port == "" {
		t.Fatalf("cfg=%+v", cfg)
	}
	if cfg.ScanPolicy.GuestTokenMode != scan.GuestTokenOptional || cfg.ScanPolicy.RequireNFCProof {
		t.Fatalf("policy=%+v", cfg.ScanPolicy)
	}
	if cfg.Retry.MaxAttempts != 4 || cfg.Retry.MinBackoff != 25*time.Millisecond || cfg.Retry.MaxBackoff != 400*time.Millisecond {
		t.Fatalf("retry=%+v", cfg.Retry)
	}
	if cfg.WriteTimeout != 5*time.Second || cfg.Otel.SampleRatio != 1 {
		t.Fatalf("timeout=%v ratio=%v", cfg.WriteTimeout, cfg.Otel.SampleRatio)
	}
	if cfg.VenueTimezone == nil || cfg.VenueTimezone.String() != "Europe/London" {
		t.Fatalf("tz=%v", cfg.VenueTimezone)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "Postgres")
	t.Setenv("POSTGRES_PORT", "6543")
	t.Setenv("STAMP_RETRY_MAX_ATTEMPTS", "7")
	t.Setenv("STAMP_RETRY_MIN_BACKOFF_MS", "50")
	t.Setenv("STAMP_RETRY_MAX_BACKOFF_MS", "10")
	t.Setenv("STAMP_WRITE_TIMEOUT", "750ms")
	t.Setenv("VENUE_TIMEZONE", "America/New_York")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := LoadConfig(nil)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.DBDriver != "postgres" || cfg.Postgres.Port != "6543" {
		t.Fatalf("db=%s port=%s", cfg.DBDriver, cfg.Postgres.Port)
	}
	if cfg.Retry.MaxAttempts != 7 || cfg.Retry.MinBackoff != 50*time.Millisecond || cfg.Retry.MaxBackoff != 50*time.Millisecond {
		t.Fatalf("retry=%+v", cfg.Retry)
	}
	if cfg.WriteTimeout != 750*time.Millisecond || len(cfg.AllowedOrigins) != 2 {
		t.Fatalf("timeout=%v origins=%v", cfg.WriteTimeout, cfg.AllowedOrigins)
	}
}

func TestLoadConfigRejectsInconsistentPolicy(t *testing.T) {
	cases := []map[string]string{
		{"DB_DRIVER": "mysql"},
		{"GUEST_TOKEN_MODE": "sometimes"},
		{"GUEST_TOKEN_MODE": "required", "GUEST_TOKEN_SECRET": ""},
		{"REQUIRE_NFC_PROOF": "true", "DEVICE_PROOF_SECRET": ""},
		{"VENUE_TIMEZONE": "Mars/Olympus"},
	}
	for _, env := range cases {
		t.Run("", func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			if _, err := LoadConfig(nil); err == nil {
				t.Fatalf("expected error for %v", env)
			}
		})
	}
}

func TestNewWithConfigServesOnSQLite(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("SQLITE_PATH", t.TempDir()+"/quest.db")
	t.Setenv("REDIS_ADDR", "")
	cfg, err := LoadConfig(nil)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	a, err := NewWithConfig(t.Context(), testLogger(t), cfg)
	if err != nil {
		t.Fatalf("NewWithConfig: %v", err)
	}
	t.Cleanup(a.Close)
	if a.Services.Zones.Count() != 8 || a.Router == nil {
		t.Fatalf("app not wired: zones=%d", a.Services.Zones.Count())
	}
	if err := a.Store.Ping(t.Context()); err != nil {
		t.Fatalf("store ping: %v", err)
	}
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return log
}
