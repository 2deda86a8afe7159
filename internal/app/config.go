package app

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/yungbote/tastequest-backend/internal/data/aggregates"
	"github.com/yungbote/tastequest-backend/internal/data/db"
	"github.com/yungbote/tastequest-backend/internal/modules/quest/scan"
	"github.com/yungbote/tastequest-backend/internal/observability"
	"github.com/yungbote/tastequest-backend/internal/platform/envutil"
	"github.com/yungbote/tastequest-backend/internal/platform/logger"
)

type Config struct {
	Port    string
	LogMode string

	DBDriver   string
	SQLitePath string
	Postgres   db.PostgresConfig

	QuestConfigPath string
	VenueTimezone   *time.Location

	DeviceProofSecret string
	GuestTokenSecret  string
	ScanPolicy        scan.Policy

	Retry        aggregates.RetryPolicy
	WriteTimeout time.Duration

	AllowedOrigins []string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RewardChannel string

	MetricsEnabled bool
	MetricsAddr    string
	Otel           observability.OtelConfig
}

// LoadConfig reads the environment. Unset keys fall back to defaults and are
// logged at debug; secrets are never logged.
func LoadConfig(log *logger.Logger) (Config, error) {
	e := envReader{log: log}
	cfg := Config{
		Port:    e.String("PORT", "8080"),
		LogMode: e.String("LOG_MODE", "development"),

		DBDriver:   strings.ToLower(e.String("DB_DRIVER", "sqlite")),
		SQLitePath: e.String("SQLITE_PATH", "./quest.db"),
		Postgres: db.PostgresConfig{
			DSN:             e.Secret("DATABASE_URL"),
			Host:            e.String("POSTGRES_HOST", "localhost"),
			Port:            e.String("POSTGRES_PORT", "5432"),
			User:            e.String("POSTGRES_USER", "postgres"),
			Password:        e.Secret("POSTGRES_PASSWORD"),
			Name:            e.String("POSTGRES_NAME", "tastequest"),
			SSLMode:         e.String("POSTGRES_SSLMODE", "disable"),
			MaxOpenConns:    e.Int("POSTGRES_MAX_OPEN_CONNS", 20),
			MaxIdleConns:    e.Int("POSTGRES_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: e.Duration("POSTGRES_CONN_MAX_LIFETIME", 30*time.Minute, time.Second),
		},

		QuestConfigPath: e.String("QUEST_CONFIG_PATH", ""),

		DeviceProofSecret: e.Secret("DEVICE_PROOF_SECRET"),
		GuestTokenSecret:  e.Secret("GUEST_TOKEN_SECRET"),

		Retry: aggregates.RetryPolicy{
			MaxAttempts: e.Int("STAMP_RETRY_MAX_ATTEMPTS", 4),
			MinBackoff:  e.Duration("STAMP_RETRY_MIN_BACKOFF_MS", 25*time.Millisecond, time.Millisecond),
			MaxBackoff:  e.Duration("STAMP_RETRY_MAX_BACKOFF_MS", 400*time.Millisecond, time.Millisecond),
			JitterFrac:  aggregates.DefaultRetryPolicy().JitterFrac,
		},
		WriteTimeout: e.Duration("STAMP_WRITE_TIMEOUT", 5*time.Second, time.Second),

		AllowedOrigins: envutil.List("CORS_ALLOWED_ORIGINS", nil),

		RedisAddr:     e.String("REDIS_ADDR", ""),
		RedisPassword: e.Secret("REDIS_PASSWORD"),
		RedisDB:       e.Int("REDIS_DB", 0),
		RewardChannel: e.String("REDIS_REWARD_CHANNEL", "quest.rewards"),

		MetricsEnabled: e.Bool("METRICS_ENABLED", false),
		MetricsAddr:    e.String("METRICS_ADDR", ""),
		Otel: observability.OtelConfig{
			Enabled:     e.Bool("OTEL_ENABLED", false),
			ServiceName: e.String("OTEL_SERVICE_NAME", "tastequest"),
			Environment: e.String("APP_ENV", "development"),
			Version:     e.String("APP_VERSION", ""),
			Endpoint:    e.String("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			Headers:     observability.ParseOtelHeaders(envutil.String("OTEL_EXPORTER_OTLP_HEADERS", "")),
			Insecure:    e.Bool("OTEL_EXPORTER_OTLP_INSECURE", false),
			SampleRatio: e.Float("OTEL_SAMPLER_RATIO", 1.0),
		},
	}

	switch cfg.DBDriver {
	case "sqlite", "postgres":
	default:
		return Config{}, fmt.Errorf("DB_DRIVER must be sqlite or postgres, got %q", cfg.DBDriver)
	}

	tzName := e.String("VENUE_TIMEZONE", "Europe/London")
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		return Config{}, fmt.Errorf("VENUE_TIMEZONE %q: %w", tzName, err)
	}
	cfg.VenueTimezone = loc

	mode, ok := scan.ParseGuestTokenMode(e.String("GUEST_TOKEN_MODE", string(scan.GuestTokenOptional)))
	if !ok {
		return Config{}, fmt.Errorf("GUEST_TOKEN_MODE must be off, optional or required")
	}
	cfg.ScanPolicy = scan.Policy{
		GuestTokenMode:  mode,
		RequireNFCProof: e.Bool("REQUIRE_NFC_PROOF", false),
	}
	if mode == scan.GuestTokenRequired && cfg.GuestTokenSecret == "" {
		return Config{}, fmt.Errorf("GUEST_TOKEN_MODE=required needs GUEST_TOKEN_SECRET")
	}
	if cfg.ScanPolicy.RequireNFCProof && cfg.DeviceProofSecret == "" {
		return Config{}, fmt.Errorf("REQUIRE_NFC_PROOF needs DEVICE_PROOF_SECRET")
	}

	if cfg.Retry.MaxAttempts < 1 {
		cfg.Retry.MaxAttempts = 1
	}
	if cfg.Retry.MaxBackoff < cfg.Retry.MinBackoff {
		cfg.Retry.MaxBackoff = cfg.Retry.MinBackoff
	}
	return cfg, nil
}

type envReader struct {
	log *logger.Logger
}

func (e envReader) fallback(name string, def any) {
	if e.log != nil && !envutil.IsSet(name) {
		e.log.Debug("env not set, using default", "key", name, "default", def)
	}
}

func (e envReader) String(name, def string) string {
	e.fallback(name, def)
	return envutil.String(name, def)
}

func (e envReader) Int(name string, def int) int {
	e.fallback(name, def)
	return envutil.Int(name, def)
}

func (e envReader) Bool(name string, def bool) bool {
	e.fallback(name, def)
	return envutil.Bool(name, def)
}

func (e envReader) Duration(name string, def, unit time.Duration) time.Duration {
	e.fallback(name, def.String())
	return envutil.Duration(name, def, unit)
}

func (e envReader) Float(name string, def float64) float64 {
	e.fallback(name, def)
	raw := envutil.String(name, "")
	if raw == "" {
		return def
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		if e.log != nil {
			e.log.Warn("env value is not a number, using default", "key", name, "default", def)
		}
		return def
	}
	return f
}

// Secret reads a value without ever logging it.
func (e envReader) Secret(name string) string {
	if e.log != nil && !envutil.IsSet(name) {
		e.log.Debug("env not set", "key", name)
	}
	return envutil.String(name, "")
}
