package observability

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/yungbote/tastequest-backend/internal/platform/logger"
)

// Metrics holds every series the service exports. A nil *Metrics is valid
// and records nothing, so callers never branch on whether metrics are on.
type Metrics struct {
	apiRequests *family
	apiLatency  *histogram
	apiInflight *family

	stampAttempts  *family
	stampLatency   *histogram
	stampConflicts *family
	stampRetries   *family
	stampSettled   *histogram

	scans           *family
	rewardsUnlocked *family
	notifications   *family
	securityEvents  *family

	storeStats *family
	redisUp    *family
	redisPing  *family

	scrapeInterval time.Duration
}

var (
	initOnce sync.Once
	instance *Metrics
)

func Current() *Metrics {
	return instance
}

// Init builds the process-wide registry once. It returns nil when disabled.
func Init(log *logger.Logger, enabled bool, scrapeInterval time.Duration) *Metrics {
	if !enabled {
		return nil
	}
	initOnce.Do(func() {
		instance = New(scrapeInterval)
		if log != nil {
			log.Info("Observability metrics enabled")
		}
	})
	return instance
}

// New returns an unregistered Metrics, used directly by tests.
func New(scrapeInterval time.Duration) *Metrics {
	if scrapeInterval <= 0 {
		scrapeInterval = 10 * time.Second
	}
	latency := []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5}
	return &Metrics{
		apiRequests: newCounter("tq_api_requests_total", "API requests by method, route, status and quest outcome.", "method", "route", "status", "outcome"),
		apiLatency:  newHistogram("tq_api_request_duration_seconds", "API request latency in seconds.", latency, "method", "route"),
		apiInflight: newGauge("tq_api_inflight_requests", "In-flight API requests."),

		stampAttempts:  newCounter("tq_stamp_write_attempts_total", "Stamp write transaction attempts by status.", "operation", "status"),
		stampLatency:   newHistogram("tq_stamp_write_attempt_duration_seconds", "Stamp write transaction duration in seconds.", latency, "operation"),
		stampConflicts: newCounter("tq_stamp_write_conflicts_total", "Stamp write attempts that lost a race for the guest row.", "operation"),
		stampRetries:   newCounter("tq_stamp_write_retries_total", "Stamp write attempts that failed with a retryable error.", "operation"),
		stampSettled:   newHistogram("tq_stamp_writes_settled_attempts", "Attempts needed per stamp write by final outcome.", []float64{1, 2, 3, 4, 6, 8}, "operation", "outcome"),

		scans:           newCounter("tq_scans_total", "Zone scans by source, zone and outcome.", "source", "zone", "outcome"),
		rewardsUnlocked: newCounter("tq_rewards_unlocked_total", "Rewards unlocked by reward id.", "reward_id"),
		notifications:   newCounter("tq_reward_notifications_total", "Reward unlock notifications by status.", "status"),
		securityEvents:  newCounter("tq_security_events_total", "Security-related events by type.", "event"),

		storeStats: newGauge("tq_store_stats", "Database connection pool stats.", "metric"),
		redisUp:    newGauge("tq_redis_up", "Redis connectivity (1=up, 0=down)."),
		redisPing:  newGauge("tq_redis_ping_seconds", "Redis ping latency in seconds."),

		scrapeInterval: scrapeInterval,
	}
}

func (m *Metrics) StartServer(ctx context.Context, log *logger.Logger, addr string) {
	if m == nil {
		return
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           http.HandlerFunc(m.WriteHTTP),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = srv.Shutdown(shutdownCtx)
		cancel()
	}()
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if log != nil {
				log.Error("metrics server failed", "error", err, "addr", addr)
			}
		}
	}()
}

func (m *Metrics) WriteHTTP(w http.ResponseWriter, r *http.Request) {
	if m == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_ = m.WritePrometheus(w)
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	ew := &expoWriter{w: w}
	m.apiRequests.writeTo(ew)
	m.apiLatency.writeTo(ew)
	m.apiInflight.writeTo(ew)
	m.stampAttempts.writeTo(ew)
	m.stampLatency.writeTo(ew)
	m.stampConflicts.writeTo(ew)
	m.stampRetries.writeTo(ew)
	m.stampSettled.writeTo(ew)
	m.scans.writeTo(ew)
	m.rewardsUnlocked.writeTo(ew)
	m.notifications.writeTo(ew)
	m.securityEvents.writeTo(ew)
	m.storeStats.writeTo(ew)
	m.redisUp.writeTo(ew)
	m.redisPing.writeTo(ew)
	return ew.err
}

// ObserveAPI records one finished request. outcome is the quest-level result
// the handler reported, or "" for routes that report none.
func (m *Metrics) ObserveAPI(method, route, status, outcome string, dur time.Duration) {
	if m == nil {
		return
	}
	method = orUnknown(method)
	route = orUnknown(route)
	m.apiRequests.inc(method, route, orUnknown(status), outcome)
	m.apiLatency.observe(dur.Seconds(), method, route)
}

// TrackInflight counts a request as in flight until the returned func runs.
func (m *Metrics) TrackInflight() func() {
	if m == nil {
		return func() {}
	}
	m.apiInflight.add(1)
	return func() { m.apiInflight.add(-1) }
}

func (m *Metrics) ObserveStampAttempt(op, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.stampAttempts.inc(op, orUnknown(status))
	m.stampLatency.observe(dur.Seconds(), op)
}

func (m *Metrics) IncStampConflict(op string) {
	if m == nil {
		return
	}
	m.stampConflicts.inc(op)
}

func (m *Metrics) IncStampRetry(op string) {
	if m == nil {
		return
	}
	m.stampRetries.inc(op)
}

// ObserveStampSettled records how many attempts one stamp write took and how
// it ended: recorded, duplicate, exhausted or failed.
func (m *Metrics) ObserveStampSettled(op, outcome string, attempts int) {
	if m == nil {
		return
	}
	m.stampSettled.observe(float64(attempts), op, orUnknown(outcome))
}

// ObserveScan counts one scan outcome: recorded, duplicate, rejected_*, error.
// zone must be a registered zone name or "unknown".
func (m *Metrics) ObserveScan(source, zone, outcome string) {
	if m == nil {
		return
	}
	m.scans.inc(orUnknown(source), orUnknown(zone), outcome)
}

func (m *Metrics) IncRewardUnlocked(rewardID string) {
	if m == nil {
		return
	}
	m.rewardsUnlocked.inc(rewardID)
}

func (m *Metrics) IncRewardNotification(status string) {
	if m == nil {
		return
	}
	m.notifications.inc(status)
}

func (m *Metrics) IncSecurityEvent(event string) {
	if m == nil {
		return
	}
	m.securityEvents.inc(orUnknown(event))
}

// StartStoreCollector samples the SQL connection pool on every scrape interval.
func (m *Metrics) StartStoreCollector(ctx context.Context, log *logger.Logger, db *gorm.DB) {
	if m == nil || db == nil {
		return
	}
	go m.every(ctx, func() {
		sqlDB, err := db.DB()
		if err != nil {
			if log != nil {
				log.Warn("metrics: store stats unavailable", "error", err)
			}
			return
		}
		stats := sqlDB.Stats()
		m.storeStats.set(float64(stats.OpenConnections), "open_connections")
		m.storeStats.set(float64(stats.InUse), "in_use")
		m.storeStats.set(float64(stats.Idle), "idle")
		m.storeStats.set(float64(stats.WaitCount), "wait_count")
		m.storeStats.set(stats.WaitDuration.Seconds(), "wait_duration_seconds")
		m.storeStats.set(float64(stats.MaxOpenConnections), "max_open_connections")
	})
}

// StartRedisCollector pings the notification bus on every scrape interval.
func (m *Metrics) StartRedisCollector(ctx context.Context, log *logger.Logger, rdb redis.UniversalClient) {
	if m == nil || rdb == nil {
		return
	}
	go m.every(ctx, func() {
		start := time.Now()
		if err := rdb.Ping(ctx).Err(); err != nil {
			m.redisUp.set(0)
			if log != nil {
				log.Warn("metrics: redis ping failed", "error", err)
			}
			return
		}
		m.redisUp.set(1)
		m.redisPing.set(time.Since(start).Seconds())
	})
}

func (m *Metrics) every(ctx context.Context, sample func()) {
	ticker := time.NewTicker(m.scrapeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sample()
		}
	}
}

func orUnknown(v string) string {
	if v = strings.TrimSpace(v); v == "" {
		return "unknown"
	}
	return v
}
