package observability

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.ObserveAPI("GET", "/x", "200", "", time.Millisecond)
	m.ObserveStampAttempt("op", "success", time.Millisecond)
	m.IncStampConflict("op")
	m.IncStampRetry("op")
	m.ObserveStampSettled("op", "recorded", 1)
	m.ObserveScan("nfc", "umami", "recorded")
	m.IncRewardUnlocked("r")
	m.IncRewardNotification("published")
	m.IncSecurityEvent("e")
	m.TrackInflight()()
	if err := m.WritePrometheus(&bytes.Buffer{}); err != nil {
		t.Fatalf("nil write: %v", err)
	}
}

func TestWritePrometheus(t *testing.T) {
	m := New(time.Second)
	m.ObserveAPI("POST", "/api/quest/stamps", "200", "recorded", 20*time.Millisecond)
	m.ObserveAPI("POST", "/api/quest/stamps", "422", "missing_guest_token", 20*time.Millisecond)
	m.ObserveAPI("GET", "/healthz", "200", "", time.Millisecond)
	m.ObserveStampAttempt("quest.stamp.collect", "success", 3*time.Millisecond)
	m.IncStampRetry("quest.stamp.collect")
	m.ObserveStampSettled("quest.stamp.collect", "recorded", 2)
	m.ObserveScan("nfc", "umami", "recorded")
	m.ObserveScan("nfc", "umami", "recorded")
	m.ObserveScan("web", "", "rejected_validation")
	m.IncRewardUnlocked("grand-tasting-menu")
	m.IncSecurityEvent("scan_invalid_device_proof")

	var buf bytes.Buffer
	if err := m.WritePrometheus(&buf); err != nil {
		t.Fatalf("WritePrometheus: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		`tq_api_requests_total{method="POST",route="/api/quest/stamps",status="200",outcome="recorded"} 1`,
		`tq_api_requests_total{method="POST",route="/api/quest/stamps",status="422",outcome="missing_guest_token"} 1`,
		`tq_api_requests_total{method="GET",route="/healthz",status="200",outcome=""} 1`,
		`tq_api_request_duration_seconds_count{method="POST",route="/api/quest/stamps"} 2`,
		`tq_stamp_write_attempts_total{operation="quest.stamp.collect",status="success"} 1`,
		`tq_stamp_write_attempt_duration_seconds_bucket{operation="quest.stamp.collect",le="0.005"} 1`,
		`tq_stamp_write_retries_total{operation="quest.stamp.collect"} 1`,
		`tq_stamp_writes_settled_attempts_bucket{operation="quest.stamp.collect",outcome="recorded",le="1"} 0`,
		`tq_stamp_writes_settled_attempts_bucket{operation="quest.stamp.collect",outcome="recorded",le="2"} 1`,
		`tq_stamp_writes_settled_attempts_sum{operation="quest.stamp.collect",outcome="recorded"} 2`,
		`tq_scans_total{source="nfc",zone="umami",outcome="recorded"} 2`,
		`tq_scans_total{source="web",zone="unknown",outcome="rejected_validation"} 1`,
		`tq_rewards_unlocked_total{reward_id="grand-tasting-menu"} 1`,
		`tq_security_events_total{event="scan_invalid_device_proof"} 1`,
		"# TYPE tq_stamp_writes_settled_attempts histogram",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
}

func TestTrackInflight(t *testing.T) {
	m := New(time.Second)
	done := m.TrackInflight()
	var buf bytes.Buffer
	_ = m.WritePrometheus(&buf)
	if !strings.Contains(buf.String(), "tq_api_inflight_requests 1\n") {
		t.Fatalf("expected one in-flight request:\n%s", buf.String())
	}
	done()
	buf.Reset()
	_ = m.WritePrometheus(&buf)
	if !strings.Contains(buf.String(), "tq_api_inflight_requests 0\n") {
		t.Fatalf("expected none in flight:\n%s", buf.String())
	}
}

func TestWriteHTTPWhenDisabled(t *testing.T) {
	var m *Metrics
	rec := httptest.NewRecorder()
	m.WriteHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d", rec.Code)
	}
}

func TestRenderLabels(t *testing.T) {
	cases := []struct {
		names []string
		key   string
		extra []string
		want  string
	}{
		{[]string{"zone"}, "x\"y\\z\n", nil, `{zone="x\"y\\z\n"}`},
		{nil, "", []string{"le", "+Inf"}, `{le="+Inf"}`},
		{[]string{"source", "zone"}, seriesKey(2, []string{"qr"}), nil, `{source="qr",zone="unknown"}`},
		{nil, "", nil, ""},
	}
	for _, tc := range cases {
		if got := renderLabels(tc.names, tc.key, tc.extra...); got != tc.want {
			t.Fatalf("got %s want %s", got, tc.want)
		}
	}
}

func TestParseOtelHeaders(t *testing.T) {
	h := ParseOtelHeaders("api-key=abc, x=1,broken,=v")
	if len(h) != 2 || h["api-key"] != "abc" || h["x"] != "1" {
		t.Fatalf("headers=%v", h)
	}
	if ParseOtelHeaders("  ") != nil {
		t.Fatalf("blank should be nil")
	}
}
