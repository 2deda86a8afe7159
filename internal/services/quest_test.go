package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	rewardbus "github.com/yungbote/tastequest-backend/internal/clients/redis"
	"github.com/yungbote/tastequest-backend/internal/data/aggregates"
	"github.com/yungbote/tastequest-backend/internal/data/repos"
	"github.com/yungbote/tastequest-backend/internal/data/repos/testutil"
	domainagg "github.com/yungbote/tastequest-backend/internal/domain/aggregates"
	"github.com/yungbote/tastequest-backend/internal/modules/quest/proof"
	"github.com/yungbote/tastequest-backend/internal/modules/quest/rewards"
	"github.com/yungbote/tastequest-backend/internal/modules/quest/scan"
	"github.com/yungbote/tastequest-backend/internal/modules/quest/zones"
	"github.com/yungbote/tastequest-backend/internal/observability"
)

var questNow = time.Date(2025, time.June, 14, 18, 0, 0, 0, time.UTC)

type captureNotifier struct {
	mu     sync.Mutex
	events []rewardbus.RewardEvent
	err    error
}

func (n *captureNotifier) Publish(_ context.Context, ev rewardbus.RewardEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.events = append(n.events, ev)
	return nil
}
func (n *captureNotifier) Subscribe(context.Context, func(rewardbus.RewardEvent)) error { return nil }
func (n *captureNotifier) Ping(context.Context) error                                   { return nil }
func (n *captureNotifier) Close() error                                                 { return nil }

type questFixture struct {
	svc      QuestService
	devices  *proof.DeviceSigner
	notifier *captureNotifier
	metrics  *observability.Metrics
}

func newQuestFixture(t *testing.T, withDevices bool) questFixture {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	now := func() time.Time { return questNow }
	reg := zones.Default()
	metrics := observability.New(time.Second)

	var devices *proof.DeviceSigner
	var verifier proof.DeviceVerifier
	if withDevices {
		d, err := proof.NewDeviceSigner([]byte("venue-secret"), proof.WithClock(now))
		if err != nil {
			t.Fatalf("NewDeviceSigner: %v", err)
		}
		devices, verifier = d, d
	}

	progress := repos.NewGuestProgressRepo(db, log)
	ledger := repos.NewStampLedgerRepo(db, log)
	stamps := aggregates.NewStampAggregate(aggregates.StampAggregateDeps{
		Base: aggregates.BaseDeps{
			DB:    db,
			Log:   log,
			Hooks: aggregates.NewObservabilityHooks(metrics),
			Retry: aggregates.RetryPolicy{MaxAttempts: 4, MinBackoff: time.Millisecond, MaxBackoff: 4 * time.Millisecond},
			Now:   now,
		},
		Progress: progress,
		Ledger:   ledger,
		Rewards:  rewards.NewTable(reg.Thresholds()),
	})
	validator := scan.NewValidator(scan.ValidatorDeps{
		Log:      log,
		Zones:    reg,
		Devices:  verifier,
		Policy:   scan.Policy{GuestTokenMode: scan.GuestTokenOff},
		Security: metrics,
	})
	notifier := &captureNotifier{}
	svc := NewQuestService(QuestServiceDeps{
		Log:       log,
		Zones:     reg,
		Validator: validator,
		Stamps:    stamps,
		Progress:  progress,
		Ledger:    ledger,
		Devices:   verifier,
		Notifier:  notifier,
		Metrics:   metrics,
	})
	return questFixture{svc: svc, devices: devices, notifier: notifier, metrics: metrics}
}

func (f questFixture) scan(t *testing.T, guest, zone string) *StampOutcome {
	t.Helper()
	out, err := f.svc.CollectStamp(context.Background(), scan.Event{GuestID: guest, ZoneName: zone, Source: "web"})
	if err != nil {
		t.Fatalf("CollectStamp(%s, %s): %v", guest, zone, err)
	}
	return out
}

func (f questFixture) exposition(t *testing.T) string {
	t.Helper()
	var buf bytes.Buffer
	if err := f.metrics.WritePrometheus(&buf); err != nil {
		t.Fatalf("WritePrometheus: %v", err)
	}
	return buf.String()
}

func TestCollectStampRecordsAndUnlocks(t *testing.T) {
	f := newQuestFixture(t, false)

	for i, zone := range []string{"ferment", "smoke", "spice"} {
		out := f.scan(t, "guest-a", zone)
		if out.Duplicate || out.Progress.TotalStamps != i+1 || len(out.NewlyUnlocked) != 0 {
			t.Fatalf("stamp %d: %+v", i+1, out)
		}
	}
	out := f.scan(t, "guest-a", "sweet")
	if out.Progress.TotalStamps != 4 || out.Progress.ZonesTotal != 8 {
		t.Fatalf("progress=%+v", out.Progress)
	}
	if len(out.NewlyUnlocked) != 1 || out.NewlyUnlocked[0] != "halfway-tasting-flight" {
		t.Fatalf("newly=%v", out.NewlyUnlocked)
	}
	if out.Progress.CurrentStreak != 1 || out.Progress.RegistrationDate != "2025-06-14" {
		t.Fatalf("streak/registration=%+v", out.Progress)
	}

	if len(f.notifier.events) != 1 {
		t.Fatalf("expected one notification, got %d", len(f.notifier.events))
	}
	ev := f.notifier.events[0]
	if ev.GuestID != "guest-a" || ev.ZoneName != "sweet" || ev.TotalStamps != 4 || ev.Type != rewardbus.RewardUnlockedType {
		t.Fatalf("event=%+v", ev)
	}

	dup := f.scan(t, "guest-a", "SWEET")
	if !dup.Duplicate || dup.Progress.TotalStamps != 4 || len(dup.NewlyUnlocked) != 0 {
		t.Fatalf("duplicate=%+v", dup)
	}
	if len(f.notifier.events) != 1 {
		t.Fatalf("duplicate must not notify again")
	}

	text := f.exposition(t)
	for _, want := range []string{`outcome="recorded"`, `outcome="duplicate"`, `reward_id="halfway-tasting-flight"`, `status="published"`} {
		if !strings.Contains(text, want) {
			t.Fatalf("metrics missing %s:\n%s", want, text)
		}
	}
}

func TestCollectStampNotificationFailureIsIgnored(t *testing.T) {
	f := newQuestFixture(t, false)
	f.notifier.err = errors.New("redis down")
	for _, zone := range []string{"ferment", "smoke", "spice", "sweet"} {
		f.scan(t, "guest-b", zone)
	}
	p, err := f.svc.GetProgress(context.Background(), "guest-b")
	if err != nil {
		t.Fatalf("GetProgress: %v", err)
	}
	if p.TotalStamps != 4 || len(p.UnlockedRewards) != 1 {
		t.Fatalf("progress=%+v", p)
	}
	if !strings.Contains(f.exposition(t), `status="failed"`) {
		t.Fatalf("failed notification not counted")
	}
}

func TestCollectStampRejections(t *testing.T) {
	f := newQuestFixture(t, true)

	_, err := f.svc.CollectStamp(context.Background(), scan.Event{GuestID: "g", ZoneName: "nowhere"})
	var rej *scan.Rejection
	if !errors.As(err, &rej) || rej.Reason != scan.ReasonUnknownZone {
		t.Fatalf("want unknown_zone, got %v", err)
	}

	_, err = f.svc.CollectStamp(context.Background(), scan.Event{GuestID: "g", ZoneName: "smoke", Source: "nfc", DeviceProof: "forged"})
	if !errors.As(err, &rej) || rej.Kind != scan.KindAuthenticity {
		t.Fatalf("want authenticity rejection, got %v", err)
	}

	if _, err := f.svc.GetProgress(context.Background(), "g"); !domainagg.IsCode(err, domainagg.CodeNotFound) {
		t.Fatalf("rejected scans must not create progress, got %v", err)
	}
	text := f.exposition(t)
	for _, want := range []string{
		`tq_scans_total{source="web",zone="unknown",outcome="rejected_validation"} 1`,
		`tq_scans_total{source="nfc",zone="smoke",outcome="rejected_authenticity"} 1`,
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("metrics missing %s:\n%s", want, text)
		}
	}
}

func TestCollectStampWithDeviceProofStoresFingerprint(t *testing.T) {
	f := newQuestFixture(t, true)
	tok, err := f.devices.IssueDevice("umami", "tag-7", time.Hour)
	if err != nil {
		t.Fatalf("IssueDevice: %v", err)
	}
	if _, err := f.svc.CollectStamp(context.Background(), scan.Event{GuestID: "g", ZoneName: "umami", Source: "nfc", DeviceProof: tok}); err != nil {
		t.Fatalf("CollectStamp: %v", err)
	}
	rows, err := f.svc.ListStamps(context.Background(), "g")
	if err != nil {
		t.Fatalf("ListStamps: %v", err)
	}
	if len(rows) != 1 || rows[0].DeviceProofID == nil {
		t.Fatalf("rows=%+v", rows)
	}
	if *rows[0].DeviceProofID != scan.ProofID("tag-7", tok) || strings.Contains(*rows[0].DeviceProofID, tok) {
		t.Fatalf("device proof id=%q", *rows[0].DeviceProofID)
	}
	var meta map[string]any
	if err := json.Unmarshal(rows[0].Metadata, &meta); err != nil || meta["proof_tag"] != "tag-7" {
		t.Fatalf("metadata=%s err=%v", rows[0].Metadata, err)
	}
}

func TestGetProgressNotFound(t *testing.T) {
	f := newQuestFixture(t, false)
	_, err := f.svc.GetProgress(context.Background(), "nobody")
	if !domainagg.IsCode(err, domainagg.CodeNotFound) || !errors.Is(err, ErrProgressNotFound) {
		t.Fatalf("want not_found, got %v", err)
	}
	if _, err := f.svc.GetProgress(context.Background(), "  "); !domainagg.IsCode(err, domainagg.CodeValidation) {
		t.Fatalf("want validation, got %v", err)
	}
}

func TestLeaderboardRanksAndClamps(t *testing.T) {
	f := newQuestFixture(t, false)
	f.scan(t, "one", "smoke")
	f.scan(t, "three", "smoke")
	f.scan(t, "three", "spice")
	f.scan(t, "three", "sour")
	f.scan(t, "two", "smoke")
	f.scan(t, "two", "spice")

	entries, err := f.svc.Leaderboard(context.Background(), 0)
	if err != nil {
		t.Fatalf("Leaderboard: %v", err)
	}
	want := []string{"three", "two", "one"}
	if len(entries) != len(want) {
		t.Fatalf("entries=%+v", entries)
	}
	for i, e := range entries {
		if e.GuestID != want[i] || e.Rank != i+1 {
			t.Fatalf("entry %d = %+v", i, e)
		}
	}

	top, err := f.svc.Leaderboard(context.Background(), -5)
	if err != nil || len(top) != 1 || top[0].GuestID != "three" {
		t.Fatalf("clamped to 1: %+v err=%v", top, err)
	}
}

func TestClampLeaderboardLimit(t *testing.T) {
	cases := map[int]int{0: 10, -1: 1, 1: 1, 50: 50, 100: 100, 101: 100, 5000: 100}
	for in, want := range cases {
		if got := ClampLeaderboardLimit(in); got != want {
			t.Fatalf("ClampLeaderboardLimit(%d)=%d want %d", in, got, want)
		}
	}
}

func TestVerifyDeviceProof(t *testing.T) {
	f := newQuestFixture(t, true)
	ctx := context.Background()

	tok, err := f.devices.IssueDevice("fire", "tag-1", time.Hour)
	if err != nil {
		t.Fatalf("IssueDevice: %v", err)
	}
	got := f.svc.VerifyDeviceProof(ctx, tok)
	if !got.Valid || got.Payload == nil || got.Payload.Zone != "fire" || got.Payload.Tag != "tag-1" {
		t.Fatalf("verification=%+v", got)
	}

	if got := f.svc.VerifyDeviceProof(ctx, tok+"x"); got.Valid || got.Reason == "" {
		t.Fatalf("tampered proof accepted: %+v", got)
	}
	if got := f.svc.VerifyDeviceProof(ctx, ""); got.Valid || got.Reason != "missing" {
		t.Fatalf("empty proof: %+v", got)
	}

	stray, err := f.devices.IssueDevice("moon", "tag-2", time.Hour)
	if err != nil {
		t.Fatalf("IssueDevice: %v", err)
	}
	if got := f.svc.VerifyDeviceProof(ctx, stray); got.Valid || got.Reason != string(scan.ReasonUnknownZone) {
		t.Fatalf("unknown zone proof: %+v", got)
	}

	off := newQuestFixture(t, false)
	if got := off.svc.VerifyDeviceProof(ctx, tok); got.Valid || got.Reason != "not_configured" {
		t.Fatalf("unconfigured verifier: %+v", got)
	}
}

func TestListZones(t *testing.T) {
	f := newQuestFixture(t, false)
	cat := f.svc.ListZones(context.Background())
	if cat.ZoneCount != 8 || len(cat.Zones) != 8 || len(cat.Thresholds) != 2 {
		t.Fatalf("catalog=%+v", cat)
	}
}

func TestListStampsInCollectionOrder(t *testing.T) {
	f := newQuestFixture(t, false)
	if rows, err := f.svc.ListStamps(context.Background(), "empty"); err != nil || len(rows) != 0 || rows == nil {
		t.Fatalf("empty guest: rows=%v err=%v", rows, err)
	}
	f.scan(t, "g", "sour")
	f.scan(t, "g", "bitter")
	rows, err := f.svc.ListStamps(context.Background(), "g")
	if err != nil {
		t.Fatalf("ListStamps: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows=%d", len(rows))
	}
	// Same instant from the fixed clock, so zone name breaks the tie.
	if rows[0].ZoneName != "bitter" || rows[1].ZoneName != "sour" {
		t.Fatalf("order=%s,%s", rows[0].ZoneName, rows[1].ZoneName)
	}
}
