package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	rewardbus "github.com/yungbote/tastequest-backend/internal/clients/redis"
	"github.com/yungbote/tastequest-backend/internal/data/aggregates"
	"github.com/yungbote/tastequest-backend/internal/data/repos"
	types "github.com/yungbote/tastequest-backend/internal/domain"
	domainagg "github.com/yungbote/tastequest-backend/internal/domain/aggregates"
	"github.com/yungbote/tastequest-backend/internal/modules/quest/proof"
	"github.com/yungbote/tastequest-backend/internal/modules/quest/scan"
	"github.com/yungbote/tastequest-backend/internal/modules/quest/zones"
	"github.com/yungbote/tastequest-backend/internal/observability"
	"github.com/yungbote/tastequest-backend/internal/platform/ctxutil"
	"github.com/yungbote/tastequest-backend/internal/platform/dbctx"
	"github.com/yungbote/tastequest-backend/internal/platform/logger"
)

const (
	DefaultLeaderboardLimit = 10
	MaxLeaderboardLimit     = 100

	opGetProgress = "quest.progress.get"
	opLeaderboard = "quest.leaderboard.list"
	opListStamps  = "quest.stamps.list"
)

var ErrProgressNotFound = errors.New("progress not found")

type QuestService interface {
	CollectStamp(ctx context.Context, ev scan.Event) (*StampOutcome, error)
	GetProgress(ctx context.Context, guestID string) (*ProgressView, error)
	Leaderboard(ctx context.Context, limit int) ([]types.LeaderboardEntry, error)
	VerifyDeviceProof(ctx context.Context, token string) ProofVerification
	ListZones(ctx context.Context) ZoneCatalog
	ListStamps(ctx context.Context, guestID string) ([]*types.StampLedgerEntry, error)
}

// StampOutcome is what a scan returns to the client.
type StampOutcome struct {
	Duplicate     bool          `json:"duplicate"`
	Progress      *ProgressView `json:"progress"`
	NewlyUnlocked []string      `json:"newly_unlocked"`
}

// ProgressView is GuestProgress with rewards decoded and the zone count attached.
type ProgressView struct {
	GuestID          string   `json:"guest_id"`
	TotalStamps      int      `json:"total_stamps"`
	ZonesTotal       int      `json:"zones_total"`
	CurrentStreak    int      `json:"current_streak"`
	LongestStreak    int      `json:"longest_streak"`
	LastStampDate    string   `json:"last_stamp_date,omitempty"`
	RegistrationDate string   `json:"registration_date,omitempty"`
	UnlockedRewards  []string `json:"unlocked_rewards"`
}

type ProofVerification struct {
	Valid   bool                `json:"valid"`
	Payload *proof.DeviceClaims `json:"payload,omitempty"`
	Reason  string              `json:"reason,omitempty"`
}

type ZoneCatalog struct {
	Zones      []types.Zone            `json:"zones"`
	ZoneCount  int                     `json:"zone_count"`
	Thresholds []types.RewardThreshold `json:"reward_thresholds"`
}

type QuestServiceDeps struct {
	Log       *logger.Logger
	Zones     *zones.Registry
	Validator *scan.Validator
	Stamps    domainagg.StampAggregate
	Progress  repos.GuestProgressRepo
	Ledger    repos.StampLedgerRepo
	// Devices may be nil when no proof secret is configured.
	Devices  proof.DeviceVerifier
	Notifier rewardbus.RewardNotifier
	Metrics  *observability.Metrics
	// WriteTimeout bounds one CollectStamp call including retries.
	WriteTimeout time.Duration
}

type questService struct {
	log          *logger.Logger
	zones        *zones.Registry
	validator    *scan.Validator
	stamps       domainagg.StampAggregate
	progress     repos.GuestProgressRepo
	ledger       repos.StampLedgerRepo
	devices      proof.DeviceVerifier
	notifier     rewardbus.RewardNotifier
	metrics      *observability.Metrics
	writeTimeout time.Duration
}

func NewQuestService(deps QuestServiceDeps) QuestService {
	log := deps.Log
	if log == nil {
		log = logger.NewNop()
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = rewardbus.NoopNotifier{}
	}
	timeout := deps.WriteTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &questService{
		log:          log.With("service", "QuestService"),
		zones:        deps.Zones,
		validator:    deps.Validator,
		stamps:       deps.Stamps,
		progress:     deps.Progress,
		ledger:       deps.Ledger,
		devices:      deps.Devices,
		notifier:     notifier,
		metrics:      deps.Metrics,
		writeTimeout: timeout,
	}
}

func (s *questService) CollectStamp(ctx context.Context, ev scan.Event) (*StampOutcome, error) {
	ctx, span := observability.Tracer().Start(ctx, "QuestService.CollectStamp",
		trace.WithAttributes(
			attribute.String("quest.zone", strings.TrimSpace(ev.ZoneName)),
			attribute.String("quest.source", strings.TrimSpace(ev.Source)),
		),
	)
	defer span.End()

	valid, err := s.validator.Validate(ctx, ev)
	if err != nil {
		var rej *scan.Rejection
		if errors.As(err, &rej) {
			s.metrics.ObserveScan(sourceLabel(ev.Source), s.zoneLabel(ev.ZoneName), "rejected_"+string(rej.Kind))
			span.SetAttributes(attribute.String("quest.rejection", string(rej.Reason)))
		}
		span.SetStatus(codes.Error, "scan rejected")
		return nil, err
	}
	source := string(valid.Source)

	writeCtx, cancel := context.WithTimeout(ctx, s.writeTimeout)
	defer cancel()

	res, err := s.stamps.Collect(writeCtx, domainagg.CollectStampInput{
		GuestID:       valid.GuestID,
		ZoneName:      valid.Zone.Name,
		Source:        valid.Source,
		DeviceProofID: valid.DeviceProofID,
		Metadata:      scanMetadata(ctx, valid),
	})
	if err != nil {
		s.metrics.ObserveScan(source, valid.Zone.Name, "error")
		span.RecordError(err)
		span.SetStatus(codes.Error, string(domainagg.CodeOf(err)))
		s.log.Warn("CollectStamp failed",
			"error", err,
			"code", string(domainagg.CodeOf(err)),
			"guest_id", valid.GuestID,
			"zone", valid.Zone.Name,
			"request_id", ctxutil.RequestID(ctx),
		)
		return nil, err
	}

	outcome := "recorded"
	if res.Duplicate {
		outcome = "duplicate"
	}
	s.metrics.ObserveScan(source, valid.Zone.Name, outcome)
	span.SetAttributes(
		attribute.Bool("quest.duplicate", res.Duplicate),
		attribute.Int("quest.attempts", res.Attempts),
		attribute.Int("quest.total_stamps", res.Progress.TotalStamps),
	)

	newly := res.NewlyUnlocked
	if newly == nil {
		newly = []string{}
	}
	if len(newly) > 0 {
		for _, id := range newly {
			s.metrics.IncRewardUnlocked(id)
		}
		s.notifyUnlocked(ctx, valid, res.Progress, newly)
	}

	return &StampOutcome{
		Duplicate:     res.Duplicate,
		Progress:      s.view(&res.Progress),
		NewlyUnlocked: newly,
	}, nil
}

// notifyUnlocked runs after commit; failures never reach the caller.
func (s *questService) notifyUnlocked(ctx context.Context, valid scan.Validated, p types.GuestProgress, newly []string) {
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	err := s.notifier.Publish(pubCtx, rewardbus.RewardEvent{
		Type:        rewardbus.RewardUnlockedType,
		GuestID:     valid.GuestID,
		ZoneName:    valid.Zone.Name,
		RewardIDs:   newly,
		TotalStamps: p.TotalStamps,
		OccurredAt:  p.UpdatedAt,
	})
	if err != nil {
		s.metrics.IncRewardNotification("failed")
		s.log.Warn("reward notification failed", "error", err, "guest_id", valid.GuestID, "rewards", newly)
		return
	}
	s.metrics.IncRewardNotification("published")
}

func scanMetadata(ctx context.Context, valid scan.Validated) map[string]any {
	meta := map[string]any{}
	if rid := ctxutil.RequestID(ctx); rid != "" {
		meta["request_id"] = rid
	}
	if valid.Proof != nil {
		meta["proof_tag"] = valid.Proof.Tag
		meta["proof_zone"] = valid.Proof.Zone
		if valid.Proof.IssuedAt != nil {
			meta["proof_issued_at"] = valid.Proof.IssuedAt.Time.UTC().Format(time.RFC3339)
		}
	}
	if valid.GuestVerified {
		meta["guest_verified"] = true
	}
	if len(meta) == 0 {
		return nil
	}
	return meta
}

func (s *questService) GetProgress(ctx context.Context, guestID string) (*ProgressView, error) {
	guestID = strings.TrimSpace(guestID)
	if guestID == "" {
		return nil, domainagg.NewError(domainagg.CodeValidation, opGetProgress, "guest_id is required", nil)
	}
	p, err := s.progress.GetByGuestID(dbctx.Context{Ctx: ctx}, guestID)
	if err != nil {
		s.log.Warn("GetProgress: load failed", "error", err, "guest_id", guestID)
		return nil, aggregates.MapError(opGetProgress, err)
	}
	if p == nil {
		return nil, domainagg.NewError(domainagg.CodeNotFound, opGetProgress, "progress not found", ErrProgressNotFound)
	}
	return s.view(p), nil
}

// ClampLeaderboardLimit maps an absent limit to the default and bounds the rest.
func ClampLeaderboardLimit(limit int) int {
	switch {
	case limit == 0:
		return DefaultLeaderboardLimit
	case limit < 1:
		return 1
	case limit > MaxLeaderboardLimit:
		return MaxLeaderboardLimit
	default:
		return limit
	}
}

func (s *questService) Leaderboard(ctx context.Context, limit int) ([]types.LeaderboardEntry, error) {
	limit = ClampLeaderboardLimit(limit)
	rows, err := s.progress.Leaderboard(dbctx.Context{Ctx: ctx}, limit)
	if err != nil {
		s.log.Warn("Leaderboard: query failed", "error", err, "limit", limit)
		return nil, aggregates.MapError(opLeaderboard, err)
	}
	out := make([]types.LeaderboardEntry, 0, len(rows))
	for i, p := range rows {
		if p == nil {
			continue
		}
		out = append(out, types.LeaderboardEntry{
			Rank:             i + 1,
			GuestID:          p.GuestID,
			TotalStamps:      p.TotalStamps,
			CurrentStreak:    p.CurrentStreak,
			RegistrationDate: p.RegistrationDate,
		})
	}
	return out, nil
}

func (s *questService) VerifyDeviceProof(ctx context.Context, token string) ProofVerification {
	token = strings.TrimSpace(token)
	if token == "" {
		return ProofVerification{Reason: "missing"}
	}
	if s.devices == nil {
		return ProofVerification{Reason: proof.Reason(proof.ErrMissingSecret)}
	}
	claims, err := s.devices.VerifyDevice(token)
	if err != nil {
		reason := proof.Reason(err)
		s.metrics.IncSecurityEvent("proof_verify_" + reason)
		s.log.Debug("device proof rejected", "reason", reason, "request_id", ctxutil.RequestID(ctx))
		return ProofVerification{Reason: reason}
	}
	if s.zones != nil && !s.zones.Contains(claims.Zone) {
		return ProofVerification{Payload: claims, Reason: string(scan.ReasonUnknownZone)}
	}
	return ProofVerification{Valid: true, Payload: claims}
}

func (s *questService) ListZones(ctx context.Context) ZoneCatalog {
	if s.zones == nil {
		return ZoneCatalog{Zones: []types.Zone{}, Thresholds: []types.RewardThreshold{}}
	}
	return ZoneCatalog{
		Zones:      s.zones.Zones(),
		ZoneCount:  s.zones.Count(),
		Thresholds: s.zones.Thresholds(),
	}
}

func (s *questService) ListStamps(ctx context.Context, guestID string) ([]*types.StampLedgerEntry, error) {
	guestID = strings.TrimSpace(guestID)
	if guestID == "" {
		return nil, domainagg.NewError(domainagg.CodeValidation, opListStamps, "guest_id is required", nil)
	}
	rows, err := s.ledger.ListByGuest(dbctx.Context{Ctx: ctx}, guestID)
	if err != nil {
		s.log.Warn("ListStamps: query failed", "error", err, "guest_id", guestID)
		return nil, aggregates.MapError(opListStamps, err)
	}
	if rows == nil {
		rows = []*types.StampLedgerEntry{}
	}
	return rows, nil
}

func (s *questService) view(p *types.GuestProgress) *ProgressView {
	v := &ProgressView{
		GuestID:          p.GuestID,
		TotalStamps:      p.TotalStamps,
		CurrentStreak:    p.CurrentStreak,
		LongestStreak:    p.LongestStreak,
		LastStampDate:    p.LastStampDate,
		RegistrationDate: p.RegistrationDate,
		UnlockedRewards:  p.Rewards(),
	}
	if s.zones != nil {
		v.ZonesTotal = s.zones.Count()
	}
	return v
}

// zoneLabel keeps metric cardinality bounded to registered zones.
func (s *questService) zoneLabel(raw string) string {
	if s.zones != nil {
		if z, ok := s.zones.Lookup(raw); ok {
			return z.Name
		}
	}
	return "unknown"
}

func sourceLabel(raw string) string {
	src, err := types.ParseSource(raw)
	if err != nil {
		return "invalid"
	}
	return string(src)
}
