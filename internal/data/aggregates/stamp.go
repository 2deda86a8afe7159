package aggregates

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/tastequest-backend/internal/data/repos"
	types "github.com/yungbote/tastequest-backend/internal/domain"
	domainagg "github.com/yungbote/tastequest-backend/internal/domain/aggregates"
	"github.com/yungbote/tastequest-backend/internal/modules/quest/rewards"
	"github.com/yungbote/tastequest-backend/internal/modules/quest/streak"
	"github.com/yungbote/tastequest-backend/internal/platform/dbctx"
)

const stampCollectOp = "quest.stamp.collect"

type StampAggregateDeps struct {
	Base     BaseDeps
	Progress repos.GuestProgressRepo
	Ledger   repos.StampLedgerRepo
	Rewards  rewards.Table
	// Location is the venue time zone that defines a streak day.
	Location *time.Location
}

type stampAggregate struct {
	deps StampAggregateDeps
}

var _ domainagg.StampAggregate = (*stampAggregate)(nil)

func NewStampAggregate(deps StampAggregateDeps) domainagg.StampAggregate {
	deps.Base = deps.Base.withDefaults()
	deps.Base.Log = deps.Base.Log.With("aggregate", "StampAggregate")
	if deps.Location == nil {
		deps.Location = time.UTC
	}
	return &stampAggregate{deps: deps}
}

func (a *stampAggregate) Contract() domainagg.Contract {
	return domainagg.StampAggregateContract
}

// Collect records (guest, zone) at most once. The ledger row and the progress
// update commit together or not at all; a lost race is re-run under
// RetryPolicy and a repeated stamp returns the stored progress unchanged.
func (a *stampAggregate) Collect(ctx context.Context, in domainagg.CollectStampInput) (domainagg.CollectStampResult, error) {
	in, err := normalizeCollectInput(in)
	if err != nil {
		return domainagg.CollectStampResult{}, err
	}
	at := in.CollectedAt
	if at.IsZero() {
		at = a.deps.Base.Now()
	}
	at = at.UTC()
	in.CollectedAt = at
	today := streak.Today(at, a.deps.Location)

	var meta datatypes.JSON
	if len(in.Metadata) > 0 {
		raw, err := json.Marshal(in.Metadata)
		if err != nil {
			return domainagg.CollectStampResult{}, domainagg.NewError(domainagg.CodeValidation, stampCollectOp, "metadata is not serializable", err)
		}
		meta = raw
	}

	policy := a.deps.Base.Retry
	hooks := a.deps.Base.Hooks
	var lastErr error
	attempt := 0
	for {
		attempt++
		var res domainagg.CollectStampResult
		err := executeWrite(ctx, a.deps.Base, stampCollectOp, func(dbc dbctx.Context) error {
			return a.collectOnce(dbc, in, today, meta, &res)
		})
		if err == nil {
			res.Attempts = attempt
			outcome := OutcomeRecorded
			if res.Duplicate {
				outcome = OutcomeDuplicate
			}
			hooks.ObserveSettled(stampCollectOp, outcome, attempt)
			return res, nil
		}
		if errors.Is(err, domainagg.ErrStampAlreadyCollected) {
			dup, err := a.readDuplicate(ctx, in.GuestID, attempt)
			if err != nil {
				hooks.ObserveSettled(stampCollectOp, OutcomeFailed, attempt)
				return dup, err
			}
			hooks.ObserveSettled(stampCollectOp, OutcomeDuplicate, attempt)
			return dup, nil
		}
		lastErr = err
		if !shouldRetry(policy, attempt, err) || ctx.Err() != nil {
			break
		}
		wait := computeBackoff(policy, attempt)
		a.deps.Base.Log.Debug("retrying stamp write",
			"guest_id", in.GuestID,
			"zone", in.ZoneName,
			"attempt", attempt,
			"backoff_ms", wait.Milliseconds(),
			"code", string(domainagg.CodeOf(err)),
		)
		if sleepCtx(ctx, wait) != nil {
			break
		}
	}

	switch domainagg.CodeOf(lastErr) {
	case domainagg.CodeRetryable, domainagg.CodeConflict:
		hooks.ObserveSettled(stampCollectOp, OutcomeExhausted, attempt)
		a.deps.Base.Log.Warn("stamp write gave up", "guest_id", in.GuestID, "zone", in.ZoneName, "attempts", attempt, "error", lastErr)
		return domainagg.CollectStampResult{}, domainagg.NewError(domainagg.CodeRetryable, stampCollectOp, "stamp write retries exhausted", lastErr)
	default:
		hooks.ObserveSettled(stampCollectOp, OutcomeFailed, attempt)
		return domainagg.CollectStampResult{}, lastErr
	}
}

func (a *stampAggregate) collectOnce(dbc dbctx.Context, in domainagg.CollectStampInput, today civil.Date, meta datatypes.JSON, res *domainagg.CollectStampResult) error {
	now := a.deps.Base.Now().UTC()

	fresh := &types.GuestProgress{
		ID:              uuid.New(),
		GuestID:         in.GuestID,
		UnlockedRewards: types.EncodeRewards(nil),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := a.deps.Progress.EnsureForGuest(dbc, fresh); err != nil {
		return err
	}
	p, err := a.deps.Progress.LockByGuestID(dbc, in.GuestID)
	if err != nil {
		return err
	}
	if p == nil {
		return InvariantError("guest progress row missing after ensure")
	}

	existing, err := a.deps.Ledger.Get(dbc, in.GuestID, in.ZoneName)
	if err != nil {
		return err
	}
	if existing != nil {
		*res = domainagg.CollectStampResult{Duplicate: true, Progress: *p, NewlyUnlocked: []string{}}
		return nil
	}

	entry := &types.StampLedgerEntry{
		ID:            uuid.New(),
		GuestID:       in.GuestID,
		ZoneName:      in.ZoneName,
		CollectedAt:   in.CollectedAt,
		Source:        in.Source,
		DeviceProofID: in.DeviceProofID,
		Metadata:      meta,
	}
	if err := a.deps.Ledger.Insert(dbc, entry); err != nil {
		if isUniqueViolation(err) {
			return domainagg.NewError(domainagg.CodeConflict, stampCollectOp, "stamp already collected", domainagg.ErrStampAlreadyCollected)
		}
		return err
	}

	prev := streak.State{
		Current: p.CurrentStreak,
		Longest: p.LongestStreak,
		Last:    streak.ParseDate(p.LastStampDate),
	}
	next := streak.Advance(prev, today)
	total := p.TotalStamps + 1
	held := p.Rewards()
	newly := a.deps.Rewards.Unlock(total, held)
	merged := rewards.Merge(held, newly)

	registered := p.RegistrationDate
	if registered == "" {
		registered = streak.FormatDate(today)
	}

	updates := map[string]any{
		"total_stamps":      total,
		"current_streak":    next.Current,
		"longest_streak":    next.Longest,
		"last_stamp_date":   streak.FormatDate(next.Last),
		"registration_date": registered,
		"unlocked_rewards":  types.EncodeRewards(merged),
		"version":           p.Version + 1,
		"updated_at":        now,
	}
	ok, err := a.deps.Base.CASGuard.UpdateByVersion(dbc, p.TableName(), p.ID, p.Version, updates)
	if err != nil {
		return err
	}
	if err := RequireCASSuccess(ok, "guest progress changed during stamp write"); err != nil {
		return err
	}

	out := *p
	out.TotalStamps = total
	out.CurrentStreak = next.Current
	out.LongestStreak = next.Longest
	out.LastStampDate = streak.FormatDate(next.Last)
	out.RegistrationDate = registered
	out.UnlockedRewards = types.EncodeRewards(merged)
	out.Version = p.Version + 1
	out.UpdatedAt = now

	*res = domainagg.CollectStampResult{Progress: out, NewlyUnlocked: newly}
	return nil
}

// readDuplicate settles a stamp that a concurrent writer recorded first.
func (a *stampAggregate) readDuplicate(ctx context.Context, guestID string, attempts int) (domainagg.CollectStampResult, error) {
	p, err := a.deps.Progress.GetByGuestID(dbctx.Context{Ctx: ctx}, guestID)
	if err != nil {
		return domainagg.CollectStampResult{}, MapError(stampCollectOp, err)
	}
	if p == nil {
		return domainagg.CollectStampResult{}, domainagg.NewError(domainagg.CodeInternal, stampCollectOp, "duplicate stamp without progress row", nil)
	}
	return domainagg.CollectStampResult{
		Duplicate:     true,
		Progress:      *p,
		NewlyUnlocked: []string{},
		Attempts:      attempts,
	}, nil
}

func normalizeCollectInput(in domainagg.CollectStampInput) (domainagg.CollectStampInput, error) {
	in.GuestID = strings.TrimSpace(in.GuestID)
	in.ZoneName = strings.ToLower(strings.TrimSpace(in.ZoneName))
	if in.GuestID == "" {
		return in, domainagg.NewError(domainagg.CodeValidation, stampCollectOp, "guest_id is required", nil)
	}
	if in.ZoneName == "" {
		return in, domainagg.NewError(domainagg.CodeValidation, stampCollectOp, "zone_name is required", nil)
	}
	if in.Source == "" {
		in.Source = types.SourceWeb
	}
	return in, nil
}
