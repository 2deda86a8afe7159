package aggregates

import (
	"context"
	"errors"
	"time"

	"github.com/yungbote/tastequest-backend/internal/domain/quest"
)

var StampAggregateContract = Contract{
	Name:             "Quest.StampAggregate",
	WriteTxOwnership: WriteTxOwnedByAggregate,
	ReadPolicy:       ReadPolicyInvariantScoped,
	Notes: "Owns the (guest_id, zone_name) ledger insert together with the guest progress " +
		"counters, streak and reward set. Contention is scoped to one guest row.",
}

// ErrStampAlreadyCollected is the cause attached when the ledger unique
// constraint rejects an insert because a concurrent writer got there first.
var ErrStampAlreadyCollected = errors.New("stamp already collected")

// StampAggregate owns stamp collection invariants.
//
// Collect failures are *aggregates.Error with codes:
// CodeValidation, CodeRetryable, CodeUnavailable, CodeInternal.
// A repeated (guest, zone) is not a failure; it returns Duplicate=true.
type StampAggregate interface {
	Aggregate

	// Collect records the stamp once and applies counters, streak and rewards atomically.
	Collect(ctx context.Context, in CollectStampInput) (CollectStampResult, error)
}

type CollectStampInput struct {
	GuestID       string
	ZoneName      string
	Source        quest.Source
	DeviceProofID *string
	CollectedAt   time.Time
	Metadata      map[string]any
}

type CollectStampResult struct {
	Duplicate     bool
	Progress      quest.GuestProgress
	NewlyUnlocked []string
	Attempts      int
}
