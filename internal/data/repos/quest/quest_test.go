package quest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/tastequest-backend/internal/data/repos/testutil"
	types "github.com/yungbote/tastequest-backend/internal/domain"
	"github.com/yungbote/tastequest-backend/internal/platform/dbctx"
)

func TestGuestProgressRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}

	repo := NewGuestProgressRepo(db, testutil.Logger(t))

	first := &types.GuestProgress{ID: uuid.New(), GuestID: "guest-a"}
	if err := repo.EnsureForGuest(dbc, first); err != nil {
		t.Fatalf("EnsureForGuest: %v", err)
	}
	// a second ensure for the same guest is a no-op
	if err := repo.EnsureForGuest(dbc, &types.GuestProgress{ID: uuid.New(), GuestID: "guest-a", TotalStamps: 9}); err != nil {
		t.Fatalf("EnsureForGuest again: %v", err)
	}

	got, err := repo.LockByGuestID(dbc, "guest-a")
	if err != nil || got == nil {
		t.Fatalf("LockByGuestID: row=%v err=%v", got, err)
	}
	if got.ID != first.ID || got.TotalStamps != 0 {
		t.Fatalf("ensure must keep the first row: %+v", got)
	}
	if rewards := got.Rewards(); len(rewards) != 0 {
		t.Fatalf("fresh row should hold no rewards: %v", rewards)
	}

	missing, err := repo.GetByGuestID(dbc, "nobody")
	if err != nil || missing != nil {
		t.Fatalf("GetByGuestID(missing): row=%v err=%v", missing, err)
	}

	if _, err := repo.LockByGuestID(dbctx.Context{Ctx: ctx}, "guest-a"); !errors.Is(err, gorm.ErrInvalidTransaction) {
		t.Fatalf("LockByGuestID outside tx: want ErrInvalidTransaction got %v", err)
	}
}

func TestLeaderboardOrdering(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewGuestProgressRepo(db, testutil.Logger(t))

	testutil.SeedProgress(t, ctx, tx, "g1", 8, 2, "2025-01-03")
	testutil.SeedProgress(t, ctx, tx, "g2", 8, 5, "2025-01-05")
	testutil.SeedProgress(t, ctx, tx, "g3", 3, 3, "2025-01-01")
	testutil.SeedProgress(t, ctx, tx, "g4", 8, 2, "2025-01-01")
	testutil.SeedProgress(t, ctx, tx, "g0", 0, 0, "")

	rows, err := repo.Leaderboard(dbc, 10)
	if err != nil {
		t.Fatalf("Leaderboard: %v", err)
	}
	want := []string{"g2", "g4", "g1", "g3"}
	if len(rows) != len(want) {
		t.Fatalf("expected %d rows, got %d", len(want), len(rows))
	}
	for i, id := range want {
		if rows[i].GuestID != id {
			t.Fatalf("rank %d: want %s got %s", i+1, id, rows[i].GuestID)
		}
	}

	top, err := repo.Leaderboard(dbc, 2)
	if err != nil || len(top) != 2 || top[0].GuestID != "g2" {
		t.Fatalf("Leaderboard(2): rows=%v err=%v", top, err)
	}
	none, err := repo.Leaderboard(dbc, 0)
	if err != nil || len(none) != 0 {
		t.Fatalf("Leaderboard(0): rows=%v err=%v", none, err)
	}
}

func TestStampLedgerRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewStampLedgerRepo(db, testutil.Logger(t))

	base := time.Date(2025, time.June, 1, 18, 0, 0, 0, time.UTC)
	for i, zone := range []string{"smoke", "ferment"} {
		row := &types.StampLedgerEntry{
			ID:          uuid.New(),
			GuestID:     "guest-a",
			ZoneName:    zone,
			CollectedAt: base.Add(time.Duration(i) * time.Minute),
			Source:      types.SourceWeb,
		}
		if err := repo.Insert(dbc, row); err != nil {
			t.Fatalf("Insert %s: %v", zone, err)
		}
	}

	// the duplicate runs in a savepoint so the outer test tx stays usable
	dupErr := tx.Transaction(func(inner *gorm.DB) error {
		return repo.Insert(dbctx.Context{Ctx: ctx, Tx: inner}, &types.StampLedgerEntry{
			ID:          uuid.New(),
			GuestID:     "guest-a",
			ZoneName:    "smoke",
			CollectedAt: base.Add(time.Hour),
			Source:      types.SourceNFC,
		})
	})
	if !errors.Is(dupErr, gorm.ErrDuplicatedKey) {
		t.Fatalf("duplicate insert: want ErrDuplicatedKey got %v", dupErr)
	}

	got, err := repo.Get(dbc, "guest-a", "smoke")
	if err != nil || got == nil || got.Source != types.SourceWeb {
		t.Fatalf("Get: row=%+v err=%v", got, err)
	}
	if missing, err := repo.Get(dbc, "guest-a", "sweet"); err != nil || missing != nil {
		t.Fatalf("Get(missing): row=%v err=%v", missing, err)
	}

	rows, err := repo.ListByGuest(dbc, "guest-a")
	if err != nil || len(rows) != 2 || rows[0].ZoneName != "smoke" || rows[1].ZoneName != "ferment" {
		t.Fatalf("ListByGuest: rows=%v err=%v", rows, err)
	}
}
