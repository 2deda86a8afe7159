package quest

import (
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/tastequest-backend/internal/domain"
	"github.com/yungbote/tastequest-backend/internal/platform/dbctx"
	"github.com/yungbote/tastequest-backend/internal/platform/logger"
)

type GuestProgressRepo interface {
	// EnsureForGuest inserts row unless a row for the same guest exists.
	EnsureForGuest(dbc dbctx.Context, row *types.GuestProgress) error

	GetByGuestID(dbc dbctx.Context, guestID string) (*types.GuestProgress, error)
	LockByGuestID(dbc dbctx.Context, guestID string) (*types.GuestProgress, error)

	// Leaderboard returns guests with at least one stamp, best first.
	Leaderboard(dbc dbctx.Context, limit int) ([]*types.GuestProgress, error)
}

type guestProgressRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewGuestProgressRepo(db *gorm.DB, baseLog *logger.Logger) GuestProgressRepo {
	return &guestProgressRepo{db: db, log: baseLog.With("repo", "GuestProgressRepo")}
}

func (r *guestProgressRepo) EnsureForGuest(dbc dbctx.Context, row *types.GuestProgress) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if row == nil || strings.TrimSpace(row.GuestID) == "" {
		return nil
	}
	now := time.Now().UTC()
	if row.CreatedAt.IsZero() {
		row.CreatedAt = now
	}
	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = row.CreatedAt
	}
	if len(row.UnlockedRewards) == 0 {
		row.UnlockedRewards = types.EncodeRewards(nil)
	}
	return t.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "guest_id"}},
			DoNothing: true,
		}).
		Create(row).Error
}

func (r *guestProgressRepo) GetByGuestID(dbc dbctx.Context, guestID string) (*types.GuestProgress, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if strings.TrimSpace(guestID) == "" {
		return nil, nil
	}
	var rows []*types.GuestProgress
	if err := t.WithContext(dbc.Ctx).
		Where("guest_id = ?", guestID).
		Limit(1).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// LockByGuestID reads the row FOR UPDATE. It must run inside a transaction;
// SQLite ignores the locking clause and serializes writers itself.
func (r *guestProgressRepo) LockByGuestID(dbc dbctx.Context, guestID string) (*types.GuestProgress, error) {
	if dbc.Tx == nil {
		return nil, gorm.ErrInvalidTransaction
	}
	if strings.TrimSpace(guestID) == "" {
		return nil, nil
	}
	var rows []*types.GuestProgress
	err := dbc.Tx.WithContext(dbc.Ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("guest_id = ?", guestID).
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *guestProgressRepo) Leaderboard(dbc dbctx.Context, limit int) ([]*types.GuestProgress, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	out := []*types.GuestProgress{}
	if limit <= 0 {
		return out, nil
	}
	if err := t.WithContext(dbc.Ctx).
		Where("total_stamps > 0").
		Order("total_stamps DESC").
		Order("current_streak DESC").
		Order("registration_date ASC").
		Order("guest_id ASC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
