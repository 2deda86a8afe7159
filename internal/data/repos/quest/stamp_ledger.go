package quest

import (
	"strings"

	"gorm.io/gorm"

	types "github.com/yungbote/tastequest-backend/internal/domain"
	"github.com/yungbote/tastequest-backend/internal/platform/dbctx"
	"github.com/yungbote/tastequest-backend/internal/platform/logger"
)

// StampLedgerRepo is append-only: there is no update or delete.
type StampLedgerRepo interface {
	Insert(dbc dbctx.Context, row *types.StampLedgerEntry) error
	Get(dbc dbctx.Context, guestID, zoneName string) (*types.StampLedgerEntry, error)
	ListByGuest(dbc dbctx.Context, guestID string) ([]*types.StampLedgerEntry, error)
}

type stampLedgerRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewStampLedgerRepo(db *gorm.DB, baseLog *logger.Logger) StampLedgerRepo {
	return &stampLedgerRepo{db: db, log: baseLog.With("repo", "StampLedgerRepo")}
}

// Insert fails with gorm.ErrDuplicatedKey when (guest_id, zone_name) exists.
func (r *stampLedgerRepo) Insert(dbc dbctx.Context, row *types.StampLedgerEntry) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if row == nil {
		return nil
	}
	if len(row.Metadata) == 0 {
		row.Metadata = nil
	}
	return t.WithContext(dbc.Ctx).Create(row).Error
}

func (r *stampLedgerRepo) Get(dbc dbctx.Context, guestID, zoneName string) (*types.StampLedgerEntry, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if strings.TrimSpace(guestID) == "" || strings.TrimSpace(zoneName) == "" {
		return nil, nil
	}
	var rows []*types.StampLedgerEntry
	if err := t.WithContext(dbc.Ctx).
		Where("guest_id = ? AND zone_name = ?", guestID, zoneName).
		Limit(1).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *stampLedgerRepo) ListByGuest(dbc dbctx.Context, guestID string) ([]*types.StampLedgerEntry, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	out := []*types.StampLedgerEntry{}
	if strings.TrimSpace(guestID) == "" {
		return out, nil
	}
	if err := t.WithContext(dbc.Ctx).
		Where("guest_id = ?", guestID).
		Order("collected_at ASC").
		Order("zone_name ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
