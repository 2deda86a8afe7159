package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/tastequest-backend/internal/data/repos/quest"
	"github.com/yungbote/tastequest-backend/internal/platform/logger"
)

type GuestProgressRepo = quest.GuestProgressRepo
type StampLedgerRepo = quest.StampLedgerRepo

func NewGuestProgressRepo(db *gorm.DB, baseLog *logger.Logger) GuestProgressRepo {
	return quest.NewGuestProgressRepo(db, baseLog)
}
func NewStampLedgerRepo(db *gorm.DB, baseLog *logger.Logger) StampLedgerRepo {
	return quest.NewStampLedgerRepo(db, baseLog)
}
