package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/tastequest-backend/internal/data/repos"
	"github.com/yungbote/tastequest-backend/internal/platform/logger"
)

type Repos struct {
	GuestProgress repos.GuestProgressRepo
	StampLedger   repos.StampLedgerRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		GuestProgress: repos.NewGuestProgressRepo(db, log),
		StampLedger:   repos.NewStampLedgerRepo(db, log),
	}
}
