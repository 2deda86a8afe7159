package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/tastequest-backend/internal/domain/quest"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(
		&quest.GuestProgress{},
		&quest.StampLedgerEntry{},
	)
}

// EnsureQuestIndexes adds indexes GORM tags cannot express. The statements
// are portable between Postgres and SQLite.
func EnsureQuestIndexes(db *gorm.DB) error {
	// Leaderboard scan order.
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_guest_progress_leaderboard
		ON guest_progress (total_stamps DESC, current_streak DESC, registration_date, guest_id);
	`).Error; err != nil {
		return fmt.Errorf("create idx_guest_progress_leaderboard: %w", err)
	}
	// Per-guest stamp listing.
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_stamp_ledger_guest_collected
		ON stamp_ledger_entry (guest_id, collected_at);
	`).Error; err != nil {
		return fmt.Errorf("create idx_stamp_ledger_guest_collected: %w", err)
	}
	return nil
}

// Migrate runs AutoMigrateAll followed by the index helpers.
func Migrate(db *gorm.DB) error {
	if err := AutoMigrateAll(db); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return EnsureQuestIndexes(db)
}
