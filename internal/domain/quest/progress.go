package quest

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// GuestProgress is the per-guest aggregate row. It is created lazily by the
// first stamp and mutated only by the stamp aggregate.
type GuestProgress struct {
	ID      uuid.UUID `gorm:"type:uuid;primaryKey" json:"-"`
	GuestID string    `gorm:"type:text;not null;uniqueIndex:ux_guest_progress_guest_id" json:"guest_id"`

	TotalStamps   int `gorm:"not null;default:0" json:"total_stamps"`
	CurrentStreak int `gorm:"not null;default:0" json:"current_streak"`
	LongestStreak int `gorm:"not null;default:0" json:"longest_streak"`

	// Venue-local civil dates, YYYY-MM-DD. Empty until the first stamp.
	LastStampDate    string `gorm:"type:text;not null;default:''" json:"last_stamp_date,omitempty"`
	RegistrationDate string `gorm:"type:text;not null;default:''" json:"registration_date,omitempty"`

	UnlockedRewards datatypes.JSON `json:"unlocked_rewards"`

	Version int `gorm:"not null;default:0" json:"version"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (GuestProgress) TableName() string { return "guest_progress" }

// Rewards decodes UnlockedRewards. A missing or unreadable column yields an
// empty set.
func (p *GuestProgress) Rewards() []string {
	if p == nil || len(p.UnlockedRewards) == 0 {
		return []string{}
	}
	var out []string
	if err := json.Unmarshal(p.UnlockedRewards, &out); err != nil || out == nil {
		return []string{}
	}
	return out
}

// EncodeRewards renders a reward id list for the unlocked_rewards column.
func EncodeRewards(ids []string) datatypes.JSON {
	if ids == nil {
		ids = []string{}
	}
	raw, _ := json.Marshal(ids)
	return datatypes.JSON(raw)
}

// LeaderboardEntry is the public projection of GuestProgress used for ranking.
type LeaderboardEntry struct {
	Rank             int    `json:"rank"`
	GuestID          string `json:"guest_id"`
	TotalStamps      int    `json:"total_stamps"`
	CurrentStreak    int    `json:"current_streak"`
	RegistrationDate string `json:"registration_date"`
}
