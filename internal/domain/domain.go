package domain

import (
	"gorm.io/datatypes"

	"github.com/yungbote/tastequest-backend/internal/domain/quest"
)

type GuestProgress = quest.GuestProgress
type StampLedgerEntry = quest.StampLedgerEntry
type LeaderboardEntry = quest.LeaderboardEntry
type Zone = quest.Zone
type RewardThreshold = quest.RewardThreshold
type Source = quest.Source

const (
	SourceWeb = quest.SourceWeb
	SourceNFC = quest.SourceNFC
	SourceQR  = quest.SourceQR
)

func EncodeRewards(ids []string) datatypes.JSON { return quest.EncodeRewards(ids) }

func ParseSource(raw string) (Source, error) { return quest.ParseSource(raw) }
