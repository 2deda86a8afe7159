package quest

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// StampLedgerEntry records one guest completing one zone. Rows are inserted
// once and never updated; (guest_id, zone_name) is unique in the store.
type StampLedgerEntry struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	GuestID  string    `gorm:"type:text;not null;uniqueIndex:ux_stamp_ledger_guest_zone,priority:1" json:"guest_id"`
	ZoneName string    `gorm:"type:text;not null;uniqueIndex:ux_stamp_ledger_guest_zone,priority:2" json:"zone_name"`

	CollectedAt time.Time `gorm:"not null;index" json:"collected_at"`
	Source      Source    `gorm:"type:text;not null" json:"source"`

	DeviceProofID *string        `gorm:"type:text" json:"-"`
	Metadata      datatypes.JSON `json:"metadata,omitempty"`
}

func (StampLedgerEntry) TableName() string { return "stamp_ledger_entry" }

// Source is the channel a scan arrived through.
type Source string

const (
	SourceWeb Source = "web"
	SourceNFC Source = "nfc"
	SourceQR  Source = "qr"
)

// ParseSource normalizes a caller-supplied source. Empty means web.
func ParseSource(raw string) (Source, error) {
	switch Source(strings.ToLower(strings.TrimSpace(raw))) {
	case "", SourceWeb:
		return SourceWeb, nil
	case SourceNFC:
		return SourceNFC, nil
	case SourceQR:
		return SourceQR, nil
	default:
		return "", fmt.Errorf("unknown scan source %q", raw)
	}
}

// DeviceBound reports whether the source comes from a physical tag reader.
func (s Source) DeviceBound() bool {
	return s == SourceNFC || s == SourceQR
}
