// Package scan validates incoming zone scans before they reach the stamp
// aggregate.
package scan

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"unicode"

	"github.com/yungbote/tastequest-backend/internal/domain/quest"
	"github.com/yungbote/tastequest-backend/internal/modules/quest/proof"
	"github.com/yungbote/tastequest-backend/internal/modules/quest/zones"
	"github.com/yungbote/tastequest-backend/internal/platform/ctxutil"
	"github.com/yungbote/tastequest-backend/internal/platform/logger"
)

const maxGuestIDLen = 128

// GuestTokenMode controls how much the engine trusts a caller-supplied guest_id.
type GuestTokenMode string

const (
	// GuestTokenOff ignores guest tokens entirely.
	GuestTokenOff GuestTokenMode = "off"
	// GuestTokenOptional verifies a token when one is sent.
	GuestTokenOptional GuestTokenMode = "optional"
	// GuestTokenRequired demands a token unless a verified device proof vouches for the scan.
	GuestTokenRequired GuestTokenMode = "required"
)

func ParseGuestTokenMode(raw string) (GuestTokenMode, bool) {
	switch GuestTokenMode(strings.ToLower(strings.TrimSpace(raw))) {
	case "", GuestTokenOptional:
		return GuestTokenOptional, true
	case GuestTokenOff:
		return GuestTokenOff, true
	case GuestTokenRequired:
		return GuestTokenRequired, true
	default:
		return GuestTokenOptional, false
	}
}

type Policy struct {
	GuestTokenMode GuestTokenMode
	// RequireNFCProof rejects nfc scans that arrive without any device proof.
	RequireNFCProof bool
}

// Event is a raw scan as received from a client.
type Event struct {
	GuestID     string
	ZoneName    string
	Source      string
	DeviceProof string
	GuestToken  string
}

// Validated is a scan that passed every check.
type Validated struct {
	GuestID       string
	Zone          quest.Zone
	Source        quest.Source
	DeviceProofID *string
	Proof         *proof.DeviceClaims
	GuestVerified bool
}

// SecurityHooks receives authenticity failures for abuse monitoring.
type SecurityHooks interface {
	IncSecurityEvent(event string)
}

type Validator struct {
	log      *logger.Logger
	zones    *zones.Registry
	devices  proof.DeviceVerifier
	guests   proof.GuestVerifier
	policy   Policy
	security SecurityHooks
}

type ValidatorDeps struct {
	Log      *logger.Logger
	Zones    *zones.Registry
	Devices  proof.DeviceVerifier
	Guests   proof.GuestVerifier
	Policy   Policy
	Security SecurityHooks
}

func NewValidator(deps ValidatorDeps) *Validator {
	log := deps.Log
	if log == nil {
		log = logger.NewNop()
	}
	if deps.Policy.GuestTokenMode == "" {
		deps.Policy.GuestTokenMode = GuestTokenOptional
	}
	return &Validator{
		log:      log.With("service", "ScanValidator"),
		zones:    deps.Zones,
		devices:  deps.Devices,
		guests:   deps.Guests,
		policy:   deps.Policy,
		security: deps.Security,
	}
}

func (v *Validator) Policy() Policy { return v.policy }

// Validate runs the checks in order: guest id, source, zone, device proof,
// guest token. It returns a *Rejection on failure.
func (v *Validator) Validate(ctx context.Context, ev Event) (Validated, error) {
	var out Validated

	guestID := strings.TrimSpace(ev.GuestID)
	if guestID == "" {
		return out, invalid(ReasonMissingGuestID, "guest_id is required")
	}
	if len(guestID) > maxGuestIDLen || strings.IndexFunc(guestID, unicode.IsControl) >= 0 {
		return out, invalid(ReasonInvalidGuestID, "guest_id is too long or contains control characters")
	}

	source, err := quest.ParseSource(ev.Source)
	if err != nil {
		return out, invalid(ReasonInvalidSource, "source must be one of web, nfc, qr")
	}

	if strings.TrimSpace(ev.ZoneName) == "" {
		return out, invalid(ReasonMissingZone, "zone_name is required")
	}
	zone, ok := v.zones.Lookup(ev.ZoneName)
	if !ok {
		return out, invalid(ReasonUnknownZone, "zone_name is not a venue zone")
	}

	out.GuestID = guestID
	out.Zone = zone
	out.Source = source

	rawProof := strings.TrimSpace(ev.DeviceProof)
	if rawProof != "" {
		claims, perr := v.verifyDevice(rawProof, zone.Name)
		switch {
		case perr == nil:
			out.Proof = claims
			id := ProofID(claims.Tag, rawProof)
			out.DeviceProofID = &id
		case source.DeviceBound():
			return Validated{}, v.reject(ctx, ev, source, forged(ReasonInvalidDeviceProof, "device proof failed verification", proof.Reason(perr)))
		default:
			v.log.Debug("ignoring unverifiable proof on web scan", "zone", zone.Name, "detail", proof.Reason(perr))
		}
	} else if source == quest.SourceNFC && v.policy.RequireNFCProof {
		return Validated{}, v.reject(ctx, ev, source, forged(ReasonMissingDeviceProof, "nfc scans must carry a device proof", ""))
	}

	if rej := v.checkGuest(ev, &out); rej != nil {
		return Validated{}, v.reject(ctx, ev, source, rej)
	}
	return out, nil
}

// ProofID is the ledger identifier for a verified proof: the issuing tag plus
// a fingerprint of the token, so the token itself is never stored.
func ProofID(tag, raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return tag + ":" + hex.EncodeToString(sum[:8])
}

func (v *Validator) verifyDevice(raw, zoneName string) (*proof.DeviceClaims, error) {
	if v.devices == nil {
		return nil, proof.ErrMissingSecret
	}
	claims, err := v.devices.VerifyDevice(raw)
	if err != nil {
		return nil, err
	}
	if zones.Canonical(claims.Zone) != zoneName {
		return nil, errors.Join(proof.ErrZoneMismatch, errors.New(claims.Zone))
	}
	return claims, nil
}

func (v *Validator) checkGuest(ev Event, out *Validated) *Rejection {
	if v.policy.GuestTokenMode == GuestTokenOff {
		return nil
	}
	raw := strings.TrimSpace(ev.GuestToken)
	if raw == "" {
		// Only a device-bound source can vouch for a guest without a token.
		deviceVouched := out.Proof != nil && out.Source.DeviceBound()
		if v.policy.GuestTokenMode == GuestTokenRequired && !deviceVouched {
			return forged(ReasonMissingGuestToken, "a signed guest token is required for this scan", "")
		}
		return nil
	}
	if v.guests == nil {
		return forged(ReasonInvalidGuestToken, "guest tokens are not accepted by this venue", proof.Reason(proof.ErrMissingSecret))
	}
	sub, err := v.guests.VerifyGuest(raw)
	if err != nil {
		return forged(ReasonInvalidGuestToken, "guest token failed verification", proof.Reason(err))
	}
	if sub != out.GuestID {
		return forged(ReasonInvalidGuestToken, "guest token was issued to a different guest", proof.Reason(proof.ErrSubject))
	}
	out.GuestVerified = true
	return nil
}

// reject logs authenticity failures with abuse=true and counts them as
// security events. Validation failures pass through silently.
func (v *Validator) reject(ctx context.Context, ev Event, source quest.Source, rej *Rejection) *Rejection {
	if rej.IsAuthenticity() {
		v.log.Warn("scan authenticity failure",
			"abuse", true,
			"reason", string(rej.Reason),
			"detail", rej.Detail,
			"guest_id", strings.TrimSpace(ev.GuestID),
			"zone", ev.ZoneName,
			"source", string(source),
			"request_id", ctxutil.RequestID(ctx),
		)
		if v.security != nil {
			v.security.IncSecurityEvent("scan_" + string(rej.Reason))
		}
	}
	return rej
}
