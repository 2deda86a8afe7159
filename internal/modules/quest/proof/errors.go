package proof

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingSecret = errors.New("proof secret is not configured")
	ErrMalformed     = errors.New("proof is malformed")
	ErrSignature     = errors.New("proof signature is invalid")
	ErrExpired       = errors.New("proof has expired")
	ErrNotYetValid   = errors.New("proof is not valid yet")
	ErrClaims        = errors.New("proof claims are incomplete")
	ErrZoneMismatch  = errors.New("proof was issued for a different zone")
	ErrSubject       = errors.New("guest token does not match guest_id")
)

// Reason is a short stable label for logs, metrics and API responses.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrMalformed):
		return "malformed"
	case errors.Is(err, ErrSignature):
		return "bad_signature"
	case errors.Is(err, ErrExpired):
		return "expired"
	case errors.Is(err, ErrNotYetValid):
		return "not_yet_valid"
	case errors.Is(err, ErrClaims):
		return "incomplete_claims"
	case errors.Is(err, ErrZoneMismatch):
		return "zone_mismatch"
	case errors.Is(err, ErrSubject):
		return "subject_mismatch"
	case errors.Is(err, ErrMissingSecret):
		return "not_configured"
	default:
		return "invalid"
	}
}

// classify folds jwt parser errors into this package's sentinels.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrClaims), errors.Is(err, ErrMalformed):
		return err
	case errors.Is(err, jwt.ErrTokenExpired):
		return errors.Join(ErrExpired, err)
	case errors.Is(err, jwt.ErrTokenNotValidYet), errors.Is(err, jwt.ErrTokenUsedBeforeIssued):
		return errors.Join(ErrNotYetValid, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return errors.Join(ErrSignature, err)
	case errors.Is(err, jwt.ErrTokenMalformed):
		return errors.Join(ErrMalformed, err)
	default:
		return errors.Join(ErrMalformed, err)
	}
}
