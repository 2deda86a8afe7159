package proof

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const guestTokenIssuer = "tastequest"

// GuestVerifier checks a guest token and returns the guest id it binds.
type GuestVerifier interface {
	VerifyGuest(token string) (string, error)
}

// GuestTokens signs and verifies guest identity tokens handed to web clients.
type GuestTokens struct {
	secret []byte
	now    func() time.Time
}

func NewGuestTokens(secret []byte, now func() time.Time) (*GuestTokens, error) {
	if len(secret) == 0 {
		return nil, ErrMissingSecret
	}
	if now == nil {
		now = time.Now
	}
	return &GuestTokens{secret: append([]byte(nil), secret...), now: now}, nil
}

func (g *GuestTokens) IssueGuest(guestID string, ttl time.Duration) (string, error) {
	guestID = strings.TrimSpace(guestID)
	if guestID == "" {
		return "", errors.Join(ErrClaims, errors.New("guest id is required"))
	}
	now := g.now()
	claims := jwt.RegisteredClaims{
		Issuer:   guestTokenIssuer,
		Subject:  guestID,
		IssuedAt: jwt.NewNumericDate(now),
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(g.secret)
}

func (g *GuestTokens) VerifyGuest(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errors.Join(ErrMalformed, errors.New("empty guest token"))
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(guestTokenIssuer),
		jwt.WithTimeFunc(g.now),
	)
	claims := &jwt.RegisteredClaims{}
	if _, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return g.secret, nil
	}); err != nil {
		return "", classify(err)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return "", errors.Join(ErrClaims, errors.New("sub claim is required"))
	}
	return claims.Subject, nil
}
