// Package proof issues and verifies the signed tokens carried by physical zone
// tags (device proofs) and by web clients (guest tokens).
//
// Device proofs are HS256 JWTs. Each tag signs with its own key derived from
// the venue secret via HKDF, so a leaked tag key does not forge other tags.
package proof

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/hkdf"
)

const deviceKeySalt = "tastequest/device-proof/v1"

// DeviceClaims is the payload a zone tag presents.
type DeviceClaims struct {
	Zone string `json:"zone"`
	Tag  string `json:"tag"`
	jwt.RegisteredClaims
}

// DeviceVerifier checks device proofs. Implemented by *DeviceSigner.
type DeviceVerifier interface {
	VerifyDevice(token string) (*DeviceClaims, error)
}

type DeviceSigner struct {
	secret []byte
	leeway time.Duration
	now    func() time.Time
}

type DeviceOption func(*DeviceSigner)

// WithClock overrides the time source used for iat/exp checks.
func WithClock(now func() time.Time) DeviceOption {
	return func(s *DeviceSigner) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLeeway tolerates tag clock drift when checking exp and nbf.
func WithLeeway(d time.Duration) DeviceOption {
	return func(s *DeviceSigner) { s.leeway = d }
}

func NewDeviceSigner(secret []byte, opts ...DeviceOption) (*DeviceSigner, error) {
	if len(secret) == 0 {
		return nil, ErrMissingSecret
	}
	s := &DeviceSigner{
		secret: append([]byte(nil), secret...),
		leeway: 30 * time.Second,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// TagKey derives the signing key provisioned onto tag tagID.
func (s *DeviceSigner) TagKey(tagID string) ([]byte, error) {
	tagID = strings.TrimSpace(tagID)
	if tagID == "" {
		return nil, errors.Join(ErrClaims, errors.New("tag id is required"))
	}
	key := make([]byte, 32)
	r := hkdf.New(sha256.New, s.secret, []byte(deviceKeySalt), []byte(tagID))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("derive tag key: %w", err)
	}
	return key, nil
}

// IssueDevice signs a proof for zone on behalf of tag. A ttl of zero issues
// a proof without expiry, as printed QR codes carry.
func (s *DeviceSigner) IssueDevice(zone, tag string, ttl time.Duration) (string, error) {
	zone = strings.TrimSpace(zone)
	tag = strings.TrimSpace(tag)
	if zone == "" {
		return "", errors.Join(ErrClaims, errors.New("zone is required"))
	}
	key, err := s.TagKey(tag)
	if err != nil {
		return "", err
	}
	now := s.now()
	claims := DeviceClaims{
		Zone: zone,
		Tag:  tag,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token.Header["kid"] = tag
	return token.SignedString(key)
}

// VerifyDevice checks structure, signature and time claims of a device proof.
// It does not compare the zone; callers match Zone against the scanned zone.
func (s *DeviceSigner) VerifyDevice(raw string) (*DeviceClaims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, errors.Join(ErrMalformed, errors.New("empty proof"))
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(s.leeway),
		jwt.WithTimeFunc(s.now),
		jwt.WithIssuedAt(),
	)
	claims := &DeviceClaims{}
	_, err := parser.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		kid, _ := token.Header["kid"].(string)
		if kid == "" || claims.Tag == "" || kid != claims.Tag {
			return nil, errors.Join(ErrClaims, errors.New("kid header must name the issuing tag"))
		}
		return s.TagKey(kid)
	})
	if err != nil {
		return nil, classify(err)
	}
	if strings.TrimSpace(claims.Zone) == "" {
		return nil, errors.Join(ErrClaims, errors.New("zone claim is required"))
	}
	return claims, nil
}
