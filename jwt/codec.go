package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrDecode is returned when a token's structure cannot be decoded.
var ErrDecode = errors.New("token decode failed")

// Claims is the client-side view of an access token's payload. It is always
// re-derived from the token string and never persisted separately.
type Claims struct {
	SubjectID    string
	Role         string
	GymID        string
	NationalCode string

	// ExpiresAt is only meaningful when HasExpiry is true. Tokens without an
	// expiry claim are treated as already expired (fail safe).
	ExpiresAt time.Time
	HasExpiry bool
}

// accessClaims mirrors the payload the gym backend emits. The subject arrives
// as either "sub" or the legacy "nameid".
type accessClaims struct {
	NameID       string `json:"nameid,omitempty"`
	Role         string `json:"role,omitempty"`
	GymID        string `json:"gymId,omitempty"`
	NationalCode string `json:"nationalCode,omitempty"`
	jwt.RegisteredClaims
}

// Codec decodes opaque bearer tokens into [Claims]. A Codec is immutable after
// construction and safe for concurrent use.
type Codec struct {
	expirySkew time.Duration
	parser     *jwt.Parser
}

// NewCodec creates a Codec. expirySkew shifts the expiry comparison forward so
// a token about to lapse can be treated as already expired; it must lie in
// [0, 10m].
func NewCodec(expirySkew time.Duration) (*Codec, error) {
	if expirySkew < 0 || expirySkew > 10*time.Minute {
		return nil, errors.New("invalid expiry skew configuration")
	}

	return &Codec{
		expirySkew: expirySkew,
		parser:     jwt.NewParser(),
	}, nil
}

// Decode parses the token's payload segment into [Claims]. It fails with an
// [ErrDecode]-wrapped error when the structure is malformed. No signature
// verification takes place.
func (c *Codec) Decode(tokenStr string) (*Claims, error) {
	if c == nil {
		return nil, ErrDecode
	}

	raw := &accessClaims{}
	if _, _, err := c.parser.ParseUnverified(tokenStr, raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	subject := raw.Subject
	if subject == "" {
		subject = raw.NameID
	}

	claims := &Claims{
		SubjectID:    subject,
		Role:         raw.Role,
		GymID:        raw.GymID,
		NationalCode: raw.NationalCode,
	}
	if raw.ExpiresAt != nil {
		claims.ExpiresAt = raw.ExpiresAt.Time
		claims.HasExpiry = true
	}

	return claims, nil
}

// IsExpired reports whether the token is unusable at the given instant. A
// token that fails to decode or carries no expiry claim counts as expired.
func (c *Codec) IsExpired(tokenStr string, now time.Time) bool {
	claims, err := c.Decode(tokenStr)
	if err != nil {
		return true
	}
	return claims.Expired(now.Add(c.expirySkew))
}

// Expired reports whether the claims' expiry has passed at the given instant.
func (cl *Claims) Expired(now time.Time) bool {
	if cl == nil || !cl.HasExpiry {
		return true
	}
	return !cl.ExpiresAt.After(now)
}
