// Package auth implements issuance and verification of the bearer
// credentials the API runs on, plus the ownership/role checks applied to
// decoded identities.
package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for every verification failure: malformed
// structure, bad signature, or expiry. Uniform on purpose so callers
// cannot probe which check failed.
var ErrInvalidToken = errors.New("invalid or expired token")

const bearerPrefix = "Bearer "

// DefaultTokenTTL is the issuance lifetime applied when none is
// configured.
const DefaultTokenTTL = 7 * 24 * time.Hour

// Claims is the identity payload carried by a verified credential. It is
// immutable after decoding and scoped to a single request.
type Claims struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name,omitempty"`
	Role        string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Subject is the identity a token is issued for.
type Subject struct {
	ID          string
	DisplayName string
	Role        string
}

// Codec issues and verifies HS256-signed tokens with a process-wide
// secret. The wall clock is injectable so expiry is testable; request
// timing elsewhere uses the monotonic clock and is deliberately a
// separate source.
type Codec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// CodecOption customises a Codec.
type CodecOption func(*Codec)

// WithTTL overrides the default 7-day token lifetime.
func WithTTL(ttl time.Duration) CodecOption {
	return func(c *Codec) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithClock overrides the wall-clock source used for issuance and expiry.
func WithClock(now func() time.Time) CodecOption {
	return func(c *Codec) {
		if now != nil {
			c.now = now
		}
	}
}

// NewCodec creates a Codec. An empty secret is a startup bug and panics
// here rather than failing on the first request.
func NewCodec(secret string, opts ...CodecOption) *Codec {
	if secret == "" {
		panic("auth: signing secret must not be empty")
	}
	c := &Codec{
		secret: []byte(secret),
		ttl:    DefaultTokenTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Issue signs a token for the subject with issuedAt = now and
// expiresAt = now + TTL.
func (c *Codec) Issue(subject Subject) (string, error) {
	now := c.now()
	claims := &Claims{
		UserID:      subject.ID,
		DisplayName: subject.DisplayName,
		Role:        subject.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
			Issuer:    "taskboard",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(c.secret)
}

// Verify parses the token and checks signature and expiry. Every failure
// collapses to ErrInvalidToken.
func (c *Codec) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return c.secret, nil
	}, jwt.WithTimeFunc(c.now), jwt.WithExpirationRequired())

	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ExtractBearer pulls the token out of an Authorization header value.
// The prefix match is case-sensitive and the token is whitespace-trimmed.
// Any other shape, including an empty token, yields ok = false; absence
// is not an error and is distinct from an invalid token.
func ExtractBearer(headerValue string) (string, bool) {
	if !strings.HasPrefix(headerValue, bearerPrefix) {
		return "", false
	}
	token := strings.TrimSpace(headerValue[len(bearerPrefix):])
	if token == "" {
		return "", false
	}
	return token, true
}
