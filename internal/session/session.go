// Package session verifies the bearer tokens minted by the external
// identity provider. This service never issues production tokens; it
// only checks the signature and required claims and extracts the
// principal identifier.
package session

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const defaultIssuer = "patronage-id"

// ErrInvalidToken indicates the token failed validation.
var ErrInvalidToken = errors.New("session: invalid token")

// Claims carries the registered claims the identity provider signs.
type Claims struct {
	jwt.RegisteredClaims
}

// Verifier validates HS256 session tokens against the shared secret
// agreed with the identity provider.
type Verifier struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithIssuer overrides the expected issuer claim.
func WithIssuer(issuer string) Option {
	return func(v *Verifier) {
		if issuer = strings.TrimSpace(issuer); issuer != "" {
			v.issuer = issuer
		}
	}
}

// WithClock overrides the time source, for tests.
func WithClock(fn func() time.Time) Option {
	return func(v *Verifier) {
		if fn != nil {
			v.now = fn
		}
	}
}

// NewVerifier constructs a Verifier for the given shared secret.
func NewVerifier(secret string, opts ...Option) (*Verifier, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("session: secret is required")
	}
	v := &Verifier{secret: []byte(secret), issuer: defaultIssuer, now: time.Now}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// Principal verifies the token and returns the principal identifier
// carried in the subject claim.
func (v *Verifier) Principal(token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return v.secret, nil
	}, jwt.WithTimeFunc(v.now))
	if err != nil {
		return "", ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return "", ErrInvalidToken
	}
	if err := v.validate(claims); err != nil {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

func (v *Verifier) validate(claims *Claims) error {
	if claims.Issuer != v.issuer {
		return fmt.Errorf("unexpected issuer: %s", claims.Issuer)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return errors.New("subject missing")
	}
	if claims.ExpiresAt == nil || claims.IssuedAt == nil {
		return errors.New("timestamps missing")
	}
	now := v.now().UTC()
	// Allow a small clock skew of 5 seconds when validating issued-at.
	if claims.IssuedAt.Time.After(now.Add(5 * time.Second)) {
		return errors.New("token issued in the future")
	}
	if claims.ExpiresAt.Time.Before(claims.IssuedAt.Time) {
		return errors.New("token expiry precedes issued-at")
	}
	return nil
}

// Mint signs a token the Verifier will accept. Local development and
// tests only; production tokens come from the identity provider.
func (v *Verifier) Mint(principalID string, ttl time.Duration) (string, error) {
	principalID = strings.TrimSpace(principalID)
	if principalID == "" {
		return "", errors.New("session: principal is required")
	}
	if ttl <= 0 {
		return "", errors.New("session: ttl must be greater than zero")
	}
	now := v.now().UTC()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    v.issuer,
			Subject:   principalID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
