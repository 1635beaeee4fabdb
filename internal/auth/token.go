package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/felixgeelhaar/eventify/internal/domain"
	apperrors "github.com/felixgeelhaar/eventify/internal/errors"
)

// Claims are the JWT claims carried by Eventify session tokens.
type Claims struct {
	jwt.RegisteredClaims

	Name  string      `json:"name,omitempty"`
	Email string      `json:"email"`
	Role  domain.Role `json:"role"`
}

// Profile rebuilds the profile embedded in the claims.
func (c *Claims) Profile() domain.Profile {
	return domain.Profile{
		ID:    domain.ID(c.Subject),
		Name:  c.Name,
		Email: c.Email,
		Role:  c.Role,
	}
}

// TokenIssuer signs and verifies HS256 session tokens. The client never
// holds the signing key; the issuer backs the mock API.
type TokenIssuer struct {
	signingKey []byte
	issuer     string
	ttl        time.Duration
	now        func() time.Time
}

// NewTokenIssuer creates an issuer with a 24h token lifetime.
func NewTokenIssuer(signingKey []byte, issuer string) *TokenIssuer {
	return &TokenIssuer{
		signingKey: signingKey,
		issuer:     issuer,
		ttl:        24 * time.Hour,
		now:        time.Now,
	}
}

// WithTTL sets the token lifetime.
func (ti *TokenIssuer) WithTTL(ttl time.Duration) *TokenIssuer {
	ti.ttl = ttl
	return ti
}

// WithClock replaces the time source.
func (ti *TokenIssuer) WithClock(now func() time.Time) *TokenIssuer {
	ti.now = now
	return ti
}

// Issue signs a token for p.
func (ti *TokenIssuer) Issue(p domain.Profile) (string, error) {
	if err := p.Validate(); err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}

	now := ti.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ti.issuer,
			Subject:   p.ID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(ti.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
		Name:  p.Name,
		Email: p.Email,
		Role:  p.Role,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(ti.signingKey)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks signature, issuer and expiry.
func (ti *TokenIssuer) Verify(token string) (*Claims, error) {
	if token == "" {
		return nil, apperrors.New(apperrors.ErrCodeAuthExpired, "token cannot be empty")
	}

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(*jwt.Token) (any, error) {
		return ti.signingKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(ti.issuer),
		jwt.WithTimeFunc(ti.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperrors.Wrap(apperrors.ErrCodeAuthExpired, "token has expired", err)
		}
		return nil, apperrors.Wrap(apperrors.ErrCodeAuthExpired, "invalid token", err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, apperrors.New(apperrors.ErrCodeAuthExpired, "invalid token claims")
	}
	return claims, nil
}

// ParseUnverified extracts claims without checking the signature. It is
// only fit for local hints such as expiry.
func ParseUnverified(token string) (*Claims, error) {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, &Claims{})
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok {
		return nil, errors.New("unexpected claims type")
	}
	return claims, nil
}

// ExpiredLocally reports whether token is a JWT whose exp lies before now.
// Opaque tokens and tokens without exp are never considered expired.
func ExpiredLocally(token string, now time.Time) bool {
	claims, err := ParseUnverified(token)
	if err != nil || claims.ExpiresAt == nil {
		return false
	}
	return !claims.ExpiresAt.Time.After(now)
}
