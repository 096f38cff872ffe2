// package tokens encodes delegated Spotify credentials into signed,
// tamper-evident tokens held by the browser instead of a server session.
package tokens

import (
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/encore/internal/shared"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// NowFunc returns the current time. It can be overridden in tests.
var NowFunc = time.Now

// DefaultTTL bounds a signed token's lifetime independently of the embedded
// Spotify expiry.
const DefaultTTL = time.Hour

// Bundle holds the delegated credentials carried inside a signed token.
//
// ExpiresAt is derived from the token endpoint's reported lifetime at issue
// time and is never trusted from the client beyond signature verification.
type Bundle struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    int64 // epoch milliseconds
}

// Expired reports whether the embedded access token has passed its expiry.
func (b Bundle) Expired(now time.Time) bool {
	return now.UnixMilli() > b.ExpiresAt
}

// Codec signs and verifies credential bundles with a process-wide symmetric
// secret. Both operations are pure transforms.
type Codec struct {
	secret []byte
	ttl    time.Duration
}

// NewCodec creates a [Codec] with the given signing secret and outer token
// lifetime. A non-positive ttl falls back to [DefaultTTL].
func NewCodec(secret string, ttl time.Duration) *Codec {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Codec{secret: []byte(secret), ttl: ttl}
}

type bundleClaims struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    int64  `json:"expires_at"`
	jwt.RegisteredClaims
}

// Encode signs the bundle into a compact, URL-safe token string with a fresh
// outer expiry claim.
func (c *Codec) Encode(b Bundle) (string, error) {
	now := NowFunc()
	claims := bundleClaims{
		AccessToken:  b.AccessToken,
		RefreshToken: b.RefreshToken,
		ExpiresAt:    b.ExpiresAt,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
			ID:        uuid.New().String(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, nil
}

// Decode verifies the token's signature and outer expiry, then the structural
// validity of the embedded bundle.
//
// Failures map to [shared.ErrInvalidSignature], [shared.ErrTokenExpired] and
// [shared.ErrTokenMalformed].
func (c *Codec) Decode(raw string) (Bundle, error) {
	var claims bundleClaims
	_, err := jwt.ParseWithClaims(raw, &claims,
		func(t *jwt.Token) (any, error) { return c.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return NowFunc() }),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return Bundle{}, fmt.Errorf("%w: %v", shared.ErrInvalidSignature, err)
		case errors.Is(err, jwt.ErrTokenExpired):
			return Bundle{}, fmt.Errorf("%w: %v", shared.ErrTokenExpired, err)
		default:
			return Bundle{}, fmt.Errorf("%w: %v", shared.ErrTokenMalformed, err)
		}
	}

	if claims.AccessToken == "" || claims.RefreshToken == "" || claims.ExpiresAt == 0 {
		return Bundle{}, fmt.Errorf("%w: missing credential claims", shared.ErrTokenMalformed)
	}

	return Bundle{
		AccessToken:  claims.AccessToken,
		RefreshToken: claims.RefreshToken,
		ExpiresAt:    claims.ExpiresAt,
	}, nil
}
