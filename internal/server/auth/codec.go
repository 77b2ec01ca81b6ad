// Package auth implements the stateless token codec: issuing and verifying
// signed, expiring tokens that carry a subject identity, a token kind and a
// unique identifier (jti) used as the revocation key.
package auth

import (
	"errors"
	"time"

	"github.com/fittrack/server/internal/server/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Decode failure classes. Services collapse all of them into a single
// "invalid token" answer; the split exists for logging and tests only.
var (
	ErrTokenMalformed = errors.New("token malformed")
	ErrTokenExpired   = errors.New("token expired")
	ErrTokenInvalid   = errors.New("token invalid")
)

// Claims is the token payload: registered claims (sub, jti, exp, iat, iss)
// plus the token kind.
type Claims struct {
	jwt.RegisteredClaims
	TokenType string `json:"type"`
}

// Codec signs and verifies tokens with a single process-wide secret injected
// at construction. Every call is independent and side-effect free.
type Codec struct {
	secret []byte
	issuer string
	method jwt.SigningMethod
}

func NewCodec(secret []byte, issuer string) *Codec {
	return &Codec{
		secret: secret,
		issuer: issuer,
		method: jwt.SigningMethodHS256,
	}
}

// Issue produces a signed token for the subject with a fresh random jti.
// The jti is a UUIDv4 (122 random bits), so a collision between two issued
// tokens is negligible; one logout can only ever revoke its own token.
func (c *Codec) Issue(subject, kind string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ID:        uuid.NewString(),
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		TokenType: kind,
	}

	return jwt.NewWithClaims(c.method, claims).SignedString(c.secret)
}

// Decode verifies signature and expiry and returns the embedded claims.
func (c *Codec) Decode(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return c.secret, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, ErrTokenMalformed
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrTokenExpired
		default:
			return nil, ErrTokenInvalid
		}
	}

	if !token.Valid {
		return nil, ErrTokenInvalid
	}

	if claims.TokenType != models.TokenKindAccess && claims.TokenType != models.TokenKindRefresh {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}
