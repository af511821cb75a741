package jwtinfra

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/yuutasakka/zeroshin-verify/internal/domain"
)

// Claims is the signed token payload shared by access and refresh tokens.
type Claims struct {
	Email     string   `json:"email,omitempty"`
	TokenType string   `json:"type"` // "access" | "refresh"
	SessionID string   `json:"session_id"`
	DeviceID  string   `json:"device_id"`
	IPAddress string   `json:"ip,omitempty"`
	Scope     []string `json:"scope,omitempty"`
	jwt.RegisteredClaims
}

// Codec signs and verifies compact HS256 tokens with a server-held symmetric
// secret. The verifier pins the signing method: the alg field of an incoming
// token is never trusted to select the algorithm.
type Codec struct {
	secret []byte
}

func NewCodec(secret string) *Codec {
	return &Codec{secret: []byte(secret)}
}

// Sign produces a signed header.payload.signature token.
// Fails with domain.ErrConfiguration when no secret is configured.
func (c *Codec) Sign(claims *Claims) (string, error) {
	if len(c.secret) == 0 {
		return "", domain.ErrConfiguration
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
}

// Verify recomputes the signature over the token and returns its claims.
// Expiry is enforced here; issuer/audience/type checks belong to the caller.
func (c *Codec) Verify(tokenStr string) (*Claims, error) {
	if len(c.secret) == 0 {
		return nil, domain.ErrConfiguration
	}
	if strings.Count(tokenStr, ".") != 2 {
		return nil, domain.ErrMalformedToken
	}
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, domain.ErrInvalidSignature
		}
		return c.secret, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, domain.ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, domain.ErrInvalidSignature
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, domain.ErrMalformedToken
		default:
			return nil, domain.ErrInvalidSignature
		}
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, domain.ErrInvalidSignature
	}
	return claims, nil
}

// ExpiresIn returns the time left before the claims expire, zero when the
// expiry field is absent.
func (cl *Claims) ExpiresIn(now time.Time) time.Duration {
	if cl.ExpiresAt == nil {
		return 0
	}
	return cl.ExpiresAt.Time.Sub(now)
}
