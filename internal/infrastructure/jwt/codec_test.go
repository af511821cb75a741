package jwtinfra

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yuutasakka/zeroshin-verify/internal/domain"
)

func testClaims(exp time.Time) *Claims {
	return &Claims{
		TokenType: "access",
		SessionID: "sess-1",
		DeviceID:  "dev-1",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ID:        "jti-1",
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
}

func TestCodec_SignVerify_RoundTrip(t *testing.T) {
	c := NewCodec("test-secret")
	tok, err := c.Sign(testClaims(time.Now().Add(time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, 3, len(strings.Split(tok, ".")))

	claims, err := c.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "sess-1", claims.SessionID)
	assert.Equal(t, "access", claims.TokenType)
}

func TestCodec_NoSecret_FailsClosed(t *testing.T) {
	c := NewCodec("")
	_, err := c.Sign(testClaims(time.Now().Add(time.Hour)))
	assert.ErrorIs(t, err, domain.ErrConfiguration)

	_, err = c.Verify("a.b.c")
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestCodec_MalformedToken(t *testing.T) {
	c := NewCodec("test-secret")
	for _, tok := range []string{"", "onlyone", "two.parts", "a.b.c.d"} {
		_, err := c.Verify(tok)
		assert.ErrorIs(t, err, domain.ErrMalformedToken, tok)
	}
}

func TestCodec_PayloadTamper_FailsVerification(t *testing.T) {
	c := NewCodec("test-secret")
	tok, err := c.Sign(testClaims(time.Now().Add(time.Hour)))
	require.NoError(t, err)

	parts := strings.Split(tok, ".")
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	require.NoError(t, err)
	payload[0] ^= 0x01 // flip one bit
	parts[1] = base64.RawURLEncoding.EncodeToString(payload)

	_, err = c.Verify(strings.Join(parts, "."))
	require.Error(t, err)
}

func TestCodec_WrongSecret_InvalidSignature(t *testing.T) {
	tok, err := NewCodec("secret-a").Sign(testClaims(time.Now().Add(time.Hour)))
	require.NoError(t, err)

	_, err = NewCodec("secret-b").Verify(tok)
	assert.ErrorIs(t, err, domain.ErrInvalidSignature)
}

func TestCodec_Expired(t *testing.T) {
	c := NewCodec("test-secret")
	tok, err := c.Sign(testClaims(time.Now().Add(-time.Minute)))
	require.NoError(t, err)

	_, err = c.Verify(tok)
	assert.ErrorIs(t, err, domain.ErrTokenExpired)
}

func TestCodec_RejectsForeignAlgorithm(t *testing.T) {
	// A token whose header claims "none" must never verify: the codec pins
	// HMAC and ignores the alg field for key selection.
	c := NewCodec("test-secret")
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, testClaims(time.Now().Add(time.Hour))).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = c.Verify(unsigned)
	require.Error(t, err)
}

func TestClaims_ExpiresIn(t *testing.T) {
	now := time.Now()
	cl := testClaims(now.Add(10 * time.Minute))
	assert.InDelta(t, float64(10*time.Minute), float64(cl.ExpiresIn(now)), float64(time.Second))

	cl.ExpiresAt = nil
	assert.Equal(t, time.Duration(0), cl.ExpiresIn(now))
}
