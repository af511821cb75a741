package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yuutasakka/zeroshin-verify/internal/application/csrf"
	"github.com/yuutasakka/zeroshin-verify/internal/transport/http/middleware"
)

func newCSRFRegistry(t *testing.T) *csrf.Registry {
	t.Helper()
	reg := csrf.NewRegistry("test-csrf-secret", csrf.NewMemoryStore(), nil)
	t.Cleanup(reg.Close)
	return reg
}

func cookieByName(res *http.Response, name string) *http.Cookie {
	for _, c := range res.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestCSRFToken_NewClient(t *testing.T) {
	reg := newCSRFRegistry(t)
	h := NewCSRFHandler(reg, false)

	r := httptest.NewRequest(http.MethodGet, "/v1/csrf-token", nil)
	r.RemoteAddr = "10.0.0.1:1234"
	w := httptest.NewRecorder()
	h.Token(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	var env CSRFEnvelope
	require.NoError(t, json.NewDecoder(w.Body).Decode(&env))
	assert.Len(t, env.CSRFToken, 64)
	assert.NotEmpty(t, env.SessionID)
	assert.Greater(t, env.ExpiresIn, 0)

	res := w.Result()
	sid := cookieByName(res, middleware.SessionIDCookie)
	require.NotNil(t, sid)
	assert.Equal(t, env.SessionID, sid.Value)
	assert.True(t, sid.HttpOnly)
	assert.False(t, sid.Secure) // dev mode

	tok := cookieByName(res, middleware.CSRFCookie)
	require.NotNil(t, tok)
	assert.Equal(t, env.CSRFToken, tok.Value)

	// the issued token is redeemable for that session and bound to the IP
	assert.True(t, reg.Validate(env.SessionID, env.CSRFToken, "10.0.0.1"))
}

func TestCSRFToken_ReusesExistingSessionCookie(t *testing.T) {
	reg := newCSRFRegistry(t)
	h := NewCSRFHandler(reg, false)

	r := httptest.NewRequest(http.MethodGet, "/v1/csrf-token", nil)
	r.RemoteAddr = "10.0.0.1:1234"
	r.AddCookie(&http.Cookie{Name: middleware.SessionIDCookie, Value: "existing-sid"})
	w := httptest.NewRecorder()
	h.Token(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	var env CSRFEnvelope
	require.NoError(t, json.NewDecoder(w.Body).Decode(&env))
	assert.Equal(t, "existing-sid", env.SessionID)
	assert.Nil(t, cookieByName(w.Result(), middleware.SessionIDCookie), "no new session cookie set")
}

func TestCSRFToken_SecureCookiesInProduction(t *testing.T) {
	reg := newCSRFRegistry(t)
	h := NewCSRFHandler(reg, true)

	r := httptest.NewRequest(http.MethodGet, "/v1/csrf-token", nil)
	r.RemoteAddr = "10.0.0.1:1234"
	w := httptest.NewRecorder()
	h.Token(w, r)

	res := w.Result()
	for _, name := range []string{middleware.SessionIDCookie, middleware.CSRFCookie} {
		c := cookieByName(res, name)
		require.NotNil(t, c)
		assert.True(t, c.Secure, name)
	}
}

func TestCSRFToken_RepeatCallRotatesToken(t *testing.T) {
	reg := newCSRFRegistry(t)
	h := NewCSRFHandler(reg, false)

	issue := func() CSRFEnvelope {
		r := httptest.NewRequest(http.MethodGet, "/v1/csrf-token", nil)
		r.RemoteAddr = "10.0.0.1:1234"
		r.AddCookie(&http.Cookie{Name: middleware.SessionIDCookie, Value: "sid-1"})
		w := httptest.NewRecorder()
		h.Token(w, r)
		require.Equal(t, http.StatusOK, w.Code)
		var env CSRFEnvelope
		require.NoError(t, json.NewDecoder(w.Body).Decode(&env))
		return env
	}

	first := issue()
	second := issue()
	assert.NotEqual(t, first.CSRFToken, second.CSRFToken)
	// only the latest token is redeemable
	assert.False(t, reg.Validate("sid-1", first.CSRFToken, "10.0.0.1"))
	assert.True(t, reg.Validate("sid-1", second.CSRFToken, "10.0.0.1"))
}
