package csrf

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) (*Registry, *MemoryStore) {
	t.Helper()
	st := NewMemoryStore()
	r := NewRegistry("test-csrf-secret", st, nil)
	t.Cleanup(r.Close)
	return r, st
}

func TestGenerate_ReturnsHighEntropyToken(t *testing.T) {
	r, _ := newTestRegistry(t)
	issued, err := r.Generate("s1", "")
	require.NoError(t, err)
	assert.Len(t, issued.Token, 64) // 32 bytes hex
	assert.Len(t, issued.Secret, 64)
	assert.WithinDuration(t, time.Now().Add(TokenTTL), issued.ExpiresAt, time.Minute)
}

func TestGenerate_TokenIsKeyedMACOverSecret(t *testing.T) {
	r, st := newTestRegistry(t)
	issued, err := r.Generate("s1", "")
	require.NoError(t, err)

	mac := hmac.New(sha256.New, []byte("test-csrf-secret"))
	mac.Write([]byte(issued.Secret))
	assert.Equal(t, hex.EncodeToString(mac.Sum(nil)), issued.Token)

	e, ok := st.Get("s1")
	require.True(t, ok)
	assert.Equal(t, issued.Token, e.Token)
	assert.Equal(t, issued.Secret, e.Secret)

	// a registry with a different key derives a different token from the
	// same per-entry secret
	other := NewRegistry("another-key", NewMemoryStore(), nil)
	t.Cleanup(other.Close)
	assert.NotEqual(t, r.deriveToken(issued.Secret), other.deriveToken(issued.Secret))
}

func TestGenerate_OverwritesPriorEntry(t *testing.T) {
	r, _ := newTestRegistry(t)
	first, err := r.Generate("s1", "")
	require.NoError(t, err)
	second, err := r.Generate("s1", "")
	require.NoError(t, err)
	assert.NotEqual(t, first.Token, second.Token)

	assert.False(t, r.Validate("s1", first.Token, ""))
	assert.True(t, r.Validate("s1", second.Token, ""))
}

func TestValidate_SingleUse(t *testing.T) {
	r, _ := newTestRegistry(t)
	issued, err := r.Generate("s1", "")
	require.NoError(t, err)

	assert.True(t, r.Validate("s1", issued.Token, ""))
	// second spend of the same token fails: the entry is gone
	assert.False(t, r.Validate("s1", issued.Token, ""))
}

func TestValidate_FailureDoesNotConsume(t *testing.T) {
	r, _ := newTestRegistry(t)
	issued, err := r.Generate("s1", "")
	require.NoError(t, err)

	assert.False(t, r.Validate("s1", "wrong-token", ""))
	assert.True(t, r.Validate("s1", issued.Token, ""))
}

func TestValidate_NoEntry(t *testing.T) {
	r, _ := newTestRegistry(t)
	assert.False(t, r.Validate("missing", "anything", ""))
}

func TestValidate_IPBinding(t *testing.T) {
	r, _ := newTestRegistry(t)
	issued, err := r.Generate("s1", "10.0.0.1")
	require.NoError(t, err)

	assert.False(t, r.Validate("s1", issued.Token, "10.0.0.2"))
	assert.True(t, r.Validate("s1", issued.Token, "10.0.0.1"))
}

func TestValidate_NoIPBinding_AnyIPAccepted(t *testing.T) {
	r, _ := newTestRegistry(t)
	issued, err := r.Generate("s1", "")
	require.NoError(t, err)
	assert.True(t, r.Validate("s1", issued.Token, "198.51.100.7"))
}

func TestValidate_ExpiredEntryEvicted(t *testing.T) {
	r, st := newTestRegistry(t)
	st.Put("s1", Entry{
		Token:     "tok",
		ExpiresAt: time.Now().Add(-time.Millisecond),
	})
	assert.False(t, r.Validate("s1", "tok", ""))
	_, ok := st.Get("s1")
	assert.False(t, ok, "expired entry should be evicted on validation")
}

func TestSweep_RemovesOnlyExpired(t *testing.T) {
	st := NewMemoryStore()
	st.Put("old", Entry{Token: "a", ExpiresAt: time.Now().Add(-time.Minute)})
	st.Put("live", Entry{Token: "b", ExpiresAt: time.Now().Add(time.Minute)})

	n := st.Sweep(time.Now())
	assert.Equal(t, 1, n)
	_, ok := st.Get("live")
	assert.True(t, ok)
}

func TestClear(t *testing.T) {
	r, _ := newTestRegistry(t)
	issued, err := r.Generate("s1", "")
	require.NoError(t, err)
	r.Clear("s1")
	assert.False(t, r.Validate("s1", issued.Token, ""))
}
