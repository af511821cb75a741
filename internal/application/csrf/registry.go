package csrf

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"log/slog"
	"sync"
	"time"

	"github.com/yuutasakka/zeroshin-verify/internal/pkg/token"
)

const (
	// TokenTTL is how long an issued token stays redeemable.
	TokenTTL = time.Hour
	// sweepInterval is how often expired entries are evicted regardless of access.
	sweepInterval = 5 * time.Minute
)

// Entry is one anti-forgery token bound to a session, single-use.
type Entry struct {
	Token     string
	Secret    string
	ExpiresAt time.Time
	IP        string // empty = not IP-bound
}

// Issued is what Generate hands back to the transport layer.
type Issued struct {
	Token     string
	Secret    string
	ExpiresAt time.Time
}

// Store holds CSRF entries keyed by session id. The default MemoryStore is
// process-local; a deployment scaling horizontally swaps in a shared
// implementation without touching the registry.
type Store interface {
	Get(sessionID string) (Entry, bool)
	Put(sessionID string, e Entry)
	Delete(sessionID string)
	Sweep(now time.Time) int
}

// AuditLogger receives every validation outcome. The registry reports but
// never persists audit data itself.
type AuditLogger interface {
	CSRFIssued(sessionID string)
	CSRFValidated(sessionID, reason string, ok bool)
}

// Registry issues and validates single-use CSRF tokens.
// Its own mutex serializes composite check-then-delete sequences so a token
// cannot be spent twice by concurrent requests, whatever the Store does.
type Registry struct {
	key   []byte // server-held CSRF signing key
	mu    sync.Mutex
	store Store
	audit AuditLogger
	done  chan struct{}
}

func NewRegistry(secret string, store Store, audit AuditLogger) *Registry {
	if audit == nil {
		audit = slogAudit{}
	}
	r := &Registry{key: []byte(secret), store: store, audit: audit, done: make(chan struct{})}
	go r.sweepLoop()
	return r
}

// Generate creates a fresh token for the session, overwriting any prior
// entry, with a 1-hour expiry and optional IP binding. The token is a keyed
// MAC over a per-entry 256-bit secret, so a stored entry alone (without the
// server key) is not enough to forge a sibling token.
func (r *Registry) Generate(sessionID, clientIP string) (Issued, error) {
	secret, err := token.New(32)
	if err != nil {
		return Issued{}, err
	}
	e := Entry{
		Token:     r.deriveToken(secret),
		Secret:    secret,
		ExpiresAt: time.Now().Add(TokenTTL),
		IP:        clientIP,
	}
	r.mu.Lock()
	r.store.Put(sessionID, e)
	r.mu.Unlock()
	r.audit.CSRFIssued(sessionID)
	return Issued{Token: e.Token, Secret: e.Secret, ExpiresAt: e.ExpiresAt}, nil
}

// Validate checks the presented token and consumes the entry on success.
// Failures return false without consuming, so a client gets bounded retries
// until the entry expires. All outcomes go to the audit logger.
func (r *Registry) Validate(sessionID, presented, clientIP string) bool {
	r.mu.Lock()
	e, ok := r.store.Get(sessionID)
	if !ok {
		r.mu.Unlock()
		r.audit.CSRFValidated(sessionID, "no_entry", false)
		return false
	}
	if time.Now().After(e.ExpiresAt) {
		r.store.Delete(sessionID)
		r.mu.Unlock()
		r.audit.CSRFValidated(sessionID, "expired", false)
		return false
	}
	if e.IP != "" && e.IP != clientIP {
		r.mu.Unlock()
		r.audit.CSRFValidated(sessionID, "ip_mismatch", false)
		return false
	}
	if subtle.ConstantTimeCompare([]byte(e.Token), []byte(presented)) != 1 {
		r.mu.Unlock()
		r.audit.CSRFValidated(sessionID, "token_mismatch", false)
		return false
	}
	r.store.Delete(sessionID) // single use
	r.mu.Unlock()
	r.audit.CSRFValidated(sessionID, "", true)
	return true
}

// deriveToken computes HMAC-SHA256(key, secret) in hex.
func (r *Registry) deriveToken(secret string) string {
	mac := hmac.New(sha256.New, r.key)
	mac.Write([]byte(secret))
	return hex.EncodeToString(mac.Sum(nil))
}

// Clear removes the entry for a session without validating.
func (r *Registry) Clear(sessionID string) {
	r.mu.Lock()
	r.store.Delete(sessionID)
	r.mu.Unlock()
}

// Close stops the background sweep.
func (r *Registry) Close() {
	close(r.done)
}

func (r *Registry) sweepLoop() {
	t := time.NewTicker(sweepInterval)
	defer t.Stop()
	for {
		select {
		case now := <-t.C:
			r.mu.Lock()
			n := r.store.Sweep(now)
			r.mu.Unlock()
			if n > 0 {
				slog.Debug("swept expired csrf entries", "count", n)
			}
		case <-r.done:
			return
		}
	}
}

// MemoryStore is the default process-local Store.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]Entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Entry)}
}

func (s *MemoryStore) Get(sessionID string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[sessionID]
	return e, ok
}

func (s *MemoryStore) Put(sessionID string, e Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[sessionID] = e
}

func (s *MemoryStore) Delete(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, sessionID)
}

func (s *MemoryStore) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for sid, e := range s.entries {
		if now.After(e.ExpiresAt) {
			delete(s.entries, sid)
			n++
		}
	}
	return n
}

// slogAudit is the default audit sink.
type slogAudit struct{}

func (slogAudit) CSRFIssued(sessionID string) {
	slog.Debug("csrf token issued", "session_id", sessionID)
}

func (slogAudit) CSRFValidated(sessionID, reason string, ok bool) {
	if ok {
		slog.Debug("csrf token validated", "session_id", sessionID)
		return
	}
	slog.Warn("csrf validation failed", "session_id", sessionID, "reason", reason)
}
