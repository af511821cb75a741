package session

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/yuutasakka/zeroshin-verify/internal/application/csrf"
	"github.com/yuutasakka/zeroshin-verify/internal/domain"
	"github.com/yuutasakka/zeroshin-verify/internal/pkg/token"
)

const sweepInterval = 5 * time.Minute

// Created is what a successful authentication hands back.
type Created struct {
	SessionToken string
	CSRFToken    string
}

// Store holds session records keyed by session token. MemoryStore is the
// process-local default; swap in a shared store for horizontal scaling.
type Store interface {
	Get(sessionToken string) (*domain.SessionRecord, bool)
	Put(sessionToken string, rec *domain.SessionRecord)
	Delete(sessionToken string)
	Sweep(now time.Time) int
}

// Manager issues, validates and revokes sessions with a sliding 30-minute
// idle window. LastActivity updates go through the manager's mutex so a
// concurrent validate cannot observe a half-written record.
type Manager struct {
	mu    sync.Mutex
	store Store
	csrf  *csrf.Registry
	done  chan struct{}
}

func NewManager(store Store, csrfRegistry *csrf.Registry) *Manager {
	m := &Manager{store: store, csrf: csrfRegistry, done: make(chan struct{})}
	go m.sweepLoop()
	return m
}

// Create mints an opaque 256-bit session token plus a bound CSRF token and
// stores the record authenticated.
func (m *Manager) Create(phoneNumber, userID string) (Created, error) {
	sessionToken, err := token.New(32)
	if err != nil {
		return Created{}, fmt.Errorf("create session: %w", err)
	}
	issued, err := m.csrf.Generate(sessionToken, "")
	if err != nil {
		return Created{}, fmt.Errorf("create session csrf: %w", err)
	}
	now := time.Now()
	rec := &domain.SessionRecord{
		SessionToken:  sessionToken,
		UserID:        userID,
		PhoneNumber:   phoneNumber,
		Authenticated: true,
		CreatedAt:     now,
		LastActivity:  now,
		CSRFToken:     issued.Token,
	}
	m.mu.Lock()
	m.store.Put(sessionToken, rec)
	m.mu.Unlock()
	slog.Info("session created", "user_id", userID)
	return Created{SessionToken: sessionToken, CSRFToken: issued.Token}, nil
}

// Validate returns the session record, refreshing its sliding window, or nil
// for a missing or idle-expired token. Expired records are evicted here
// rather than waiting for the sweep.
func (m *Manager) Validate(sessionToken string) *domain.SessionRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.store.Get(sessionToken)
	if !ok {
		return nil
	}
	now := time.Now()
	if rec.Idle(now) {
		m.store.Delete(sessionToken)
		return nil
	}
	rec.LastActivity = now
	m.store.Put(sessionToken, rec)
	return rec
}

// Destroy removes the session and its CSRF pairing.
func (m *Manager) Destroy(sessionToken string) {
	m.mu.Lock()
	m.store.Delete(sessionToken)
	m.mu.Unlock()
	m.csrf.Clear(sessionToken)
}

// Close stops the background sweep.
func (m *Manager) Close() {
	close(m.done)
}

func (m *Manager) sweepLoop() {
	t := time.NewTicker(sweepInterval)
	defer t.Stop()
	for {
		select {
		case now := <-t.C:
			m.mu.Lock()
			n := m.store.Sweep(now)
			m.mu.Unlock()
			if n > 0 {
				slog.Debug("swept idle sessions", "count", n)
			}
		case <-m.done:
			return
		}
	}
}

// MemoryStore is the default process-local Store.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*domain.SessionRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*domain.SessionRecord)}
}

func (s *MemoryStore) Get(sessionToken string) (*domain.SessionRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.sessions[sessionToken]
	return rec, ok
}

func (s *MemoryStore) Put(sessionToken string, rec *domain.SessionRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionToken] = rec
}

func (s *MemoryStore) Delete(sessionToken string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionToken)
}

func (s *MemoryStore) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for tok, rec := range s.sessions {
		if rec.Idle(now) {
			delete(s.sessions, tok)
			n++
		}
	}
	return n
}
