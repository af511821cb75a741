package tokens

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/yuutasakka/zeroshin-verify/internal/domain"
	jwtinfra "github.com/yuutasakka/zeroshin-verify/internal/infrastructure/jwt"
	"github.com/yuutasakka/zeroshin-verify/internal/pkg/id"
)

const (
	// blacklistCap bounds blacklist memory; exceeding it evicts the oldest half.
	blacklistCap = 10000
	// rotateWindow is how close to expiry ShouldRotate starts advising a refresh.
	rotateWindow = 5 * time.Minute
)

// Manager issues paired access/refresh tokens with rotation-on-refresh,
// device/IP binding and a revocation blacklist, layered on the HS256 codec.
type Manager struct {
	codec    *jwtinfra.Codec
	issuer   string
	audience string

	mu              sync.Mutex
	blacklist       map[string]time.Time // sha256(token) -> revoked at
	blacklistOrder  []string             // insertion order, for capacity eviction
	revokedSessions map[string]time.Time
	history         map[string][]string // session id -> issued jtis
}

func NewManager(codec *jwtinfra.Codec, issuer, audience string) *Manager {
	return &Manager{
		codec:           codec,
		issuer:          issuer,
		audience:        audience,
		blacklist:       make(map[string]time.Time),
		revokedSessions: make(map[string]time.Time),
		history:         make(map[string][]string),
	}
}

// GeneratePair mints an access token (15 min) and a refresh token (7 days)
// bound to the session, device and originating IP.
func (m *Manager) GeneratePair(userID, email, sessionID, deviceID, ip string, scope []string) (*domain.TokenPair, error) {
	now := time.Now()
	accessExp := now.Add(domain.AccessTokenLifetime)
	refreshExp := now.Add(domain.RefreshTokenLifetime)

	accessJTI, refreshJTI := id.New(), id.New()
	access, err := m.codec.Sign(m.claims(userID, email, sessionID, deviceID, ip, scope, domain.TokenTypeAccess, accessJTI, now, accessExp))
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}
	refresh, err := m.codec.Sign(m.claims(userID, email, sessionID, deviceID, ip, scope, domain.TokenTypeRefresh, refreshJTI, now, refreshExp))
	if err != nil {
		return nil, fmt.Errorf("sign refresh token: %w", err)
	}

	m.mu.Lock()
	m.history[sessionID] = append(m.history[sessionID], accessJTI, refreshJTI)
	m.mu.Unlock()

	return &domain.TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// Verify returns the claims of a valid token, or nil. Checks run in order:
// blacklist (by content hash), signature+expiry, structural completeness,
// type, issuer/audience, session revocation — each short-circuiting.
func (m *Manager) Verify(tokenStr, expectedType string) *jwtinfra.Claims {
	m.mu.Lock()
	_, blacklisted := m.blacklist[hashToken(tokenStr)]
	m.mu.Unlock()
	if blacklisted {
		return nil
	}

	claims, err := m.codec.Verify(tokenStr)
	if err != nil {
		return nil
	}
	if claims.Subject == "" || claims.SessionID == "" || claims.ID == "" || claims.TokenType == "" {
		return nil
	}
	if expectedType != "" && claims.TokenType != expectedType {
		return nil
	}
	if claims.Issuer != m.issuer {
		return nil
	}
	if len(claims.Audience) == 0 || claims.Audience[0] != m.audience {
		return nil
	}

	m.mu.Lock()
	_, sessionRevoked := m.revokedSessions[claims.SessionID]
	m.mu.Unlock()
	if sessionRevoked {
		return nil
	}
	return claims
}

// Refresh consumes a refresh token and mints a brand-new pair. Consumption
// is an atomic test-and-set on the blacklist, so of two concurrent calls
// presenting the same token exactly one mints a pair. Returns nil on any
// validation failure — the caller must re-authenticate.
func (m *Manager) Refresh(refreshToken, deviceID, ip string) *domain.TokenPair {
	claims := m.Verify(refreshToken, domain.TokenTypeRefresh)
	if claims == nil {
		return nil
	}
	if claims.DeviceID != deviceID {
		slog.Warn("refresh rejected: device mismatch", "session_id", claims.SessionID)
		return nil
	}
	if !sameIPFamily(claims.IPAddress, ip) {
		slog.Warn("refresh rejected: ip outside bound subnet", "session_id", claims.SessionID)
		return nil
	}

	if !m.consume(refreshToken) {
		slog.Warn("refresh rejected: token already consumed", "session_id", claims.SessionID)
		return nil
	}

	pair, err := m.GeneratePair(claims.Subject, claims.Email, claims.SessionID, deviceID, ip, claims.Scope)
	if err != nil {
		slog.Error("refresh mint failed", "session_id", claims.SessionID, "err", err)
		return nil
	}
	return pair
}

// Revoke blacklists a token by content hash so the raw credential is not
// retained in memory.
func (m *Manager) Revoke(tokenStr string) {
	m.consume(tokenStr)
}

// consume blacklists the token and reports whether this call was the one
// that consumed it. Check and insert happen under one lock: a losing
// concurrent consumer sees false and must abort.
func (m *Manager) consume(tokenStr string) bool {
	h := hashToken(tokenStr)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.blacklist[h]; ok {
		return false
	}
	m.blacklist[h] = time.Now()
	m.blacklistOrder = append(m.blacklistOrder, h)
	if len(m.blacklistOrder) > blacklistCap {
		evict := m.blacklistOrder[:len(m.blacklistOrder)/2]
		for _, old := range evict {
			delete(m.blacklist, old)
		}
		m.blacklistOrder = append([]string(nil), m.blacklistOrder[len(m.blacklistOrder)/2:]...)
	}
	return true
}

// RevokeSession invalidates every token bound to the session, past and future.
func (m *Manager) RevokeSession(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revokedSessions[sessionID] = time.Now()
	delete(m.history, sessionID)
}

// ShouldRotate advises callers to refresh proactively when less than five
// minutes remain before the access token expires.
func (m *Manager) ShouldRotate(claims *jwtinfra.Claims) bool {
	return claims.ExpiresIn(time.Now()) < rotateWindow
}

func (m *Manager) claims(userID, email, sessionID, deviceID, ip string, scope []string, tokenType, jti string, iat, exp time.Time) *jwtinfra.Claims {
	return &jwtinfra.Claims{
		Email:     email,
		TokenType: tokenType,
		SessionID: sessionID,
		DeviceID:  deviceID,
		IPAddress: ip,
		Scope:     scope,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    m.issuer,
			Audience:  jwt.ClaimStrings{m.audience},
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(iat),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
}

func hashToken(tokenStr string) string {
	sum := sha256.Sum256([]byte(tokenStr))
	return hex.EncodeToString(sum[:])
}

// sameIPFamily reports whether two IPv4 addresses share a /24 subnet.
// Non-IPv4 addresses fall back to exact match.
func sameIPFamily(bound, presented string) bool {
	a, b := net.ParseIP(bound), net.ParseIP(presented)
	if a == nil || b == nil {
		return bound == presented
	}
	a4, b4 := a.To4(), b.To4()
	if a4 == nil || b4 == nil {
		return a.Equal(b)
	}
	return a4[0] == b4[0] && a4[1] == b4[1] && a4[2] == b4[2]
}
