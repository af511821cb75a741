package domain

import "time"

// SessionIdleTimeout is the sliding-expiry window: a session is gone once it
// has been idle longer than this, regardless of when it was created.
const SessionIdleTimeout = 30 * time.Minute

// SessionRecord is the server-side state behind one opaque session token.
type SessionRecord struct {
	SessionToken  string    `json:"-"`
	UserID        string    `json:"user_id,omitempty"`
	PhoneNumber   string    `json:"phone_number,omitempty"`
	Authenticated bool      `json:"authenticated"`
	CreatedAt     time.Time `json:"created_at"`
	LastActivity  time.Time `json:"last_activity"`
	CSRFToken     string    `json:"-"`
}

// Idle reports whether the session has exceeded the sliding window at now.
func (s *SessionRecord) Idle(now time.Time) bool {
	return now.Sub(s.LastActivity) > SessionIdleTimeout
}
