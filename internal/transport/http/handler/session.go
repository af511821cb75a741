package handler

import (
	"net/http"

	"github.com/yuutasakka/zeroshin-verify/internal/application/session"
	"github.com/yuutasakka/zeroshin-verify/internal/transport/http/middleware"
)

// SessionHandler handles the verified-phone session surface. Both endpoints
// sit behind the RequireSession middleware, which resolves the record into
// the request context.
type SessionHandler struct {
	sessions *session.Manager
}

func NewSessionHandler(sessions *session.Manager) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// Status returns the session's public state so a client can restore its UI
// after a reload. Token fields are excluded by the record's json tags.
func (h *SessionHandler) Status(w http.ResponseWriter, r *http.Request) {
	rec, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "UNAUTHENTICATED")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// Logout destroys the session and its CSRF pairing.
func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	rec, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "UNAUTHENTICATED")
		return
	}
	h.sessions.Destroy(rec.SessionToken)
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "session destroyed"})
}
