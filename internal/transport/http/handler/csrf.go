package handler

import (
	"net/http"
	"time"

	"github.com/yuutasakka/zeroshin-verify/internal/application/csrf"
	"github.com/yuutasakka/zeroshin-verify/internal/pkg/token"
	"github.com/yuutasakka/zeroshin-verify/internal/transport/http/middleware"
)

// CSRFHandler issues anti-forgery tokens ahead of state-changing requests.
type CSRFHandler struct {
	registry   *csrf.Registry
	production bool
}

func NewCSRFHandler(registry *csrf.Registry, production bool) *CSRFHandler {
	return &CSRFHandler{registry: registry, production: production}
}

// Token handles GET /csrf-token: assigns a session id cookie when the client
// has none, mints a one-time CSRF token bound to it, and mirrors the token
// into the _csrf cookie for the double-submit check.
func (h *CSRFHandler) Token(w http.ResponseWriter, r *http.Request) {
	sessionID := ""
	if c, err := r.Cookie(middleware.SessionIDCookie); err == nil {
		sessionID = c.Value
	}
	if sessionID == "" {
		sid, err := token.New(16)
		if err != nil {
			httpError(w, err)
			return
		}
		sessionID = sid
		http.SetCookie(w, &http.Cookie{
			Name:     middleware.SessionIDCookie,
			Value:    sessionID,
			Path:     "/",
			HttpOnly: true,
			Secure:   h.production,
			SameSite: http.SameSiteStrictMode,
		})
	}

	issued, err := h.registry.Generate(sessionID, middleware.ClientIP(r))
	if err != nil {
		httpError(w, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.CSRFCookie,
		Value:    issued.Token,
		Path:     "/",
		MaxAge:   int(csrf.TokenTTL / time.Second),
		HttpOnly: true,
		Secure:   h.production,
		SameSite: http.SameSiteStrictMode,
	})
	writeJSON(w, http.StatusOK, CSRFEnvelope{
		CSRFToken: issued.Token,
		SessionID: sessionID,
		ExpiresIn: int(time.Until(issued.ExpiresAt) / time.Second),
	})
}
