package handler

import (
	"encoding/json"
	"net/http"

	"github.com/yuutasakka/zeroshin-verify/internal/application/admin"
	"github.com/yuutasakka/zeroshin-verify/internal/application/session"
	"github.com/yuutasakka/zeroshin-verify/internal/application/tokens"
	"github.com/yuutasakka/zeroshin-verify/internal/pkg/validate"
	"github.com/yuutasakka/zeroshin-verify/internal/transport/http/middleware"
)

// AdminHandler handles operator authentication endpoints.
type AdminHandler struct {
	svc      admin.Service
	tokenMgr *tokens.Manager
	sessions *session.Manager
}

func NewAdminHandler(svc admin.Service, tokenMgr *tokens.Manager, sessions *session.Manager) *AdminHandler {
	return &AdminHandler{svc: svc, tokenMgr: tokenMgr, sessions: sessions}
}

func (h *AdminHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req admin.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
		return
	}
	result, err := h.svc.Login(r.Context(), req, middleware.ClientIP(r))
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, AuthEnvelope{
		AccessToken:  result.Pair.AccessToken,
		RefreshToken: result.Pair.RefreshToken,
		SessionToken: result.Session.SessionToken,
		User:         result.User,
	})
}

func (h *AdminHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
		DeviceID     string `json:"device_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		writeError(w, http.StatusBadRequest, "refresh_token required", "BAD_REQUEST")
		return
	}
	pair := h.tokenMgr.Refresh(req.RefreshToken, req.DeviceID, middleware.ClientIP(r))
	if pair == nil {
		// nil means re-authenticate; no detail on which check failed.
		writeError(w, http.StatusUnauthorized, "invalid refresh token", "UNAUTHORIZED")
		return
	}
	writeJSON(w, http.StatusOK, AuthEnvelope{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

func (h *AdminHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "UNAUTHORIZED")
		return
	}
	h.tokenMgr.RevokeSession(claims.SessionID)
	h.sessions.Destroy(claims.SessionID)
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "logged out"})
}
