package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/yuutasakka/zeroshin-verify/internal/domain"
)

// MessageEnvelope is the generic response wrapper.
type MessageEnvelope struct {
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
	ErrorCode string `json:"error_code,omitempty"`
}

// CSRFEnvelope wraps csrf-token responses.
type CSRFEnvelope struct {
	CSRFToken string `json:"csrf_token"`
	SessionID string `json:"session_id"`
	ExpiresIn int    `json:"expires_in"` // seconds
}

// VerifyEnvelope wraps verify-otp responses.
type VerifyEnvelope struct {
	Message           string `json:"message,omitempty"`
	SessionToken      string `json:"session_token,omitempty"`
	CSRFToken         string `json:"csrf_token,omitempty"`
	Error             string `json:"error,omitempty"`
	ErrorCode         string `json:"error_code,omitempty"`
	AttemptsRemaining int    `json:"attempts_remaining,omitempty"`
}

// AuthEnvelope wraps admin login/refresh responses.
type AuthEnvelope struct {
	AccessToken  string            `json:"access_token,omitempty"`
	RefreshToken string            `json:"refresh_token,omitempty"`
	SessionToken string            `json:"session_token,omitempty"`
	User         *domain.AdminUser `json:"user,omitempty"`
	Error        string            `json:"error,omitempty"`
	ErrorCode    string            `json:"error_code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg, code string) {
	writeJSON(w, status, MessageEnvelope{Error: msg, ErrorCode: code})
}

// httpError maps domain sentinel errors to HTTP responses. Internal error
// kinds stay distinct in logs; the response text is deliberately generic.
func httpError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidPhone):
		writeError(w, http.StatusBadRequest, "invalid phone number format", "INVALID_PHONE")
	case errors.Is(err, domain.ErrBadRequest):
		writeError(w, http.StatusBadRequest, "bad request", "BAD_REQUEST")
	case errors.Is(err, domain.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "too many requests, retry later", "RATE_LIMITED")
	case errors.Is(err, domain.ErrDeliveryFailed):
		writeError(w, http.StatusServiceUnavailable, "could not deliver SMS, retry later", "DELIVERY_FAILED")
	case errors.Is(err, domain.ErrUnauthorized), errors.Is(err, domain.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, "invalid credentials", "UNAUTHORIZED")
	case errors.Is(err, domain.ErrForbidden), errors.Is(err, domain.ErrCSRFInvalid):
		writeError(w, http.StatusForbidden, "forbidden", "FORBIDDEN")
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found", "NOT_FOUND")
	case errors.Is(err, domain.ErrConfiguration):
		writeError(w, http.StatusInternalServerError, "service misconfigured", "CONFIGURATION")
	default:
		writeError(w, http.StatusInternalServerError, "internal error", "INTERNAL")
	}
}
