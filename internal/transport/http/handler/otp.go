package handler

import (
	"encoding/json"
	"net/http"

	"github.com/yuutasakka/zeroshin-verify/internal/application/otp"
	"github.com/yuutasakka/zeroshin-verify/internal/application/session"
	"github.com/yuutasakka/zeroshin-verify/internal/domain"
	"github.com/yuutasakka/zeroshin-verify/internal/pkg/phone"
	"github.com/yuutasakka/zeroshin-verify/internal/pkg/validate"
	"github.com/yuutasakka/zeroshin-verify/internal/transport/http/middleware"
)

// OTPHandler handles the send/verify endpoints of the phone verification flow.
type OTPHandler struct {
	svc      otp.Service
	sessions *session.Manager
}

func NewOTPHandler(svc otp.Service, sessions *session.Manager) *OTPHandler {
	return &OTPHandler{svc: svc, sessions: sessions}
}

type sendOTPRequest struct {
	PhoneNumber string `json:"phone_number" validate:"required"`
}

type verifyOTPRequest struct {
	PhoneNumber string `json:"phone_number" validate:"required"`
	OTP         string `json:"otp" validate:"required,len=6,numeric"`
}

func (h *OTPHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req sendOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
		return
	}
	if err := h.svc.Send(r.Context(), req.PhoneNumber, middleware.ClientIP(r)); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "verification code sent"})
}

func (h *OTPHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req verifyOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
		return
	}
	result, err := h.svc.Verify(r.Context(), req.PhoneNumber, req.OTP)
	if err != nil {
		httpError(w, err)
		return
	}
	if result.Status != domain.VerifyOK {
		writeJSON(w, verifyStatusCode(result.Status), VerifyEnvelope{
			Error:             verifyStatusMessage(result.Status),
			ErrorCode:         verifyStatusErrorCode(result.Status),
			AttemptsRemaining: result.AttemptsRemaining,
		})
		return
	}
	created, err := h.sessions.Create(phone.Normalize(req.PhoneNumber), "")
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, VerifyEnvelope{
		Message:      "phone verified",
		SessionToken: created.SessionToken,
		CSRFToken:    created.CSRFToken,
	})
}

func verifyStatusCode(s domain.VerifyStatus) int {
	switch s {
	case domain.VerifyNotFoundOrExpired, domain.VerifyExpired:
		return http.StatusNotFound
	case domain.VerifyAttemptsExhausted:
		return http.StatusTooManyRequests
	default:
		return http.StatusUnauthorized
	}
}

func verifyStatusMessage(s domain.VerifyStatus) string {
	switch s {
	case domain.VerifyNotFoundOrExpired:
		return "no active code for this number, request a new one"
	case domain.VerifyExpired:
		return "code expired, request a new one"
	case domain.VerifyAttemptsExhausted:
		return "too many failed attempts, request a new code"
	case domain.VerifyCodeMismatch:
		return "incorrect code"
	}
	return "verification failed"
}

func verifyStatusErrorCode(s domain.VerifyStatus) string {
	switch s {
	case domain.VerifyNotFoundOrExpired:
		return "NOT_FOUND_OR_EXPIRED"
	case domain.VerifyExpired:
		return "EXPIRED"
	case domain.VerifyAttemptsExhausted:
		return "ATTEMPTS_EXHAUSTED"
	case domain.VerifyCodeMismatch:
		return "CODE_MISMATCH"
	}
	return "VERIFY_FAILED"
}
