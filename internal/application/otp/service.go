package otp

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/yuutasakka/zeroshin-verify/internal/domain"
	"github.com/yuutasakka/zeroshin-verify/internal/pkg/phone"
)

// Store is the persistence contract for OTP records. The DynamoDB
// implementation lives in internal/infrastructure/dynamo; Put overwrites any
// prior record for the phone number, which keeps a single active code.
type Store interface {
	Put(ctx context.Context, rec *domain.OTPRecord) error
	FindActive(ctx context.Context, phoneNumber string) (*domain.OTPRecord, error)
	IncrementAttempts(ctx context.Context, phoneNumber string) (int, error)
	MarkVerified(ctx context.Context, phoneNumber string) error
	Delete(ctx context.Context, phoneNumber string) error
}

// SMSSender matches the SNS gateway contract.
type SMSSender interface {
	SendSMS(ctx context.Context, to, message string) error
}

type Service interface {
	// Send normalizes and validates the phone number, enforces the layered
	// rate limits, stores a fresh code, and dispatches it by SMS.
	Send(ctx context.Context, rawPhone, clientIP string) error
	// Verify runs a code submission through the per-phone state machine.
	// The returned result is a value; the error is only for store failures.
	Verify(ctx context.Context, rawPhone, code string) (domain.VerifyResult, error)
	// Close stops the rate guard's background cleanup.
	Close()
}

type service struct {
	store Store
	sms   SMSSender
	guard *rateGuard
}

func NewService(store Store, sms SMSSender, limits Limits) Service {
	return &service{
		store: store,
		sms:   sms,
		guard: newRateGuard(limits),
	}
}

func (s *service) Close() {
	s.guard.close()
}

func (s *service) Send(ctx context.Context, rawPhone, clientIP string) error {
	normalized, err := phone.NormalizeAndValidate(rawPhone)
	if err != nil {
		return fmt.Errorf("send otp: %w", err)
	}
	if !s.guard.allow(normalized, clientIP) {
		return fmt.Errorf("send otp to %s: %w", normalized, domain.ErrRateLimited)
	}

	code, err := generateCode()
	if err != nil {
		return err
	}
	now := time.Now()
	rec := &domain.OTPRecord{
		PhoneNumber: normalized,
		Code:        code,
		CreatedAt:   now.Unix(),
		ExpiresAt:   now.Add(domain.OTPValidity).Unix(),
		Attempts:    0,
		Verified:    false,
		RequestIP:   clientIP,
	}
	if err := s.store.Put(ctx, rec); err != nil {
		return fmt.Errorf("store otp record: %w", err)
	}

	// The record is committed before dispatch: an SMS failure leaves the
	// stored code redeemable. Callers surface ErrDeliveryFailed and the user
	// retries, which replaces the record.
	msg := fmt.Sprintf("認証コード: %s（5分間有効）", code)
	if err := s.sms.SendSMS(ctx, toE164(normalized), msg); err != nil {
		slog.Warn("otp sms dispatch failed", "phone", normalized, "err", err)
		return fmt.Errorf("dispatch otp: %w", domain.ErrDeliveryFailed)
	}
	slog.Info("otp sent", "phone", normalized)
	return nil
}

func (s *service) Verify(ctx context.Context, rawPhone, code string) (domain.VerifyResult, error) {
	normalized := phone.Normalize(rawPhone)

	rec, err := s.store.FindActive(ctx, normalized)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.VerifyResult{Status: domain.VerifyNotFoundOrExpired}, nil
		}
		return domain.VerifyResult{}, fmt.Errorf("lookup otp record: %w", err)
	}

	if rec.Attempts >= domain.OTPMaxAttempts {
		// Permanently dead: even the correct code is rejected from here on.
		return domain.VerifyResult{Status: domain.VerifyAttemptsExhausted}, nil
	}

	// Re-check expiry: the record can lapse between lookup and compare.
	if rec.Expired(time.Now()) {
		return domain.VerifyResult{Status: domain.VerifyExpired}, nil
	}

	if subtle.ConstantTimeCompare([]byte(rec.Code), []byte(code)) != 1 {
		n, err := s.store.IncrementAttempts(ctx, normalized)
		if err != nil {
			return domain.VerifyResult{}, fmt.Errorf("increment otp attempts: %w", err)
		}
		remaining := domain.OTPMaxAttempts - n
		if remaining <= 0 {
			return domain.VerifyResult{Status: domain.VerifyAttemptsExhausted}, nil
		}
		return domain.VerifyResult{Status: domain.VerifyCodeMismatch, AttemptsRemaining: remaining}, nil
	}

	if err := s.store.MarkVerified(ctx, normalized); err != nil {
		return domain.VerifyResult{}, fmt.Errorf("mark otp verified: %w", err)
	}
	slog.Info("otp verified", "phone", normalized)
	return domain.VerifyResult{Status: domain.VerifyOK}, nil
}

// generateCode produces a 6-digit code from the system CSPRNG.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", fmt.Errorf("generate otp code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// toE164 converts a domestic 0X0-XXXX-XXXX mobile number to +81 form.
func toE164(normalized string) string {
	return "+81" + normalized[1:]
}
