package otp

import (
	"context"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/yuutasakka/zeroshin-verify/internal/domain"
)

// --- mocks ---

type mockStore struct{ mock.Mock }

func (m *mockStore) Put(ctx context.Context, rec *domain.OTPRecord) error {
	return m.Called(ctx, rec).Error(0)
}
func (m *mockStore) FindActive(ctx context.Context, phoneNumber string) (*domain.OTPRecord, error) {
	args := m.Called(ctx, phoneNumber)
	if rec, _ := args.Get(0).(*domain.OTPRecord); rec != nil {
		return rec, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockStore) IncrementAttempts(ctx context.Context, phoneNumber string) (int, error) {
	args := m.Called(ctx, phoneNumber)
	return args.Int(0), args.Error(1)
}
func (m *mockStore) MarkVerified(ctx context.Context, phoneNumber string) error {
	return m.Called(ctx, phoneNumber).Error(0)
}
func (m *mockStore) Delete(ctx context.Context, phoneNumber string) error {
	return m.Called(ctx, phoneNumber).Error(0)
}

type mockSMSSender struct{ mock.Mock }

func (m *mockSMSSender) SendSMS(ctx context.Context, to, message string) error {
	return m.Called(ctx, to, message).Error(0)
}

func openLimits() Limits {
	return Limits{PerPhonePerHour: 100, PerIPPerHour: 100, GlobalPerHour: 1000, FanOutLimit: 100}
}

func activeRecord(code string, attempts int) *domain.OTPRecord {
	now := time.Now()
	return &domain.OTPRecord{
		PhoneNumber: "09012345678",
		Code:        code,
		CreatedAt:   now.Unix(),
		ExpiresAt:   now.Add(domain.OTPValidity).Unix(),
		Attempts:    attempts,
	}
}

func TestClose_StopsRateGuardCleanup(t *testing.T) {
	svc := NewService(&mockStore{}, &mockSMSSender{}, openLimits())
	svc.Close()

	select {
	case <-svc.(*service).guard.done:
	default:
		t.Fatal("Close did not signal the cleanup loop to exit")
	}
}

// --- Send ---

func TestSend_InvalidPhoneFormat(t *testing.T) {
	svc := NewService(&mockStore{}, &mockSMSSender{}, openLimits())
	err := svc.Send(context.Background(), "03-1234-5678", "10.0.0.1")
	assert.ErrorIs(t, err, domain.ErrInvalidPhone)
}

func TestSend_HappyPath(t *testing.T) {
	st := &mockStore{}
	sms := &mockSMSSender{}

	var storedCode string
	st.On("Put", mock.Anything, mock.MatchedBy(func(rec *domain.OTPRecord) bool {
		storedCode = rec.Code
		return rec.PhoneNumber == "09012345678" &&
			regexp.MustCompile(`^\d{6}$`).MatchString(rec.Code) &&
			rec.Attempts == 0 && !rec.Verified &&
			rec.RequestIP == "10.0.0.1" &&
			rec.ExpiresAt-rec.CreatedAt == int64(domain.OTPValidity/time.Second)
	})).Return(nil)
	sms.On("SendSMS", mock.Anything, "+819012345678", mock.MatchedBy(func(msg string) bool {
		return storedCode != "" && strings.Contains(msg, storedCode)
	})).Return(nil)

	svc := NewService(st, sms, openLimits())
	err := svc.Send(context.Background(), "０９０-1234-5678", "10.0.0.1")

	require.NoError(t, err)
	st.AssertExpectations(t)
	sms.AssertExpectations(t)
}

func TestSend_RateLimited(t *testing.T) {
	st := &mockStore{}
	sms := &mockSMSSender{}
	st.On("Put", mock.Anything, mock.Anything).Return(nil).Once()
	sms.On("SendSMS", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()

	svc := NewService(st, sms, Limits{PerPhonePerHour: 1})
	require.NoError(t, svc.Send(context.Background(), "09012345678", "10.0.0.1"))

	err := svc.Send(context.Background(), "09012345678", "10.0.0.1")
	assert.ErrorIs(t, err, domain.ErrRateLimited)
	// no second code was generated or dispatched
	st.AssertNumberOfCalls(t, "Put", 1)
	sms.AssertNumberOfCalls(t, "SendSMS", 1)
}

func TestSend_GatewayFailure_RecordStaysCommitted(t *testing.T) {
	st := &mockStore{}
	sms := &mockSMSSender{}
	st.On("Put", mock.Anything, mock.Anything).Return(nil)
	sms.On("SendSMS", mock.Anything, mock.Anything, mock.Anything).Return(domain.ErrDeliveryFailed)

	svc := NewService(st, sms, openLimits())
	err := svc.Send(context.Background(), "09012345678", "")

	assert.ErrorIs(t, err, domain.ErrDeliveryFailed)
	// the record was committed before dispatch and is not rolled back
	st.AssertCalled(t, "Put", mock.Anything, mock.Anything)
	st.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

// --- Verify ---

func TestVerify_NotFoundOrExpired(t *testing.T) {
	st := &mockStore{}
	st.On("FindActive", mock.Anything, "09012345678").Return(nil, domain.ErrNotFound)

	svc := NewService(st, &mockSMSSender{}, openLimits())
	res, err := svc.Verify(context.Background(), "090-1234-5678", "123456")

	require.NoError(t, err)
	assert.Equal(t, domain.VerifyNotFoundOrExpired, res.Status)
}

func TestVerify_CodeMismatch_IncrementsAttempts(t *testing.T) {
	st := &mockStore{}
	st.On("FindActive", mock.Anything, "09012345678").Return(activeRecord("111111", 0), nil)
	st.On("IncrementAttempts", mock.Anything, "09012345678").Return(1, nil)

	svc := NewService(st, &mockSMSSender{}, openLimits())
	res, err := svc.Verify(context.Background(), "09012345678", "222222")

	require.NoError(t, err)
	assert.Equal(t, domain.VerifyCodeMismatch, res.Status)
	assert.Equal(t, domain.OTPMaxAttempts-1, res.AttemptsRemaining)
	st.AssertCalled(t, "IncrementAttempts", mock.Anything, "09012345678")
}

func TestVerify_FifthMismatch_Exhausts(t *testing.T) {
	st := &mockStore{}
	st.On("FindActive", mock.Anything, "09012345678").Return(activeRecord("111111", 4), nil)
	st.On("IncrementAttempts", mock.Anything, "09012345678").Return(5, nil)

	svc := NewService(st, &mockSMSSender{}, openLimits())
	res, err := svc.Verify(context.Background(), "09012345678", "222222")

	require.NoError(t, err)
	assert.Equal(t, domain.VerifyAttemptsExhausted, res.Status)
}

func TestVerify_ExhaustedRecord_RejectsCorrectCode(t *testing.T) {
	st := &mockStore{}
	st.On("FindActive", mock.Anything, "09012345678").Return(activeRecord("111111", domain.OTPMaxAttempts), nil)

	svc := NewService(st, &mockSMSSender{}, openLimits())
	res, err := svc.Verify(context.Background(), "09012345678", "111111")

	require.NoError(t, err)
	assert.Equal(t, domain.VerifyAttemptsExhausted, res.Status)
	st.AssertNotCalled(t, "MarkVerified", mock.Anything, mock.Anything)
}

func TestVerify_ExpiredRecord_RejectsMatchingCode(t *testing.T) {
	rec := activeRecord("111111", 0)
	rec.ExpiresAt = time.Now().Add(-time.Millisecond).Unix()
	st := &mockStore{}
	st.On("FindActive", mock.Anything, "09012345678").Return(rec, nil)

	svc := NewService(st, &mockSMSSender{}, openLimits())
	res, err := svc.Verify(context.Background(), "09012345678", "111111")

	require.NoError(t, err)
	assert.Equal(t, domain.VerifyExpired, res.Status)
	st.AssertNotCalled(t, "MarkVerified", mock.Anything, mock.Anything)
}

func TestVerify_HappyPath_MarksVerified(t *testing.T) {
	st := &mockStore{}
	st.On("FindActive", mock.Anything, "09012345678").Return(activeRecord("111111", 2), nil)
	st.On("MarkVerified", mock.Anything, "09012345678").Return(nil)

	svc := NewService(st, &mockSMSSender{}, openLimits())
	res, err := svc.Verify(context.Background(), "09012345678", "111111")

	require.NoError(t, err)
	assert.Equal(t, domain.VerifyOK, res.Status)
	st.AssertExpectations(t)
}

func TestVerify_SingleUse(t *testing.T) {
	st := &mockStore{}
	// first lookup returns the live record, second reflects the verified
	// (inert) state: FindActive treats it as absent
	st.On("FindActive", mock.Anything, "09012345678").Return(activeRecord("111111", 0), nil).Once()
	st.On("FindActive", mock.Anything, "09012345678").Return(nil, domain.ErrNotFound)
	st.On("MarkVerified", mock.Anything, "09012345678").Return(nil)

	svc := NewService(st, &mockSMSSender{}, openLimits())

	res, err := svc.Verify(context.Background(), "09012345678", "111111")
	require.NoError(t, err)
	assert.Equal(t, domain.VerifyOK, res.Status)

	res, err = svc.Verify(context.Background(), "09012345678", "111111")
	require.NoError(t, err)
	assert.Equal(t, domain.VerifyNotFoundOrExpired, res.Status)
}
