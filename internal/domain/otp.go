package domain

import "time"

// OTPValidity is how long a code stays redeemable after it is sent.
const OTPValidity = 5 * time.Minute

// OTPMaxAttempts is the number of failed code submissions allowed before the
// record is permanently rejected. The user must request a fresh code.
const OTPMaxAttempts = 5

// OTPRecord is one active verification code for a phone number.
// PK: phone_number. At most one record exists per phone at any time; sending
// a new code overwrites the prior record.
// ExpiresAt doubles as the DynamoDB TTL attribute.
type OTPRecord struct {
	PhoneNumber string `json:"phone_number" dynamodbav:"phone_number"`
	Code        string `json:"-" dynamodbav:"code"`
	CreatedAt   int64  `json:"created_at" dynamodbav:"created_at"`
	ExpiresAt   int64  `json:"expires_at" dynamodbav:"expires_at"` // TTL (Unix seconds)
	Attempts    int    `json:"attempts" dynamodbav:"attempts"`
	Verified    bool   `json:"verified" dynamodbav:"verified"`
	RequestIP   string `json:"request_ip,omitempty" dynamodbav:"request_ip"`
}

// Expired reports whether the record's validity window has passed at now.
func (r *OTPRecord) Expired(now time.Time) bool {
	return r.ExpiresAt < now.Unix()
}

// VerifyStatus is the outcome of a code submission. Verification failures are
// values, not errors: callers need the specific reason to render a message,
// and none of them indicate an infrastructure fault.
type VerifyStatus int

const (
	VerifyOK VerifyStatus = iota
	VerifyNotFoundOrExpired
	VerifyExpired
	VerifyCodeMismatch
	VerifyAttemptsExhausted
)

func (s VerifyStatus) String() string {
	switch s {
	case VerifyOK:
		return "ok"
	case VerifyNotFoundOrExpired:
		return "not_found_or_expired"
	case VerifyExpired:
		return "expired"
	case VerifyCodeMismatch:
		return "code_mismatch"
	case VerifyAttemptsExhausted:
		return "attempts_exhausted"
	}
	return "unknown"
}

// VerifyResult carries the outcome plus the attempts the caller has left on
// a mismatch (zero otherwise).
type VerifyResult struct {
	Status            VerifyStatus
	AttemptsRemaining int
}
