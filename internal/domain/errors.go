package domain

import "errors"

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrNotFound        = errors.New("not found")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrForbidden       = errors.New("forbidden")
	ErrBadRequest      = errors.New("bad request")
	ErrRateLimited     = errors.New("rate limit exceeded")
	ErrDeliveryFailed  = errors.New("delivery failed")
	ErrInvalidPhone    = errors.New("invalid phone number format")
	ErrCSRFInvalid     = errors.New("csrf validation failed")
	ErrUnauthenticated = errors.New("unauthenticated")
)

// Token codec failures. A configuration error means the deployment is broken
// and must fail closed; the rest map to 401 at the transport layer.
var (
	ErrConfiguration    = errors.New("missing signing secret")
	ErrMalformedToken   = errors.New("malformed token")
	ErrInvalidSignature = errors.New("invalid token signature")
	ErrTokenExpired     = errors.New("token expired")
)
