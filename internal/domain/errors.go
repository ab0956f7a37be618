package domain

import "errors"

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrForbidden       = errors.New("forbidden")
	ErrBadRequest      = errors.New("bad request")
	ErrTooManyRequests = errors.New("too many requests")

	// ErrInvalidCredentials is returned for both an unknown email and a wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidCode covers unknown, mismatched, consumed, superseded and expired one-time codes alike.
	ErrInvalidCode = errors.New("invalid or expired code")

	// ErrDependency marks a store or notification failure (unreachable, timed out). Callers may retry.
	ErrDependency = errors.New("dependency unavailable")
	// ErrInternal marks an unexpected failure. Not retryable.
	ErrInternal = errors.New("internal error")
)
