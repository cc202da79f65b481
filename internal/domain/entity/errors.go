package entity

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when a requested record does not exist
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput is the root of all validation failures
	ErrInvalidInput = errors.New("invalid input")

	// ErrDuplicateNumber is returned when an invoice number is already taken
	ErrDuplicateNumber = errors.New("invoice number already exists")

	// ErrDuplicateOccurrence is returned when a recurring occurrence was already generated
	ErrDuplicateOccurrence = errors.New("recurring occurrence already generated")

	// ErrUnauthorized is returned when no valid session is present
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidPIN is returned when the PIN does not match
	ErrInvalidPIN = errors.New("invalid PIN")

	// ErrLocked is returned while PIN login is locked out
	ErrLocked = errors.New("PIN login temporarily locked due to failed attempts")

	// ErrRateLimited is returned when a client exceeds its request budget
	ErrRateLimited = errors.New("too many attempts")

	// ErrNoChallenge is returned when no WebAuthn challenge is pending
	ErrNoChallenge = errors.New("no active challenge")

	// ErrChallengeExpired is returned when the pending challenge has expired
	ErrChallengeExpired = errors.New("challenge expired")

	// ErrNoCredentials is returned when authentication starts without enrolled credentials
	ErrNoCredentials = errors.New("no fingerprint credential registered yet")

	// ErrCredentialNotRecognized is returned when the asserted credential is not enrolled
	ErrCredentialNotRecognized = errors.New("credential not recognized")

	// ErrVerificationFailed is returned when a WebAuthn ceremony fails verification
	ErrVerificationFailed = errors.New("fingerprint verification failed")

	// ErrRegistrationFailed is returned when a new credential cannot be verified
	ErrRegistrationFailed = errors.New("fingerprint registration failed")

	// ErrNotConfigured is returned when a required secret or key is missing
	ErrNotConfigured = errors.New("not configured")
)

// ValidationError carries a caller-facing message for a rejected input
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// Unwrap lets errors.Is match ErrInvalidInput
func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

// NewValidationError creates a ValidationError with a formatted message
func NewValidationError(format string, args ...interface{}) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// LockedError reports a PIN lockout and how long it lasts
type LockedError struct {
	RetryAfter time.Duration
}

func (e *LockedError) Error() string { return ErrLocked.Error() }

// Unwrap lets errors.Is match ErrLocked
func (e *LockedError) Unwrap() error { return ErrLocked }

// RateLimitError reports a rejected request and when the window resets
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string { return ErrRateLimited.Error() }

// Unwrap lets errors.Is match ErrRateLimited
func (e *RateLimitError) Unwrap() error { return ErrRateLimited }

// RetryAfterSeconds rounds a wait up to whole seconds, never below one
func RetryAfterSeconds(d time.Duration) int {
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}
