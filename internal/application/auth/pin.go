// Package auth implements owner authentication: PIN login with lockout,
// WebAuthn ceremonies and signed session tokens.
package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/pbkdf2"

	"github.com/garyjia/biller/internal/application/port"
	"github.com/garyjia/biller/internal/domain/entity"
)

const (
	PINIterations = 210000
	PINKeyLength  = 32
	MinPINLength  = 4
	MaxPINLength  = 12

	DefaultMaxAttempts  = 5
	DefaultLockDuration = 15 * time.Minute
)

// Logger interface for logging operations
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// Clock returns the current time
type Clock func() time.Time

func (c Clock) now() time.Time {
	if c == nil {
		return time.Now().UTC()
	}
	return c().UTC()
}

// ValidPINFormat reports whether pin is 4 to 12 ASCII digits
func ValidPINFormat(pin string) bool {
	if len(pin) < MinPINLength || len(pin) > MaxPINLength {
		return false
	}
	for i := 0; i < len(pin); i++ {
		if pin[i] < '0' || pin[i] > '9' {
			return false
		}
	}
	return true
}

// HashPIN derives the hex encoded PBKDF2-SHA256 key of a PIN
func HashPIN(pin, salt string) string {
	key := pbkdf2.Key([]byte(pin), []byte(salt), PINIterations, PINKeyLength, sha256.New)
	return hex.EncodeToString(key)
}

// PINConfig holds the configured PIN secret and lockout policy
type PINConfig struct {
	Salt         string
	Hash         string
	MaxAttempts  int
	LockDuration time.Duration
}

// PINAuthenticator verifies the owner PIN and tracks failed attempts
type PINAuthenticator struct {
	repo   port.AuthStateRepository
	cfg    PINConfig
	clock  Clock
	logger Logger

	derive func(pin, salt string) string
}

// NewPINAuthenticator creates a PINAuthenticator
func NewPINAuthenticator(repo port.AuthStateRepository, cfg PINConfig, clock Clock, logger Logger) *PINAuthenticator {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.LockDuration <= 0 {
		cfg.LockDuration = DefaultLockDuration
	}
	return &PINAuthenticator{
		repo:   repo,
		cfg:    cfg,
		clock:  clock,
		logger: logger,
		derive: HashPIN,
	}
}

// Verify checks a submitted PIN. It returns a validation error for a malformed
// PIN, *entity.LockedError while locked out and entity.ErrInvalidPIN on mismatch.
func (a *PINAuthenticator) Verify(ctx context.Context, pin string) error {
	pin = strings.TrimSpace(pin)
	if !ValidPINFormat(pin) {
		return entity.NewValidationError("Invalid PIN format.")
	}

	state, err := a.repo.GetOrCreate(ctx)
	if err != nil {
		return fmt.Errorf("failed to load auth state: %w", err)
	}

	now := a.clock.now()
	if locked, remaining := state.IsLocked(now); locked {
		a.logger.Info("PIN login rejected while locked", "retry_after_seconds", entity.RetryAfterSeconds(remaining))
		return &entity.LockedError{RetryAfter: remaining}
	}

	if !a.matches(pin) {
		attempts, err := a.repo.RecordPINFailure(ctx, a.cfg.MaxAttempts, now.Add(a.cfg.LockDuration))
		if err != nil {
			return fmt.Errorf("failed to record PIN failure: %w", err)
		}
		a.logger.Info("PIN login failed", "attempts", attempts, "locked", attempts >= a.cfg.MaxAttempts)
		return entity.ErrInvalidPIN
	}

	if state.PINFailedAttempts > 0 || state.PINLockUntil != nil {
		if err := a.repo.ResetPINFailures(ctx); err != nil {
			return fmt.Errorf("failed to reset PIN failures: %w", err)
		}
	}

	a.logger.Info("PIN login succeeded")
	return nil
}

func (a *PINAuthenticator) matches(pin string) bool {
	if a.cfg.Salt == "" || a.cfg.Hash == "" {
		return false
	}
	actual := []byte(a.derive(pin, a.cfg.Salt))
	expected := []byte(strings.ToLower(strings.TrimSpace(a.cfg.Hash)))
	return subtle.ConstantTimeCompare(actual, expected) == 1
}
