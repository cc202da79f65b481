package entity

import (
	"fmt"
	"time"
)

// AuthState is the singleton authentication record of the owner
type AuthState struct {
	SingletonKey        string               `json:"singletonKey"`
	PINFailedAttempts   int                  `json:"pinFailedAttempts"`
	PINLockUntil        *time.Time           `json:"pinLockUntil"`
	CurrentChallenge    string               `json:"currentChallenge"`
	ChallengeExpiresAt  *time.Time           `json:"challengeExpiresAt"`
	ChallengeState      []byte               `json:"-"`
	WebAuthnCredentials []WebAuthnCredential `json:"webAuthnCredentials"`
	CreatedAt           time.Time            `json:"createdAt"`
	UpdatedAt           time.Time            `json:"updatedAt"`
}

// IsLocked reports whether PIN login is locked at now, and for how long
func (s *AuthState) IsLocked(now time.Time) (bool, time.Duration) {
	if s.PINLockUntil == nil || !s.PINLockUntil.After(now) {
		return false, 0
	}
	return true, s.PINLockUntil.Sub(now)
}

// HasPendingChallenge reports whether a challenge is stored at all
func (s *AuthState) HasPendingChallenge() bool {
	return s.CurrentChallenge != "" && s.ChallengeExpiresAt != nil
}

// ChallengeExpired reports whether the stored challenge is past its expiry
func (s *AuthState) ChallengeExpired(now time.Time) bool {
	return s.ChallengeExpiresAt == nil || s.ChallengeExpiresAt.Before(now)
}

// FindCredential returns the enrolled credential with the given ID
func (s *AuthState) FindCredential(credentialID string) (*WebAuthnCredential, bool) {
	for i := range s.WebAuthnCredentials {
		if s.WebAuthnCredentials[i].CredentialID == credentialID {
			return &s.WebAuthnCredentials[i], true
		}
	}
	return nil, false
}

// WebAuthnCredential is an enrolled platform authenticator
type WebAuthnCredential struct {
	CredentialID string     `json:"credentialID"`
	Label        string     `json:"label"`
	PublicKey    string     `json:"credentialPublicKey"`
	Counter      uint32     `json:"counter"`
	Transports   []string   `json:"transports"`
	DeviceType   string     `json:"deviceType"`
	BackedUp     bool       `json:"backedUp"`
	CreatedAt    time.Time  `json:"createdAt"`
	LastUsedAt   *time.Time `json:"lastUsedAt"`
}

// DisplayLabel falls back to a positional name when no label was set
func (c WebAuthnCredential) DisplayLabel(index int) string {
	if c.Label != "" {
		return c.Label
	}
	return fmt.Sprintf("Fingerprint %d", index+1)
}

// SessionClaims is the payload carried by a session token
type SessionClaims struct {
	Subject  string   `json:"sub"`
	Methods  []string `json:"methods"`
	IssuedAt int64    `json:"iat"`
	Expires  int64    `json:"exp"`
	ID       string   `json:"jti"`
}
