package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/garyjia/biller/internal/application/port"
	"github.com/garyjia/biller/internal/domain/entity"
)

type memoryAuthRepo struct {
	mu    sync.Mutex
	state entity.AuthState
}

func newMemoryAuthRepo() *memoryAuthRepo {
	return &memoryAuthRepo{state: entity.AuthState{SingletonKey: entity.OwnerKey}}
}

func (r *memoryAuthRepo) GetOrCreate(ctx context.Context) (*entity.AuthState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.state
	s.WebAuthnCredentials = append([]entity.WebAuthnCredential(nil), r.state.WebAuthnCredentials...)
	return &s, nil
}

func (r *memoryAuthRepo) RecordPINFailure(ctx context.Context, maxAttempts int, lockUntil time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state.PINFailedAttempts++
	if r.state.PINFailedAttempts >= maxAttempts {
		r.state.PINLockUntil = &lockUntil
	}
	return r.state.PINFailedAttempts, nil
}

func (r *memoryAuthRepo) ResetPINFailures(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state.PINFailedAttempts = 0
	r.state.PINLockUntil = nil
	return nil
}

func (r *memoryAuthRepo) SetChallenge(ctx context.Context, challenge string, state []byte, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state.CurrentChallenge = challenge
	r.state.ChallengeState = state
	r.state.ChallengeExpiresAt = &expiresAt
	return nil
}

func (r *memoryAuthRepo) ClearChallenge(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state.CurrentChallenge = ""
	r.state.ChallengeState = nil
	r.state.ChallengeExpiresAt = nil
	return nil
}

func (r *memoryAuthRepo) SaveCredential(ctx context.Context, cred *entity.WebAuthnCredential) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.state.WebAuthnCredentials[:0]
	for _, c := range r.state.WebAuthnCredentials {
		if c.CredentialID != cred.CredentialID {
			kept = append(kept, c)
		}
	}
	r.state.WebAuthnCredentials = append(kept, *cred)
	return nil
}

func (r *memoryAuthRepo) find(id string) *entity.WebAuthnCredential {
	for i := range r.state.WebAuthnCredentials {
		if r.state.WebAuthnCredentials[i].CredentialID == id {
			return &r.state.WebAuthnCredentials[i]
		}
	}
	return nil
}

func (r *memoryAuthRepo) UpdateCredentialUsage(ctx context.Context, credentialID string, counter uint32, usedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := r.find(credentialID)
	if c == nil {
		return entity.ErrNotFound
	}
	c.Counter = counter
	c.LastUsedAt = &usedAt
	return nil
}

func (r *memoryAuthRepo) UpdateCredentialLabel(ctx context.Context, credentialID, label string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := r.find(credentialID)
	if c == nil {
		return entity.ErrNotFound
	}
	c.Label = label
	return nil
}

func (r *memoryAuthRepo) DeleteCredential(ctx context.Context, credentialID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.find(credentialID) == nil {
		return entity.ErrNotFound
	}
	kept := r.state.WebAuthnCredentials[:0]
	for _, c := range r.state.WebAuthnCredentials {
		if c.CredentialID != credentialID {
			kept = append(kept, c)
		}
	}
	r.state.WebAuthnCredentials = kept
	return nil
}

type mockCeremony struct {
	beginRegistrationFunc  func(enrolled []entity.WebAuthnCredential) (*port.CeremonyOptions, error)
	finishRegistrationFunc func(state []byte, enrolled []entity.WebAuthnCredential, response []byte) (*entity.WebAuthnCredential, error)
	beginLoginFunc         func(enrolled []entity.WebAuthnCredential) (*port.CeremonyOptions, error)
	finishLoginFunc        func(state []byte, enrolled []entity.WebAuthnCredential, response []byte) (*port.AssertionResult, error)
	finishLoginCalls       int
}

func (m *mockCeremony) BeginRegistration(enrolled []entity.WebAuthnCredential) (*port.CeremonyOptions, error) {
	if m.beginRegistrationFunc != nil {
		return m.beginRegistrationFunc(enrolled)
	}
	return &port.CeremonyOptions{Options: map[string]string{"challenge": "reg-challenge"}, Challenge: "reg-challenge", State: []byte(`{"reg":true}`)}, nil
}

func (m *mockCeremony) FinishRegistration(state []byte, enrolled []entity.WebAuthnCredential, response []byte) (*entity.WebAuthnCredential, error) {
	if m.finishRegistrationFunc != nil {
		return m.finishRegistrationFunc(state, enrolled, response)
	}
	return &entity.WebAuthnCredential{CredentialID: "cred-1", PublicKey: "pk", Transports: []string{"internal"}}, nil
}

func (m *mockCeremony) BeginLogin(enrolled []entity.WebAuthnCredential) (*port.CeremonyOptions, error) {
	if m.beginLoginFunc != nil {
		return m.beginLoginFunc(enrolled)
	}
	return &port.CeremonyOptions{Options: map[string]string{"challenge": "login-challenge"}, Challenge: "login-challenge", State: []byte(`{"login":true}`)}, nil
}

func (m *mockCeremony) FinishLogin(state []byte, enrolled []entity.WebAuthnCredential, response []byte) (*port.AssertionResult, error) {
	m.finishLoginCalls++
	if m.finishLoginFunc != nil {
		return m.finishLoginFunc(state, enrolled, response)
	}
	return nil, errors.New("not configured")
}

type mockLimiter struct {
	allowFunc func(ctx context.Context, key string, limit int, window time.Duration) (bool, time.Duration, error)
	keys      []string
}

func (m *mockLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, time.Duration, error) {
	m.keys = append(m.keys, key)
	if m.allowFunc != nil {
		return m.allowFunc(ctx, key, limit, window)
	}
	return true, 0, nil
}

type mockLogger struct{}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{})  {}
func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {}

// manualClock is a clock tests can move forward
type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
