package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/garyjia/biller/internal/application/port"
	"github.com/garyjia/biller/internal/domain/entity"
	"github.com/garyjia/biller/pkg/utils"
)

// ChallengeTTL is how long an issued challenge stays valid
const ChallengeTTL = 5 * time.Minute

// CredentialView is an enrolled credential as listed to the owner
type CredentialView struct {
	CredentialID string     `json:"credentialID"`
	Label        string     `json:"label"`
	DeviceType   string     `json:"deviceType"`
	BackedUp     bool       `json:"backedUp"`
	Transports   []string   `json:"transports"`
	CreatedAt    time.Time  `json:"createdAt"`
	LastUsedAt   *time.Time `json:"lastUsedAt"`
}

// WebAuthnCoordinator runs the registration and authentication ceremonies
// over the single challenge slot of the owner's auth state
type WebAuthnCoordinator struct {
	repo     port.AuthStateRepository
	ceremony port.WebAuthnCeremony
	clock    Clock
	logger   Logger
}

// NewWebAuthnCoordinator creates a WebAuthnCoordinator
func NewWebAuthnCoordinator(repo port.AuthStateRepository, ceremony port.WebAuthnCeremony, clock Clock, logger Logger) *WebAuthnCoordinator {
	return &WebAuthnCoordinator{
		repo:     repo,
		ceremony: ceremony,
		clock:    clock,
		logger:   logger,
	}
}

// BeginRegistration issues creation options excluding already enrolled authenticators
func (c *WebAuthnCoordinator) BeginRegistration(ctx context.Context) (interface{}, error) {
	state, err := c.repo.GetOrCreate(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load auth state: %w", err)
	}

	opts, err := c.ceremony.BeginRegistration(state.WebAuthnCredentials)
	if err != nil {
		return nil, fmt.Errorf("failed to generate registration options: %w", err)
	}
	if err := c.storeChallenge(ctx, opts); err != nil {
		return nil, err
	}

	c.logger.Info("WebAuthn registration started", "enrolled", len(state.WebAuthnCredentials))
	return opts.Options, nil
}

// CompleteRegistration verifies an attestation and enrolls the credential
func (c *WebAuthnCoordinator) CompleteRegistration(ctx context.Context, response json.RawMessage, label string) (*entity.WebAuthnCredential, error) {
	state, err := c.pendingState(ctx)
	if err != nil {
		return nil, err
	}

	cred, err := c.ceremony.FinishRegistration(state.ChallengeState, state.WebAuthnCredentials, response)
	if err != nil {
		c.logger.Error("WebAuthn registration verification failed", "error", err)
		return nil, fmt.Errorf("%w: %v", entity.ErrRegistrationFailed, err)
	}

	if err := c.repo.ClearChallenge(ctx); err != nil {
		return nil, fmt.Errorf("failed to clear challenge: %w", err)
	}

	if label != "" {
		if trimmed, err := utils.ValidateLabel(label, entity.MaxCredentialLabelLength); err == nil {
			cred.Label = trimmed
		}
	}
	if cred.DeviceType == "" {
		cred.DeviceType = entity.DefaultDeviceType
	}
	cred.CreatedAt = c.clock.now()

	if err := c.repo.SaveCredential(ctx, cred); err != nil {
		return nil, fmt.Errorf("failed to store credential: %w", err)
	}

	c.logger.Info("WebAuthn credential registered", "credential_id", cred.CredentialID, "device_type", cred.DeviceType)
	return cred, nil
}

// BeginAuthentication issues request options allowing every enrolled credential
func (c *WebAuthnCoordinator) BeginAuthentication(ctx context.Context) (interface{}, error) {
	state, err := c.repo.GetOrCreate(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load auth state: %w", err)
	}
	if len(state.WebAuthnCredentials) == 0 {
		return nil, entity.ErrNoCredentials
	}

	opts, err := c.ceremony.BeginLogin(state.WebAuthnCredentials)
	if err != nil {
		return nil, fmt.Errorf("failed to generate login challenge: %w", err)
	}
	if err := c.storeChallenge(ctx, opts); err != nil {
		return nil, err
	}
	return opts.Options, nil
}

// CompleteAuthentication verifies an assertion against the enrolled credential it names
func (c *WebAuthnCoordinator) CompleteAuthentication(ctx context.Context, response json.RawMessage) (*entity.WebAuthnCredential, error) {
	state, err := c.pendingState(ctx)
	if err != nil {
		return nil, err
	}

	var envelope struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(response, &envelope); err != nil || envelope.ID == "" {
		return nil, entity.NewValidationError("Invalid credential response")
	}

	stored, ok := state.FindCredential(envelope.ID)
	if !ok {
		return nil, entity.ErrCredentialNotRecognized
	}

	result, err := c.ceremony.FinishLogin(state.ChallengeState, state.WebAuthnCredentials, response)
	if err != nil {
		c.logger.Error("WebAuthn assertion verification failed", "credential_id", stored.CredentialID, "error", err)
		return nil, fmt.Errorf("%w: %v", entity.ErrVerificationFailed, err)
	}
	if result.CredentialID != stored.CredentialID {
		return nil, entity.ErrVerificationFailed
	}
	if result.Counter != 0 && result.Counter <= stored.Counter {
		c.logger.Error("WebAuthn signature counter did not advance",
			"credential_id", stored.CredentialID, "stored", stored.Counter, "received", result.Counter)
		return nil, entity.ErrVerificationFailed
	}

	if err := c.repo.ClearChallenge(ctx); err != nil {
		return nil, fmt.Errorf("failed to clear challenge: %w", err)
	}

	usedAt := c.clock.now()
	if err := c.repo.UpdateCredentialUsage(ctx, stored.CredentialID, result.Counter, usedAt); err != nil {
		return nil, fmt.Errorf("failed to update credential usage: %w", err)
	}

	out := *stored
	out.Counter = result.Counter
	out.LastUsedAt = &usedAt
	c.logger.Info("WebAuthn login succeeded", "credential_id", stored.CredentialID)
	return &out, nil
}

// HasCredentials reports whether any authenticator is enrolled
func (c *WebAuthnCoordinator) HasCredentials(ctx context.Context) (bool, error) {
	state, err := c.repo.GetOrCreate(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to load auth state: %w", err)
	}
	return len(state.WebAuthnCredentials) > 0, nil
}

// ListCredentials returns the enrolled authenticators with display defaults applied
func (c *WebAuthnCoordinator) ListCredentials(ctx context.Context) ([]CredentialView, error) {
	state, err := c.repo.GetOrCreate(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load auth state: %w", err)
	}

	views := make([]CredentialView, 0, len(state.WebAuthnCredentials))
	for i, cred := range state.WebAuthnCredentials {
		deviceType := cred.DeviceType
		if deviceType == "" {
			deviceType = entity.DefaultDeviceType
		}
		transports := cred.Transports
		if transports == nil {
			transports = []string{}
		}
		views = append(views, CredentialView{
			CredentialID: cred.CredentialID,
			Label:        cred.DisplayLabel(i),
			DeviceType:   deviceType,
			BackedUp:     cred.BackedUp,
			Transports:   transports,
			CreatedAt:    cred.CreatedAt,
			LastUsedAt:   cred.LastUsedAt,
		})
	}
	return views, nil
}

// RenameCredential sets the label of an enrolled credential
func (c *WebAuthnCoordinator) RenameCredential(ctx context.Context, credentialID, label string) error {
	trimmed, err := utils.ValidateLabel(label, entity.MaxCredentialLabelLength)
	if err != nil {
		return entity.NewValidationError("Label is required and must be <= %d chars.", entity.MaxCredentialLabelLength)
	}
	if err := c.repo.UpdateCredentialLabel(ctx, credentialID, trimmed); err != nil {
		if errors.Is(err, entity.ErrNotFound) {
			return err
		}
		return fmt.Errorf("failed to rename credential: %w", err)
	}
	c.logger.Info("WebAuthn credential renamed", "credential_id", credentialID)
	return nil
}

// DeleteCredential removes an enrolled credential
func (c *WebAuthnCoordinator) DeleteCredential(ctx context.Context, credentialID string) error {
	if err := c.repo.DeleteCredential(ctx, credentialID); err != nil {
		if errors.Is(err, entity.ErrNotFound) {
			return err
		}
		return fmt.Errorf("failed to delete credential: %w", err)
	}
	c.logger.Info("WebAuthn credential deleted", "credential_id", credentialID)
	return nil
}

func (c *WebAuthnCoordinator) storeChallenge(ctx context.Context, opts *port.CeremonyOptions) error {
	expiresAt := c.clock.now().Add(ChallengeTTL)
	if err := c.repo.SetChallenge(ctx, opts.Challenge, opts.State, expiresAt); err != nil {
		return fmt.Errorf("failed to store challenge: %w", err)
	}
	return nil
}

// pendingState loads the auth state and checks that an unexpired challenge is waiting
func (c *WebAuthnCoordinator) pendingState(ctx context.Context) (*entity.AuthState, error) {
	state, err := c.repo.GetOrCreate(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load auth state: %w", err)
	}
	if !state.HasPendingChallenge() {
		return nil, entity.ErrNoChallenge
	}
	if state.ChallengeExpired(c.clock.now()) {
		return nil, entity.ErrChallengeExpired
	}
	return state, nil
}
