// Package passkey implements the WebAuthn ceremonies on top of go-webauthn.
package passkey

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	"go.uber.org/zap"

	"github.com/garyjia/biller/internal/application/port"
	"github.com/garyjia/biller/internal/domain/entity"
)

// CeremonyTimeout is advertised to the browser in every options object
const CeremonyTimeout = 60 * time.Second

// Config holds the relying party identity
type Config struct {
	RPID    string
	RPName  string
	Origins []string
}

// Ceremony implements port.WebAuthnCeremony for the single owner account
type Ceremony struct {
	web    *webauthn.WebAuthn
	logger *zap.Logger
}

// NewCeremony creates a ceremony provider for the relying party
func NewCeremony(cfg Config, logger *zap.Logger) (*Ceremony, error) {
	timeout := webauthn.TimeoutConfig{Timeout: CeremonyTimeout, TimeoutUVD: CeremonyTimeout}
	web, err := webauthn.New(&webauthn.Config{
		RPID:          cfg.RPID,
		RPDisplayName: cfg.RPName,
		RPOrigins:     cfg.Origins,
		Timeouts: webauthn.TimeoutsConfig{
			Login:        timeout,
			Registration: timeout,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("invalid WebAuthn relying party: %w", err)
	}
	return &Ceremony{web: web, logger: logger}, nil
}

// BeginRegistration issues creation options for a platform authenticator
func (c *Ceremony) BeginRegistration(enrolled []entity.WebAuthnCredential) (*port.CeremonyOptions, error) {
	user, err := newOwner(enrolled)
	if err != nil {
		return nil, err
	}

	exclusions := make([]protocol.CredentialDescriptor, 0, len(user.creds))
	for _, cred := range user.creds {
		exclusions = append(exclusions, cred.Descriptor())
	}

	creation, session, err := c.web.BeginRegistration(user,
		webauthn.WithAuthenticatorSelection(protocol.AuthenticatorSelection{
			AuthenticatorAttachment: protocol.Platform,
			ResidentKey:             protocol.ResidentKeyRequirementPreferred,
			UserVerification:        protocol.VerificationRequired,
		}),
		webauthn.WithConveyancePreference(protocol.PreferNoAttestation),
		webauthn.WithExclusions(exclusions),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to begin registration: %w", err)
	}

	return packOptions(creation.Response, session)
}

// FinishRegistration verifies an attestation response against the stored session
func (c *Ceremony) FinishRegistration(state []byte, enrolled []entity.WebAuthnCredential, response []byte) (*entity.WebAuthnCredential, error) {
	session, err := unpackSession(state)
	if err != nil {
		return nil, err
	}
	user, err := newOwner(enrolled)
	if err != nil {
		return nil, err
	}

	parsed, err := protocol.ParseCredentialCreationResponseBody(bytes.NewReader(response))
	if err != nil {
		return nil, fmt.Errorf("failed to parse attestation: %w", describe(err))
	}

	cred, err := c.web.CreateCredential(user, *session, parsed)
	if err != nil {
		return nil, fmt.Errorf("attestation rejected: %w", describe(err))
	}

	out := fromLibrary(cred)
	c.logger.Debug("Attestation verified", zap.String("credential_id", out.CredentialID), zap.String("device_type", out.DeviceType))
	return out, nil
}

// BeginLogin issues request options allowing every enrolled credential
func (c *Ceremony) BeginLogin(enrolled []entity.WebAuthnCredential) (*port.CeremonyOptions, error) {
	user, err := newOwner(enrolled)
	if err != nil {
		return nil, err
	}

	assertion, session, err := c.web.BeginLogin(user, webauthn.WithUserVerification(protocol.VerificationRequired))
	if err != nil {
		return nil, fmt.Errorf("failed to begin login: %w", err)
	}

	return packOptions(assertion.Response, session)
}

// FinishLogin verifies an assertion signature and returns the authenticator counter
func (c *Ceremony) FinishLogin(state []byte, enrolled []entity.WebAuthnCredential, response []byte) (*port.AssertionResult, error) {
	session, err := unpackSession(state)
	if err != nil {
		return nil, err
	}
	user, err := newOwner(enrolled)
	if err != nil {
		return nil, err
	}

	parsed, err := protocol.ParseCredentialRequestResponseBody(bytes.NewReader(response))
	if err != nil {
		return nil, fmt.Errorf("failed to parse assertion: %w", describe(err))
	}

	cred, err := c.web.ValidateLogin(user, *session, parsed)
	if err != nil {
		return nil, fmt.Errorf("assertion rejected: %w", describe(err))
	}
	if cred.Authenticator.CloneWarning {
		return nil, errors.New("authenticator counter regressed")
	}

	return &port.AssertionResult{
		CredentialID: encodeID(cred.ID),
		Counter:      cred.Authenticator.SignCount,
	}, nil
}

func packOptions(options interface{}, session *webauthn.SessionData) (*port.CeremonyOptions, error) {
	state, err := json.Marshal(session)
	if err != nil {
		return nil, fmt.Errorf("failed to encode ceremony state: %w", err)
	}
	return &port.CeremonyOptions{
		Options:   options,
		Challenge: session.Challenge,
		State:     state,
	}, nil
}

func unpackSession(state []byte) (*webauthn.SessionData, error) {
	if len(state) == 0 {
		return nil, errors.New("missing ceremony state")
	}
	var session webauthn.SessionData
	if err := json.Unmarshal(state, &session); err != nil {
		return nil, fmt.Errorf("corrupt ceremony state: %w", err)
	}
	return &session, nil
}

// describe folds the protocol error details into the message
func describe(err error) error {
	var perr *protocol.Error
	if errors.As(err, &perr) && perr.DevInfo != "" {
		return fmt.Errorf("%w: %s", err, perr.DevInfo)
	}
	return err
}

func encodeID(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

func decodeID(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
}

var _ port.WebAuthnCeremony = (*Ceremony)(nil)
