package passkey

import (
	"fmt"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"

	"github.com/garyjia/biller/internal/domain/entity"
)

// owner is the single account every credential belongs to
type owner struct {
	creds []webauthn.Credential
}

func newOwner(enrolled []entity.WebAuthnCredential) (*owner, error) {
	u := &owner{creds: make([]webauthn.Credential, 0, len(enrolled))}
	for _, cred := range enrolled {
		lc, err := toLibrary(cred)
		if err != nil {
			return nil, err
		}
		u.creds = append(u.creds, lc)
	}
	return u, nil
}

func (u *owner) WebAuthnID() []byte                         { return []byte(entity.OwnerKey) }
func (u *owner) WebAuthnName() string                       { return entity.OwnerKey }
func (u *owner) WebAuthnDisplayName() string                { return "Owner" }
func (u *owner) WebAuthnCredentials() []webauthn.Credential { return u.creds }

func toLibrary(cred entity.WebAuthnCredential) (webauthn.Credential, error) {
	id, err := decodeID(cred.CredentialID)
	if err != nil {
		return webauthn.Credential{}, fmt.Errorf("stored credential id %q is not base64url: %w", cred.CredentialID, err)
	}
	publicKey, err := decodeID(cred.PublicKey)
	if err != nil {
		return webauthn.Credential{}, fmt.Errorf("stored public key of %q is not base64url: %w", cred.CredentialID, err)
	}

	transports := make([]protocol.AuthenticatorTransport, 0, len(cred.Transports))
	for _, t := range cred.Transports {
		transports = append(transports, protocol.AuthenticatorTransport(t))
	}

	return webauthn.Credential{
		ID:        id,
		PublicKey: publicKey,
		Transport: transports,
		Flags: webauthn.CredentialFlags{
			UserPresent:    true,
			UserVerified:   true,
			BackupEligible: cred.DeviceType == entity.MultiDeviceType,
			BackupState:    cred.BackedUp,
		},
		Authenticator: webauthn.Authenticator{
			SignCount: cred.Counter,
		},
	}, nil
}

func fromLibrary(cred *webauthn.Credential) *entity.WebAuthnCredential {
	transports := make([]string, 0, len(cred.Transport))
	for _, t := range cred.Transport {
		transports = append(transports, string(t))
	}

	deviceType := entity.DefaultDeviceType
	if cred.Flags.BackupEligible {
		deviceType = entity.MultiDeviceType
	}

	return &entity.WebAuthnCredential{
		CredentialID: encodeID(cred.ID),
		PublicKey:    encodeID(cred.PublicKey),
		Counter:      cred.Authenticator.SignCount,
		Transports:   transports,
		DeviceType:   deviceType,
		BackedUp:     cred.Flags.BackupState,
	}
}
