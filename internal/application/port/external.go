package port

import (
	"context"
	"io"
	"time"

	"github.com/garyjia/biller/internal/domain/entity"
)

// PDFRenderer turns an invoice into PDF bytes
type PDFRenderer interface {
	Render(ctx context.Context, invoice *entity.Invoice) ([]byte, error)
	Name() string
}

// PDFValidator inspects rendered PDF bytes and reports the page count
type PDFValidator interface {
	Validate(content []byte) (int, error)
}

// Notifier tells the owner about invoices created without their involvement
type Notifier interface {
	NotifyRecurringGenerated(ctx context.Context, source *entity.Invoice, generated []*entity.Invoice) error
}

// RateLimiter is a fixed-window request counter keyed by caller
type RateLimiter interface {
	// Allow counts one request for key. When the window budget is exhausted it
	// returns false and the time until the window resets.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, time.Duration, error)
}

// CeremonyOptions is the output of a WebAuthn options phase
type CeremonyOptions struct {
	// Options is serialized to the browser as-is
	Options interface{}
	// Challenge is the base64url challenge embedded in Options
	Challenge string
	// State is opaque data the verify phase needs back
	State []byte
}

// AssertionResult is the outcome of a verified authentication ceremony
type AssertionResult struct {
	CredentialID string
	Counter      uint32
}

// WebAuthnCeremony wraps the WebAuthn cryptographic primitives
type WebAuthnCeremony interface {
	BeginRegistration(enrolled []entity.WebAuthnCredential) (*CeremonyOptions, error)
	FinishRegistration(state []byte, enrolled []entity.WebAuthnCredential, response []byte) (*entity.WebAuthnCredential, error)
	BeginLogin(enrolled []entity.WebAuthnCredential) (*CeremonyOptions, error)
	FinishLogin(state []byte, enrolled []entity.WebAuthnCredential, response []byte) (*AssertionResult, error)
}

// InvoiceExporter writes invoices as a spreadsheet
type InvoiceExporter interface {
	Write(w io.Writer, invoices []*entity.Invoice) error
	ContentType() string
	Extension() string
}
