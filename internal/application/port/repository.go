package port

import (
	"context"
	"time"

	"github.com/garyjia/biller/internal/domain/entity"
)

// InvoiceRepository defines persistence operations for invoices and templates
type InvoiceRepository interface {
	// Create inserts the invoice and sets its ID.
	// Returns entity.ErrDuplicateNumber or entity.ErrDuplicateOccurrence on uniqueness conflicts.
	Create(ctx context.Context, invoice *entity.Invoice) error
	GetByID(ctx context.Context, id int64) (*entity.Invoice, error)
	GetByNumber(ctx context.Context, number string) (*entity.Invoice, error)
	Update(ctx context.Context, invoice *entity.Invoice) error
	Delete(ctx context.Context, id int64) error

	// List returns invoices matching the filter, newest first
	List(ctx context.Context, filter entity.InvoiceFilter) ([]*entity.Invoice, error)

	// ListTemplates returns templates ordered by template name
	ListTemplates(ctx context.Context) ([]*entity.Invoice, error)

	// ListRecurringSources returns non-template invoices with recurring enabled
	ListRecurringSources(ctx context.Context) ([]*entity.Invoice, error)

	// HighestSequence returns the largest numeric suffix among numbers with the given prefix
	HighestSequence(ctx context.Context, prefix string) (int, error)

	// AdvanceSchedule stores the next run date and, when non-nil, the last run time of a source
	AdvanceSchedule(ctx context.Context, id int64, nextRunDate string, lastRunAt *time.Time) error

	// SetPDFPath records a generated PDF on an invoice
	SetPDFPath(ctx context.Context, id int64, pdfPath string, generatedAt time.Time) error

	// Count returns the number of invoices with the given template flag
	Count(ctx context.Context, isTemplate bool) (int, error)
}

// ClientRepository defines persistence operations for clients
type ClientRepository interface {
	Create(ctx context.Context, client *entity.Client) error
	GetByID(ctx context.Context, id int64) (*entity.Client, error)
	Update(ctx context.Context, client *entity.Client) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context) ([]*entity.Client, error)
}

// AuthStateRepository persists the owner's singleton authentication state
type AuthStateRepository interface {
	// GetOrCreate loads the owner state, inserting an empty record on first access
	GetOrCreate(ctx context.Context) (*entity.AuthState, error)

	// RecordPINFailure increments the failed attempt counter and sets lockUntil
	// once the counter reaches maxAttempts. Returns the new counter.
	RecordPINFailure(ctx context.Context, maxAttempts int, lockUntil time.Time) (int, error)
	ResetPINFailures(ctx context.Context) error

	// SetChallenge replaces the single pending challenge slot
	SetChallenge(ctx context.Context, challenge string, state []byte, expiresAt time.Time) error
	ClearChallenge(ctx context.Context) error

	// SaveCredential inserts a credential, replacing any with the same ID
	SaveCredential(ctx context.Context, cred *entity.WebAuthnCredential) error
	UpdateCredentialUsage(ctx context.Context, credentialID string, counter uint32, usedAt time.Time) error
	UpdateCredentialLabel(ctx context.Context, credentialID, label string) error
	DeleteCredential(ctx context.Context, credentialID string) error
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
