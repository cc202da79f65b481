package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/biller/internal/application/port"
	"github.com/garyjia/biller/internal/domain/entity"
	"github.com/garyjia/biller/internal/infrastructure/persistence/sqlite"
)

const (
	numberColumn     = "invoices.invoice_number"
	occurrenceColumn = "invoices.recurring_source_invoice_id"
)

// invoiceColumns are selected by every invoice query, in scanInvoice order
const invoiceColumns = `
	id, invoice_number, invoice_date, is_template, template_name, status, amount_paid,
	recurring_enabled, recurring_next_run_date, recurring_last_run_at,
	recurring_source_invoice_id, pdf_path, generated_at, payload, created_at, updated_at`

// InvoiceRepository implements port.InvoiceRepository.
// Fields that are filtered, indexed or updated in place live in columns;
// the rest of the document is kept as JSON in payload and the columns
// take precedence when reading.
type InvoiceRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewInvoiceRepository creates a new invoice repository
func NewInvoiceRepository(db *sql.DB, logger *zap.Logger) port.InvoiceRepository {
	return &InvoiceRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts the invoice and sets its ID and timestamps
func (r *InvoiceRepository) Create(ctx context.Context, invoice *entity.Invoice) error {
	now := time.Now().UTC()
	if invoice.CreatedAt.IsZero() {
		invoice.CreatedAt = now
	}
	invoice.UpdatedAt = now

	payload, err := json.Marshal(invoice)
	if err != nil {
		return fmt.Errorf("failed to encode invoice: %w", err)
	}

	query := `
		INSERT INTO invoices (
			invoice_number, invoice_date, is_template, template_name, status, amount_paid,
			recurring_enabled, recurring_next_run_date, recurring_last_run_at,
			recurring_source_invoice_id, pdf_path, generated_at, payload, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		invoice.Invoice.Number,
		invoice.Invoice.Date,
		invoice.IsTemplate,
		invoice.TemplateName,
		invoice.Status,
		invoice.AmountPaid,
		invoice.Recurring.Enabled,
		invoice.Recurring.NextRunDate,
		nullTime(invoice.Recurring.LastRunAt),
		nullInt64(invoice.Recurring.SourceInvoiceID),
		invoice.PDFPath,
		nullTime(invoice.GeneratedAt),
		string(payload),
		invoice.CreatedAt,
		invoice.UpdatedAt,
	)
	if err != nil {
		if mapped := mapUniqueViolation(err); mapped != nil {
			return mapped
		}
		r.logger.Error("Failed to create invoice", zap.String("number", invoice.Invoice.Number), zap.Error(err))
		return fmt.Errorf("failed to create invoice: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	invoice.ID = id
	return nil
}

// GetByID retrieves an invoice or template by ID
func (r *InvoiceRepository) GetByID(ctx context.Context, id int64) (*entity.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = ?`

	invoice, err := scanInvoice(r.getExecutor(ctx).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get invoice by ID", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}
	return invoice, nil
}

// GetByNumber retrieves a non-template invoice by its number
func (r *InvoiceRepository) GetByNumber(ctx context.Context, number string) (*entity.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE invoice_number = ? AND is_template = 0`

	invoice, err := scanInvoice(r.getExecutor(ctx).QueryRowContext(ctx, query, number))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get invoice by number", zap.String("number", number), zap.Error(err))
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}
	return invoice, nil
}

// Update replaces the stored document. created_at is never rewritten.
func (r *InvoiceRepository) Update(ctx context.Context, invoice *entity.Invoice) error {
	invoice.UpdatedAt = time.Now().UTC()

	payload, err := json.Marshal(invoice)
	if err != nil {
		return fmt.Errorf("failed to encode invoice: %w", err)
	}

	query := `
		UPDATE invoices SET
			invoice_number = ?, invoice_date = ?, is_template = ?, template_name = ?,
			status = ?, amount_paid = ?, recurring_enabled = ?, recurring_next_run_date = ?,
			recurring_last_run_at = ?, recurring_source_invoice_id = ?, pdf_path = ?,
			generated_at = ?, payload = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		invoice.Invoice.Number,
		invoice.Invoice.Date,
		invoice.IsTemplate,
		invoice.TemplateName,
		invoice.Status,
		invoice.AmountPaid,
		invoice.Recurring.Enabled,
		invoice.Recurring.NextRunDate,
		nullTime(invoice.Recurring.LastRunAt),
		nullInt64(invoice.Recurring.SourceInvoiceID),
		invoice.PDFPath,
		nullTime(invoice.GeneratedAt),
		string(payload),
		invoice.UpdatedAt,
		invoice.ID,
	)
	if err != nil {
		if mapped := mapUniqueViolation(err); mapped != nil {
			return mapped
		}
		r.logger.Error("Failed to update invoice", zap.Int64("id", invoice.ID), zap.Error(err))
		return fmt.Errorf("failed to update invoice: %w", err)
	}

	return requireAffected(result, "invoice")
}

// Delete removes an invoice or template
func (r *InvoiceRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.getExecutor(ctx).ExecContext(ctx, `DELETE FROM invoices WHERE id = ?`, id)
	if err != nil {
		r.logger.Error("Failed to delete invoice", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to delete invoice: %w", err)
	}
	return requireAffected(result, "invoice")
}

// List returns invoices matching the filter, newest first
func (r *InvoiceRepository) List(ctx context.Context, filter entity.InvoiceFilter) ([]*entity.Invoice, error) {
	var where []string
	var args []interface{}
	if filter.IsTemplate != nil {
		where = append(where, "is_template = ?")
		args = append(args, *filter.IsTemplate)
	}
	if filter.RecurringEnabled != nil {
		where = append(where, "recurring_enabled = ?")
		args = append(args, *filter.RecurringEnabled)
	}

	query := `SELECT ` + invoiceColumns + ` FROM invoices`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, id DESC`

	return r.query(ctx, "list invoices", query, args...)
}

// ListTemplates returns templates ordered by template name
func (r *InvoiceRepository) ListTemplates(ctx context.Context) ([]*entity.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE is_template = 1 ORDER BY template_name ASC, id ASC`
	return r.query(ctx, "list templates", query)
}

// ListRecurringSources returns non-template invoices with recurring enabled, oldest first
func (r *InvoiceRepository) ListRecurringSources(ctx context.Context) ([]*entity.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices
		WHERE is_template = 0 AND recurring_enabled = 1
		ORDER BY id ASC`
	return r.query(ctx, "list recurring sources", query)
}

// HighestSequence returns the largest numeric suffix of non-template
// invoice numbers starting with prefix. Suffixes are compared as integers.
func (r *InvoiceRepository) HighestSequence(ctx context.Context, prefix string) (int, error) {
	query := `
		SELECT COALESCE(MAX(CAST(substr(invoice_number, length(?) + 1) AS INTEGER)), 0)
		FROM invoices
		WHERE is_template = 0 AND substr(invoice_number, 1, length(?)) = ?
	`

	var highest int
	if err := r.getExecutor(ctx).QueryRowContext(ctx, query, prefix, prefix, prefix).Scan(&highest); err != nil {
		r.logger.Error("Failed to read highest invoice sequence", zap.String("prefix", prefix), zap.Error(err))
		return 0, fmt.Errorf("failed to read highest sequence: %w", err)
	}
	return highest, nil
}

// AdvanceSchedule moves a source's next run date and, when given, its last run time
func (r *InvoiceRepository) AdvanceSchedule(ctx context.Context, id int64, nextRunDate string, lastRunAt *time.Time) error {
	query := `
		UPDATE invoices SET
			recurring_next_run_date = ?,
			recurring_last_run_at = COALESCE(?, recurring_last_run_at),
			updated_at = ?
		WHERE id = ?
	`

	result, err := r.getExecutor(ctx).ExecContext(ctx, query, nextRunDate, nullTime(lastRunAt), time.Now().UTC(), id)
	if err != nil {
		r.logger.Error("Failed to advance recurring schedule",
			zap.Int64("id", id),
			zap.String("next_run_date", nextRunDate),
			zap.Error(err))
		return fmt.Errorf("failed to advance schedule: %w", err)
	}
	return requireAffected(result, "invoice")
}

// SetPDFPath records a generated PDF on an invoice
func (r *InvoiceRepository) SetPDFPath(ctx context.Context, id int64, pdfPath string, generatedAt time.Time) error {
	query := `UPDATE invoices SET pdf_path = ?, generated_at = ?, updated_at = ? WHERE id = ?`

	result, err := r.getExecutor(ctx).ExecContext(ctx, query, pdfPath, generatedAt.UTC(), time.Now().UTC(), id)
	if err != nil {
		r.logger.Error("Failed to set PDF path", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to set pdf path: %w", err)
	}
	return requireAffected(result, "invoice")
}

// Count returns the number of invoices with the given template flag
func (r *InvoiceRepository) Count(ctx context.Context, isTemplate bool) (int, error) {
	var count int
	err := r.getExecutor(ctx).QueryRowContext(ctx, `SELECT COUNT(*) FROM invoices WHERE is_template = ?`, isTemplate).Scan(&count)
	if err != nil {
		r.logger.Error("Failed to count invoices", zap.Bool("is_template", isTemplate), zap.Error(err))
		return 0, fmt.Errorf("failed to count invoices: %w", err)
	}
	return count, nil
}

func (r *InvoiceRepository) query(ctx context.Context, op, query string, args ...interface{}) ([]*entity.Invoice, error) {
	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to "+op, zap.Error(err))
		return nil, fmt.Errorf("failed to %s: %w", op, err)
	}
	defer rows.Close()

	invoices := make([]*entity.Invoice, 0)
	for rows.Next() {
		invoice, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		invoices = append(invoices, invoice)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to %s: %w", op, err)
	}
	return invoices, nil
}

func (r *InvoiceRepository) getExecutor(ctx context.Context) sqlite.Execer {
	return sqlite.Executor(ctx, r.db)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanInvoice(row rowScanner) (*entity.Invoice, error) {
	var (
		invoice     entity.Invoice
		id          int64
		number      string
		date        string
		isTemplate  bool
		name        string
		status      string
		amountPaid  float64
		enabled     bool
		nextRunDate string
		lastRunAt   sql.NullTime
		sourceID    sql.NullInt64
		pdfPath     string
		generatedAt sql.NullTime
		payload     string
		createdAt   time.Time
		updatedAt   time.Time
	)

	if err := row.Scan(
		&id, &number, &date, &isTemplate, &name, &status, &amountPaid,
		&enabled, &nextRunDate, &lastRunAt,
		&sourceID, &pdfPath, &generatedAt, &payload, &createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(payload), &invoice); err != nil {
		return nil, fmt.Errorf("failed to decode invoice %d: %w", id, err)
	}

	invoice.ID = id
	invoice.Invoice.Number = number
	invoice.Invoice.Date = date
	invoice.IsTemplate = isTemplate
	invoice.TemplateName = name
	invoice.Status = status
	invoice.AmountPaid = amountPaid
	invoice.Recurring.Enabled = enabled
	invoice.Recurring.NextRunDate = nextRunDate
	invoice.Recurring.LastRunAt = timePtr(lastRunAt)
	invoice.Recurring.SourceInvoiceID = nil
	if sourceID.Valid {
		v := sourceID.Int64
		invoice.Recurring.SourceInvoiceID = &v
	}
	invoice.PDFPath = pdfPath
	invoice.GeneratedAt = timePtr(generatedAt)
	invoice.CreatedAt = createdAt.UTC()
	invoice.UpdatedAt = updatedAt.UTC()

	return &invoice, nil
}

func mapUniqueViolation(err error) error {
	switch {
	case sqlite.IsUniqueViolation(err, occurrenceColumn):
		return entity.ErrDuplicateOccurrence
	case sqlite.IsUniqueViolation(err, numberColumn):
		return entity.ErrDuplicateNumber
	}
	return nil
}

func requireAffected(result sql.Result, what string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, entity.ErrNotFound)
	}
	return nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}
