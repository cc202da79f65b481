package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/garyjia/biller/internal/application/port"
	"github.com/garyjia/biller/internal/domain/entity"
)

const recentInvoiceLimit = 10

// StatusUpdate is the body of a payment status change
type StatusUpdate struct {
	Status     string   `json:"status"`
	AmountPaid *float64 `json:"amountPaid"`
}

// StatsSummary is the dashboard overview
type StatsSummary struct {
	TotalInvoices      int             `json:"totalInvoices"`
	TotalTemplates     int             `json:"totalTemplates"`
	TotalRevenue       float64         `json:"totalRevenue"`
	TotalUnpaidRevenue float64         `json:"totalUnpaidRevenue"`
	RecentInvoices     []RecentInvoice `json:"recentInvoices"`
}

// RecentInvoice is the condensed invoice row shown on the dashboard
type RecentInvoice struct {
	ID      int64 `json:"id"`
	Invoice struct {
		Number   string `json:"number"`
		Date     string `json:"date"`
		Currency string `json:"currency"`
	} `json:"invoice"`
	Customer struct {
		Name    string `json:"name"`
		Company string `json:"company"`
	} `json:"customer"`
	Total      float64 `json:"total"`
	Subtotal   float64 `json:"subtotal"`
	PDFPath    string  `json:"pdfPath"`
	Status     string  `json:"status"`
	AmountPaid float64 `json:"amountPaid"`
	Recurring  struct {
		Enabled         bool   `json:"enabled"`
		NextRunDate     string `json:"nextRunDate"`
		SourceInvoiceID *int64 `json:"sourceInvoiceId"`
	} `json:"recurring"`
	CreatedAt time.Time `json:"createdAt"`
}

// InvoiceService manages invoices
type InvoiceService interface {
	List(ctx context.Context) ([]*entity.Invoice, error)
	Get(ctx context.Context, id int64) (*entity.Invoice, error)
	Create(ctx context.Context, in *InvoiceInput) (*entity.Invoice, error)
	Update(ctx context.Context, id int64, in *InvoiceInput) (*entity.Invoice, error)
	Delete(ctx context.Context, id int64) error
	UpdateStatus(ctx context.Context, id int64, update StatusUpdate) (*entity.Invoice, error)
	NextNumber(ctx context.Context) (string, error)
	GeneratePDF(ctx context.Context, id int64) (*PDFResult, error)
	Stats(ctx context.Context) (*StatsSummary, error)
}

type invoiceServiceImpl struct {
	invoiceRepo port.InvoiceRepository
	numberer    InvoiceNumberer
	pdfService  PDFService
	processor   RecurringProcessor
	defaults    Defaults
	logger      Logger
}

// NewInvoiceService creates a new InvoiceService
func NewInvoiceService(
	invoiceRepo port.InvoiceRepository,
	numberer InvoiceNumberer,
	pdfService PDFService,
	processor RecurringProcessor,
	defaults Defaults,
	logger Logger,
) InvoiceService {
	return &invoiceServiceImpl{
		invoiceRepo: invoiceRepo,
		numberer:    numberer,
		pdfService:  pdfService,
		processor:   processor,
		defaults:    defaults,
		logger:      logger,
	}
}

// List returns every invoice and template, newest first
func (s *invoiceServiceImpl) List(ctx context.Context) ([]*entity.Invoice, error) {
	return s.invoiceRepo.List(ctx, entity.InvoiceFilter{})
}

// Get returns a single invoice
func (s *invoiceServiceImpl) Get(ctx context.Context, id int64) (*entity.Invoice, error) {
	inv, err := s.invoiceRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, fmt.Errorf("invoice %d: %w", id, entity.ErrNotFound)
	}
	return inv, nil
}

// Create stores a new invoice, assigning the next number when none was given
func (s *invoiceServiceImpl) Create(ctx context.Context, in *InvoiceInput) (*entity.Invoice, error) {
	if err := in.validate(false); err != nil {
		return nil, err
	}

	inv := in.buildInvoice(s.defaults)
	if inv.Company.Name == "" {
		return nil, entity.NewValidationError("Company name is required")
	}
	inv.IsTemplate = false
	inv.TemplateName = ""

	if inv.Invoice.Number == "" {
		number, err := s.numberer.Next(ctx)
		if err != nil {
			return nil, err
		}
		inv.Invoice.Number = number
	} else {
		existing, err := s.invoiceRepo.GetByNumber(ctx, inv.Invoice.Number)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return nil, entity.ErrDuplicateNumber
		}
	}

	inv.Recurring = NormalizeRecurring(in.Recurring, entity.RecurringConfig{}, inv.Invoice)
	if err := checkPaymentConsistency(inv); err != nil {
		return nil, err
	}

	if err := s.invoiceRepo.Create(ctx, inv); err != nil {
		return nil, err
	}

	s.logger.Info("Invoice created", "invoice_id", inv.ID, "number", inv.Invoice.Number, "recurring", inv.Recurring.Enabled)
	return inv, nil
}

// Update replaces the editable content of an invoice
func (s *invoiceServiceImpl) Update(ctx context.Context, id int64, in *InvoiceInput) (*entity.Invoice, error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.IsTemplate {
		return nil, fmt.Errorf("invoice %d: %w", id, entity.ErrNotFound)
	}
	if err := in.validate(false); err != nil {
		return nil, err
	}

	inv := in.buildInvoice(s.defaults)
	inv.ID = existing.ID
	inv.CreatedAt = existing.CreatedAt
	inv.PDFPath = existing.PDFPath
	inv.GeneratedAt = existing.GeneratedAt
	inv.TemplateName = ""
	if inv.Invoice.Number == "" {
		inv.Invoice.Number = existing.Invoice.Number
	}
	if in.Status == "" && existing.Status != "" {
		inv.Status = existing.Status
		inv.AmountPaid = existing.AmountPaid
	}

	if in.Recurring != nil {
		inv.Recurring = NormalizeRecurring(in.Recurring, existing.Recurring, inv.Invoice)
	} else {
		inv.Recurring = existing.Recurring
	}
	if inv.IsGeneratedChild() {
		inv.Recurring.Enabled = false
		inv.Recurring.NextRunDate = ""
	}
	if err := checkPaymentConsistency(inv); err != nil {
		return nil, err
	}

	if err := s.invoiceRepo.Update(ctx, inv); err != nil {
		return nil, err
	}

	s.logger.Info("Invoice updated", "invoice_id", inv.ID, "number", inv.Invoice.Number)
	return inv, nil
}

// Delete removes an invoice
func (s *invoiceServiceImpl) Delete(ctx context.Context, id int64) error {
	if err := s.invoiceRepo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("Invoice deleted", "invoice_id", id)
	return nil
}

// UpdateStatus changes the payment status, keeping amountPaid consistent with it
func (s *invoiceServiceImpl) UpdateStatus(ctx context.Context, id int64, update StatusUpdate) (*entity.Invoice, error) {
	status := strings.TrimSpace(update.Status)
	if !entity.IsValidStatus(status) {
		return nil, entity.NewValidationError("Invalid status. Must be unpaid, partial, or paid")
	}

	inv, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	total := inv.Total()
	switch status {
	case entity.StatusUnpaid:
		inv.AmountPaid = 0
	case entity.StatusPaid:
		inv.AmountPaid = total.InexactFloat64()
	case entity.StatusPartial:
		if update.AmountPaid == nil {
			return nil, entity.NewValidationError("Amount paid is required for partial status")
		}
		paid := decimal.NewFromFloat(*update.AmountPaid)
		if !paid.IsPositive() || paid.GreaterThanOrEqual(total) {
			return nil, entity.NewValidationError("Amount paid must be greater than 0 and less than the invoice total")
		}
		inv.AmountPaid = paid.Round(2).InexactFloat64()
	}
	inv.Status = status
	inv.Financial.AmountPaid = inv.AmountPaid

	if inv.IsGeneratedChild() {
		inv.Recurring.Enabled = false
		inv.Recurring.NextRunDate = ""
	}

	if err := s.invoiceRepo.Update(ctx, inv); err != nil {
		return nil, err
	}

	s.logger.Info("Invoice status updated", "invoice_id", id, "status", status, "amount_paid", inv.AmountPaid)
	return inv, nil
}

// NextNumber previews the number the next invoice would get
func (s *invoiceServiceImpl) NextNumber(ctx context.Context) (string, error) {
	return s.numberer.Next(ctx)
}

// GeneratePDF renders and stores the PDF of an invoice
func (s *invoiceServiceImpl) GeneratePDF(ctx context.Context, id int64) (*PDFResult, error) {
	inv, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.pdfService.Generate(ctx, inv)
}

// Stats runs a recurring pass and then summarizes counts and revenue
func (s *invoiceServiceImpl) Stats(ctx context.Context) (*StatsSummary, error) {
	if s.processor != nil {
		if _, err := s.processor.Process(ctx); err != nil {
			s.logger.Error("Recurring processing failed during stats", "error", err)
		}
	}

	totalTemplates, err := s.invoiceRepo.Count(ctx, true)
	if err != nil {
		return nil, err
	}

	notTemplate := false
	invoices, err := s.invoiceRepo.List(ctx, entity.InvoiceFilter{IsTemplate: &notTemplate})
	if err != nil {
		return nil, err
	}

	revenue := decimal.Zero
	unpaid := decimal.Zero
	for _, inv := range invoices {
		total := inv.Total()
		switch inv.Status {
		case entity.StatusPaid:
			revenue = revenue.Add(total)
		case entity.StatusPartial:
			paid := decimal.NewFromFloat(inv.AmountPaid)
			revenue = revenue.Add(paid)
			unpaid = unpaid.Add(total.Sub(paid))
		default:
			unpaid = unpaid.Add(total)
		}
	}

	summary := &StatsSummary{
		TotalInvoices:      len(invoices),
		TotalTemplates:     totalTemplates,
		TotalRevenue:       revenue.Round(2).InexactFloat64(),
		TotalUnpaidRevenue: unpaid.Round(2).InexactFloat64(),
		RecentInvoices:     make([]RecentInvoice, 0, recentInvoiceLimit),
	}

	for i, inv := range invoices {
		if i == recentInvoiceLimit {
			break
		}
		summary.RecentInvoices = append(summary.RecentInvoices, toRecentInvoice(inv))
	}

	return summary, nil
}

func toRecentInvoice(inv *entity.Invoice) RecentInvoice {
	var r RecentInvoice
	r.ID = inv.ID
	r.Invoice.Number = inv.Invoice.Number
	r.Invoice.Date = inv.Invoice.Date
	r.Invoice.Currency = inv.Invoice.Currency
	if r.Invoice.Currency == "" {
		r.Invoice.Currency = entity.DefaultCurrency
	}
	r.Customer.Name = inv.Customer.Name
	r.Customer.Company = inv.Customer.Company
	r.Total = inv.Total().InexactFloat64()
	r.Subtotal = inv.Subtotal().Round(2).InexactFloat64()
	r.PDFPath = inv.PDFPath
	r.Status = inv.Status
	if r.Status == "" {
		r.Status = entity.StatusUnpaid
	}
	r.AmountPaid = inv.AmountPaid
	r.Recurring.Enabled = inv.Recurring.Enabled
	r.Recurring.NextRunDate = inv.Recurring.NextRunDate
	r.Recurring.SourceInvoiceID = inv.Recurring.SourceInvoiceID
	r.CreatedAt = inv.CreatedAt
	return r
}

// checkPaymentConsistency enforces the status/amountPaid invariant on submitted documents
func checkPaymentConsistency(inv *entity.Invoice) error {
	total := inv.Total()
	switch inv.Status {
	case entity.StatusUnpaid:
		inv.AmountPaid = 0
	case entity.StatusPaid:
		inv.AmountPaid = total.InexactFloat64()
	case entity.StatusPartial:
		paid := decimal.NewFromFloat(inv.AmountPaid)
		if !paid.IsPositive() || paid.GreaterThanOrEqual(total) {
			return entity.NewValidationError("Amount paid must be greater than 0 and less than the invoice total")
		}
	}
	inv.Financial.AmountPaid = inv.AmountPaid
	return nil
}

// IsNotFound reports whether err means the record does not exist
func IsNotFound(err error) bool {
	return errors.Is(err, entity.ErrNotFound)
}
