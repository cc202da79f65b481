package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/garyjia/biller/internal/application/port"
	"github.com/garyjia/biller/internal/domain/entity"
)

// CreateFromTemplateInput overrides invoice details when instantiating a template
type CreateFromTemplateInput struct {
	Invoice entity.InvoiceDetails `json:"invoice"`
}

// TemplateService manages reusable invoice templates
type TemplateService interface {
	List(ctx context.Context) ([]*entity.Invoice, error)
	Get(ctx context.Context, id int64) (*entity.Invoice, error)
	Create(ctx context.Context, in *InvoiceInput) (*entity.Invoice, error)
	Update(ctx context.Context, id int64, in *InvoiceInput) (*entity.Invoice, error)
	Delete(ctx context.Context, id int64) error
	CreateInvoice(ctx context.Context, id int64, in CreateFromTemplateInput) (*entity.Invoice, error)
}

type templateServiceImpl struct {
	invoiceRepo port.InvoiceRepository
	defaults    Defaults
	clock       Clock
	logger      Logger
}

// NewTemplateService creates a new TemplateService
func NewTemplateService(invoiceRepo port.InvoiceRepository, defaults Defaults, clock Clock, logger Logger) TemplateService {
	return &templateServiceImpl{
		invoiceRepo: invoiceRepo,
		defaults:    defaults,
		clock:       clock,
		logger:      logger,
	}
}

func (s *templateServiceImpl) List(ctx context.Context) ([]*entity.Invoice, error) {
	return s.invoiceRepo.ListTemplates(ctx)
}

func (s *templateServiceImpl) Get(ctx context.Context, id int64) (*entity.Invoice, error) {
	tpl, err := s.invoiceRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if tpl == nil || !tpl.IsTemplate {
		return nil, fmt.Errorf("template %d: %w", id, entity.ErrNotFound)
	}
	return tpl, nil
}

func (s *templateServiceImpl) Create(ctx context.Context, in *InvoiceInput) (*entity.Invoice, error) {
	if err := in.validate(true); err != nil {
		return nil, err
	}

	tpl := in.buildInvoice(s.defaults)
	tpl.IsTemplate = true
	tpl.Status = entity.StatusUnpaid
	tpl.AmountPaid = 0
	tpl.Recurring = NormalizeRecurring(in.Recurring, entity.RecurringConfig{}, tpl.Invoice)

	if err := s.invoiceRepo.Create(ctx, tpl); err != nil {
		return nil, err
	}

	s.logger.Info("Template created", "template_id", tpl.ID, "name", tpl.TemplateName)
	return tpl, nil
}

func (s *templateServiceImpl) Update(ctx context.Context, id int64, in *InvoiceInput) (*entity.Invoice, error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := in.validate(true); err != nil {
		return nil, err
	}

	tpl := in.buildInvoice(s.defaults)
	tpl.ID = existing.ID
	tpl.IsTemplate = true
	tpl.CreatedAt = existing.CreatedAt
	tpl.Status = entity.StatusUnpaid
	tpl.AmountPaid = 0
	tpl.Recurring = NormalizeRecurring(in.Recurring, existing.Recurring, tpl.Invoice)

	if err := s.invoiceRepo.Update(ctx, tpl); err != nil {
		return nil, err
	}

	s.logger.Info("Template updated", "template_id", tpl.ID)
	return tpl, nil
}

func (s *templateServiceImpl) Delete(ctx context.Context, id int64) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.invoiceRepo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("Template deleted", "template_id", id)
	return nil
}

// CreateInvoice instantiates a template as a new unpaid invoice
func (s *templateServiceImpl) CreateInvoice(ctx context.Context, id int64, in CreateFromTemplateInput) (*entity.Invoice, error) {
	tpl, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	inv := tpl.Clone()
	inv.ID = 0
	inv.IsTemplate = false
	inv.TemplateName = ""
	inv.PDFPath = ""
	inv.GeneratedAt = nil
	inv.Status = entity.StatusUnpaid
	inv.AmountPaid = 0
	inv.Financial.AmountPaid = 0
	inv.Company = mergeParty(s.defaults.Company, &tpl.Company)

	overrideDetails(&inv.Invoice, in.Invoice)
	inv.Invoice.Number = strings.TrimSpace(in.Invoice.Number)
	if inv.Invoice.Number == "" {
		inv.Invoice.Number = fmt.Sprintf("INV-%d", s.clock.now().UnixMilli())
	}

	inv.Recurring = NormalizeRecurring(FromRecurringConfig(tpl.Recurring), entity.RecurringConfig{}, inv.Invoice)

	if err := s.invoiceRepo.Create(ctx, inv); err != nil {
		return nil, err
	}

	s.logger.Info("Invoice created from template", "template_id", id, "invoice_id", inv.ID, "number", inv.Invoice.Number)
	return inv, nil
}

func overrideDetails(dst *entity.InvoiceDetails, src entity.InvoiceDetails) {
	if src.Date != "" {
		dst.Date = src.Date
	}
	if src.DueDate != "" {
		dst.DueDate = src.DueDate
	}
	if src.Currency != "" {
		dst.Currency = src.Currency
	}
	if src.PaymentTerms != "" {
		dst.PaymentTerms = src.PaymentTerms
	}
	if src.PurchaseOrder != "" {
		dst.PurchaseOrder = src.PurchaseOrder
	}
}
