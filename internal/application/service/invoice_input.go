package service

import (
	"math"
	"strings"

	"github.com/garyjia/biller/internal/domain/entity"
	"github.com/garyjia/biller/internal/domain/recurrence"
	"github.com/garyjia/biller/pkg/utils"
)

// RecurringInput is the recurring block as submitted by a client.
// Pointer fields distinguish "absent" from zero values.
type RecurringInput struct {
	Enabled         *bool  `json:"enabled"`
	Frequency       string `json:"frequency"`
	IntervalDays    *int   `json:"intervalDays"`
	DueInDays       *int   `json:"dueInDays"`
	NextRunDate     string `json:"nextRunDate"`
	AutoGeneratePDF *bool  `json:"autoGeneratePdf"`
}

// FromRecurringConfig converts a stored configuration back into an input
func FromRecurringConfig(cfg entity.RecurringConfig) *RecurringInput {
	enabled := cfg.Enabled
	interval := cfg.IntervalDays
	due := cfg.DueInDays
	auto := cfg.AutoGeneratePDF
	return &RecurringInput{
		Enabled:         &enabled,
		Frequency:       string(cfg.Frequency),
		IntervalDays:    &interval,
		DueInDays:       &due,
		AutoGeneratePDF: &auto,
	}
}

// InvoiceInput is the body accepted when creating or replacing an invoice or template
type InvoiceInput struct {
	Company        *entity.Party          `json:"company"`
	Customer       entity.Party           `json:"customer"`
	Invoice        entity.InvoiceDetails  `json:"invoice"`
	Items          []entity.LineItem      `json:"items"`
	Fields         *entity.FieldsConfig   `json:"fields"`
	Financial      entity.Financial       `json:"financial"`
	CustomFields   []entity.CustomField   `json:"customFields"`
	AccountDetails *entity.AccountDetails `json:"accountDetails"`
	ShipTo         *entity.Party          `json:"shipTo"`
	Notes          string                 `json:"notes"`
	Terms          string                 `json:"terms"`
	TemplateName   string                 `json:"templateName"`
	Status         string                 `json:"status"`
	AmountPaid     float64                `json:"amountPaid"`
	Recurring      *RecurringInput        `json:"recurring"`
}

// Defaults are the configured company and bank details merged into new invoices
type Defaults struct {
	Company        entity.Party
	AccountDetails entity.AccountDetails
}

// NormalizeRecurring turns submitted recurring settings into a stored configuration.
// existing supplies fields the client cannot set (lastRunAt, sourceInvoiceId).
func NormalizeRecurring(in *RecurringInput, existing entity.RecurringConfig, details entity.InvoiceDetails) entity.RecurringConfig {
	if in == nil {
		in = &RecurringInput{}
	}

	cfg := entity.RecurringConfig{
		Frequency:       entity.FrequencyMonthly,
		IntervalDays:    1,
		AutoGeneratePDF: in.AutoGeneratePDF == nil || *in.AutoGeneratePDF,
		LastRunAt:       existing.LastRunAt,
		SourceInvoiceID: existing.SourceInvoiceID,
	}

	if f := entity.Frequency(strings.TrimSpace(in.Frequency)); entity.IsValidFrequency(f) {
		cfg.Frequency = f
	}
	if in.IntervalDays != nil {
		cfg.IntervalDays = recurrence.IntervalDays(*in.IntervalDays)
	}

	switch {
	case in.DueInDays != nil:
		cfg.DueInDays = dueInDays(*in.DueInDays)
	default:
		cfg.DueInDays = dueDaysBetween(details.Date, details.DueDate)
	}

	cfg.Enabled = in.Enabled != nil && *in.Enabled && cfg.SourceInvoiceID == nil
	if cfg.Enabled {
		if d, ok := recurrence.ParseDate(in.NextRunDate); ok {
			cfg.NextRunDate = recurrence.FormatDate(d)
		} else if first, ok := recurrence.FirstRun(details.Date, cfg); ok {
			cfg.NextRunDate = recurrence.FormatDate(first)
		}
	}

	return cfg
}

func dueDaysBetween(date, dueDate string) int {
	from, ok := recurrence.ParseDate(date)
	if !ok {
		return entity.DefaultDueInDays
	}
	to, ok := recurrence.ParseDate(dueDate)
	if !ok {
		return entity.DefaultDueInDays
	}
	days := int(math.Round(to.Sub(from).Hours() / 24))
	return dueInDays(days)
}

// mergeParty overlays the non-empty fields of override onto base
func mergeParty(base entity.Party, override *entity.Party) entity.Party {
	if override == nil {
		return base
	}
	out := base
	set := func(dst *string, v string) {
		if strings.TrimSpace(v) != "" {
			*dst = v
		}
	}
	set(&out.Name, override.Name)
	set(&out.Tagline, override.Tagline)
	set(&out.Logo, override.Logo)
	set(&out.Company, override.Company)
	set(&out.Phone, override.Phone)
	set(&out.Email, override.Email)
	set(&out.Address, override.Address)
	set(&out.City, override.City)
	set(&out.Country, override.Country)
	set(&out.VatID, override.VatID)
	return out
}

// buildInvoice maps validated input onto a new invoice document
func (in *InvoiceInput) buildInvoice(defaults Defaults) *entity.Invoice {
	inv := &entity.Invoice{
		Company:      mergeParty(defaults.Company, in.Company),
		Customer:     in.Customer,
		Invoice:      in.Invoice,
		Items:        in.Items,
		Financial:    in.Financial,
		CustomFields: in.CustomFields,
		ShipTo:       in.ShipTo,
		Notes:        in.Notes,
		Terms:        in.Terms,
		TemplateName: strings.TrimSpace(in.TemplateName),
		Status:       in.Status,
		AmountPaid:   in.AmountPaid,
	}

	inv.Invoice.Number = strings.TrimSpace(inv.Invoice.Number)
	inv.Invoice.Currency = strings.ToUpper(strings.TrimSpace(inv.Invoice.Currency))
	if inv.Invoice.Currency == "" {
		inv.Invoice.Currency = entity.DefaultCurrency
	}
	if inv.Items == nil {
		inv.Items = []entity.LineItem{}
	}
	if inv.CustomFields == nil {
		inv.CustomFields = []entity.CustomField{}
	}

	if in.Fields != nil {
		inv.Fields = *in.Fields
	} else {
		inv.Fields = entity.FieldsConfig{Tax: entity.TaxModePercent}
	}
	if inv.Fields.Tax == "" {
		inv.Fields.Tax = entity.TaxModePercent
	}

	if in.AccountDetails == nil || in.AccountDetails.IsEmpty() {
		inv.AccountDetails = defaults.AccountDetails
	} else {
		inv.AccountDetails = *in.AccountDetails
	}

	if inv.Status == "" {
		inv.Status = entity.StatusUnpaid
	}
	if inv.Status == entity.StatusUnpaid {
		inv.AmountPaid = 0
	}

	return inv
}

// validate checks the fields every invoice and template must carry
func (in *InvoiceInput) validate(isTemplate bool) error {
	if isTemplate && strings.TrimSpace(in.TemplateName) == "" {
		return entity.NewValidationError("Template name is required")
	}
	if strings.TrimSpace(in.Customer.Name) == "" {
		return entity.NewValidationError("Customer name is required")
	}
	if _, ok := recurrence.ParseDate(in.Invoice.Date); !ok {
		return entity.NewValidationError("Invoice date must be a valid YYYY-MM-DD date")
	}
	if in.Invoice.DueDate != "" {
		if _, ok := recurrence.ParseDate(in.Invoice.DueDate); !ok {
			return entity.NewValidationError("Due date must be a valid YYYY-MM-DD date")
		}
	}
	if c := strings.TrimSpace(in.Invoice.Currency); c != "" {
		if err := utils.ValidateCurrency(strings.ToUpper(c)); err != nil {
			return entity.NewValidationError("Currency must be a 3 letter code")
		}
	}
	for i, item := range in.Items {
		if strings.TrimSpace(item.Name) == "" {
			return entity.NewValidationError("Item %d name is required", i+1)
		}
		if item.Quantity < 0 || item.UnitCost < 0 {
			return entity.NewValidationError("Item %d quantity and unit cost must not be negative", i+1)
		}
	}
	if in.Fields != nil {
		switch in.Fields.Tax {
		case "", entity.TaxModePercent, "true", "false":
		default:
			return entity.NewValidationError("Tax field must be one of %%, true, false")
		}
	}
	f := in.Financial
	if f.Tax < 0 || f.Shipping < 0 || f.Discounts < 0 || f.AmountPaid < 0 || in.AmountPaid < 0 {
		return entity.NewValidationError("Financial amounts must not be negative")
	}
	if in.Status != "" && !entity.IsValidStatus(in.Status) {
		return entity.NewValidationError("Invalid status. Must be unpaid, partial, or paid")
	}
	return nil
}
