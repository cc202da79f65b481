package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Party is the company or customer block printed on an invoice
type Party struct {
	Name    string `json:"name"`
	Tagline string `json:"tagline,omitempty"`
	Logo    string `json:"logo,omitempty"`
	Company string `json:"company,omitempty"`
	Phone   string `json:"phone"`
	Email   string `json:"email"`
	Address string `json:"address"`
	City    string `json:"city"`
	Country string `json:"country"`
	VatID   string `json:"vatId"`
}

// InvoiceDetails holds numbering and dating for an invoice
type InvoiceDetails struct {
	Number        string `json:"number"`
	Date          string `json:"date"`
	DueDate       string `json:"dueDate"`
	Currency      string `json:"currency"`
	PaymentTerms  string `json:"paymentTerms"`
	PurchaseOrder string `json:"purchaseOrder"`
}

// LineItem is a single billed line
type LineItem struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	UnitCost    float64 `json:"unit_cost"`
}

// FieldsConfig toggles which adjustments are applied to the subtotal
type FieldsConfig struct {
	Tax       string `json:"tax"`
	Discounts bool   `json:"discounts"`
	Shipping  bool   `json:"shipping"`
}

// Financial holds the monetary adjustments of an invoice
type Financial struct {
	Tax        float64 `json:"tax"`
	Shipping   float64 `json:"shipping"`
	Discounts  float64 `json:"discounts"`
	AmountPaid float64 `json:"amountPaid"`
}

// CustomField is a free-form name/value row printed on the invoice
type CustomField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// AccountDetails holds the bank details payments are made to
type AccountDetails struct {
	BankName          string `json:"bankName"`
	AccountHolderName string `json:"accountHolderName"`
	AccountNumber     string `json:"accountNumber"`
	IBAN              string `json:"iban"`
	SwiftBIC          string `json:"swiftBic"`
	BranchName        string `json:"branchName"`
	BranchAddress     string `json:"branchAddress"`
}

// IsEmpty reports whether every field is blank
func (a AccountDetails) IsEmpty() bool {
	return a == AccountDetails{}
}

// RecurringConfig schedules the automatic cloning of an invoice.
// A generated child carries SourceInvoiceID and is never Enabled itself.
type RecurringConfig struct {
	Enabled         bool       `json:"enabled"`
	Frequency       Frequency  `json:"frequency"`
	IntervalDays    int        `json:"intervalDays"`
	DueInDays       int        `json:"dueInDays"`
	NextRunDate     string     `json:"nextRunDate"`
	AutoGeneratePDF bool       `json:"autoGeneratePdf"`
	LastRunAt       *time.Time `json:"lastRunAt"`
	SourceInvoiceID *int64     `json:"sourceInvoiceId"`
}

// Invoice is a persisted invoice or invoice template
type Invoice struct {
	ID             int64           `json:"id"`
	Company        Party           `json:"company"`
	Customer       Party           `json:"customer"`
	Invoice        InvoiceDetails  `json:"invoice"`
	Items          []LineItem      `json:"items"`
	Fields         FieldsConfig    `json:"fields"`
	Financial      Financial       `json:"financial"`
	CustomFields   []CustomField   `json:"customFields"`
	AccountDetails AccountDetails  `json:"accountDetails"`
	ShipTo         *Party          `json:"shipTo,omitempty"`
	Notes          string          `json:"notes"`
	Terms          string          `json:"terms"`
	IsTemplate     bool            `json:"isTemplate"`
	TemplateName   string          `json:"templateName"`
	PDFPath        string          `json:"pdfPath"`
	GeneratedAt    *time.Time      `json:"generatedAt"`
	Status         string          `json:"status"`
	AmountPaid     float64         `json:"amountPaid"`
	Recurring      RecurringConfig `json:"recurring"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// Subtotal is the sum of quantity times unit cost over all items
func (inv *Invoice) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, item := range inv.Items {
		sum = sum.Add(decimal.NewFromFloat(item.Quantity).Mul(decimal.NewFromFloat(item.UnitCost)))
	}
	return sum
}

// Total applies discounts, tax and shipping to the subtotal, rounded to cents.
// Tax is a percentage when fields.tax is "%", ignored when "false", flat otherwise.
func (inv *Invoice) Total() decimal.Decimal {
	total := inv.Subtotal()

	if inv.Fields.Discounts && inv.Financial.Discounts > 0 {
		total = total.Sub(decimal.NewFromFloat(inv.Financial.Discounts))
	}

	if inv.Financial.Tax > 0 {
		tax := decimal.NewFromFloat(inv.Financial.Tax)
		switch inv.Fields.Tax {
		case TaxModePercent:
			total = total.Add(total.Mul(tax).Div(decimal.NewFromInt(100)))
		case "false":
		default:
			total = total.Add(tax)
		}
	}

	if inv.Fields.Shipping && inv.Financial.Shipping > 0 {
		total = total.Add(decimal.NewFromFloat(inv.Financial.Shipping))
	}

	return total.Round(2)
}

// IsRecurringSource reports whether the processor should schedule this invoice
func (inv *Invoice) IsRecurringSource() bool {
	return !inv.IsTemplate && inv.Recurring.Enabled
}

// IsGeneratedChild reports whether the invoice was produced by the recurring processor
func (inv *Invoice) IsGeneratedChild() bool {
	return inv.Recurring.SourceInvoiceID != nil
}

// Clone returns a deep copy of the invoice
func (inv *Invoice) Clone() *Invoice {
	c := *inv
	c.Items = append([]LineItem(nil), inv.Items...)
	c.CustomFields = append([]CustomField(nil), inv.CustomFields...)
	if inv.ShipTo != nil {
		shipTo := *inv.ShipTo
		c.ShipTo = &shipTo
	}
	if inv.GeneratedAt != nil {
		t := *inv.GeneratedAt
		c.GeneratedAt = &t
	}
	if inv.Recurring.LastRunAt != nil {
		t := *inv.Recurring.LastRunAt
		c.Recurring.LastRunAt = &t
	}
	if inv.Recurring.SourceInvoiceID != nil {
		id := *inv.Recurring.SourceInvoiceID
		c.Recurring.SourceInvoiceID = &id
	}
	return &c
}

// InvoiceFilter narrows invoice listings
type InvoiceFilter struct {
	IsTemplate       *bool
	RecurringEnabled *bool
}
