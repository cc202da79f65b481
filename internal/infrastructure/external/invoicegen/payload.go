package invoicegen

import (
	"strings"

	"github.com/garyjia/biller/internal/domain/entity"
)

// Payload is the request body of the invoice-generator.com API
type Payload struct {
	From         string        `json:"from"`
	To           string        `json:"to"`
	ShipTo       string        `json:"ship_to,omitempty"`
	Logo         string        `json:"logo,omitempty"`
	Number       string        `json:"number"`
	Date         string        `json:"date"`
	DueDate      string        `json:"due_date,omitempty"`
	Currency     string        `json:"currency"`
	PaymentTerms string        `json:"payment_terms,omitempty"`
	Items        []PayloadItem `json:"items"`
	Fields       PayloadFields `json:"fields"`
	Tax          float64       `json:"tax"`
	Shipping     float64       `json:"shipping"`
	Discounts    float64       `json:"discounts"`
	AmountPaid   float64       `json:"amount_paid"`
	Notes        string        `json:"notes,omitempty"`
	Terms        string        `json:"terms,omitempty"`
	CustomFields []PayloadPair `json:"custom_fields,omitempty"`
}

// PayloadItem is one billed line
type PayloadItem struct {
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Quantity    float64 `json:"quantity"`
	UnitCost    float64 `json:"unit_cost"`
}

// PayloadFields toggles the subtotal adjustments
type PayloadFields struct {
	Tax       string `json:"tax"`
	Discounts bool   `json:"discounts"`
	Shipping  bool   `json:"shipping"`
}

// PayloadPair is a labelled row printed under the invoice header
type PayloadPair struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// BuildPayload maps an invoice onto the API format. logo must already be a
// data URL or empty.
func BuildPayload(inv *entity.Invoice, logo string) *Payload {
	p := &Payload{
		From:         FormatCompany(inv.Company),
		To:           FormatCustomer(inv.Customer),
		Logo:         logo,
		Number:       inv.Invoice.Number,
		Date:         inv.Invoice.Date,
		DueDate:      inv.Invoice.DueDate,
		Currency:     inv.Invoice.Currency,
		PaymentTerms: inv.Invoice.PaymentTerms,
		Fields: PayloadFields{
			Tax:       inv.Fields.Tax,
			Discounts: inv.Fields.Discounts,
			Shipping:  inv.Fields.Shipping,
		},
		Tax:        inv.Financial.Tax,
		Shipping:   inv.Financial.Shipping,
		Discounts:  inv.Financial.Discounts,
		AmountPaid: inv.Financial.AmountPaid,
		Notes:      inv.Notes,
		Terms:      inv.Terms,
	}
	if p.Currency == "" {
		p.Currency = entity.DefaultCurrency
	}
	if p.Fields.Tax == "" {
		p.Fields.Tax = entity.TaxModePercent
	}

	p.Items = make([]PayloadItem, 0, len(inv.Items))
	for _, item := range inv.Items {
		p.Items = append(p.Items, PayloadItem{
			Name:        item.Name,
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitCost:    item.UnitCost,
		})
	}

	p.CustomFields = append(p.CustomFields, accountRows(inv.AccountDetails)...)
	for _, f := range inv.CustomFields {
		p.CustomFields = append(p.CustomFields, PayloadPair{Name: f.Name, Value: f.Value})
	}
	if inv.Invoice.PurchaseOrder != "" {
		p.CustomFields = append(p.CustomFields, PayloadPair{Name: "Purchase Order", Value: inv.Invoice.PurchaseOrder})
	}

	if inv.ShipTo != nil {
		p.ShipTo = FormatCustomer(*inv.ShipTo)
	}

	return p
}

// accountRows renders bank details one per row. The trailing spaces keep
// the API from collapsing consecutive rows.
func accountRows(a entity.AccountDetails) []PayloadPair {
	var rows []PayloadPair
	add := func(name, value string) {
		if v := strings.TrimSpace(value); v != "" {
			rows = append(rows, PayloadPair{Name: name, Value: v + "  "})
		}
	}
	add("Bank Name", a.BankName)
	add("Account Holder", a.AccountHolderName)
	add("Account Number", a.AccountNumber)
	add("IBAN", a.IBAN)
	add("SWIFT/BIC", a.SwiftBIC)
	if v := strings.TrimSpace(a.BranchAddress); v != "" {
		rows = append(rows, PayloadPair{Name: "Branch Address", Value: "  " + v + "  "})
	}
	return rows
}

// FormatCompany renders the sender block
func FormatCompany(p entity.Party) string {
	return formatParty(p, p.Tagline)
}

// FormatCustomer renders the bill-to or ship-to block
func FormatCustomer(p entity.Party) string {
	return formatParty(p, p.Company)
}

func formatParty(p entity.Party, second string) string {
	var lines []string
	push := func(s string) {
		if s != "" {
			lines = append(lines, s)
		}
	}

	push(p.Name)
	push(second)
	push(p.Address)

	var location []string
	for _, s := range []string{p.City, p.Country} {
		if s != "" {
			location = append(location, s)
		}
	}
	push(strings.Join(location, ", "))

	if p.Phone != "" {
		push("Phone: " + p.Phone)
	}
	if p.Email != "" {
		push("Email: " + p.Email)
	}
	if p.VatID != "" {
		push("VAT ID: " + p.VatID)
	}
	return strings.Join(lines, "\n")
}
