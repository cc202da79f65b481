// Package pdf renders invoices locally and checks PDF output.
package pdf

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/garyjia/biller/internal/application/port"
	"github.com/garyjia/biller/internal/domain/entity"
)

const (
	pageWidth   = 210.0
	marginLeft  = 15.0
	contentW    = pageWidth - 2*marginLeft
	lineHeight  = 5.0
	defaultFont = "Helvetica"
)

// LocalRenderer draws invoices with gofpdf, no network access needed
type LocalRenderer struct {
	logger *zap.Logger
}

// NewLocalRenderer creates a new renderer
func NewLocalRenderer(logger *zap.Logger) *LocalRenderer {
	return &LocalRenderer{logger: logger}
}

// Name identifies the renderer
func (r *LocalRenderer) Name() string {
	return "local"
}

// Render lays out a single A4 invoice, adding pages as the item table grows
func (r *LocalRenderer) Render(ctx context.Context, inv *entity.Invoice) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	doc := gofpdf.New("P", "mm", "A4", "")
	doc.SetMargins(marginLeft, 15, marginLeft)
	doc.SetAutoPageBreak(true, 20)
	doc.SetTitle("Invoice "+inv.Invoice.Number, true)
	doc.AddPage()

	tr := doc.UnicodeTranslatorFromDescriptor("")
	currency := inv.Invoice.Currency
	if currency == "" {
		currency = entity.DefaultCurrency
	}

	r.header(doc, tr, inv)
	r.parties(doc, tr, inv)
	r.items(doc, tr, inv, currency)
	r.totals(doc, inv, currency)
	r.extras(doc, tr, inv)

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		r.logger.Error("Failed to render invoice PDF locally", zap.String("number", inv.Invoice.Number), zap.Error(err))
		return nil, fmt.Errorf("failed to render PDF: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *LocalRenderer) header(doc *gofpdf.Fpdf, tr func(string) string, inv *entity.Invoice) {
	doc.SetFont(defaultFont, "B", 18)
	doc.CellFormat(contentW/2, 10, tr(inv.Company.Name), "", 0, "L", false, 0, "")
	doc.SetFont(defaultFont, "B", 22)
	doc.CellFormat(contentW/2, 10, "INVOICE", "", 1, "R", false, 0, "")

	doc.SetFont(defaultFont, "", 10)
	meta := [][2]string{
		{"Invoice #", inv.Invoice.Number},
		{"Date", inv.Invoice.Date},
		{"Due Date", inv.Invoice.DueDate},
		{"Payment Terms", inv.Invoice.PaymentTerms},
		{"PO Number", inv.Invoice.PurchaseOrder},
	}
	for _, m := range meta {
		if m[1] == "" {
			continue
		}
		doc.CellFormat(contentW-40, lineHeight, m[0]+":", "", 0, "R", false, 0, "")
		doc.CellFormat(40, lineHeight, tr(m[1]), "", 1, "R", false, 0, "")
	}
	doc.Ln(4)
}

func (r *LocalRenderer) parties(doc *gofpdf.Fpdf, tr func(string) string, inv *entity.Invoice) {
	blocks := []struct {
		title string
		lines []string
	}{
		{"From", partyLines(inv.Company, inv.Company.Tagline)},
		{"Bill To", partyLines(inv.Customer, inv.Customer.Company)},
	}
	if inv.ShipTo != nil {
		blocks = append(blocks, struct {
			title string
			lines []string
		}{"Ship To", partyLines(*inv.ShipTo, inv.ShipTo.Company)})
	}

	colW := contentW / float64(len(blocks))
	top := doc.GetY()
	bottom := top
	for i, b := range blocks {
		x := marginLeft + float64(i)*colW
		doc.SetXY(x, top)
		doc.SetFont(defaultFont, "B", 10)
		doc.CellFormat(colW, lineHeight, b.title, "", 2, "L", false, 0, "")
		doc.SetFont(defaultFont, "", 9)
		for _, line := range b.lines {
			doc.SetX(x)
			doc.CellFormat(colW, lineHeight, tr(line), "", 2, "L", false, 0, "")
		}
		if y := doc.GetY(); y > bottom {
			bottom = y
		}
	}
	doc.SetXY(marginLeft, bottom+6)
}

func (r *LocalRenderer) items(doc *gofpdf.Fpdf, tr func(string) string, inv *entity.Invoice, currency string) {
	widths := []float64{contentW - 75, 20, 27.5, 27.5}
	headers := []string{"Item", "Quantity", "Rate", "Amount"}
	aligns := []string{"L", "R", "R", "R"}

	doc.SetFont(defaultFont, "B", 10)
	doc.SetFillColor(235, 235, 235)
	for i, h := range headers {
		doc.CellFormat(widths[i], 7, h, "B", 0, aligns[i], true, 0, "")
	}
	doc.Ln(-1)

	doc.SetFont(defaultFont, "", 9)
	for _, item := range inv.Items {
		qty := decimal.NewFromFloat(item.Quantity)
		rate := decimal.NewFromFloat(item.UnitCost)
		name := item.Name
		if item.Description != "" {
			name += " - " + item.Description
		}
		doc.CellFormat(widths[0], 6, tr(name), "", 0, "L", false, 0, "")
		doc.CellFormat(widths[1], 6, qty.String(), "", 0, "R", false, 0, "")
		doc.CellFormat(widths[2], 6, money(currency, rate), "", 0, "R", false, 0, "")
		doc.CellFormat(widths[3], 6, money(currency, qty.Mul(rate)), "", 1, "R", false, 0, "")
	}
	doc.Ln(4)
}

func (r *LocalRenderer) totals(doc *gofpdf.Fpdf, inv *entity.Invoice, currency string) {
	b := Breakdown(inv)
	rows := [][2]string{{"Subtotal", money(currency, b.Subtotal)}}
	if !b.Discount.IsZero() {
		rows = append(rows, [2]string{"Discount", "-" + money(currency, b.Discount)})
	}
	if !b.Tax.IsZero() {
		label := "Tax"
		if inv.Fields.Tax == entity.TaxModePercent {
			label = fmt.Sprintf("Tax (%s%%)", decimal.NewFromFloat(inv.Financial.Tax).String())
		}
		rows = append(rows, [2]string{label, money(currency, b.Tax)})
	}
	if !b.Shipping.IsZero() {
		rows = append(rows, [2]string{"Shipping", money(currency, b.Shipping)})
	}
	rows = append(rows,
		[2]string{"Total", money(currency, b.Total)},
		[2]string{"Amount Paid", money(currency, b.Paid)},
		[2]string{"Balance Due", money(currency, b.Balance)},
	)

	for i, row := range rows {
		style := ""
		if i >= len(rows)-1 || row[0] == "Total" {
			style = "B"
		}
		doc.SetFont(defaultFont, style, 10)
		doc.CellFormat(contentW-40, 6, row[0], "", 0, "R", false, 0, "")
		doc.CellFormat(40, 6, row[1], "", 1, "R", false, 0, "")
	}
	doc.Ln(4)
}

func (r *LocalRenderer) extras(doc *gofpdf.Fpdf, tr func(string) string, inv *entity.Invoice) {
	var rows [][2]string
	a := inv.AccountDetails
	for _, f := range [][2]string{
		{"Bank Name", a.BankName},
		{"Account Holder", a.AccountHolderName},
		{"Account Number", a.AccountNumber},
		{"IBAN", a.IBAN},
		{"SWIFT/BIC", a.SwiftBIC},
		{"Branch Address", a.BranchAddress},
	} {
		if v := strings.TrimSpace(f[1]); v != "" {
			rows = append(rows, [2]string{f[0], v})
		}
	}
	for _, f := range inv.CustomFields {
		rows = append(rows, [2]string{f.Name, f.Value})
	}

	if len(rows) > 0 {
		doc.SetFont(defaultFont, "B", 10)
		doc.CellFormat(contentW, lineHeight, "Payment Details", "", 1, "L", false, 0, "")
		doc.SetFont(defaultFont, "", 9)
		for _, row := range rows {
			doc.CellFormat(40, lineHeight, tr(row[0]+":"), "", 0, "L", false, 0, "")
			doc.CellFormat(contentW-40, lineHeight, tr(row[1]), "", 1, "L", false, 0, "")
		}
		doc.Ln(3)
	}

	for _, section := range [][2]string{{"Notes", inv.Notes}, {"Terms", inv.Terms}} {
		if strings.TrimSpace(section[1]) == "" {
			continue
		}
		doc.SetFont(defaultFont, "B", 10)
		doc.CellFormat(contentW, lineHeight, section[0], "", 1, "L", false, 0, "")
		doc.SetFont(defaultFont, "", 9)
		doc.MultiCell(contentW, lineHeight, tr(section[1]), "", "L", false)
		doc.Ln(2)
	}
}

// Totals is the printed money breakdown of an invoice
type Totals struct {
	Subtotal decimal.Decimal
	Discount decimal.Decimal
	Tax      decimal.Decimal
	Shipping decimal.Decimal
	Total    decimal.Decimal
	Paid     decimal.Decimal
	Balance  decimal.Decimal
}

// Breakdown splits the invoice total into the rows printed under the item table.
// Total always equals inv.Total().
func Breakdown(inv *entity.Invoice) Totals {
	t := Totals{Subtotal: inv.Subtotal().Round(2), Total: inv.Total()}

	running := inv.Subtotal()
	if inv.Fields.Discounts && inv.Financial.Discounts > 0 {
		t.Discount = decimal.NewFromFloat(inv.Financial.Discounts)
		running = running.Sub(t.Discount)
	}
	if inv.Financial.Tax > 0 {
		tax := decimal.NewFromFloat(inv.Financial.Tax)
		switch inv.Fields.Tax {
		case entity.TaxModePercent:
			t.Tax = running.Mul(tax).Div(decimal.NewFromInt(100)).Round(2)
		case "false":
		default:
			t.Tax = tax
		}
	}
	if inv.Fields.Shipping && inv.Financial.Shipping > 0 {
		t.Shipping = decimal.NewFromFloat(inv.Financial.Shipping)
	}

	paid := inv.AmountPaid
	if paid == 0 {
		paid = inv.Financial.AmountPaid
	}
	t.Paid = decimal.NewFromFloat(paid)
	t.Balance = t.Total.Sub(t.Paid)
	if t.Balance.IsNegative() {
		t.Balance = decimal.Zero
	}
	return t
}

func money(currency string, d decimal.Decimal) string {
	return currency + " " + d.StringFixed(2)
}

func partyLines(p entity.Party, second string) []string {
	var lines []string
	for _, s := range []string{p.Name, second, p.Address} {
		if s != "" {
			lines = append(lines, s)
		}
	}
	var loc []string
	for _, s := range []string{p.City, p.Country} {
		if s != "" {
			loc = append(loc, s)
		}
	}
	if len(loc) > 0 {
		lines = append(lines, strings.Join(loc, ", "))
	}
	if p.Phone != "" {
		lines = append(lines, "Phone: "+p.Phone)
	}
	if p.Email != "" {
		lines = append(lines, "Email: "+p.Email)
	}
	if p.VatID != "" {
		lines = append(lines, "VAT ID: "+p.VatID)
	}
	return lines
}

var _ port.PDFRenderer = (*LocalRenderer)(nil)
