package service

import (
	"context"
	"fmt"

	"github.com/garyjia/biller/internal/application/port"
)

// InvoiceNumberer allocates sequential invoice numbers of the form INV-<year>-<NNN>
type InvoiceNumberer interface {
	Next(ctx context.Context) (string, error)
}

type invoiceNumbererImpl struct {
	invoiceRepo port.InvoiceRepository
	clock       Clock
}

// NewInvoiceNumberer creates a numberer that scans the highest number of the current year
func NewInvoiceNumberer(invoiceRepo port.InvoiceRepository, clock Clock) InvoiceNumberer {
	return &invoiceNumbererImpl{
		invoiceRepo: invoiceRepo,
		clock:       clock,
	}
}

// Next returns the number following the highest one issued this calendar year
func (n *invoiceNumbererImpl) Next(ctx context.Context) (string, error) {
	prefix := YearPrefix(n.clock.now().Year())

	highest, err := n.invoiceRepo.HighestSequence(ctx, prefix)
	if err != nil {
		return "", fmt.Errorf("failed to scan invoice numbers: %w", err)
	}

	return fmt.Sprintf("%s%03d", prefix, highest+1), nil
}

// YearPrefix is the invoice number prefix shared by all invoices of a year
func YearPrefix(year int) string {
	return fmt.Sprintf("INV-%d-", year)
}
