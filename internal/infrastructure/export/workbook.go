// Package export writes invoice listings as Excel workbooks.
package export

import (
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/biller/internal/application/port"
	"github.com/garyjia/biller/internal/domain/entity"
)

// Sheet names
const (
	InvoicesSheet = "Invoices"
	ItemsSheet    = "Items"
)

var invoiceHeader = []interface{}{
	"ID", "Number", "Date", "Due Date", "Customer", "Customer Company", "Currency",
	"Subtotal", "Total", "Amount Paid", "Balance", "Status", "Recurring", "Next Run", "Source Invoice", "PDF", "Created At",
}

var itemHeader = []interface{}{"Invoice Number", "Item", "Description", "Quantity", "Unit Cost", "Amount"}

// WorkbookExporter renders invoices into an xlsx file with one sheet per table
type WorkbookExporter struct {
	logger *zap.Logger
}

// NewWorkbookExporter creates a new exporter
func NewWorkbookExporter(logger *zap.Logger) *WorkbookExporter {
	return &WorkbookExporter{logger: logger}
}

// ContentType is the MIME type of the produced file
func (e *WorkbookExporter) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

// Extension is the file suffix of the produced file
func (e *WorkbookExporter) Extension() string {
	return ".xlsx"
}

// Write renders the workbook to w
func (e *WorkbookExporter) Write(w io.Writer, invoices []*entity.Invoice) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", InvoicesSheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}
	if _, err := f.NewSheet(ItemsSheet); err != nil {
		return fmt.Errorf("failed to add sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	for sheet, header := range map[string][]interface{}{InvoicesSheet: invoiceHeader, ItemsSheet: itemHeader} {
		if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
		if err := f.SetRowStyle(sheet, 1, 1, bold); err != nil {
			return fmt.Errorf("failed to style header: %w", err)
		}
	}

	itemRow := 2
	for i, inv := range invoices {
		if err := e.setRow(f, InvoicesSheet, i+2, invoiceRow(inv)); err != nil {
			return err
		}
		for _, item := range inv.Items {
			amount := item.Quantity * item.UnitCost
			row := []interface{}{inv.Invoice.Number, item.Name, item.Description, item.Quantity, item.UnitCost, amount}
			if err := e.setRow(f, ItemsSheet, itemRow, row); err != nil {
				return err
			}
			itemRow++
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		e.logger.Error("Failed to write workbook", zap.Error(err))
		return fmt.Errorf("failed to write workbook: %w", err)
	}

	e.logger.Info("Invoice workbook exported",
		zap.Int("invoices", len(invoices)),
		zap.Int("items", itemRow-2))
	return nil
}

func (e *WorkbookExporter) setRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write row %d of %s: %w", row, sheet, err)
	}
	return nil
}

func invoiceRow(inv *entity.Invoice) []interface{} {
	total := inv.Total()
	paid := inv.AmountPaid
	balance := total.Sub(decimal.NewFromFloat(paid))
	if balance.IsNegative() {
		balance = decimal.Zero
	}

	currency := inv.Invoice.Currency
	if currency == "" {
		currency = entity.DefaultCurrency
	}
	status := inv.Status
	if status == "" {
		status = entity.StatusUnpaid
	}

	var source interface{}
	if inv.Recurring.SourceInvoiceID != nil {
		source = *inv.Recurring.SourceInvoiceID
	}
	recurring := "no"
	nextRun := ""
	if inv.Recurring.Enabled {
		recurring = string(inv.Recurring.Frequency)
		nextRun = inv.Recurring.NextRunDate
	}

	return []interface{}{
		inv.ID,
		inv.Invoice.Number,
		inv.Invoice.Date,
		inv.Invoice.DueDate,
		inv.Customer.Name,
		inv.Customer.Company,
		currency,
		inv.Subtotal().Round(2).InexactFloat64(),
		total.InexactFloat64(),
		paid,
		balance.InexactFloat64(),
		status,
		recurring,
		nextRun,
		source,
		inv.PDFPath,
		inv.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
	}
}

var _ port.InvoiceExporter = (*WorkbookExporter)(nil)
