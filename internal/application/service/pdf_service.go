package service

import (
	"context"
	"fmt"
	"path"
	"regexp"

	"github.com/garyjia/biller/internal/application/port"
	"github.com/garyjia/biller/internal/domain/entity"
)

// PDFDir is the storage directory generated invoices are written to
const PDFDir = "invoices"

var fileNameUnsafe = regexp.MustCompile(`[\s/\\]+`)

// PDFResult describes a generated invoice document
type PDFResult struct {
	PDFPath  string `json:"pdfPath"`
	FileName string `json:"fileName"`
	Pages    int    `json:"pages,omitempty"`
	Renderer string `json:"renderer"`
}

// PDFService renders, checks and stores invoice PDFs
type PDFService interface {
	// Generate renders the invoice, stores the file and records its path on the invoice
	Generate(ctx context.Context, invoice *entity.Invoice) (*PDFResult, error)
}

type pdfServiceImpl struct {
	renderer    port.PDFRenderer
	validator   port.PDFValidator
	storage     port.FileStorage
	invoiceRepo port.InvoiceRepository
	clock       Clock
	logger      Logger
}

// NewPDFService creates a PDFService. A nil renderer means no provider is configured;
// a nil validator skips the page check.
func NewPDFService(
	renderer port.PDFRenderer,
	validator port.PDFValidator,
	storage port.FileStorage,
	invoiceRepo port.InvoiceRepository,
	clock Clock,
	logger Logger,
) PDFService {
	return &pdfServiceImpl{
		renderer:    renderer,
		validator:   validator,
		storage:     storage,
		invoiceRepo: invoiceRepo,
		clock:       clock,
		logger:      logger,
	}
}

// Generate renders the invoice and records the stored path
func (s *pdfServiceImpl) Generate(ctx context.Context, invoice *entity.Invoice) (*PDFResult, error) {
	if s.renderer == nil {
		return nil, fmt.Errorf("API key not configured: %w", entity.ErrNotConfigured)
	}

	content, err := s.renderer.Render(ctx, invoice)
	if err != nil {
		s.logger.Error("Failed to render invoice PDF", "invoice_id", invoice.ID, "renderer", s.renderer.Name(), "error", err)
		return nil, fmt.Errorf("failed to render invoice PDF: %w", err)
	}

	pages := 0
	if s.validator != nil {
		pages, err = s.validator.Validate(content)
		if err != nil {
			s.logger.Error("Rendered PDF failed validation", "invoice_id", invoice.ID, "error", err)
			return nil, fmt.Errorf("rendered PDF is invalid: %w", err)
		}
	}

	fileName := PDFFileName(invoice.Invoice.Number)
	relPath := path.Join(PDFDir, fileName)
	if err := s.storage.Save(ctx, relPath, content); err != nil {
		s.logger.Error("Failed to store invoice PDF", "invoice_id", invoice.ID, "path", relPath, "error", err)
		return nil, fmt.Errorf("failed to store invoice PDF: %w", err)
	}

	pdfPath := "/" + relPath
	generatedAt := s.clock.now()
	if invoice.ID != 0 {
		if err := s.invoiceRepo.SetPDFPath(ctx, invoice.ID, pdfPath, generatedAt); err != nil {
			return nil, fmt.Errorf("failed to record PDF path: %w", err)
		}
	}
	invoice.PDFPath = pdfPath
	invoice.GeneratedAt = &generatedAt

	s.logger.Info("Invoice PDF generated",
		"invoice_id", invoice.ID,
		"number", invoice.Invoice.Number,
		"path", pdfPath,
		"pages", pages,
		"renderer", s.renderer.Name(),
	)

	return &PDFResult{
		PDFPath:  pdfPath,
		FileName: fileName,
		Pages:    pages,
		Renderer: s.renderer.Name(),
	}, nil
}

// PDFFileName derives the stored file name from an invoice number.
// Whitespace and path separators become underscores.
func PDFFileName(number string) string {
	return fmt.Sprintf("invoice_%s.pdf", fileNameUnsafe.ReplaceAllString(number, "_"))
}
