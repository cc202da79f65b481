package pdf

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/gen2brain/go-fitz"
	"go.uber.org/zap"

	"github.com/garyjia/biller/internal/application/port"
)

var errEmptyDocument = errors.New("document has no pages")

// FitzValidator opens rendered bytes with MuPDF to make sure they are a readable PDF
type FitzValidator struct {
	logger *zap.Logger
}

// NewFitzValidator creates a new validator
func NewFitzValidator(logger *zap.Logger) *FitzValidator {
	return &FitzValidator{logger: logger}
}

// Validate returns the page count, or an error when content is not a usable PDF
func (v *FitzValidator) Validate(content []byte) (int, error) {
	if !bytes.HasPrefix(bytes.TrimLeft(content, " \t\r\n"), []byte("%PDF-")) {
		return 0, fmt.Errorf("missing PDF header")
	}

	doc, err := fitz.NewFromMemory(content)
	if err != nil {
		return 0, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	pages := doc.NumPage()
	if pages < 1 {
		return 0, errEmptyDocument
	}

	v.logger.Debug("PDF validated", zap.Int("pages", pages), zap.Int("bytes", len(content)))
	return pages, nil
}

var _ port.PDFValidator = (*FitzValidator)(nil)
