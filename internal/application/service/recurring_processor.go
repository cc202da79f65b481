package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/garyjia/biller/internal/application/port"
	"github.com/garyjia/biller/internal/domain/entity"
	"github.com/garyjia/biller/internal/domain/recurrence"
)

// recurringPassTimeout bounds a pass, which outlives the caller that started it
const recurringPassTimeout = 5 * time.Minute

const recurringFlightKey = "recurring"

// ProcessResult summarizes one recurring processing pass
type ProcessResult struct {
	SourcesScanned int `json:"sourcesScanned"`
	Generated      int `json:"generated"`
	Skipped        int `json:"skipped"`
	PDFFailures    int `json:"pdfFailures"`
	FailedSources  int `json:"failedSources"`
}

// RecurringProcessor materializes due occurrences of recurring invoices
type RecurringProcessor interface {
	// Process runs one pass. Concurrent callers share the pass already in flight.
	Process(ctx context.Context) (*ProcessResult, error)
}

type recurringProcessorImpl struct {
	invoiceRepo port.InvoiceRepository
	txManager   port.TransactionManager
	numberer    InvoiceNumberer
	pdfService  PDFService
	notifier    port.Notifier
	clock       Clock
	logger      Logger

	flight singleflight.Group
}

// NewRecurringProcessor creates a RecurringProcessor. notifier may be nil.
func NewRecurringProcessor(
	invoiceRepo port.InvoiceRepository,
	txManager port.TransactionManager,
	numberer InvoiceNumberer,
	pdfService PDFService,
	notifier port.Notifier,
	clock Clock,
	logger Logger,
) RecurringProcessor {
	return &recurringProcessorImpl{
		invoiceRepo: invoiceRepo,
		txManager:   txManager,
		numberer:    numberer,
		pdfService:  pdfService,
		notifier:    notifier,
		clock:       clock,
		logger:      logger,
	}
}

// Process runs a pass or joins the one in flight. The pass itself is detached
// from ctx so a caller going away does not fail the callers sharing it.
func (p *recurringProcessorImpl) Process(ctx context.Context) (*ProcessResult, error) {
	ch := p.flight.DoChan(recurringFlightKey, func() (interface{}, error) {
		passCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recurringPassTimeout)
		defer cancel()
		return p.run(passCtx)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*ProcessResult), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *recurringProcessorImpl) run(ctx context.Context) (*ProcessResult, error) {
	sources, err := p.invoiceRepo.ListRecurringSources(ctx)
	if err != nil {
		p.logger.Error("Failed to list recurring invoices", "error", err)
		return nil, fmt.Errorf("failed to list recurring invoices: %w", err)
	}

	result := &ProcessResult{SourcesScanned: len(sources)}
	today := recurrence.StartOfDay(p.clock.now())

	for _, source := range sources {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if err := p.processSource(ctx, source, today, result); err != nil {
			result.FailedSources++
			p.logger.Error("Recurring processing aborted for source",
				"invoice_id", source.ID,
				"number", source.Invoice.Number,
				"error", err,
			)
		}
	}

	if result.Generated > 0 || result.FailedSources > 0 {
		p.logger.Info("Recurring invoice pass completed",
			"sources", result.SourcesScanned,
			"generated", result.Generated,
			"skipped", result.Skipped,
			"pdf_failures", result.PDFFailures,
			"failed_sources", result.FailedSources,
		)
	}

	return result, nil
}

func (p *recurringProcessorImpl) processSource(ctx context.Context, source *entity.Invoice, today time.Time, result *ProcessResult) error {
	nextRun, ok := recurrence.ParseDate(source.Recurring.NextRunDate)
	if !ok {
		nextRun, ok = recurrence.FirstRun(source.Invoice.Date, source.Recurring)
		if !ok {
			p.logger.Info("Recurring invoice has no schedulable date, skipping",
				"invoice_id", source.ID, "date", source.Invoice.Date)
			return nil
		}
	}

	var generated []*entity.Invoice
	for occurrences := 0; !nextRun.After(today) && occurrences < entity.MaxOccurrencesPerPass; occurrences++ {
		following := recurrence.NextRun(nextRun, source.Recurring)

		child, err := p.generateOccurrence(ctx, source, nextRun, following)
		if errors.Is(err, entity.ErrDuplicateOccurrence) {
			result.Skipped++
			p.logger.Info("Recurring occurrence already exists, advancing",
				"invoice_id", source.ID, "date", recurrence.FormatDate(nextRun))
			nextRun = following
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to generate occurrence %s: %w", recurrence.FormatDate(nextRun), err)
		}

		generated = append(generated, child)
		result.Generated++

		if source.Recurring.AutoGeneratePDF {
			if _, err := p.pdfService.Generate(ctx, child); err != nil {
				result.PDFFailures++
				p.logger.Error("Recurring invoice PDF generation failed",
					"invoice_id", child.ID, "number", child.Invoice.Number, "error", err)
			}
		}

		nextRun = following
	}

	var lastRunAt *time.Time
	if len(generated) > 0 {
		now := p.clock.now()
		lastRunAt = &now
	}
	if err := p.invoiceRepo.AdvanceSchedule(ctx, source.ID, recurrence.FormatDate(nextRun), lastRunAt); err != nil {
		return fmt.Errorf("failed to persist schedule: %w", err)
	}

	if len(generated) > 0 && p.notifier != nil {
		if err := p.notifier.NotifyRecurringGenerated(ctx, source, generated); err != nil {
			p.logger.Error("Failed to notify about recurring invoices", "invoice_id", source.ID, "error", err)
		}
	}

	return nil
}

// generateOccurrence inserts the child and moves the source's pointer past it in one transaction
func (p *recurringProcessorImpl) generateOccurrence(ctx context.Context, source *entity.Invoice, date, following time.Time) (*entity.Invoice, error) {
	var child *entity.Invoice

	err := p.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		number, err := p.numberer.Next(txCtx)
		if err != nil {
			return err
		}

		child = BuildOccurrence(source, number, date)
		if err := p.invoiceRepo.Create(txCtx, child); err != nil {
			return err
		}

		return p.invoiceRepo.AdvanceSchedule(txCtx, source.ID, recurrence.FormatDate(following), nil)
	})
	if err != nil {
		return nil, err
	}

	p.logger.Info("Recurring invoice generated",
		"source_id", source.ID,
		"invoice_id", child.ID,
		"number", child.Invoice.Number,
		"date", child.Invoice.Date,
	)
	return child, nil
}

// BuildOccurrence clones a recurring source into an unpaid child dated on date
func BuildOccurrence(source *entity.Invoice, number string, date time.Time) *entity.Invoice {
	child := source.Clone()
	child.ID = 0
	child.Invoice.Number = number
	child.Invoice.Date = recurrence.FormatDate(date)
	child.Invoice.DueDate = recurrence.FormatDate(recurrence.AddDays(date, dueInDays(source.Recurring.DueInDays)))
	child.Status = entity.StatusUnpaid
	child.AmountPaid = 0
	child.Financial.AmountPaid = 0
	child.PDFPath = ""
	child.GeneratedAt = nil
	child.IsTemplate = false
	child.TemplateName = ""

	sourceID := source.ID
	child.Recurring = entity.RecurringConfig{
		Enabled:         false,
		AutoGeneratePDF: true,
		SourceInvoiceID: &sourceID,
	}
	return child
}

func dueInDays(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
