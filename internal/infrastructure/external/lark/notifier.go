// Package lark notifies the owner through Lark/Feishu IM.
package lark

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/garyjia/biller/internal/application/port"
	"github.com/garyjia/biller/internal/domain/entity"
)

// Notifier posts a text message whenever the recurring processor creates invoices
type Notifier struct {
	sender        MessageSender
	receiveIDType string
	receiveID     string
	logger        *zap.Logger
}

// NewNotifier creates a notifier delivering to one receiver
func NewNotifier(sender MessageSender, cfg Config, logger *zap.Logger) *Notifier {
	idType := cfg.ReceiveIDType
	if idType == "" {
		idType = "open_id"
	}
	return &Notifier{
		sender:        sender,
		receiveIDType: idType,
		receiveID:     cfg.ReceiveID,
		logger:        logger,
	}
}

// NotifyRecurringGenerated implements port.Notifier
func (n *Notifier) NotifyRecurringGenerated(ctx context.Context, source *entity.Invoice, generated []*entity.Invoice) error {
	if len(generated) == 0 {
		return nil
	}
	if n.receiveID == "" {
		return fmt.Errorf("lark receiver: %w", entity.ErrNotConfigured)
	}

	content, err := json.Marshal(map[string]string{"text": RecurringMessage(source, generated)})
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	messageID, err := n.sender.Send(ctx, n.receiveIDType, n.receiveID, "text", string(content))
	if err != nil {
		return fmt.Errorf("failed to notify owner: %w", err)
	}

	n.logger.Info("Recurring notification sent",
		zap.Int64("source_id", source.ID),
		zap.Int("generated", len(generated)),
		zap.String("message_id", messageID))
	return nil
}

// RecurringMessage is the text body sent for one source invoice
func RecurringMessage(source *entity.Invoice, generated []*entity.Invoice) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d recurring invoice(s) generated from %s", len(generated), source.Invoice.Number)
	if source.Customer.Name != "" {
		fmt.Fprintf(&b, " for %s", source.Customer.Name)
	}
	b.WriteString(":")
	for _, inv := range generated {
		currency := inv.Invoice.Currency
		if currency == "" {
			currency = entity.DefaultCurrency
		}
		fmt.Fprintf(&b, "\n- %s dated %s, due %s, %s %s", inv.Invoice.Number, inv.Invoice.Date, inv.Invoice.DueDate, currency, inv.Total().StringFixed(2))
		if inv.PDFPath != "" {
			fmt.Fprintf(&b, " (%s)", inv.PDFPath)
		}
	}
	return b.String()
}

var _ port.Notifier = (*Notifier)(nil)
