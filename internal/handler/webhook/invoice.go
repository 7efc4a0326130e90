package webhook

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/stripe/stripe-go/v82"

	"github.com/subberhq/subber/internal/domain"
)

// Reconciler turns a gateway invoice into a local order.
type Reconciler interface {
	ReconcileInvoice(ctx context.Context, inv *stripe.Invoice) (*domain.Order, error)
}

// InvoiceCreated returns a handler for invoice.created events. It
// unmarshals the invoice from the event envelope and hands it to the
// reconciler; redelivered events resolve to the already-created order.
func InvoiceCreated(reconciler Reconciler, logger *slog.Logger) HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, event stripe.Event) error {
		var inv stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			return domain.WrapError(err, domain.EINVALID, "webhook.invoice.created", "invalid invoice payload")
		}

		order, err := reconciler.ReconcileInvoice(ctx, &inv)
		if err != nil {
			return err
		}

		logger.Info("invoice reconciled",
			"invoice_id", inv.ID,
			"order_id", order.ID,
		)
		return nil
	}
}

// AccountUpdated returns a no-op handler for account.updated events,
// acknowledging them so the gateway does not retry.
func AccountUpdated(logger *slog.Logger) HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, event stripe.Event) error {
		logger.Info("account updated", "event_id", event.ID)
		return nil
	}
}

// RegisterDefaultHandlers wires the standard event handlers onto d.
func RegisterDefaultHandlers(d *Dispatcher, reconciler Reconciler, logger *slog.Logger) {
	d.On("invoice", "created", InvoiceCreated(reconciler, logger))
	d.On("account", "updated", AccountUpdated(logger))
}
