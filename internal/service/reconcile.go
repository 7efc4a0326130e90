package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/stripe/stripe-go/v82"

	"github.com/subberhq/subber/internal/billing"
	"github.com/subberhq/subber/internal/domain"
	"github.com/subberhq/subber/internal/events"
	"github.com/subberhq/subber/internal/repository"
	"github.com/subberhq/subber/internal/telemetry"
)

// InvoiceReconciler converts invoice-created events from the billing
// gateway into local order records, exactly once per invoice.
type InvoiceReconciler struct {
	repo      repository.Querier
	gateway   billing.Gateway
	publisher events.Publisher
	logger    *slog.Logger
}

// NewInvoiceReconciler creates an invoice reconciler.
func NewInvoiceReconciler(repo repository.Querier, gateway billing.Gateway, publisher events.Publisher, logger *slog.Logger) *InvoiceReconciler {
	return &InvoiceReconciler{
		repo:      repo,
		gateway:   gateway,
		publisher: publisher,
		logger:    logger,
	}
}

// ReconcileInvoice creates the order for a gateway invoice:
//
//  1. Read the entity references from the first line item's metadata.
//  2. Resolve each referenced entity; an absent one is a
//     reconciliation failure, not a malformed payload.
//  3. Create the order, deduplicating by invoice id.
//  4. Write the order id back onto the remote invoice.
//
// Redelivered events resolve to the already-created order and make no
// second metadata-attach call.
func (r *InvoiceReconciler) ReconcileInvoice(ctx context.Context, inv *stripe.Invoice) (*domain.Order, error) {
	const op = "order.reconcile"

	if inv == nil || inv.ID == "" {
		return nil, domain.ErrMissingInvoice
	}
	if inv.Lines == nil || len(inv.Lines.Data) == 0 {
		return nil, domain.ErrMissingLineItem
	}

	refs, err := domain.EntityRefsFromMetadata(inv.Lines.Data[0].Metadata)
	if err != nil {
		return nil, err
	}

	// Fast path for redelivery: the order already exists.
	if existing, err := r.repo.GetOrderByStripeInvoiceID(ctx, inv.ID); err == nil {
		r.logger.Info("invoice already reconciled",
			slog.String("invoice_id", inv.ID),
			slog.String("order_id", existing.ID.String()),
		)
		if telemetry.Business != nil {
			telemetry.Business.OrdersDeduplicated.Inc()
		}
		return &existing, nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, domain.WrapError(err, domain.EINTERNAL, op, "failed to check for existing order")
	}

	if _, err := r.repo.GetSubscription(ctx, refs.SubscriptionID); err != nil {
		return nil, r.missingRef(op, "subscription", refs.SubscriptionID.String(), err)
	}
	if _, err := r.repo.GetVendor(ctx, refs.VendorID); err != nil {
		return nil, r.missingRef(op, "vendor", refs.VendorID.String(), err)
	}
	if _, err := r.repo.GetCustomer(ctx, refs.CustomerID); err != nil {
		return nil, r.missingRef(op, "customer", refs.CustomerID.String(), err)
	}
	if _, err := r.repo.GetShippingAddress(ctx, refs.ShippingID); err != nil {
		return nil, r.missingRef(op, "shipping address", refs.ShippingID.String(), err)
	}
	if _, err := r.repo.GetBox(ctx, refs.BoxID); err != nil {
		return nil, r.missingRef(op, "box", refs.BoxID.String(), err)
	}

	order, err := r.repo.CreateOrder(ctx, repository.CreateOrderParams{
		SubscriptionID:  refs.SubscriptionID,
		VendorID:        refs.VendorID,
		BoxID:           refs.BoxID,
		ShippingID:      refs.ShippingID,
		CustomerID:      refs.CustomerID,
		StripeInvoiceID: inv.ID,
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateOrder) {
			// A concurrent delivery won the insert.
			existing, getErr := r.repo.GetOrderByStripeInvoiceID(ctx, inv.ID)
			if getErr != nil {
				return nil, domain.WrapError(getErr, domain.EINTERNAL, op, "failed to load order after duplicate insert")
			}
			if telemetry.Business != nil {
				telemetry.Business.OrdersDeduplicated.Inc()
			}
			return &existing, nil
		}
		return nil, domain.WrapError(err, domain.EINTERNAL, op, "failed to save order")
	}

	if err := r.gateway.AttachInvoiceMetadata(ctx, inv.ID, order.ID.String()); err != nil {
		// The order exists; the invoice just lacks its back-reference.
		r.logger.Error("failed to attach order id to invoice",
			slog.String("invoice_id", inv.ID),
			slog.String("order_id", order.ID.String()),
			slog.String("error", err.Error()),
		)
		return nil, domain.WrapError(err, domain.EINTERNAL, op, "failed to write order reference to invoice")
	}

	if telemetry.Business != nil {
		telemetry.Business.OrdersReconciled.Inc()
	}
	if err := r.publisher.Publish(ctx, events.SubjectOrderCreated, order); err != nil {
		r.logger.Warn("failed to publish order.created",
			slog.String("order_id", order.ID.String()),
			slog.String("error", err.Error()),
		)
	}

	r.logger.Info("order reconciled from invoice",
		slog.String("invoice_id", inv.ID),
		slog.String("order_id", order.ID.String()),
	)

	return &order, nil
}

func (r *InvoiceReconciler) missingRef(op, resource, id string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return domain.Errorf(domain.EINTERNAL, op, "wrong or missing metadata: %s %s does not exist", resource, id)
	}
	return domain.WrapError(err, domain.EINTERNAL, op, "failed to load "+resource)
}
