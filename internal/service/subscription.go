package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/subberhq/subber/internal/billing"
	"github.com/subberhq/subber/internal/domain"
	"github.com/subberhq/subber/internal/events"
	"github.com/subberhq/subber/internal/repository"
	"github.com/subberhq/subber/internal/telemetry"
)

// SubscriptionService creates and lists subscriptions.
type SubscriptionService struct {
	repo      repository.Querier
	gateway   billing.Gateway
	resolver  *PlanResolver
	publisher events.Publisher
	logger    *slog.Logger
}

// NewSubscriptionService creates a subscription service.
func NewSubscriptionService(
	repo repository.Querier,
	gateway billing.Gateway,
	resolver *PlanResolver,
	publisher events.Publisher,
	logger *slog.Logger,
) *SubscriptionService {
	return &SubscriptionService{
		repo:      repo,
		gateway:   gateway,
		resolver:  resolver,
		publisher: publisher,
		logger:    logger,
	}
}

// CreateSubscriptionParams is a parsed, defaulted create request. The
// handler fills Date/Active/Frequency defaults (now, true, monthly).
type CreateSubscriptionParams struct {
	BoxID      uuid.UUID
	ShippingID uuid.UUID
	Date       domain.Timestamp
	Active     bool
	Frequency  domain.Frequency
}

// CreateSubscription runs the full billing-lifecycle flow for a new
// subscription:
//
//  1. Verify the shipping address belongs to the requesting customer.
//  2. Load the box and resolve its billing plan, provisioning lazily.
//  3. Require the customer to have a remote billing account.
//  4. Create the remote subscription, carrying entity-reference
//     metadata for the invoice reconciler.
//  5. Persist the local subscription with the remote id attached.
//
// There is no rollback if the local write fails after the remote call
// succeeds; the remote subscription id is logged for manual
// reconciliation.
func (s *SubscriptionService) CreateSubscription(ctx context.Context, customer domain.Customer, params CreateSubscriptionParams) (*domain.Subscription, error) {
	const op = "subscription.create"

	shipping, err := s.repo.GetShippingAddress(ctx, params.ShippingID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrShippingNotOwned
		}
		return nil, domain.WrapError(err, domain.EINTERNAL, op, "failed to load shipping address")
	}
	if shipping.CustomerID != customer.ID {
		return nil, domain.ErrShippingNotOwned
	}

	box, err := s.repo.GetBox(ctx, params.BoxID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrBoxNotFound
		}
		return nil, domain.WrapError(err, domain.EINTERNAL, op, "failed to load box")
	}

	planID, err := s.resolver.ResolvePlan(ctx, &box)
	if err != nil {
		return nil, err
	}
	if planID == "" {
		return nil, domain.ErrPlanMissing
	}

	if !customer.BillingRegistered() {
		return nil, domain.ErrNoBillingAccount
	}

	// The subscription id is generated before the remote call so the
	// entity references can ride on the gateway subscription and come
	// back on invoice line items.
	subscriptionID := uuid.New()
	refs := domain.EntityRefs{
		SubscriptionID: subscriptionID,
		VendorID:       box.VendorID,
		CustomerID:     customer.ID,
		ShippingID:     shipping.ID,
		BoxID:          box.ID,
	}

	remote, err := s.gateway.CreateSubscription(ctx, billing.CreateSubscriptionParams{
		CustomerID: customer.StripeID.String,
		PlanID:     planID,
		OneTime:    params.Frequency.OneTime(),
		Metadata:   refs.Metadata(),
	})
	if err != nil {
		return nil, domain.WrapError(err, domain.EINTERNAL, op, "billing gateway rejected subscription creation")
	}

	sub, err := s.repo.CreateSubscription(ctx, repository.CreateSubscriptionParams{
		ID:         subscriptionID,
		BoxID:      box.ID,
		ShippingID: shipping.ID,
		CustomerID: customer.ID,
		SubID:      remote.ID,
		Date:       params.Date,
		Active:     params.Active,
		Frequency:  params.Frequency,
	})
	if err != nil {
		// The remote subscription is live but untracked locally.
		s.logger.Error("failed to persist subscription after remote create",
			slog.String("customer_id", customer.ID.String()),
			slog.String("remote_sub_id", remote.ID),
			slog.String("error", err.Error()),
		)
		return nil, domain.WrapError(err, domain.EINTERNAL, op, "failed to persist subscription")
	}

	if telemetry.Business != nil {
		telemetry.Business.SubscriptionsCreated.WithLabelValues(string(sub.Frequency)).Inc()
	}
	if err := s.publisher.Publish(ctx, events.SubjectSubscriptionCreated, sub); err != nil {
		s.logger.Warn("failed to publish subscription.created",
			slog.String("subscription_id", sub.ID.String()),
			slog.String("error", err.Error()),
		)
	}

	s.logger.Info("subscription created",
		slog.String("subscription_id", sub.ID.String()),
		slog.String("remote_sub_id", remote.ID),
		slog.String("box_id", box.ID.String()),
	)

	return &sub, nil
}

// ListSubscriptionsForCustomer returns the customer's subscriptions.
func (s *SubscriptionService) ListSubscriptionsForCustomer(ctx context.Context, customerID uuid.UUID) ([]domain.Subscription, error) {
	subs, err := s.repo.ListSubscriptionsForCustomer(ctx, customerID)
	if err != nil {
		return nil, domain.WrapError(err, domain.EINTERNAL, "subscription.list", "failed to list subscriptions")
	}
	return subs, nil
}

// ListSubscriptionsForVendor returns subscriptions against the vendor's boxes.
func (s *SubscriptionService) ListSubscriptionsForVendor(ctx context.Context, vendorID uuid.UUID) ([]domain.Subscription, error) {
	subs, err := s.repo.ListSubscriptionsForVendor(ctx, vendorID)
	if err != nil {
		return nil, domain.WrapError(err, domain.EINTERNAL, "subscription.list", "failed to list subscriptions")
	}
	return subs, nil
}
