package service

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/subberhq/subber/internal/billing"
	"github.com/subberhq/subber/internal/domain"
	"github.com/subberhq/subber/internal/repository"
)

// AccountService manages a customer's standing with the billing gateway.
type AccountService struct {
	repo    repository.Querier
	gateway billing.Gateway
	logger  *slog.Logger
}

// NewAccountService creates an account service.
func NewAccountService(repo repository.Querier, gateway billing.Gateway, logger *slog.Logger) *AccountService {
	return &AccountService{
		repo:    repo,
		gateway: gateway,
		logger:  logger,
	}
}

// RegisterPaymentSource attaches a tokenized payment source to the
// customer. First registration creates the remote billing customer and
// persists its id locally; later calls associate an additional source
// with the existing remote customer. Returns true when a remote
// customer was created.
func (s *AccountService) RegisterPaymentSource(ctx context.Context, customer *domain.Customer, token string) (bool, error) {
	const op = "account.register_source"

	if token == "" {
		return false, domain.Invalid(op, "missing source token")
	}

	if customer.BillingRegistered() {
		if err := s.gateway.AssociatePaymentSource(ctx, token, customer.StripeID.String); err != nil {
			return false, domain.WrapError(err, domain.EINTERNAL, op, "billing gateway rejected payment source")
		}
		return false, nil
	}

	remote, err := s.gateway.CreateCustomer(ctx, billing.CreateCustomerParams{
		Email:       customer.Email,
		SourceToken: token,
		Metadata:    map[string]string{domain.MetaCustomer: customer.ID.String()},
	})
	if err != nil {
		return false, domain.WrapError(err, domain.EINTERNAL, op, "billing gateway rejected customer creation")
	}

	if err := s.repo.SetCustomerStripeID(ctx, repository.SetCustomerStripeIDParams{
		CustomerID: customer.ID,
		StripeID:   remote.ID,
	}); err != nil {
		// The remote customer exists but is untracked locally.
		s.logger.Error("failed to persist billing customer id",
			slog.String("customer_id", customer.ID.String()),
			slog.String("remote_customer_id", remote.ID),
			slog.String("error", err.Error()),
		)
		return false, domain.WrapError(err, domain.EINTERNAL, op, "failed to persist billing customer id")
	}

	customer.StripeID = pgtype.Text{String: remote.ID, Valid: true}
	return true, nil
}

// RemovePaymentSource detaches a payment source from the customer's
// remote billing account.
func (s *AccountService) RemovePaymentSource(ctx context.Context, customer domain.Customer, sourceID string) error {
	const op = "account.remove_source"

	if sourceID == "" {
		return domain.Invalid(op, "missing id of payment source to delete")
	}
	if !customer.BillingRegistered() {
		return domain.ErrNoBillingAccount
	}

	if err := s.gateway.DeletePaymentSource(ctx, sourceID, customer.StripeID.String); err != nil {
		return domain.WrapError(err, domain.EINTERNAL, op, "billing gateway rejected payment source deletion")
	}
	return nil
}
