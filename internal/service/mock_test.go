package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/subberhq/subber/internal/domain"
	"github.com/subberhq/subber/internal/repository"
)

// mockQuerier implements repository.Querier with per-method overrides.
// Methods without an override fail loudly via ErrNotFound so tests only
// wire what they use.
type mockQuerier struct {
	GetBoxFunc              func(ctx context.Context, id uuid.UUID) (domain.Box, error)
	SetBoxPlanIDIfUnsetFunc func(ctx context.Context, arg repository.SetBoxPlanIDParams) (bool, error)

	GetVendorFunc           func(ctx context.Context, id uuid.UUID) (domain.Vendor, error)
	GetVendorByAPITokenFunc func(ctx context.Context, token string) (domain.Vendor, error)

	GetCustomerFunc           func(ctx context.Context, id uuid.UUID) (domain.Customer, error)
	GetCustomerByAPITokenFunc func(ctx context.Context, token string) (domain.Customer, error)
	SetCustomerStripeIDFunc   func(ctx context.Context, arg repository.SetCustomerStripeIDParams) error

	GetShippingAddressFunc func(ctx context.Context, id uuid.UUID) (domain.ShippingAddress, error)

	CreateSubscriptionFunc           func(ctx context.Context, arg repository.CreateSubscriptionParams) (domain.Subscription, error)
	GetSubscriptionFunc              func(ctx context.Context, id uuid.UUID) (domain.Subscription, error)
	ListSubscriptionsForCustomerFunc func(ctx context.Context, customerID uuid.UUID) ([]domain.Subscription, error)
	ListSubscriptionsForVendorFunc   func(ctx context.Context, vendorID uuid.UUID) ([]domain.Subscription, error)

	CreateOrderFunc               func(ctx context.Context, arg repository.CreateOrderParams) (domain.Order, error)
	GetOrderByStripeInvoiceIDFunc func(ctx context.Context, invoiceID string) (domain.Order, error)
}

var _ repository.Querier = (*mockQuerier)(nil)

func (m *mockQuerier) GetBox(ctx context.Context, id uuid.UUID) (domain.Box, error) {
	if m.GetBoxFunc != nil {
		return m.GetBoxFunc(ctx, id)
	}
	return domain.Box{}, repository.ErrNotFound
}

func (m *mockQuerier) SetBoxPlanIDIfUnset(ctx context.Context, arg repository.SetBoxPlanIDParams) (bool, error) {
	if m.SetBoxPlanIDIfUnsetFunc != nil {
		return m.SetBoxPlanIDIfUnsetFunc(ctx, arg)
	}
	return false, repository.ErrNotFound
}

func (m *mockQuerier) GetVendor(ctx context.Context, id uuid.UUID) (domain.Vendor, error) {
	if m.GetVendorFunc != nil {
		return m.GetVendorFunc(ctx, id)
	}
	return domain.Vendor{}, repository.ErrNotFound
}

func (m *mockQuerier) GetVendorByAPIToken(ctx context.Context, token string) (domain.Vendor, error) {
	if m.GetVendorByAPITokenFunc != nil {
		return m.GetVendorByAPITokenFunc(ctx, token)
	}
	return domain.Vendor{}, repository.ErrNotFound
}

func (m *mockQuerier) GetCustomer(ctx context.Context, id uuid.UUID) (domain.Customer, error) {
	if m.GetCustomerFunc != nil {
		return m.GetCustomerFunc(ctx, id)
	}
	return domain.Customer{}, repository.ErrNotFound
}

func (m *mockQuerier) GetCustomerByAPIToken(ctx context.Context, token string) (domain.Customer, error) {
	if m.GetCustomerByAPITokenFunc != nil {
		return m.GetCustomerByAPITokenFunc(ctx, token)
	}
	return domain.Customer{}, repository.ErrNotFound
}

func (m *mockQuerier) SetCustomerStripeID(ctx context.Context, arg repository.SetCustomerStripeIDParams) error {
	if m.SetCustomerStripeIDFunc != nil {
		return m.SetCustomerStripeIDFunc(ctx, arg)
	}
	return repository.ErrNotFound
}

func (m *mockQuerier) GetShippingAddress(ctx context.Context, id uuid.UUID) (domain.ShippingAddress, error) {
	if m.GetShippingAddressFunc != nil {
		return m.GetShippingAddressFunc(ctx, id)
	}
	return domain.ShippingAddress{}, repository.ErrNotFound
}

func (m *mockQuerier) CreateSubscription(ctx context.Context, arg repository.CreateSubscriptionParams) (domain.Subscription, error) {
	if m.CreateSubscriptionFunc != nil {
		return m.CreateSubscriptionFunc(ctx, arg)
	}
	return domain.Subscription{}, repository.ErrNotFound
}

func (m *mockQuerier) GetSubscription(ctx context.Context, id uuid.UUID) (domain.Subscription, error) {
	if m.GetSubscriptionFunc != nil {
		return m.GetSubscriptionFunc(ctx, id)
	}
	return domain.Subscription{}, repository.ErrNotFound
}

func (m *mockQuerier) ListSubscriptionsForCustomer(ctx context.Context, customerID uuid.UUID) ([]domain.Subscription, error) {
	if m.ListSubscriptionsForCustomerFunc != nil {
		return m.ListSubscriptionsForCustomerFunc(ctx, customerID)
	}
	return nil, nil
}

func (m *mockQuerier) ListSubscriptionsForVendor(ctx context.Context, vendorID uuid.UUID) ([]domain.Subscription, error) {
	if m.ListSubscriptionsForVendorFunc != nil {
		return m.ListSubscriptionsForVendorFunc(ctx, vendorID)
	}
	return nil, nil
}

func (m *mockQuerier) CreateOrder(ctx context.Context, arg repository.CreateOrderParams) (domain.Order, error) {
	if m.CreateOrderFunc != nil {
		return m.CreateOrderFunc(ctx, arg)
	}
	return domain.Order{}, repository.ErrNotFound
}

func (m *mockQuerier) GetOrderByStripeInvoiceID(ctx context.Context, invoiceID string) (domain.Order, error) {
	if m.GetOrderByStripeInvoiceIDFunc != nil {
		return m.GetOrderByStripeInvoiceIDFunc(ctx, invoiceID)
	}
	return domain.Order{}, repository.ErrNotFound
}

// Test fixtures shared across the service tests.

func makeTestBox(vendorID uuid.UUID, planID string) domain.Box {
	box := domain.Box{
		ID:         uuid.New(),
		VendorID:   vendorID,
		Name:       "Roaster's Choice",
		Brief:      "Two bags of single origin, monthly",
		Freq:       "monthly",
		PriceCents: 2400,
	}
	if planID != "" {
		box.PlanID = pgtype.Text{String: planID, Valid: true}
	}
	return box
}

func makeTestCustomer(stripeID string) domain.Customer {
	customer := domain.Customer{
		ID:    uuid.New(),
		Email: "drinker@example.com",
	}
	if stripeID != "" {
		customer.StripeID = pgtype.Text{String: stripeID, Valid: true}
	}
	return customer
}

func makeTestShipping(customerID uuid.UUID) domain.ShippingAddress {
	return domain.ShippingAddress{
		ID:         uuid.New(),
		CustomerID: customerID,
		Address:    "123 Main St",
		City:       "Portland",
		Country:    "US",
	}
}
