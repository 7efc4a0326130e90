package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/subberhq/subber/internal/domain"
)

// ErrNotFound is returned when a queried record does not exist.
var ErrNotFound = errors.New("repository: record not found")

// ErrDuplicateOrder is returned when an order already exists for the
// invoice id, either from the pre-create check losing a race or from
// the UNIQUE constraint on orders.stripe_invoice_id.
var ErrDuplicateOrder = errors.New("repository: order already exists for invoice")

// SetBoxPlanIDParams contains parameters for recording a box's remote plan.
type SetBoxPlanIDParams struct {
	BoxID  uuid.UUID
	PlanID string
}

// SetCustomerStripeIDParams contains parameters for recording a
// customer's remote billing-customer id.
type SetCustomerStripeIDParams struct {
	CustomerID uuid.UUID
	StripeID   string
}

// CreateSubscriptionParams contains the full subscription row. The
// remote subscription id is required: local rows are only written after
// the gateway call succeeds.
type CreateSubscriptionParams struct {
	ID         uuid.UUID
	BoxID      uuid.UUID
	ShippingID uuid.UUID
	CustomerID uuid.UUID
	SubID      string
	Date       domain.Timestamp
	Active     bool
	Frequency  domain.Frequency
}

// CreateOrderParams contains the full order row.
type CreateOrderParams struct {
	SubscriptionID  uuid.UUID
	VendorID        uuid.UUID
	BoxID           uuid.UUID
	ShippingID      uuid.UUID
	CustomerID      uuid.UUID
	StripeInvoiceID string
}

// Querier is the persistence surface the services depend on. The
// production implementation is Postgres; tests provide mocks.
type Querier interface {
	GetBox(ctx context.Context, id uuid.UUID) (domain.Box, error)

	// SetBoxPlanIDIfUnset records the plan id only if the box still has
	// none, and reports whether the write landed. A false return with a
	// nil error means a concurrent resolution won; callers re-read the
	// box and adopt the stored plan id.
	SetBoxPlanIDIfUnset(ctx context.Context, arg SetBoxPlanIDParams) (bool, error)

	GetVendor(ctx context.Context, id uuid.UUID) (domain.Vendor, error)
	GetVendorByAPIToken(ctx context.Context, token string) (domain.Vendor, error)

	GetCustomer(ctx context.Context, id uuid.UUID) (domain.Customer, error)
	GetCustomerByAPIToken(ctx context.Context, token string) (domain.Customer, error)
	SetCustomerStripeID(ctx context.Context, arg SetCustomerStripeIDParams) error

	GetShippingAddress(ctx context.Context, id uuid.UUID) (domain.ShippingAddress, error)

	CreateSubscription(ctx context.Context, arg CreateSubscriptionParams) (domain.Subscription, error)
	GetSubscription(ctx context.Context, id uuid.UUID) (domain.Subscription, error)
	ListSubscriptionsForCustomer(ctx context.Context, customerID uuid.UUID) ([]domain.Subscription, error)
	ListSubscriptionsForVendor(ctx context.Context, vendorID uuid.UUID) ([]domain.Subscription, error)

	CreateOrder(ctx context.Context, arg CreateOrderParams) (domain.Order, error)
	GetOrderByStripeInvoiceID(ctx context.Context, invoiceID string) (domain.Order, error)
}
