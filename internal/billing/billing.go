package billing

import (
	"context"
	"time"
)

// Gateway defines the billing-provider operations the backend consumes.
// The production implementation is Stripe; tests use MockGateway.
type Gateway interface {
	// CreatePlan registers a recurring billing plan (price + interval)
	// with the provider. Called lazily the first time a box is
	// subscribed to.
	CreatePlan(ctx context.Context, params CreatePlanParams) (*Plan, error)

	// CreateCustomer creates a provider customer with an initial
	// payment source. The returned id must be persisted on the local
	// customer before any subscription can be created for them.
	CreateCustomer(ctx context.Context, params CreateCustomerParams) (*Customer, error)

	// AssociatePaymentSource attaches an additional payment source
	// token to an existing provider customer.
	AssociatePaymentSource(ctx context.Context, token, customerID string) error

	// DeletePaymentSource detaches a payment source from a provider
	// customer.
	DeletePaymentSource(ctx context.Context, sourceID, customerID string) error

	// CreateSubscription subscribes a provider customer to a plan.
	// Metadata is carried onto every invoice line item the provider
	// generates for the subscription; the invoice reconciler depends
	// on the entity references placed there.
	CreateSubscription(ctx context.Context, params CreateSubscriptionParams) (*Subscription, error)

	// AttachInvoiceMetadata writes the local order id back onto a
	// provider invoice as a cross-reference marker for support tooling
	// and future reconciliation.
	AttachInvoiceMetadata(ctx context.Context, invoiceID, orderID string) error

	// VerifyWebhookSignature verifies that a webhook request is
	// authentic before any event is dispatched.
	VerifyWebhookSignature(payload []byte, signature string, secret string) error
}

// Interval is a plan's billing period.
type Interval string

const (
	IntervalMonth Interval = "month"
)

// CreatePlanParams contains parameters for creating a recurring plan.
type CreatePlanParams struct {
	// AmountCents is the per-period charge in the smallest currency unit.
	AmountCents int32

	// Currency code (ISO 4217 lowercase), e.g. "usd".
	Currency string

	// Name is shown on customer invoices.
	Name string

	// Interval is the billing period.
	Interval Interval
}

// Plan is a provider recurring-billing plan.
type Plan struct {
	ID          string
	Name        string
	AmountCents int32
	Interval    Interval
	CreatedAt   time.Time
}

// CreateCustomerParams contains parameters for creating a provider customer.
type CreateCustomerParams struct {
	Email string

	// SourceToken is a tokenized payment source (tok_... / src_...).
	SourceToken string

	Metadata map[string]string
}

// Customer is a provider billing customer.
type Customer struct {
	ID        string
	Email     string
	CreatedAt time.Time
}

// CreateSubscriptionParams contains parameters for creating a recurring
// subscription against an existing plan.
type CreateSubscriptionParams struct {
	// CustomerID is the provider customer id (cus_...).
	CustomerID string

	// PlanID is the provider plan id resolved for the box.
	PlanID string

	// OneTime bills a single period and cancels at period end.
	OneTime bool

	// Metadata is propagated to invoice line items.
	Metadata map[string]string
}

// Subscription is a provider subscription record.
type Subscription struct {
	ID         string
	CustomerID string
	PlanID     string
	Status     string
	CreatedAt  time.Time
}
