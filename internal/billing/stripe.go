package billing

import (
	"context"
	"errors"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/customer"
	"github.com/stripe/stripe-go/v82/invoice"
	"github.com/stripe/stripe-go/v82/paymentsource"
	"github.com/stripe/stripe-go/v82/plan"
	"github.com/stripe/stripe-go/v82/subscription"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/subberhq/subber/internal/telemetry"
)

// StripeGateway implements Gateway using the Stripe API.
type StripeGateway struct {
	config StripeConfig
}

// Compile-time check that StripeGateway implements Gateway.
var _ Gateway = (*StripeGateway)(nil)

// NewStripeGateway creates a Stripe-backed billing gateway.
func NewStripeGateway(config StripeConfig) (*StripeGateway, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	stripe.Key = config.APIKey

	return &StripeGateway{config: config}, nil
}

// CreatePlan creates a Stripe recurring plan for a box.
func (g *StripeGateway) CreatePlan(ctx context.Context, params CreatePlanParams) (*Plan, error) {
	defer observe("plan.create", time.Now())

	currency := params.Currency
	if currency == "" {
		currency = string(stripe.CurrencyUSD)
	}

	p, err := plan.New(&stripe.PlanParams{
		Params:   stripe.Params{Context: ctx},
		Amount:   stripe.Int64(int64(params.AmountCents)),
		Currency: stripe.String(currency),
		Interval: stripe.String(string(params.Interval)),
		Product: &stripe.PlanProductParams{
			Name: stripe.String(params.Name),
		},
	})
	if err != nil {
		return nil, wrapStripeErr(err)
	}

	return &Plan{
		ID:          p.ID,
		Name:        params.Name,
		AmountCents: params.AmountCents,
		Interval:    params.Interval,
		CreatedAt:   time.Unix(p.Created, 0),
	}, nil
}

// CreateCustomer creates a Stripe customer with an initial payment source.
func (g *StripeGateway) CreateCustomer(ctx context.Context, params CreateCustomerParams) (*Customer, error) {
	defer observe("customer.create", time.Now())

	c, err := customer.New(customerParams(ctx, params))
	if err != nil {
		return nil, wrapStripeErr(err)
	}

	return &Customer{
		ID:        c.ID,
		Email:     c.Email,
		CreatedAt: time.Unix(c.Created, 0),
	}, nil
}

// AssociatePaymentSource attaches an additional source to a customer.
func (g *StripeGateway) AssociatePaymentSource(ctx context.Context, token, customerID string) error {
	defer observe("source.attach", time.Now())

	if _, err := paymentsource.New(paymentSourceParams(ctx, token, customerID)); err != nil {
		return mapResourceMissing(err, ErrCustomerNotFound)
	}
	return nil
}

// DeletePaymentSource detaches a source from a customer.
func (g *StripeGateway) DeletePaymentSource(ctx context.Context, sourceID, customerID string) error {
	defer observe("source.detach", time.Now())

	_, err := paymentsource.Del(sourceID, &stripe.PaymentSourceParams{
		Params:   stripe.Params{Context: ctx},
		Customer: stripe.String(customerID),
	})
	if err != nil {
		return mapResourceMissing(err, ErrCustomerNotFound)
	}
	return nil
}

// CreateSubscription subscribes a customer to a plan. Metadata lands on
// the subscription and is copied by Stripe onto invoice line items.
func (g *StripeGateway) CreateSubscription(ctx context.Context, params CreateSubscriptionParams) (*Subscription, error) {
	defer observe("subscription.create", time.Now())

	sp := &stripe.SubscriptionParams{
		Params:   stripe.Params{Context: ctx},
		Customer: stripe.String(params.CustomerID),
		Items: []*stripe.SubscriptionItemsParams{
			{Plan: stripe.String(params.PlanID)},
		},
	}
	if params.OneTime {
		sp.CancelAtPeriodEnd = stripe.Bool(true)
	}
	for k, v := range params.Metadata {
		sp.AddMetadata(k, v)
	}

	s, err := subscription.New(sp)
	if err != nil {
		return nil, wrapStripeErr(err)
	}

	return &Subscription{
		ID:         s.ID,
		CustomerID: params.CustomerID,
		PlanID:     params.PlanID,
		Status:     string(s.Status),
		CreatedAt:  time.Unix(s.Created, 0),
	}, nil
}

// AttachInvoiceMetadata writes the local order id onto a Stripe invoice.
func (g *StripeGateway) AttachInvoiceMetadata(ctx context.Context, invoiceID, orderID string) error {
	defer observe("invoice.update", time.Now())

	ip := &stripe.InvoiceParams{
		Params: stripe.Params{Context: ctx},
	}
	ip.AddMetadata("order_id", orderID)

	if _, err := invoice.Update(invoiceID, ip); err != nil {
		return mapResourceMissing(err, ErrInvoiceNotFound)
	}
	return nil
}

// VerifyWebhookSignature verifies a Stripe webhook signature.
func (g *StripeGateway) VerifyWebhookSignature(payload []byte, signature string, secret string) error {
	if _, err := webhook.ConstructEvent(payload, signature, secret); err != nil {
		return ErrInvalidWebhookSignature
	}
	return nil
}

// customerParams builds the Stripe customer creation params. The
// source token, when present, becomes the customer's default source.
func customerParams(ctx context.Context, params CreateCustomerParams) *stripe.CustomerParams {
	cp := &stripe.CustomerParams{
		Params: stripe.Params{Context: ctx},
		Email:  stripe.String(params.Email),
	}
	if params.SourceToken != "" {
		cp.Source = stripe.String(params.SourceToken)
	}
	for k, v := range params.Metadata {
		cp.AddMetadata(k, v)
	}
	return cp
}

// paymentSourceParams builds the params for attaching a tokenized
// source to an existing customer.
func paymentSourceParams(ctx context.Context, token, customerID string) *stripe.PaymentSourceParams {
	return &stripe.PaymentSourceParams{
		Params:   stripe.Params{Context: ctx},
		Customer: stripe.String(customerID),
		Source:   &stripe.PaymentSourceSourceParams{Token: stripe.String(token)},
	}
}

// mapResourceMissing returns notFound when the Stripe error says the
// requested resource does not exist; anything else is wrapped.
func mapResourceMissing(err error, notFound error) error {
	var sErr *stripe.Error
	if errors.As(err, &sErr) && sErr.Code == stripe.ErrorCodeResourceMissing {
		return notFound
	}
	return wrapStripeErr(err)
}

// wrapStripeErr converts a Stripe SDK error into a StripeError.
func wrapStripeErr(err error) error {
	if err == nil {
		return nil
	}

	var sErr *stripe.Error
	if errors.As(err, &sErr) {
		return &StripeError{
			Message:       sErr.Msg,
			Code:          string(sErr.Code),
			RequestID:     sErr.RequestID,
			OriginalError: err,
		}
	}

	return &StripeError{
		Message:       err.Error(),
		OriginalError: err,
	}
}

// observe records Stripe API latency when metrics are initialized.
func observe(operation string, start time.Time) {
	if telemetry.Business != nil {
		telemetry.Business.StripeAPILatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
}
