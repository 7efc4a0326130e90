package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MockGateway is a mock billing gateway for testing. It simulates
// successful gateway calls without touching the Stripe API.
type MockGateway struct {
	// CreatePlanFunc allows customizing plan creation behavior
	CreatePlanFunc func(ctx context.Context, params CreatePlanParams) (*Plan, error)

	// CreateCustomerFunc allows customizing customer creation behavior
	CreateCustomerFunc func(ctx context.Context, params CreateCustomerParams) (*Customer, error)

	// AssociatePaymentSourceFunc allows customizing source attachment behavior
	AssociatePaymentSourceFunc func(ctx context.Context, token, customerID string) error

	// DeletePaymentSourceFunc allows customizing source detachment behavior
	DeletePaymentSourceFunc func(ctx context.Context, sourceID, customerID string) error

	// CreateSubscriptionFunc allows customizing subscription creation behavior
	CreateSubscriptionFunc func(ctx context.Context, params CreateSubscriptionParams) (*Subscription, error)

	// AttachInvoiceMetadataFunc allows customizing metadata write-back behavior
	AttachInvoiceMetadataFunc func(ctx context.Context, invoiceID, orderID string) error

	// VerifyWebhookSignatureFunc allows customizing webhook verification behavior
	VerifyWebhookSignatureFunc func(payload []byte, signature string, secret string) error

	// Plans stores created plans for retrieval
	Plans map[string]*Plan

	// Customers stores created customers for retrieval
	Customers map[string]*Customer

	// Subscriptions stores created subscriptions for retrieval
	Subscriptions map[string]*Subscription

	// InvoiceMetadata tracks metadata written back per invoice id
	InvoiceMetadata map[string]string

	// CallLog tracks method calls for test assertions
	CallLog []string
}

// Compile-time check that MockGateway implements Gateway.
var _ Gateway = (*MockGateway)(nil)

// NewMockGateway creates a new mock billing gateway.
func NewMockGateway() *MockGateway {
	return &MockGateway{
		Plans:           make(map[string]*Plan),
		Customers:       make(map[string]*Customer),
		Subscriptions:   make(map[string]*Subscription),
		InvoiceMetadata: make(map[string]string),
		CallLog:         []string{},
	}
}

// Calls returns how many logged calls have the given prefix.
func (m *MockGateway) Calls(prefix string) int {
	n := 0
	for _, entry := range m.CallLog {
		if len(entry) >= len(prefix) && entry[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}

// CreatePlan creates a mock plan.
func (m *MockGateway) CreatePlan(ctx context.Context, params CreatePlanParams) (*Plan, error) {
	m.CallLog = append(m.CallLog, fmt.Sprintf("CreatePlan(%s, %d)", params.Name, params.AmountCents))

	if m.CreatePlanFunc != nil {
		return m.CreatePlanFunc(ctx, params)
	}

	p := &Plan{
		ID:          "plan_" + uuid.New().String(),
		Name:        params.Name,
		AmountCents: params.AmountCents,
		Interval:    params.Interval,
		CreatedAt:   time.Now(),
	}
	m.Plans[p.ID] = p
	return p, nil
}

// CreateCustomer creates a mock customer.
func (m *MockGateway) CreateCustomer(ctx context.Context, params CreateCustomerParams) (*Customer, error) {
	m.CallLog = append(m.CallLog, fmt.Sprintf("CreateCustomer(%s)", params.Email))

	if m.CreateCustomerFunc != nil {
		return m.CreateCustomerFunc(ctx, params)
	}

	c := &Customer{
		ID:        "cus_" + uuid.New().String(),
		Email:     params.Email,
		CreatedAt: time.Now(),
	}
	m.Customers[c.ID] = c
	return c, nil
}

// AssociatePaymentSource attaches a mock payment source.
func (m *MockGateway) AssociatePaymentSource(ctx context.Context, token, customerID string) error {
	m.CallLog = append(m.CallLog, fmt.Sprintf("AssociatePaymentSource(%s, %s)", token, customerID))

	if m.AssociatePaymentSourceFunc != nil {
		return m.AssociatePaymentSourceFunc(ctx, token, customerID)
	}
	return nil
}

// DeletePaymentSource detaches a mock payment source.
func (m *MockGateway) DeletePaymentSource(ctx context.Context, sourceID, customerID string) error {
	m.CallLog = append(m.CallLog, fmt.Sprintf("DeletePaymentSource(%s, %s)", sourceID, customerID))

	if m.DeletePaymentSourceFunc != nil {
		return m.DeletePaymentSourceFunc(ctx, sourceID, customerID)
	}
	return nil
}

// CreateSubscription creates a mock subscription.
func (m *MockGateway) CreateSubscription(ctx context.Context, params CreateSubscriptionParams) (*Subscription, error) {
	m.CallLog = append(m.CallLog, fmt.Sprintf("CreateSubscription(%s, %s)", params.CustomerID, params.PlanID))

	if m.CreateSubscriptionFunc != nil {
		return m.CreateSubscriptionFunc(ctx, params)
	}

	s := &Subscription{
		ID:         "sub_" + uuid.New().String(),
		CustomerID: params.CustomerID,
		PlanID:     params.PlanID,
		Status:     "active",
		CreatedAt:  time.Now(),
	}
	m.Subscriptions[s.ID] = s
	return s, nil
}

// AttachInvoiceMetadata records a mock metadata write-back.
func (m *MockGateway) AttachInvoiceMetadata(ctx context.Context, invoiceID, orderID string) error {
	m.CallLog = append(m.CallLog, fmt.Sprintf("AttachInvoiceMetadata(%s, %s)", invoiceID, orderID))

	if m.AttachInvoiceMetadataFunc != nil {
		return m.AttachInvoiceMetadataFunc(ctx, invoiceID, orderID)
	}

	m.InvoiceMetadata[invoiceID] = orderID
	return nil
}

// VerifyWebhookSignature verifies a mock webhook signature.
func (m *MockGateway) VerifyWebhookSignature(payload []byte, signature string, secret string) error {
	m.CallLog = append(m.CallLog, "VerifyWebhookSignature")

	if m.VerifyWebhookSignatureFunc != nil {
		return m.VerifyWebhookSignatureFunc(payload, signature, secret)
	}
	return nil
}
