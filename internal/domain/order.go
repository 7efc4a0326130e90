package domain

import (
	"time"

	"github.com/google/uuid"
)

// Order records one fulfilled billing cycle. Orders are created only by
// the invoice reconciler when the gateway reports an invoice, never by
// direct client request, and are immutable once written. Exactly one
// order exists per remote invoice id.
type Order struct {
	ID              uuid.UUID `json:"id"`
	SubscriptionID  uuid.UUID `json:"subscription_id"`
	VendorID        uuid.UUID `json:"vendor_id"`
	BoxID           uuid.UUID `json:"box_id"`
	ShippingID      uuid.UUID `json:"shipping_id"`
	CustomerID      uuid.UUID `json:"customer_id"`
	StripeInvoiceID string    `json:"stripe_invoice_id"`
	CreatedAt       time.Time `json:"created_at"`
}

var (
	ErrOrderNotFound   = &Error{Code: ENOTFOUND, Message: "Order not found"}
	ErrMissingInvoice  = &Error{Code: EINVALID, Message: "Could not find invoice id on event"}
	ErrMissingLineItem = &Error{Code: EINVALID, Message: "Could not extract line item metadata from invoice"}
)
