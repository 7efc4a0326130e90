package domain

import (
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// Customer is a buyer account.
//
// StripeID is the billing gateway's customer id (cus_...). It is set the
// first time the customer registers a payment source and is required
// before any remote subscription can be created for them.
type Customer struct {
	ID       uuid.UUID   `json:"id"`
	Email    string      `json:"email"`
	StripeID pgtype.Text `json:"stripe_id"`
}

// BillingRegistered reports whether the customer has a gateway customer id.
func (c *Customer) BillingRegistered() bool {
	return c.StripeID.Valid && c.StripeID.String != ""
}

// Vendor owns boxes and fulfills the orders cut against them.
type Vendor struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
}

// ShippingAddress is a customer-owned delivery address. Every
// subscription must reference an address owned by the subscribing
// customer; requests violating that are rejected with EFORBIDDEN.
type ShippingAddress struct {
	ID         uuid.UUID `json:"id"`
	CustomerID uuid.UUID `json:"customer_id"`
	Address    string    `json:"address"`
	City       string    `json:"city"`
	Country    string    `json:"country"`
}

var (
	ErrShippingNotOwned = &Error{Code: EFORBIDDEN, Message: "Logged in user does not own shipping address"}
	ErrNoBillingAccount = &Error{Code: EINVALID, Message: "User must register a payment method before subscribing"}
)
