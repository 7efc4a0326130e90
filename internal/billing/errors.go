package billing

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidWebhookSignature is returned when webhook signature
	// verification fails.
	ErrInvalidWebhookSignature = errors.New("billing: invalid webhook signature")

	// ErrCustomerNotFound is returned when the provider reports the
	// customer a payment-source operation targets does not exist.
	ErrCustomerNotFound = errors.New("billing: customer not found")

	// ErrInvoiceNotFound is returned when the invoice a metadata
	// write-back targets does not exist on the provider.
	ErrInvoiceNotFound = errors.New("billing: invoice not found")
)

// StripeError wraps a Stripe API error with additional context.
type StripeError struct {
	Message       string // Human-readable error message
	Code          string // Stripe error code (e.g., "resource_missing")
	RequestID     string // Stripe request ID for debugging
	OriginalError error  // Original error from the Stripe SDK
}

func (e *StripeError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("stripe: %s (code: %s)", e.Message, e.Code)
	}
	return fmt.Sprintf("stripe: %s", e.Message)
}

func (e *StripeError) Unwrap() error {
	return e.OriginalError
}

// IsTemporary returns true if the error is likely transient. The caller
// does not retry locally; this is diagnostic only.
func (e *StripeError) IsTemporary() bool {
	return e.Code == "rate_limit" || e.Code == "api_connection_error"
}
