package api

import (
	"log/slog"
	"net/http"

	"github.com/subberhq/subber/internal/domain"
	"github.com/subberhq/subber/internal/handler"
	"github.com/subberhq/subber/internal/middleware"
	"github.com/subberhq/subber/internal/service"
)

// BillingHandler serves the payment-source endpoints.
type BillingHandler struct {
	service *service.AccountService
	logger  *slog.Logger
}

// NewBillingHandler creates a new billing handler
func NewBillingHandler(svc *service.AccountService, logger *slog.Logger) *BillingHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &BillingHandler{
		service: svc,
		logger:  logger,
	}
}

// AddPaymentSource handles POST /billing/sources.
//
// Query parameters:
//   - type: "customer" registers a card token against the customer's
//     billing account, creating the account on first use. "payment"
//     (bank accounts, separate payment methods) is not supported yet.
//   - source: the gateway card token (tok_...).
//
// Responds 201 with the customer when a billing account was created,
// 204 when the source was associated with an existing account.
func (h *BillingHandler) AddPaymentSource(w http.ResponseWriter, r *http.Request) {
	const op = "billing.source.add"

	identity := middleware.GetIdentityFromContext(r.Context())
	if identity == nil || identity.Customer == nil {
		handler.UnauthorizedResponse(w, r)
		return
	}

	sourceType := r.URL.Query().Get("type")
	token := r.URL.Query().Get("source")

	switch sourceType {
	case "customer":
		if token == "" {
			handler.ErrorResponse(w, r, domain.Invalid(op, "source token is required"))
			return
		}

		created, err := h.service.RegisterPaymentSource(r.Context(), identity.Customer, token)
		if err != nil {
			handler.ErrorResponse(w, r, err)
			return
		}

		if created {
			respondJSON(w, http.StatusCreated, identity.Customer)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	case "payment":
		handler.ErrorResponse(w, r, domain.Errorf(domain.ENOTIMPL, op, "payment sources of type payment are not supported"))

	default:
		handler.ErrorResponse(w, r, domain.Invalid(op, "type must be customer or payment"))
	}
}

// RemovePaymentSource handles DELETE /billing/sources.
//
// Query parameters:
//   - type: "payment" detaches a card source from the customer's
//     billing account. Deleting the billing account itself ("customer")
//     is not supported.
//   - id: the gateway source id (card_...).
func (h *BillingHandler) RemovePaymentSource(w http.ResponseWriter, r *http.Request) {
	const op = "billing.source.remove"

	identity := middleware.GetIdentityFromContext(r.Context())
	if identity == nil || identity.Customer == nil {
		handler.UnauthorizedResponse(w, r)
		return
	}

	sourceType := r.URL.Query().Get("type")
	sourceID := r.URL.Query().Get("id")

	switch sourceType {
	case "payment":
		if sourceID == "" {
			handler.ErrorResponse(w, r, domain.Invalid(op, "source id is required"))
			return
		}

		if err := h.service.RemovePaymentSource(r.Context(), *identity.Customer, sourceID); err != nil {
			handler.ErrorResponse(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	case "customer":
		handler.ErrorResponse(w, r, domain.Errorf(domain.ENOTIMPL, op, "removing a billing account is not supported"))

	default:
		handler.ErrorResponse(w, r, domain.Invalid(op, "type must be customer or payment"))
	}
}
