package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/subberhq/subber/internal/domain"
	"github.com/subberhq/subber/internal/handler"
	"github.com/subberhq/subber/internal/middleware"
	"github.com/subberhq/subber/internal/service"
)

// SubscriptionHandler serves the subscription endpoints.
type SubscriptionHandler struct {
	service  *service.SubscriptionService
	validate *validator.Validate
	logger   *slog.Logger
}

// NewSubscriptionHandler creates a new subscription handler
func NewSubscriptionHandler(svc *service.SubscriptionService, logger *slog.Logger) *SubscriptionHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SubscriptionHandler{
		service:  svc,
		validate: validator.New(),
		logger:   logger,
	}
}

// createSubscriptionRequest is the POST /subscriptions payload.
// Date defaults to now, active to true, frequency to monthly.
type createSubscriptionRequest struct {
	BoxID      string `json:"box_id" validate:"required,uuid4"`
	ShippingID string `json:"shipping_id" validate:"required,uuid4"`
	Date       string `json:"date" validate:"omitempty"`
	Active     *bool  `json:"active" validate:"omitempty"`
	Frequency  string `json:"frequency" validate:"omitempty,oneof=once monthly"`
}

// Create handles POST /subscriptions.
func (h *SubscriptionHandler) Create(w http.ResponseWriter, r *http.Request) {
	const op = "subscription.create"

	identity := middleware.GetIdentityFromContext(r.Context())
	if identity == nil || identity.Customer == nil {
		handler.UnauthorizedResponse(w, r)
		return
	}

	var req createSubscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handler.ErrorResponse(w, r, domain.Invalid(op, "invalid request body"))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		handler.ValidationErrorResponse(w, r, validationFields(op, err))
		return
	}

	boxID, err := uuid.Parse(req.BoxID)
	if err != nil {
		handler.ErrorResponse(w, r, domain.ErrBoxNotFound)
		return
	}
	shippingID, err := uuid.Parse(req.ShippingID)
	if err != nil {
		handler.ErrorResponse(w, r, domain.Invalid(op, "invalid shipping id"))
		return
	}

	params := service.CreateSubscriptionParams{
		BoxID:      boxID,
		ShippingID: shippingID,
		Date:       domain.Now(),
		Active:     true,
		Frequency:  domain.FrequencyMonthly,
	}
	if req.Date != "" {
		ts, err := domain.ParseTimestamp(req.Date)
		if err != nil {
			handler.ErrorResponse(w, r, domain.Invalid(op, "date must be RFC 3339"))
			return
		}
		params.Date = ts
	}
	if req.Active != nil {
		params.Active = *req.Active
	}
	if req.Frequency != "" {
		freq, err := domain.ParseFrequency(req.Frequency)
		if err != nil {
			handler.ErrorResponse(w, r, domain.Invalid(op, "frequency must be once or monthly"))
			return
		}
		params.Frequency = freq
	}

	sub, err := h.service.CreateSubscription(r.Context(), *identity.Customer, params)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, sub)
}

// List handles GET /subscriptions. Customers see their own
// subscriptions; vendors see subscriptions against their boxes.
func (h *SubscriptionHandler) List(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentityFromContext(r.Context())
	if identity == nil {
		handler.UnauthorizedResponse(w, r)
		return
	}

	var (
		subs []domain.Subscription
		err  error
	)
	switch {
	case identity.Customer != nil:
		subs, err = h.service.ListSubscriptionsForCustomer(r.Context(), identity.Customer.ID)
	case identity.Vendor != nil:
		subs, err = h.service.ListSubscriptionsForVendor(r.Context(), identity.Vendor.ID)
	default:
		handler.ForbiddenResponse(w, r)
		return
	}
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	if subs == nil {
		subs = []domain.Subscription{}
	}
	respondJSON(w, http.StatusOK, subs)
}

// respondJSON writes v as a JSON response with the given status.
func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// validationFields converts validator errors into field-level domain errors.
func validationFields(op string, err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return domain.Invalid(op, "invalid request")
	}

	var out error
	for _, fe := range verrs {
		var msg string
		switch fe.Tag() {
		case "required":
			msg = "field is required"
		case "uuid4":
			msg = "must be a valid uuid"
		case "oneof":
			msg = "must be one of: " + fe.Param()
		default:
			msg = "invalid value"
		}
		if out == nil {
			out = domain.NewValidationError(op, fieldName(fe), msg)
		} else {
			out = domain.AddFieldError(out, fieldName(fe), msg)
		}
	}
	return out
}

// fieldName prefers the json tag name over the Go field name.
func fieldName(fe validator.FieldError) string {
	switch fe.Field() {
	case "BoxID":
		return "box_id"
	case "ShippingID":
		return "shipping_id"
	case "Date":
		return "date"
	case "Active":
		return "active"
	case "Frequency":
		return "frequency"
	default:
		return fe.Field()
	}
}
