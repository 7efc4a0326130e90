package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/subberhq/subber/internal/billing"
	"github.com/subberhq/subber/internal/domain"
	"github.com/subberhq/subber/internal/events"
	"github.com/subberhq/subber/internal/middleware"
	"github.com/subberhq/subber/internal/repository"
	"github.com/subberhq/subber/internal/service"
)

// querierStub implements repository.Querier with per-method overrides,
// mirroring the service-level test double.
type querierStub struct {
	repository.Querier // panic on anything not overridden

	getBox              func(ctx context.Context, id uuid.UUID) (domain.Box, error)
	getShipping         func(ctx context.Context, id uuid.UUID) (domain.ShippingAddress, error)
	createSubscription  func(ctx context.Context, arg repository.CreateSubscriptionParams) (domain.Subscription, error)
	listForCustomer     func(ctx context.Context, customerID uuid.UUID) ([]domain.Subscription, error)
	listForVendor       func(ctx context.Context, vendorID uuid.UUID) ([]domain.Subscription, error)
	setCustomerStripeID func(ctx context.Context, arg repository.SetCustomerStripeIDParams) error
}

func (s *querierStub) GetBox(ctx context.Context, id uuid.UUID) (domain.Box, error) {
	return s.getBox(ctx, id)
}

func (s *querierStub) GetShippingAddress(ctx context.Context, id uuid.UUID) (domain.ShippingAddress, error) {
	return s.getShipping(ctx, id)
}

func (s *querierStub) CreateSubscription(ctx context.Context, arg repository.CreateSubscriptionParams) (domain.Subscription, error) {
	return s.createSubscription(ctx, arg)
}

func (s *querierStub) ListSubscriptionsForCustomer(ctx context.Context, customerID uuid.UUID) ([]domain.Subscription, error) {
	return s.listForCustomer(ctx, customerID)
}

func (s *querierStub) ListSubscriptionsForVendor(ctx context.Context, vendorID uuid.UUID) ([]domain.Subscription, error) {
	return s.listForVendor(ctx, vendorID)
}

func (s *querierStub) SetCustomerStripeID(ctx context.Context, arg repository.SetCustomerStripeIDParams) error {
	return s.setCustomerStripeID(ctx, arg)
}

func newTestSubscriptionHandler(repo repository.Querier, gateway billing.Gateway) *SubscriptionHandler {
	logger := slog.Default()
	resolver := service.NewPlanResolver(repo, gateway, logger)
	svc := service.NewSubscriptionService(repo, gateway, resolver, events.NoopPublisher{}, logger)
	return NewSubscriptionHandler(svc, logger)
}

func asCustomer(req *http.Request, customer *domain.Customer) *http.Request {
	ctx := middleware.WithIdentity(req.Context(), &middleware.Identity{Customer: customer})
	return req.WithContext(ctx)
}

func asVendor(req *http.Request, vendor *domain.Vendor) *http.Request {
	ctx := middleware.WithIdentity(req.Context(), &middleware.Identity{Vendor: vendor})
	return req.WithContext(ctx)
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return req
}

func TestSubscriptionHandler_Create_Success(t *testing.T) {
	customer := domain.Customer{
		ID:       uuid.New(),
		Email:    "drinker@example.com",
		StripeID: pgtype.Text{String: "cus_123", Valid: true},
	}
	box := domain.Box{
		ID:         uuid.New(),
		VendorID:   uuid.New(),
		Name:       "Roaster's Choice",
		PriceCents: 2400,
		PlanID:     pgtype.Text{String: "plan_123", Valid: true},
	}
	shipping := domain.ShippingAddress{ID: uuid.New(), CustomerID: customer.ID}

	repo := &querierStub{
		getBox: func(ctx context.Context, id uuid.UUID) (domain.Box, error) {
			return box, nil
		},
		getShipping: func(ctx context.Context, id uuid.UUID) (domain.ShippingAddress, error) {
			return shipping, nil
		},
		createSubscription: func(ctx context.Context, arg repository.CreateSubscriptionParams) (domain.Subscription, error) {
			return domain.Subscription{
				ID:         arg.ID,
				BoxID:      arg.BoxID,
				ShippingID: arg.ShippingID,
				CustomerID: arg.CustomerID,
				SubID:      pgtype.Text{String: arg.SubID, Valid: true},
				Date:       arg.Date,
				Active:     arg.Active,
				Frequency:  arg.Frequency,
			}, nil
		},
	}

	h := newTestSubscriptionHandler(repo, billing.NewMockGateway())

	body := `{"box_id":"` + box.ID.String() + `","shipping_id":"` + shipping.ID.String() + `"}`
	req := asCustomer(jsonRequest(http.MethodPost, "/subscriptions", body), &customer)
	rec := httptest.NewRecorder()

	h.Create(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var sub domain.Subscription
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&sub))
	assert.Equal(t, box.ID, sub.BoxID)
	assert.Equal(t, customer.ID, sub.CustomerID)
	assert.True(t, sub.Active, "active defaults to true")
	assert.Equal(t, domain.FrequencyMonthly, sub.Frequency, "frequency defaults to monthly")
	assert.True(t, sub.SubID.Valid)
}

func TestSubscriptionHandler_Create_Unauthenticated(t *testing.T) {
	h := newTestSubscriptionHandler(&querierStub{}, billing.NewMockGateway())

	req := jsonRequest(http.MethodPost, "/subscriptions", `{}`)
	rec := httptest.NewRecorder()

	h.Create(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSubscriptionHandler_Create_InvalidBody(t *testing.T) {
	customer := domain.Customer{ID: uuid.New()}
	h := newTestSubscriptionHandler(&querierStub{}, billing.NewMockGateway())

	req := asCustomer(jsonRequest(http.MethodPost, "/subscriptions", `{not json`), &customer)
	rec := httptest.NewRecorder()

	h.Create(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubscriptionHandler_Create_MissingFields(t *testing.T) {
	customer := domain.Customer{ID: uuid.New()}
	h := newTestSubscriptionHandler(&querierStub{}, billing.NewMockGateway())

	req := asCustomer(jsonRequest(http.MethodPost, "/subscriptions", `{}`), &customer)
	rec := httptest.NewRecorder()

	h.Create(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var response struct {
		Error struct {
			Fields map[string]string `json:"fields"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
	assert.Contains(t, response.Error.Fields, "box_id")
	assert.Contains(t, response.Error.Fields, "shipping_id")
}

func TestSubscriptionHandler_Create_BadFrequency(t *testing.T) {
	customer := domain.Customer{ID: uuid.New()}
	h := newTestSubscriptionHandler(&querierStub{}, billing.NewMockGateway())

	body := `{"box_id":"` + uuid.New().String() + `","shipping_id":"` + uuid.New().String() + `","frequency":"weekly"}`
	req := asCustomer(jsonRequest(http.MethodPost, "/subscriptions", body), &customer)
	rec := httptest.NewRecorder()

	h.Create(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubscriptionHandler_Create_ForeignShippingAddress(t *testing.T) {
	customer := domain.Customer{
		ID:       uuid.New(),
		StripeID: pgtype.Text{String: "cus_123", Valid: true},
	}
	shipping := domain.ShippingAddress{ID: uuid.New(), CustomerID: uuid.New()} // someone else's

	repo := &querierStub{
		getShipping: func(ctx context.Context, id uuid.UUID) (domain.ShippingAddress, error) {
			return shipping, nil
		},
	}

	h := newTestSubscriptionHandler(repo, billing.NewMockGateway())

	body := `{"box_id":"` + uuid.New().String() + `","shipping_id":"` + shipping.ID.String() + `"}`
	req := asCustomer(jsonRequest(http.MethodPost, "/subscriptions", body), &customer)
	rec := httptest.NewRecorder()

	h.Create(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestSubscriptionHandler_List_Customer(t *testing.T) {
	customer := domain.Customer{ID: uuid.New()}
	subs := []domain.Subscription{{ID: uuid.New(), CustomerID: customer.ID}}

	repo := &querierStub{
		listForCustomer: func(ctx context.Context, customerID uuid.UUID) ([]domain.Subscription, error) {
			assert.Equal(t, customer.ID, customerID)
			return subs, nil
		},
	}

	h := newTestSubscriptionHandler(repo, billing.NewMockGateway())

	req := asCustomer(jsonRequest(http.MethodGet, "/subscriptions", ""), &customer)
	rec := httptest.NewRecorder()

	h.List(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var got []domain.Subscription
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	require.Len(t, got, 1)
	assert.Equal(t, subs[0].ID, got[0].ID)
}

func TestSubscriptionHandler_List_Vendor(t *testing.T) {
	vendor := domain.Vendor{ID: uuid.New(), Name: "Good Beans"}

	repo := &querierStub{
		listForVendor: func(ctx context.Context, vendorID uuid.UUID) ([]domain.Subscription, error) {
			assert.Equal(t, vendor.ID, vendorID)
			return nil, nil
		},
	}

	h := newTestSubscriptionHandler(repo, billing.NewMockGateway())

	req := asVendor(jsonRequest(http.MethodGet, "/subscriptions", ""), &vendor)
	rec := httptest.NewRecorder()

	h.List(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String(), "empty list, not null")
}

func TestSubscriptionHandler_List_Unauthenticated(t *testing.T) {
	h := newTestSubscriptionHandler(&querierStub{}, billing.NewMockGateway())

	req := jsonRequest(http.MethodGet, "/subscriptions", "")
	rec := httptest.NewRecorder()

	h.List(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
