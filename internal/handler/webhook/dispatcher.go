package webhook

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v82"

	"github.com/subberhq/subber/internal/billing"
	"github.com/subberhq/subber/internal/domain"
	"github.com/subberhq/subber/internal/handler"
	"github.com/subberhq/subber/internal/telemetry"
)

// EventKey identifies a webhook event by its class and detail, the two
// halves of Stripe's dotted event type. "invoice.payment_succeeded"
// splits into {"invoice", "payment_succeeded"};
// "customer.subscription.deleted" into {"customer", "subscription.deleted"}.
type EventKey struct {
	Class  string
	Detail string
}

// HandlerFunc processes one verified webhook event.
type HandlerFunc func(ctx context.Context, event stripe.Event) error

// Dispatcher verifies webhook signatures and routes events to
// registered handlers. Events with no registered handler are
// acknowledged without processing so the gateway does not retry them.
type Dispatcher struct {
	handlers map[EventKey]HandlerFunc
	gateway  billing.Gateway
	secret   string
	logger   *slog.Logger
}

// NewDispatcher creates a dispatcher with no handlers registered.
func NewDispatcher(gateway billing.Gateway, secret string, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		handlers: make(map[EventKey]HandlerFunc),
		gateway:  gateway,
		secret:   secret,
		logger:   logger,
	}
}

// On registers fn for events whose type splits into class and detail.
// Registering the same key twice replaces the earlier handler.
func (d *Dispatcher) On(class, detail string, fn HandlerFunc) {
	d.handlers[EventKey{Class: class, Detail: detail}] = fn
}

// HandleWebhook processes incoming gateway webhook events.
//
// The gateway retries on any non-2xx response, so handler failures
// return 500 to request a retry while unregistered event types return
// 200 to stop redelivery.
func (d *Dispatcher) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		handler.ErrorResponse(w, r, domain.Invalid("webhook.receive", "error reading request body"))
		return
	}

	signature := r.Header.Get("Stripe-Signature")
	if signature == "" {
		handler.ErrorResponse(w, r, domain.Unauthorized("webhook.receive", "missing signature"))
		return
	}

	if err := d.gateway.VerifyWebhookSignature(payload, signature, d.secret); err != nil {
		d.logger.Warn("webhook signature verification failed", "error", err)
		handler.ErrorResponse(w, r, domain.Unauthorized("webhook.receive", "invalid signature"))
		return
	}

	var event stripe.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		d.logger.Warn("webhook payload is not a valid event envelope", "error", err)
		handler.ErrorResponse(w, r, domain.Invalid("webhook.receive", "invalid event payload"))
		return
	}

	eventType := string(event.Type)
	key := splitEventType(eventType)

	d.logger.Info("webhook event received",
		"event_id", event.ID,
		"event_type", eventType,
	)

	if telemetry.Business != nil {
		telemetry.Business.WebhookReceived.WithLabelValues(eventType).Inc()
	}
	defer func() {
		if telemetry.Business != nil {
			telemetry.Business.WebhookLatency.WithLabelValues(eventType).Observe(time.Since(startTime).Seconds())
		}
	}()

	fn, ok := d.handlers[key]
	if !ok {
		// Acknowledge so the gateway stops redelivering
		d.logger.Info("no handler registered for event type", "event_type", eventType)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ignored"}`))
		return
	}

	if err := fn(r.Context(), event); err != nil {
		d.logger.Error("webhook handler failed",
			"event_id", event.ID,
			"event_type", eventType,
			"error", err,
		)
		if telemetry.Business != nil {
			telemetry.Business.WebhookFailed.WithLabelValues(eventType).Inc()
		}
		handler.ErrorResponse(w, r, err)
		return
	}

	if telemetry.Business != nil {
		telemetry.Business.WebhookProcessed.WithLabelValues(eventType).Inc()
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// splitEventType splits a dotted event type at the first dot.
func splitEventType(eventType string) EventKey {
	class, detail, found := strings.Cut(eventType, ".")
	if !found {
		return EventKey{Class: eventType}
	}
	return EventKey{Class: class, Detail: detail}
}
