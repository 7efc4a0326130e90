package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Business is the process-wide business metrics instance. Nil until
// InitBusinessMetrics runs; call sites guard on that so unit tests do
// not need a registry.
var Business *BusinessMetrics

// BusinessMetrics holds Prometheus metrics for business-level
// observability of the billing lifecycle.
type BusinessMetrics struct {
	// Subscriptions
	SubscriptionsCreated *prometheus.CounterVec

	// Plans
	PlansCreated prometheus.Counter

	// Orders (reconciled from invoices)
	OrdersReconciled   prometheus.Counter
	OrdersDeduplicated prometheus.Counter

	// Webhooks
	WebhookReceived  *prometheus.CounterVec
	WebhookProcessed *prometheus.CounterVec
	WebhookFailed    *prometheus.CounterVec
	WebhookLatency   *prometheus.HistogramVec

	// External API performance
	StripeAPILatency *prometheus.HistogramVec
}

// InitBusinessMetrics creates and registers all business metrics and
// installs them as the process-wide instance.
func InitBusinessMetrics(namespace string) *BusinessMetrics {
	if namespace == "" {
		namespace = "subber"
	}

	subsystem := "business"

	m := &BusinessMetrics{
		SubscriptionsCreated: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "subscriptions_created_total",
				Help:      "Total subscriptions created",
			},
			[]string{"frequency"},
		),
		PlansCreated: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "plans_created_total",
				Help:      "Total remote billing plans provisioned for boxes",
			},
		),
		OrdersReconciled: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "orders_reconciled_total",
				Help:      "Total orders created from invoice events",
			},
		),
		OrdersDeduplicated: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "orders_deduplicated_total",
				Help:      "Total duplicate invoice deliveries resolved to an existing order",
			},
		),
		WebhookReceived: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "webhooks_received_total",
				Help:      "Total webhook events received",
			},
			[]string{"event_type"},
		),
		WebhookProcessed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "webhooks_processed_total",
				Help:      "Total webhook events handled successfully",
			},
			[]string{"event_type"},
		),
		WebhookFailed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "webhooks_failed_total",
				Help:      "Total webhook events whose handler returned an error",
			},
			[]string{"event_type"},
		),
		WebhookLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "webhook_duration_seconds",
				Help:      "Webhook processing time in seconds",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"event_type"},
		),
		StripeAPILatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "stripe_api_duration_seconds",
				Help:      "Stripe API call latency in seconds",
				Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"operation"},
		),
	}

	Business = m
	return m
}
