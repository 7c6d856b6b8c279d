package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// BusinessMetrics holds Prometheus metrics for business-level observability
// of the checkout engine.
type BusinessMetrics struct {
	// Cart
	CartUpdated *prometheus.CounterVec
	CartCleared *prometheus.CounterVec
	CartValue   *prometheus.HistogramVec

	// Checkout funnel
	CheckoutStarted   prometheus.Counter
	CheckoutStage     *prometheus.CounterVec
	CheckoutCompleted prometheus.Counter

	// Payments
	PaymentAttempts  prometheus.Counter
	PaymentSucceeded prometheus.Counter
	PaymentFailed    *prometheus.CounterVec
	PaymentAbandoned prometheus.Counter

	// Orders
	OrdersCreated  *prometheus.CounterVec
	OrderValue     *prometheus.HistogramVec
	PointsRedeemed prometheus.Counter

	// Reconciliation: payment captured, no order recorded
	ReconciliationNeeded prometheus.Counter

	// Gateway callbacks
	CallbackReceived  *prometheus.CounterVec
	CallbackProcessed *prometheus.CounterVec
	CallbackLatency   *prometheus.HistogramVec
}

// NewBusinessMetrics creates and registers all business metrics.
func NewBusinessMetrics(namespace string) *BusinessMetrics {
	if namespace == "" {
		namespace = "idunn"
	}

	subsystem := "business"

	m := &BusinessMetrics{
		CartUpdated: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "cart_updated_total",
				Help:      "Total cart mutations",
			},
			[]string{"action"}, // action: add, remove, clear, move_to_wishlist
		),
		CartCleared: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "cart_cleared_total",
				Help:      "Total carts cleared",
			},
			[]string{"reason"}, // reason: purchase, manual
		),
		CartValue: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "cart_value_cents",
				Help:      "Cart value at checkout start",
				Buckets:   []float64{1000, 2500, 5000, 7500, 10000, 15000, 25000, 50000},
			},
			[]string{"identity_kind"}, // identity_kind: guest, user
		),

		CheckoutStarted: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "checkout_started_total",
				Help:      "Total checkout sessions started",
			},
		),
		CheckoutStage: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "checkout_stage_total",
				Help:      "Total completions of each checkout stage",
			},
			[]string{"stage"}, // stage: shipping, delivery, payment
		),
		CheckoutCompleted: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "checkout_completed_total",
				Help:      "Total confirmed checkouts",
			},
		),

		PaymentAttempts: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "payment_attempts_total",
				Help:      "Total payment sessions opened with the gateway",
			},
		),
		PaymentSucceeded: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "payment_succeeded_total",
				Help:      "Total successful payments",
			},
		),
		PaymentFailed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "payment_failed_total",
				Help:      "Total failed payments",
			},
			[]string{"gateway_status"},
		),
		PaymentAbandoned: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "payment_abandoned_total",
				Help:      "Total gateway sessions closed without completing",
			},
		),

		OrdersCreated: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "orders_created_total",
				Help:      "Total orders created",
			},
			[]string{"identity_kind"},
		),
		OrderValue: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "order_value_cents",
				Help:      "Order value distribution in cents",
				Buckets:   []float64{1000, 2500, 5000, 7500, 10000, 15000, 25000, 50000, 100000},
			},
			[]string{"identity_kind"},
		),
		PointsRedeemed: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "points_redeemed_total",
				Help:      "Total loyalty points redeemed across orders",
			},
		),

		ReconciliationNeeded: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "reconciliation_needed_total",
				Help:      "Payments captured without a recorded order; requires manual follow-up",
			},
		),

		CallbackReceived: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "callback_received_total",
				Help:      "Total gateway callbacks received",
			},
			[]string{"event_type"},
		),
		CallbackProcessed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "callback_processed_total",
				Help:      "Total gateway callbacks fully processed",
			},
			[]string{"event_type", "outcome"}, // outcome: done, failed, cancelled, ignored, reconcile
		),
		CallbackLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "callback_processing_seconds",
				Help:      "Gateway callback processing duration",
				Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"event_type"},
		),
	}

	return m
}

// Global instance for easy access from services and handlers.
// Nil when metrics are not initialized (tests); callers nil-check.
var Business *BusinessMetrics

// InitBusinessMetrics initializes the global business metrics instance.
func InitBusinessMetrics(namespace string) *BusinessMetrics {
	Business = NewBusinessMetrics(namespace)
	return Business
}
