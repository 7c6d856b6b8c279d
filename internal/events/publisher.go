// Package events publishes domain events for downstream consumers. Order
// creation and reconciliation-needed conditions are announced here; the
// reconciliation subject is the prominent channel support tooling watches.
package events

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// Subjects.
const (
	SubjectOrderCreated         = "orders.created"
	SubjectReconciliationNeeded = "payments.reconciliation_needed"
)

// OrderCreated announces a successfully materialized order.
type OrderCreated struct {
	OrderID          string    `json:"order_id"`
	IdentityKind     string    `json:"identity_kind"`
	TotalCents       int64     `json:"total_cents"`
	PointsRedeemed   int64     `json:"points_redeemed"`
	PaymentReference string    `json:"payment_reference"`
	CreatedAt        time.Time `json:"created_at"`
}

// ReconciliationNeeded announces a captured payment with no recorded order.
type ReconciliationNeeded struct {
	PaymentReference string    `json:"payment_reference"`
	IdentityKind     string    `json:"identity_kind"`
	TotalCents       int64     `json:"total_cents"`
	Reason           string    `json:"reason"`
	OccurredAt       time.Time `json:"occurred_at"`
}

// Publisher emits domain events. Publishing is best-effort; failures are the
// implementation's to log, never the caller's to handle.
type Publisher interface {
	PublishOrderCreated(event OrderCreated)
	PublishReconciliationNeeded(event ReconciliationNeeded)
}

// NATSPublisher publishes JSON events over NATS.
type NATSPublisher struct {
	conn   *nats.Conn
	logger *slog.Logger
}

// NewNATSPublisher connects to the NATS server at url.
func NewNATSPublisher(url string, logger *slog.Logger) (*NATSPublisher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := nats.Connect(url,
		nats.Name("idunn-checkout-engine"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSPublisher{conn: conn, logger: logger}, nil
}

// Close drains the connection.
func (p *NATSPublisher) Close() {
	if err := p.conn.Drain(); err != nil {
		p.logger.Warn("failed to drain NATS connection", "error", err)
	}
}

func (p *NATSPublisher) PublishOrderCreated(event OrderCreated) {
	p.publish(SubjectOrderCreated, event)
}

func (p *NATSPublisher) PublishReconciliationNeeded(event ReconciliationNeeded) {
	p.publish(SubjectReconciliationNeeded, event)
}

func (p *NATSPublisher) publish(subject string, event any) {
	data, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("failed to marshal event", "subject", subject, "error", err)
		return
	}
	if err := p.conn.Publish(subject, data); err != nil {
		p.logger.Error("failed to publish event", "subject", subject, "error", err)
		return
	}
	p.logger.Debug("event published", "subject", subject)
}

// NoopPublisher discards events. Used in tests and when NATS is not
// configured.
type NoopPublisher struct{}

func (NoopPublisher) PublishOrderCreated(OrderCreated)                 {}
func (NoopPublisher) PublishReconciliationNeeded(ReconciliationNeeded) {}

// RecordingPublisher captures events in memory for test assertions.
type RecordingPublisher struct {
	OrdersCreated   []OrderCreated
	Reconciliations []ReconciliationNeeded
}

func (r *RecordingPublisher) PublishOrderCreated(event OrderCreated) {
	r.OrdersCreated = append(r.OrdersCreated, event)
}

func (r *RecordingPublisher) PublishReconciliationNeeded(event ReconciliationNeeded) {
	r.Reconciliations = append(r.Reconciliations, event)
}
