// Package order converts a successful payment into exactly one persisted
// backend order.
package order

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hollandm/idunn/internal/commerce"
	"github.com/hollandm/idunn/internal/domain"
	"github.com/hollandm/idunn/internal/events"
	"github.com/hollandm/idunn/internal/telemetry"
)

// Materializer builds and submits order payloads.
type Materializer struct {
	client    commerce.Client
	publisher events.Publisher
	logger    *slog.Logger
}

// NewMaterializer creates an order materializer.
func NewMaterializer(client commerce.Client, publisher events.Publisher, logger *slog.Logger) *Materializer {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Materializer{client: client, publisher: publisher, logger: logger}
}

// CreateOrderParams contains everything the order payload is built from.
type CreateOrderParams struct {
	Session *domain.Session

	// Lines are the cart lines the shopper was charged for, snapshotted when
	// the payment session opened. The live cart may have drifted by the time
	// the callback lands; the order records what was priced, not what the
	// cart holds now.
	Lines []domain.CartLine

	Shipping      domain.ShippingInfo
	Totals        domain.PricingSnapshot
	PaymentMethod domain.PaymentMethod

	// PaymentReference is the gateway transaction identifier. Empty means
	// the gateway omitted one; a local fallback is synthesized so the
	// order is never lost over a missing reference.
	PaymentReference string
}

// CreateOrder persists the order on the endpoint matching the session's
// identity, then best-effort clears the server cart. The clear can fail
// without affecting the returned order; the order is already durable.
func (m *Materializer) CreateOrder(ctx context.Context, params CreateOrderParams) (*domain.Order, error) {
	sess := params.Session
	if len(params.Lines) == 0 {
		return nil, domain.ErrCartEmpty
	}

	reference := params.PaymentReference
	if reference == "" {
		reference = fallbackReference()
		m.logger.Warn("gateway omitted transaction reference, synthesized fallback",
			"payment_reference", reference,
		)
	}

	payload := m.buildPayload(sess, params, reference)

	var (
		result *commerce.OrderResult
		err    error
	)
	if sess.Identity.Authenticated() {
		result, err = m.client.CreateAuthenticatedOrder(ctx, sess.Identity, payload)
	} else {
		result, err = m.client.CreateGuestOrder(ctx, sess.Identity, payload)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	created := &domain.Order{
		ID:               result.OrderID,
		CreatedAt:        parseCreatedAt(result.CreatedAt),
		Lines:            append([]domain.CartLine(nil), params.Lines...),
		Totals:           params.Totals,
		PaymentReference: reference,
		Status:           result.Status,
	}

	m.logger.Info("order created",
		"order_id", created.ID,
		"identity_kind", string(sess.Identity.Kind),
		"total_cents", params.Totals.TotalCents,
		"payment_reference", reference,
	)

	m.clearCartAfterOrder(ctx, sess)

	m.publisher.PublishOrderCreated(events.OrderCreated{
		OrderID:          created.ID,
		IdentityKind:     string(sess.Identity.Kind),
		TotalCents:       params.Totals.TotalCents,
		PointsRedeemed:   payload.PointsRedeemed,
		PaymentReference: reference,
		CreatedAt:        created.CreatedAt,
	})
	if telemetry.Business != nil {
		kind := string(sess.Identity.Kind)
		telemetry.Business.OrdersCreated.WithLabelValues(kind).Inc()
		telemetry.Business.OrderValue.WithLabelValues(kind).Observe(float64(params.Totals.TotalCents))
		if payload.PointsRedeemed > 0 {
			telemetry.Business.PointsRedeemed.Add(float64(payload.PointsRedeemed))
		}
	}

	return created, nil
}

// buildPayload normalizes cart, shipping, and totals into the wire payload.
// Both endpoint families accept the same shape.
func (m *Materializer) buildPayload(sess *domain.Session, params CreateOrderParams, reference string) commerce.OrderPayload {
	points := params.Totals.PointsRedeemed
	if !sess.Identity.Authenticated() {
		points = 0
	}

	lines := make([]commerce.OrderPayloadLine, 0, len(params.Lines))
	for _, l := range params.Lines {
		lines = append(lines, commerce.OrderPayloadLine{
			ProductID:       l.ProductID,
			ProductName:     l.ProductName,
			UnitPriceCents:  l.EffectiveUnitPriceCents(),
			Quantity:        l.Quantity,
			LineTotalCents:  l.LineTotalCents(),
			SelectedOptions: l.SelectedOptions,
		})
	}

	return commerce.OrderPayload{
		CustomerName:     params.Shipping.FullName,
		CustomerEmail:    params.Shipping.Email,
		CustomerPhone:    params.Shipping.Phone,
		ShippingAddress:  params.Shipping.ConcatenatedAddress(),
		SubtotalCents:    params.Totals.SubtotalCents,
		ShippingCents:    params.Totals.ShippingCents,
		TaxCents:         params.Totals.TaxCents,
		DiscountCents:    params.Totals.RedemptionDiscountCents,
		TotalCents:       params.Totals.TotalCents,
		PointsRedeemed:   points,
		PaymentMethod:    string(params.PaymentMethod),
		PaymentReference: reference,
		Lines:            lines,
	}
}

// clearCartAfterOrder empties the server cart and the local projection.
// Best-effort: the order already exists server-side, so a failed clear is
// logged and swallowed, never surfaced.
func (m *Materializer) clearCartAfterOrder(ctx context.Context, sess *domain.Session) {
	if err := m.client.ClearCart(ctx, sess.Identity); err != nil {
		m.logger.Warn("post-order cart clear failed",
			"identity_kind", string(sess.Identity.Kind),
			"error", err,
		)
	}
	sess.Cart = &domain.Cart{Identity: sess.Identity, SyncedAt: time.Now()}

	if telemetry.Business != nil {
		telemetry.Business.CartCleared.WithLabelValues("purchase").Inc()
	}
}

// fallbackReference synthesizes a locally-unique payment reference.
func fallbackReference() string {
	return fmt.Sprintf("local-%d-%s", time.Now().UnixNano(), uuid.New().String()[:8])
}

func parseCreatedAt(raw string) time.Time {
	if raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			return t
		}
	}
	return time.Now()
}
