package payment

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hollandm/idunn/internal/checkout"
	"github.com/hollandm/idunn/internal/domain"
	"github.com/hollandm/idunn/internal/events"
	"github.com/hollandm/idunn/internal/order"
	"github.com/hollandm/idunn/internal/telemetry"
)

// ErrPaymentInFlight rejects opening a second gateway session while one is
// still awaiting its verdict.
var ErrPaymentInFlight = domain.Conflict("payment.Start", "A payment is already in progress")

// OrderCreator materializes an order from a settled payment.
type OrderCreator interface {
	CreateOrder(ctx context.Context, params order.CreateOrderParams) (*domain.Order, error)
}

// Session is one payment attempt, keyed by its gateway reference. Callbacks
// arrive on gateway goroutines, so every transition is mutex-guarded.
//
// The checkout session and the shopper's cart are shared with whoever opened
// the payment; guard is that owner's serialization lock. Callbacks acquire it
// before sess.mu, the same order the owner uses, so callback mutations of the
// shared state never race the owner's reads.
type Session struct {
	mu    sync.Mutex
	guard sync.Locker

	state        State
	reference    string
	clientSecret string

	shopper  *domain.Session
	checkout *checkout.Session
	shipping domain.ShippingInfo
	totals   domain.PricingSnapshot
	lines    []domain.CartLine

	order         *domain.Order
	gatewayStatus string

	// settledAt is the unix-nano time of the terminal transition, zero while
	// the session is live or parked for reconciliation. Read without sess.mu
	// by the eviction sweep.
	settledAt atomic.Int64
}

func (s *Session) lockOwner() {
	if s.guard != nil {
		s.guard.Lock()
	}
}

func (s *Session) unlockOwner() {
	if s.guard != nil {
		s.guard.Unlock()
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Reference returns the gateway session reference.
func (s *Session) Reference() string {
	return s.reference
}

// ClientSecret returns the widget secret for the open gateway session.
func (s *Session) ClientSecret() string {
	return s.clientSecret
}

// Order returns the materialized order, nil before Done.
func (s *Session) Order() *domain.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order
}

// GatewayStatus returns the status string a failed payment reported.
func (s *Session) GatewayStatus() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gatewayStatus
}

// Handler opens payment sessions and routes gateway callbacks to them.
type Handler struct {
	gateway   Gateway
	orders    OrderCreator
	publisher events.Publisher
	logger    *slog.Logger
	currency  string

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewHandler creates a payment handler.
func NewHandler(gateway Gateway, orders OrderCreator, publisher events.Publisher, currency string, logger *slog.Logger) *Handler {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if currency == "" {
		currency = "usd"
	}
	return &Handler{
		gateway:   gateway,
		orders:    orders,
		publisher: publisher,
		logger:    logger,
		currency:  currency,
		sessions:  make(map[string]*Session),
	}
}

// sessionRetention is how long a settled session stays addressable for
// late-arriving gateway events before the sweep in Start drops it. Sessions
// parked for reconciliation are never swept; they end only by manual
// resolution.
const sessionRetention = time.Hour

// Start opens a gateway session for exactly the snapshot's total. The cart
// lines are snapshotted here; they, not the live cart, become the order on
// settlement. guard is the caller's serialization lock for the checkout and
// cart, which callbacks acquire before mutating either; the caller must hold
// it across this call.
//
// Preconditions: the cart is non-empty, no payment is already in flight, and
// shipping plus delivery validate regardless of the stage currently shown.
// On success the checkout's submitting flag is set so no second session can
// be opened for the same checkout.
func (h *Handler) Start(ctx context.Context, shopper *domain.Session, co *checkout.Session, totals domain.PricingSnapshot, guard sync.Locker) (*Session, error) {
	h.evictSettled(time.Now())

	if shopper.Cart.IsEmpty() {
		return nil, domain.ErrCartEmpty
	}
	if co.Submitting() {
		return nil, ErrPaymentInFlight
	}
	if err := co.ValidateForPayment(); err != nil {
		return nil, err
	}

	gw, err := h.gateway.OpenSession(ctx, OpenSessionParams{
		AmountCents:   totals.TotalCents,
		Currency:      h.currency,
		CustomerName:  co.ShippingInfo.FullName,
		CustomerEmail: co.ShippingInfo.Email,
		Description:   fmt.Sprintf("Order of %d item(s)", shopper.Cart.ItemCount()),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open payment session: %w", err)
	}

	sess := &Session{
		guard:        guard,
		state:        StateAwaitingGateway,
		reference:    gw.Reference,
		clientSecret: gw.ClientSecret,
		shopper:      shopper,
		checkout:     co,
		shipping:     co.ShippingInfo,
		totals:       totals,
		lines:        append([]domain.CartLine(nil), shopper.Cart.Lines...),
	}

	h.mu.Lock()
	h.sessions[gw.Reference] = sess
	h.mu.Unlock()

	co.SetSubmitting(true)

	h.logger.Info("payment session opened",
		"payment_reference", gw.Reference,
		"amount_cents", totals.TotalCents,
		"currency", h.currency,
	)
	if telemetry.Business != nil {
		telemetry.Business.PaymentAttempts.Inc()
	}

	return sess, nil
}

// Lookup returns the payment session for a gateway reference.
func (h *Handler) Lookup(reference string) (*Session, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	sess, ok := h.sessions[reference]
	return sess, ok
}

// HandleCallback applies a terminal gateway verdict to the owning session.
//
// Once a session has left AwaitingGateway the callback is ignored: duplicate
// success callbacks cannot create a second order, and nothing replays into a
// session that already failed, was cancelled, or is stuck needing
// reconciliation.
func (h *Handler) HandleCallback(ctx context.Context, reference string, result CallbackResult) error {
	start := time.Now()
	sess, ok := h.Lookup(reference)
	if !ok {
		return domain.NotFound("payment.HandleCallback", "payment session", reference)
	}

	sess.lockOwner()
	defer sess.unlockOwner()
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if telemetry.Business != nil {
		defer func() {
			telemetry.Business.CallbackLatency.WithLabelValues(result.Status).Observe(time.Since(start).Seconds())
		}()
	}

	if sess.state != StateAwaitingGateway {
		h.logger.Info("callback ignored, session already settled",
			"payment_reference", reference,
			"state", string(sess.state),
			"status", result.Status,
		)
		h.countOutcome(result.Status, "ignored")
		return nil
	}

	if !result.Successful() {
		sess.state = StateFailed
		sess.settledAt.Store(time.Now().UnixNano())
		sess.gatewayStatus = result.Status
		sess.checkout.SetSubmitting(false)

		h.logger.Warn("payment failed",
			"payment_reference", reference,
			"gateway_status", result.Status,
		)
		if telemetry.Business != nil {
			telemetry.Business.PaymentFailed.WithLabelValues(result.Status).Inc()
		}
		h.countOutcome(result.Status, "failed")
		return &domain.Error{
			Code:    domain.EPAYMENT,
			Message: fmt.Sprintf("Payment was not completed (status: %s)", result.Status),
			Op:      "payment.HandleCallback",
		}
	}

	sess.state = StateMaterializing

	created, err := h.orders.CreateOrder(ctx, order.CreateOrderParams{
		Session:          sess.shopper,
		Lines:            sess.lines,
		Shipping:         sess.shipping,
		Totals:           sess.totals,
		PaymentMethod:    sess.checkout.PaymentMethod,
		PaymentReference: result.Reference(),
	})
	if err != nil {
		// Money is captured but no order exists. The session stays in
		// Materializing so later callbacks cannot retry the creation;
		// resolution is manual, driven by the reconciliation event.
		h.logger.Error("order materialization failed after captured payment",
			"payment_reference", reference,
			"total_cents", sess.totals.TotalCents,
			"error", err,
		)
		h.publisher.PublishReconciliationNeeded(events.ReconciliationNeeded{
			PaymentReference: reference,
			IdentityKind:     string(sess.shopper.Identity.Kind),
			TotalCents:       sess.totals.TotalCents,
			Reason:           err.Error(),
			OccurredAt:       time.Now(),
		})
		if telemetry.Business != nil {
			telemetry.Business.ReconciliationNeeded.Inc()
		}
		h.countOutcome(result.Status, "reconcile")
		return &domain.Error{
			Code:    domain.ERECONCILE,
			Message: "Payment was captured but the order could not be recorded. Please contact support.",
			Op:      "payment.HandleCallback",
			Err:     err,
		}
	}

	sess.order = created
	sess.state = StateDone
	sess.settledAt.Store(time.Now().UnixNano())
	sess.checkout.Confirm()

	h.logger.Info("payment settled",
		"payment_reference", reference,
		"order_id", created.ID,
	)
	if telemetry.Business != nil {
		telemetry.Business.PaymentSucceeded.Inc()
		telemetry.Business.CheckoutCompleted.Inc()
	}
	h.countOutcome(result.Status, "done")
	return nil
}

// HandleSessionClosed records the shopper abandoning the gateway session
// before any verdict. A normal outcome: the submitting flag clears and no
// error surfaces. Closing after a verdict is a no-op.
func (h *Handler) HandleSessionClosed(reference string) {
	sess, ok := h.Lookup(reference)
	if !ok {
		return
	}

	sess.lockOwner()
	defer sess.unlockOwner()
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.state != StateAwaitingGateway {
		return
	}

	sess.state = StateCancelled
	sess.settledAt.Store(time.Now().UnixNano())
	sess.checkout.SetSubmitting(false)

	h.logger.Info("payment session closed by shopper", "payment_reference", reference)
	if telemetry.Business != nil {
		telemetry.Business.PaymentAbandoned.Inc()
	}
}

// evictSettled drops sessions whose terminal transition is older than the
// retention window. Late events for an evicted reference resolve to not-found,
// which the webhook layer acknowledges without effect.
func (h *Handler) evictSettled(now time.Time) {
	cutoff := now.Add(-sessionRetention).UnixNano()

	h.mu.Lock()
	defer h.mu.Unlock()
	for ref, sess := range h.sessions {
		if ts := sess.settledAt.Load(); ts != 0 && ts < cutoff {
			delete(h.sessions, ref)
		}
	}
}

func (h *Handler) countOutcome(eventType, outcome string) {
	if telemetry.Business != nil {
		telemetry.Business.CallbackProcessed.WithLabelValues(eventType, outcome).Inc()
	}
}
