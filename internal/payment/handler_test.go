package payment

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hollandm/idunn/internal/checkout"
	"github.com/hollandm/idunn/internal/commerce"
	"github.com/hollandm/idunn/internal/domain"
	"github.com/hollandm/idunn/internal/events"
	"github.com/hollandm/idunn/internal/order"
	"github.com/hollandm/idunn/internal/pricing"
)

type fixture struct {
	client   *commerce.MockClient
	gateway  *MockGateway
	recorder *events.RecordingPublisher
	handler  *Handler
	shopper  *domain.Session
	checkout *checkout.Session
	totals   domain.PricingSnapshot

	// guard plays the role of the HTTP layer's per-shopper lock.
	guard sync.Mutex
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	client := commerce.NewMockClient()
	gateway := NewMockGateway()
	recorder := &events.RecordingPublisher{}
	materializer := order.NewMaterializer(client, recorder, nil)

	shopper := domain.NewSession(domain.GuestIdentity("sess_test"))
	shopper.Cart.Lines = []domain.CartLine{
		{ProductID: "prod_1", CartLineID: "line_1", ProductName: "Wool Sweater", UnitPriceCents: 5000, Quantity: 1},
	}

	co, err := checkout.NewSession(shopper.Cart)
	require.NoError(t, err)
	co.SetShippingInfo(domain.ShippingInfo{
		FullName:   "Astrid Berg",
		Email:      "astrid@example.com",
		Address:    "12 Fjord Lane",
		City:       "Bergen",
		Region:     "Vestland",
		PostalCode: "5003",
	})
	require.NoError(t, co.Advance())
	require.NoError(t, co.SelectDeliveryMethod("standard"))
	require.NoError(t, co.Advance())

	totals := pricing.ComputeTotals(shopper.Cart.Lines, nil, false, co.ShippingCostCents(), 0.08)

	return &fixture{
		client:   client,
		gateway:  gateway,
		recorder: recorder,
		handler:  NewHandler(gateway, materializer, recorder, "usd", nil),
		shopper:  shopper,
		checkout: co,
		totals:   totals,
	}
}

func (f *fixture) start(t *testing.T) *Session {
	t.Helper()
	sess, err := f.handler.Start(context.Background(), f.shopper, f.checkout, f.totals, &f.guard)
	require.NoError(t, err)
	return sess
}

func TestStart(t *testing.T) {
	t.Run("opens gateway session for exactly the computed total", func(t *testing.T) {
		f := newFixture(t)

		sess := f.start(t)
		assert.Equal(t, StateAwaitingGateway, sess.State())
		assert.NotEmpty(t, sess.Reference())
		assert.NotEmpty(t, sess.ClientSecret())
		assert.True(t, f.checkout.Submitting())

		require.Len(t, f.gateway.Opened, 1)
		assert.Equal(t, f.totals.TotalCents, f.gateway.Opened[0].AmountCents)
		assert.Equal(t, "usd", f.gateway.Opened[0].Currency)
	})

	t.Run("empty cart cannot start a payment", func(t *testing.T) {
		f := newFixture(t)
		f.shopper.Cart.Lines = nil

		_, err := f.handler.Start(context.Background(), f.shopper, f.checkout, f.totals, &f.guard)
		assert.ErrorIs(t, err, domain.ErrCartEmpty)
		assert.Empty(t, f.gateway.Opened)
	})

	t.Run("second concurrent payment is rejected", func(t *testing.T) {
		f := newFixture(t)
		f.start(t)

		_, err := f.handler.Start(context.Background(), f.shopper, f.checkout, f.totals, &f.guard)
		assert.ErrorIs(t, err, ErrPaymentInFlight)
		assert.Len(t, f.gateway.Opened, 1)
	})

	t.Run("re-validates shipping before opening a session", func(t *testing.T) {
		f := newFixture(t)
		info := f.checkout.ShippingInfo
		info.Email = ""
		f.checkout.SetShippingInfo(info)

		_, err := f.handler.Start(context.Background(), f.shopper, f.checkout, f.totals, &f.guard)
		assert.True(t, domain.IsValidationError(err))
		assert.False(t, f.checkout.Submitting())
	})

	t.Run("gateway failure leaves the checkout resubmittable", func(t *testing.T) {
		f := newFixture(t)
		f.gateway.OpenSessionFunc = func(ctx context.Context, params OpenSessionParams) (*GatewaySession, error) {
			return nil, errors.New("gateway down")
		}

		_, err := f.handler.Start(context.Background(), f.shopper, f.checkout, f.totals, &f.guard)
		require.Error(t, err)
		assert.False(t, f.checkout.Submitting())
	})
}

func TestHandleCallbackSuccess(t *testing.T) {
	f := newFixture(t)
	sess := f.start(t)

	err := f.handler.HandleCallback(context.Background(), sess.Reference(), CallbackResult{
		Status:        StatusSuccessful,
		TransactionID: "txn_1",
	})
	require.NoError(t, err)

	assert.Equal(t, StateDone, sess.State())
	require.NotNil(t, sess.Order())
	assert.Equal(t, "txn_1", sess.Order().PaymentReference)
	assert.True(t, f.checkout.Confirmed())
	assert.False(t, f.checkout.Submitting())
	assert.True(t, f.shopper.Cart.IsEmpty())
	assert.Len(t, f.client.Orders, 1)
	assert.Len(t, f.recorder.OrdersCreated, 1)
}

func TestHandleCallbackFailure(t *testing.T) {
	// Scenario: gateway reports a non-success status.
	f := newFixture(t)
	sess := f.start(t)

	err := f.handler.HandleCallback(context.Background(), sess.Reference(), CallbackResult{
		Status: "card_declined",
	})
	require.Error(t, err)
	assert.Equal(t, domain.EPAYMENT, domain.ErrorCode(err))

	assert.Equal(t, StateFailed, sess.State())
	assert.Equal(t, "card_declined", sess.GatewayStatus())
	assert.False(t, f.checkout.Submitting())
	assert.Empty(t, f.client.Orders)
	assert.False(t, f.shopper.Cart.IsEmpty())
}

func TestHandleCallbackIdempotent(t *testing.T) {
	// Scenario: the same success callback fires twice for one session.
	f := newFixture(t)
	sess := f.start(t)

	result := CallbackResult{Status: StatusSuccessful, TransactionID: "txn_1"}
	require.NoError(t, f.handler.HandleCallback(context.Background(), sess.Reference(), result))
	require.NoError(t, f.handler.HandleCallback(context.Background(), sess.Reference(), result))

	assert.Len(t, f.client.Orders, 1)
	assert.Equal(t, StateDone, sess.State())
}

func TestHandleCallbackUnknownReference(t *testing.T) {
	f := newFixture(t)

	err := f.handler.HandleCallback(context.Background(), "pi_unknown", CallbackResult{Status: StatusSuccessful})
	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))
}

func TestHandleCallbackMaterializationFailure(t *testing.T) {
	f := newFixture(t)
	f.client.CreateOrderFunc = func(ctx context.Context, identity domain.Identity, payload commerce.OrderPayload) (*commerce.OrderResult, error) {
		return nil, domain.Unavailable(errors.New("conn refused"), "commerce.CreateGuestOrder", "backend down")
	}
	sess := f.start(t)

	err := f.handler.HandleCallback(context.Background(), sess.Reference(), CallbackResult{
		Status:        StatusSuccessful,
		TransactionID: "txn_1",
	})
	require.Error(t, err)
	assert.Equal(t, domain.ERECONCILE, domain.ErrorCode(err))

	// The condition is fatal for this session: it parks in Materializing,
	// the reconciliation event fires, and nothing replays into it.
	assert.Equal(t, StateMaterializing, sess.State())
	require.Len(t, f.recorder.Reconciliations, 1)
	assert.Equal(t, sess.Reference(), f.recorder.Reconciliations[0].PaymentReference)

	require.NoError(t, f.handler.HandleCallback(context.Background(), sess.Reference(), CallbackResult{
		Status:        StatusSuccessful,
		TransactionID: "txn_1",
	}))
	assert.Empty(t, f.client.Orders)
	assert.Len(t, f.recorder.Reconciliations, 1)
}

func TestHandleSessionClosed(t *testing.T) {
	t.Run("abandonment cancels silently", func(t *testing.T) {
		f := newFixture(t)
		sess := f.start(t)

		f.handler.HandleSessionClosed(sess.Reference())

		assert.Equal(t, StateCancelled, sess.State())
		assert.False(t, f.checkout.Submitting())
		assert.Empty(t, f.client.Orders)
	})

	t.Run("closing after settlement is a no-op", func(t *testing.T) {
		f := newFixture(t)
		sess := f.start(t)

		require.NoError(t, f.handler.HandleCallback(context.Background(), sess.Reference(), CallbackResult{
			Status:        StatusSuccessful,
			TransactionID: "txn_1",
		}))
		f.handler.HandleSessionClosed(sess.Reference())

		assert.Equal(t, StateDone, sess.State())
	})

	t.Run("unknown reference is ignored", func(t *testing.T) {
		f := newFixture(t)
		f.handler.HandleSessionClosed("pi_unknown")
	})
}

func TestCallbackSerializesWithOwnerLock(t *testing.T) {
	// Callbacks land on gateway goroutines while the HTTP layer reads the
	// same checkout and cart under its own lock. The callback must take that
	// lock before touching either.
	f := newFixture(t)
	sess := f.start(t)

	f.guard.Lock()
	done := make(chan error, 1)
	go func() {
		done <- f.handler.HandleCallback(context.Background(), sess.Reference(), CallbackResult{
			Status:        StatusSuccessful,
			TransactionID: "txn_1",
		})
	}()

	// While the owner lock is held the callback cannot have confirmed the
	// checkout or cleared the cart.
	time.Sleep(20 * time.Millisecond)
	assert.True(t, f.checkout.Submitting())
	assert.False(t, f.shopper.Cart.IsEmpty())
	f.guard.Unlock()

	for i := 0; i < 100; i++ {
		f.guard.Lock()
		_ = f.checkout.Submitting()
		_ = f.shopper.Cart.IsEmpty()
		f.guard.Unlock()
	}

	require.NoError(t, <-done)
	assert.True(t, f.checkout.Confirmed())
	assert.True(t, f.shopper.Cart.IsEmpty())
}

func TestCallbackOrdersLinesChargedAtStart(t *testing.T) {
	// The cart can drift between opening the gateway session and the
	// callback landing. The order must record the lines that were priced.
	f := newFixture(t)
	sess := f.start(t)

	f.shopper.Cart.Lines = []domain.CartLine{
		{ProductID: "prod_9", CartLineID: "line_9", UnitPriceCents: 100, Quantity: 1},
	}

	require.NoError(t, f.handler.HandleCallback(context.Background(), sess.Reference(), CallbackResult{
		Status:        StatusSuccessful,
		TransactionID: "txn_1",
	}))

	require.Len(t, f.client.Orders, 1)
	payload := f.client.Orders[0]
	require.Len(t, payload.Lines, 1)
	assert.Equal(t, "prod_1", payload.Lines[0].ProductID)
	assert.Equal(t, f.totals.TotalCents, payload.TotalCents)
}

func TestSettledSessionsEvicted(t *testing.T) {
	f := newFixture(t)
	sess := f.start(t)

	err := f.handler.HandleCallback(context.Background(), sess.Reference(), CallbackResult{
		Status: "card_declined",
	})
	require.Error(t, err)
	sess.settledAt.Store(time.Now().Add(-2 * sessionRetention).UnixNano())

	// The sweep runs when the next payment opens.
	retry := f.start(t)

	_, ok := f.handler.Lookup(sess.Reference())
	assert.False(t, ok)
	_, ok = f.handler.Lookup(retry.Reference())
	assert.True(t, ok)
}

func TestCallbackResultReference(t *testing.T) {
	assert.Equal(t, "txn", CallbackResult{TransactionID: "txn", GatewayRef: "ch"}.Reference())
	assert.Equal(t, "ch", CallbackResult{GatewayRef: "ch"}.Reference())
	assert.Equal(t, "", CallbackResult{}.Reference())
}
