package handler

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/hollandm/idunn/internal/cart"
	"github.com/hollandm/idunn/internal/checkout"
	"github.com/hollandm/idunn/internal/domain"
	"github.com/hollandm/idunn/internal/payment"
	"github.com/hollandm/idunn/internal/pricing"
	"github.com/hollandm/idunn/internal/rewards"
	"github.com/hollandm/idunn/internal/router"
	"github.com/hollandm/idunn/internal/wishlist"
)

// SessionTokenHeader identifies the engine session on every request. The
// token is issued by POST /api/v1/sessions and keeps identifying the same
// engine session after login.
const SessionTokenHeader = "X-Session-Token"

// Server wires the engine services behind JSON endpoints. Each shopper
// session is serialized with its own mutex, mirroring the one-action-at-a-
// time UI contract.
type Server struct {
	logger    *slog.Logger
	carts     *cart.Reconciler
	rewards   *rewards.Service
	wishlists *wishlist.Service
	payments  *payment.Handler
	gateway   payment.Gateway
	taxRate   float64

	mu     sync.Mutex
	states map[string]*shopperState
}

// stateRetention is how long an untouched shopper state survives before the
// sweep in handleStartSession drops it. Evicting a state does not affect
// webhook routing; payment sessions are tracked separately by reference.
const stateRetention = 24 * time.Hour

// shopperState is everything the server tracks for one engine session.
type shopperState struct {
	mu sync.Mutex

	shopper  *domain.Session
	checkout *checkout.Session
	payment  *payment.Session

	redeemRequested bool

	// lastSeen is guarded by the server's mutex, not st.mu.
	lastSeen time.Time
}

// ServerConfig contains the server's collaborators.
type ServerConfig struct {
	Logger    *slog.Logger
	Carts     *cart.Reconciler
	Rewards   *rewards.Service
	Wishlists *wishlist.Service
	Payments  *payment.Handler
	Gateway   payment.Gateway
	TaxRate   float64
}

// NewServer creates the HTTP surface.
func NewServer(cfg ServerConfig) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		logger:    logger,
		carts:     cfg.Carts,
		rewards:   cfg.Rewards,
		wishlists: cfg.Wishlists,
		payments:  cfg.Payments,
		gateway:   cfg.Gateway,
		taxRate:   cfg.TaxRate,
		states:    make(map[string]*shopperState),
	}
}

// Routes registers all endpoints.
func (s *Server) Routes(rt *router.Router) {
	rt.Post("/api/v1/sessions", s.handleStartSession)
	rt.Post("/api/v1/login", s.handleLogin)

	rt.Get("/api/v1/cart", s.handleGetCart)
	rt.Post("/api/v1/cart/lines", s.handleAddLine)
	rt.Delete("/api/v1/cart/lines/{productID}", s.handleRemoveLine)
	rt.Post("/api/v1/cart/lines/{productID}/wishlist", s.handleMoveToWishlist)
	rt.Delete("/api/v1/cart", s.handleClearCart)

	rt.Get("/api/v1/wishlist", s.handleListWishlist)
	rt.Post("/api/v1/wishlist", s.handleAddWishlist)
	rt.Delete("/api/v1/wishlist/{productID}", s.handleRemoveWishlist)
	rt.Delete("/api/v1/wishlist", s.handleClearWishlist)

	rt.Get("/api/v1/delivery-methods", s.handleDeliveryMethods)
	rt.Post("/api/v1/checkout", s.handleBeginCheckout)
	rt.Get("/api/v1/checkout", s.handleCheckoutStatus)
	rt.Put("/api/v1/checkout/shipping", s.handleSetShipping)
	rt.Put("/api/v1/checkout/delivery", s.handleSetDelivery)
	rt.Put("/api/v1/checkout/redemption", s.handleSetRedemption)
	rt.Post("/api/v1/checkout/advance", s.handleAdvance)
	rt.Post("/api/v1/checkout/retreat", s.handleRetreat)
	rt.Post("/api/v1/checkout/pay", s.handlePay)

	rt.Post("/webhooks/payment", s.handlePaymentWebhook)
}

// state resolves the shopper state for the request's session token.
func (s *Server) state(r *http.Request) (*shopperState, error) {
	token := r.Header.Get(SessionTokenHeader)
	if token == "" {
		return nil, &domain.Error{
			Code:    domain.EUNAUTHORIZED,
			Message: "Session token required; start a session first",
			Op:      "handler.state",
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[token]
	if !ok {
		return nil, domain.NotFound("handler.state", "session", token)
	}
	st.lastSeen = time.Now()
	return st, nil
}

// evictIdleStates drops shopper states untouched for longer than the
// retention window.
func (s *Server) evictIdleStates(now time.Time) {
	cutoff := now.Add(-stateRetention)

	s.mu.Lock()
	defer s.mu.Unlock()
	for token, st := range s.states {
		if st.lastSeen.Before(cutoff) {
			delete(s.states, token)
		}
	}
}

// snapshot recomputes the pricing snapshot for the current cart, balance,
// and checkout selections. Never stored; derived on every read.
func (s *Server) snapshot(ctx context.Context, st *shopperState) domain.PricingSnapshot {
	balance := s.rewards.Balance(ctx, st.shopper.Identity)

	var shippingCents int64
	if st.checkout != nil {
		shippingCents = st.checkout.ShippingCostCents()
	}
	return pricing.ComputeTotals(st.shopper.Cart.Lines, balance, st.redeemRequested, shippingCents, s.taxRate)
}

type cartLineView struct {
	ProductID       string            `json:"product_id"`
	ProductName     string            `json:"product_name"`
	UnitPriceCents  int64             `json:"unit_price_cents"`
	Quantity        int32             `json:"quantity"`
	LineTotalCents  int64             `json:"line_total_cents"`
	SelectedOptions map[string]string `json:"selected_options,omitempty"`
}

type cartView struct {
	Lines     []cartLineView         `json:"lines"`
	ItemCount int                    `json:"item_count"`
	Totals    domain.PricingSnapshot `json:"totals"`
}

func (s *Server) cartView(ctx context.Context, st *shopperState) cartView {
	lines := make([]cartLineView, 0, len(st.shopper.Cart.Lines))
	for _, l := range st.shopper.Cart.Lines {
		lines = append(lines, cartLineView{
			ProductID:       l.ProductID,
			ProductName:     l.ProductName,
			UnitPriceCents:  l.EffectiveUnitPriceCents(),
			Quantity:        l.Quantity,
			LineTotalCents:  l.LineTotalCents(),
			SelectedOptions: l.SelectedOptions,
		})
	}
	return cartView{
		Lines:     lines,
		ItemCount: st.shopper.Cart.ItemCount(),
		Totals:    s.snapshot(ctx, st),
	}
}
