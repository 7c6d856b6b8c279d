package handler

import (
	"encoding/json"
	"net/http"

	"github.com/hollandm/idunn/internal/checkout"
	"github.com/hollandm/idunn/internal/domain"
	"github.com/hollandm/idunn/internal/telemetry"
)

type checkoutView struct {
	Stage          string                 `json:"stage"`
	ShippingInfo   domain.ShippingInfo    `json:"shipping_info"`
	DeliveryMethod *domain.DeliveryMethod `json:"delivery_method,omitempty"`
	Submitting     bool                   `json:"submitting"`
	Totals         domain.PricingSnapshot `json:"totals"`
}

func (s *Server) checkoutView(r *http.Request, st *shopperState) checkoutView {
	return checkoutView{
		Stage:          string(st.checkout.Stage()),
		ShippingInfo:   st.checkout.ShippingInfo,
		DeliveryMethod: st.checkout.DeliveryMethod,
		Submitting:     st.checkout.Submitting(),
		Totals:         s.snapshot(r.Context(), st),
	}
}

func (s *Server) handleDeliveryMethods(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, map[string]any{"methods": checkout.DeliveryMethods()})
}

// handleBeginCheckout starts a checkout session for the current cart.
func (s *Server) handleBeginCheckout(w http.ResponseWriter, r *http.Request) {
	st, err := s.state(r)
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	// Refresh the projection first so an emptied cart cannot start a
	// checkout on stale local state.
	if err := s.carts.LoadCart(r.Context(), st.shopper); err != nil {
		ErrorResponse(w, r, err)
		return
	}

	co, err := checkout.NewSession(st.shopper.Cart)
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}
	st.checkout = co
	st.payment = nil

	if telemetry.Business != nil {
		telemetry.Business.CheckoutStarted.Inc()
		telemetry.Business.CartValue.WithLabelValues(string(st.shopper.Identity.Kind)).
			Observe(float64(st.shopper.Cart.SubtotalCents()))
	}
	RespondJSON(w, http.StatusCreated, s.checkoutView(r, st))
}

func (s *Server) handleCheckoutStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.state(r)
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	if st.checkout == nil {
		ErrorResponse(w, r, domain.NotFound("handler.checkoutStatus", "checkout session", ""))
		return
	}

	view := s.checkoutView(r, st)
	resp := map[string]any{"checkout": view}
	if st.payment != nil {
		resp["payment_state"] = string(st.payment.State())
		if order := st.payment.Order(); order != nil {
			resp["order_id"] = order.ID
			resp["payment_reference"] = order.PaymentReference
		}
		if status := st.payment.GatewayStatus(); status != "" {
			resp["gateway_status"] = status
		}
	}
	RespondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSetShipping(w http.ResponseWriter, r *http.Request) {
	st, err := s.state(r)
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}

	var info domain.ShippingInfo
	if err := json.NewDecoder(r.Body).Decode(&info); err != nil {
		ErrorResponse(w, r, domain.Invalid("handler.setShipping", "Invalid JSON body"))
		return
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	if st.checkout == nil {
		ErrorResponse(w, r, domain.NotFound("handler.setShipping", "checkout session", ""))
		return
	}
	st.checkout.SetShippingInfo(info)
	RespondJSON(w, http.StatusOK, s.checkoutView(r, st))
}

func (s *Server) handleSetDelivery(w http.ResponseWriter, r *http.Request) {
	st, err := s.state(r)
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}

	var req struct {
		MethodID string `json:"method_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrorResponse(w, r, domain.Invalid("handler.setDelivery", "Invalid JSON body"))
		return
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	if st.checkout == nil {
		ErrorResponse(w, r, domain.NotFound("handler.setDelivery", "checkout session", ""))
		return
	}
	if err := st.checkout.SelectDeliveryMethod(req.MethodID); err != nil {
		ErrorResponse(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, s.checkoutView(r, st))
}

// handleSetRedemption toggles spending the reward balance on this checkout.
func (s *Server) handleSetRedemption(w http.ResponseWriter, r *http.Request) {
	st, err := s.state(r)
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}

	var req struct {
		Redeem bool `json:"redeem"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrorResponse(w, r, domain.Invalid("handler.setRedemption", "Invalid JSON body"))
		return
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	st.redeemRequested = req.Redeem
	RespondJSON(w, http.StatusOK, map[string]any{"totals": s.snapshot(r.Context(), st)})
}

func (s *Server) handleAdvance(w http.ResponseWriter, r *http.Request) {
	st, err := s.state(r)
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	if st.checkout == nil {
		ErrorResponse(w, r, domain.NotFound("handler.advance", "checkout session", ""))
		return
	}

	from := st.checkout.Stage()
	if err := st.checkout.Advance(); err != nil {
		ErrorResponse(w, r, err)
		return
	}
	if telemetry.Business != nil {
		telemetry.Business.CheckoutStage.WithLabelValues(string(from)).Inc()
	}
	RespondJSON(w, http.StatusOK, s.checkoutView(r, st))
}

func (s *Server) handleRetreat(w http.ResponseWriter, r *http.Request) {
	st, err := s.state(r)
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	if st.checkout == nil {
		ErrorResponse(w, r, domain.NotFound("handler.retreat", "checkout session", ""))
		return
	}
	if err := st.checkout.Retreat(); err != nil {
		ErrorResponse(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, s.checkoutView(r, st))
}

// handlePay opens a gateway session for the current totals. The charge
// amount is fixed here; later cart edits have no effect on this payment.
func (s *Server) handlePay(w http.ResponseWriter, r *http.Request) {
	st, err := s.state(r)
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	if st.checkout == nil {
		ErrorResponse(w, r, domain.NotFound("handler.pay", "checkout session", ""))
		return
	}

	totals := s.snapshot(r.Context(), st)
	pay, err := s.payments.Start(r.Context(), st.shopper, st.checkout, totals, &st.mu)
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}
	st.payment = pay

	RespondJSON(w, http.StatusCreated, map[string]any{
		"payment_reference": pay.Reference(),
		"client_secret":     pay.ClientSecret(),
		"amount_cents":      totals.TotalCents,
	})
}
