package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/hollandm/idunn/internal/commerce"
	"github.com/hollandm/idunn/internal/domain"
	"github.com/hollandm/idunn/internal/telemetry"
)

// handleStartSession starts a guest session and returns its token.
func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	s.evictIdleStates(time.Now())

	shopper, err := s.carts.StartGuestSession(r.Context())
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}

	s.mu.Lock()
	s.states[shopper.Identity.SessionToken] = &shopperState{shopper: shopper, lastSeen: time.Now()}
	s.mu.Unlock()

	RespondJSON(w, http.StatusCreated, map[string]string{
		"session_token": shopper.Identity.SessionToken,
	})
}

// handleLogin switches the engine session to an authenticated identity. The
// cart reloads from the user's server cart wholesale; nothing is merged.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	st, err := s.state(r)
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}

	var req struct {
		UserID     string `json:"user_id"`
		Credential string `json:"credential"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrorResponse(w, r, domain.Invalid("handler.login", "Invalid JSON body"))
		return
	}
	if req.UserID == "" || req.Credential == "" {
		ErrorResponse(w, r, domain.Invalid("handler.login", "user_id and credential are required"))
		return
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	// An identity switch reloads the cart wholesale. With a gateway session
	// awaiting its verdict that would materialize the order against the new
	// identity's cart while charging the old totals, so login waits until
	// the payment settles.
	if st.checkout != nil && st.checkout.Submitting() {
		ErrorResponse(w, r, domain.Conflict("handler.login", "Cannot log in while a payment is in progress"))
		return
	}

	if err := s.carts.SwitchIdentity(r.Context(), st.shopper, domain.UserIdentity(req.UserID, req.Credential)); err != nil {
		ErrorResponse(w, r, err)
		return
	}
	// A fresh identity invalidates any in-progress checkout.
	st.checkout = nil
	st.payment = nil
	st.redeemRequested = false

	RespondJSON(w, http.StatusOK, s.cartView(r.Context(), st))
}

func (s *Server) handleGetCart(w http.ResponseWriter, r *http.Request) {
	st, err := s.state(r)
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	if err := s.carts.LoadCart(r.Context(), st.shopper); err != nil {
		ErrorResponse(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, s.cartView(r.Context(), st))
}

func (s *Server) handleAddLine(w http.ResponseWriter, r *http.Request) {
	st, err := s.state(r)
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}

	var req struct {
		ProductID       string            `json:"product_id"`
		Quantity        int32             `json:"quantity"`
		SelectedOptions map[string]string `json:"selected_options"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrorResponse(w, r, domain.Invalid("handler.addLine", "Invalid JSON body"))
		return
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	err = s.carts.AddLine(r.Context(), st.shopper, commerce.AddLineParams{
		ProductID:       req.ProductID,
		Quantity:        req.Quantity,
		SelectedOptions: req.SelectedOptions,
	})
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}
	if telemetry.Business != nil {
		telemetry.Business.CartUpdated.WithLabelValues("add").Inc()
	}
	RespondJSON(w, http.StatusOK, s.cartView(r.Context(), st))
}

func (s *Server) handleRemoveLine(w http.ResponseWriter, r *http.Request) {
	st, err := s.state(r)
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	if err := s.carts.RemoveLine(r.Context(), st.shopper, r.PathValue("productID")); err != nil {
		ErrorResponse(w, r, err)
		return
	}
	if telemetry.Business != nil {
		telemetry.Business.CartUpdated.WithLabelValues("remove").Inc()
	}
	RespondJSON(w, http.StatusOK, s.cartView(r.Context(), st))
}

func (s *Server) handleMoveToWishlist(w http.ResponseWriter, r *http.Request) {
	st, err := s.state(r)
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	if err := s.carts.MoveToWishlist(r.Context(), st.shopper, r.PathValue("productID")); err != nil {
		ErrorResponse(w, r, err)
		return
	}
	if telemetry.Business != nil {
		telemetry.Business.CartUpdated.WithLabelValues("move_to_wishlist").Inc()
	}
	RespondJSON(w, http.StatusOK, s.cartView(r.Context(), st))
}

func (s *Server) handleClearCart(w http.ResponseWriter, r *http.Request) {
	st, err := s.state(r)
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	if err := s.carts.Clear(r.Context(), st.shopper); err != nil {
		ErrorResponse(w, r, err)
		return
	}
	if telemetry.Business != nil {
		telemetry.Business.CartUpdated.WithLabelValues("clear").Inc()
		telemetry.Business.CartCleared.WithLabelValues("manual").Inc()
	}
	RespondJSON(w, http.StatusOK, s.cartView(r.Context(), st))
}

func (s *Server) handleListWishlist(w http.ResponseWriter, r *http.Request) {
	st, err := s.state(r)
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}

	items, err := s.wishlists.List(r.Context(), st.shopper.Identity)
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) handleAddWishlist(w http.ResponseWriter, r *http.Request) {
	st, err := s.state(r)
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}

	var req struct {
		ProductID string `json:"product_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrorResponse(w, r, domain.Invalid("handler.addWishlist", "Invalid JSON body"))
		return
	}

	if err := s.wishlists.Add(r.Context(), st.shopper.Identity, req.ProductID); err != nil {
		ErrorResponse(w, r, err)
		return
	}
	RespondJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleRemoveWishlist(w http.ResponseWriter, r *http.Request) {
	st, err := s.state(r)
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}

	if err := s.wishlists.Remove(r.Context(), st.shopper.Identity, r.PathValue("productID")); err != nil {
		ErrorResponse(w, r, err)
		return
	}
	RespondJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleClearWishlist(w http.ResponseWriter, r *http.Request) {
	st, err := s.state(r)
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}

	if err := s.wishlists.Clear(r.Context(), st.shopper.Identity); err != nil {
		ErrorResponse(w, r, err)
		return
	}
	RespondJSON(w, http.StatusNoContent, nil)
}
