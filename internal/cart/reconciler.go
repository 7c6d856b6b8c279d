// Package cart reconciles the local cart projection with the authoritative
// server cart. Mutations go to the server first; local state changes only on
// success, and drift-prone operations are followed by a wholesale re-fetch.
package cart

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hollandm/idunn/internal/commerce"
	"github.com/hollandm/idunn/internal/domain"
)

// Reconciler issues cart mutations against the backend and keeps the
// session's cached projection consistent with the server's answer.
type Reconciler struct {
	client commerce.Client
	logger *slog.Logger
}

// NewReconciler creates a cart reconciler.
func NewReconciler(client commerce.Client, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{client: client, logger: logger}
}

// StartGuestSession obtains a fresh anonymous session token from the backend
// and returns a session scoped to it, with an empty cart projection.
func (r *Reconciler) StartGuestSession(ctx context.Context) (*domain.Session, error) {
	token, err := r.client.StartGuestSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to start guest session: %w", err)
	}

	r.logger.Info("guest session started")
	return domain.NewSession(domain.GuestIdentity(token)), nil
}

// LoadCart fetches the authoritative server cart and replaces the session's
// projection wholesale.
func (r *Reconciler) LoadCart(ctx context.Context, sess *domain.Session) error {
	fetched, err := r.client.GetCart(ctx, sess.Identity)
	if err != nil {
		return fmt.Errorf("failed to load cart: %w", err)
	}

	sess.Cart = fetched
	return nil
}

// AddLine adds a product to the server cart. The server's returned cart
// replaces the local projection; on failure local state is untouched.
func (r *Reconciler) AddLine(ctx context.Context, sess *domain.Session, params commerce.AddLineParams) error {
	if params.Quantity <= 0 {
		return domain.ErrInvalidQuantity
	}

	updated, err := r.client.AddLine(ctx, sess.Identity, params)
	if err != nil {
		return fmt.Errorf("failed to add cart line: %w", err)
	}

	sess.Cart = updated
	r.logger.Info("cart line added",
		"product_id", params.ProductID,
		"quantity", params.Quantity,
		"item_count", updated.ItemCount(),
	)
	return nil
}

// RemoveLine removes a product's line from the cart.
//
// Lines the server never persisted carry no line ID; removing one is a
// local-only operation treated as success. Persisted lines are removed
// server-side and the projection is then re-fetched wholesale, because the
// server may enforce stock or price rules the client cannot see.
func (r *Reconciler) RemoveLine(ctx context.Context, sess *domain.Session, productID string) error {
	idx := sess.Cart.FindLine(productID)
	if idx < 0 {
		return domain.ErrLineNotFound
	}

	line := sess.Cart.Lines[idx]
	if line.CartLineID == "" {
		sess.Cart.Lines = append(sess.Cart.Lines[:idx:idx], sess.Cart.Lines[idx+1:]...)
		return nil
	}

	if err := r.client.RemoveLine(ctx, sess.Identity, line.CartLineID); err != nil {
		return fmt.Errorf("failed to remove cart line: %w", err)
	}
	if err := r.resync(ctx, sess); err != nil {
		return fmt.Errorf("failed to resync cart after removal: %w", err)
	}

	r.logger.Info("cart line removed", "product_id", productID)
	return nil
}

// Clear empties the server cart, then re-fetches to confirm.
func (r *Reconciler) Clear(ctx context.Context, sess *domain.Session) error {
	if err := r.client.ClearCart(ctx, sess.Identity); err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	if err := r.resync(ctx, sess); err != nil {
		return fmt.Errorf("failed to resync cart after clear: %w", err)
	}

	r.logger.Info("cart cleared")
	return nil
}

// MoveToWishlist saves a cart line's product to the wishlist and removes the
// line. The wishlist add happens first so a removal failure cannot lose the
// product entirely.
func (r *Reconciler) MoveToWishlist(ctx context.Context, sess *domain.Session, productID string) error {
	idx := sess.Cart.FindLine(productID)
	if idx < 0 {
		return domain.ErrLineNotFound
	}

	if err := r.client.AddWishlist(ctx, sess.Identity, productID); err != nil {
		return fmt.Errorf("failed to add product to wishlist: %w", err)
	}

	line := sess.Cart.Lines[idx]
	if line.CartLineID == "" {
		sess.Cart.Lines = append(sess.Cart.Lines[:idx:idx], sess.Cart.Lines[idx+1:]...)
		return nil
	}

	if err := r.client.RemoveLine(ctx, sess.Identity, line.CartLineID); err != nil {
		return fmt.Errorf("failed to remove cart line after wishlist move: %w", err)
	}
	if err := r.resync(ctx, sess); err != nil {
		return fmt.Errorf("failed to resync cart after wishlist move: %w", err)
	}

	r.logger.Info("cart line moved to wishlist", "product_id", productID)
	return nil
}

// SwitchIdentity rebinds the session to a new identity and reloads the cart
// from scratch. Carts are never merged across identities; the new identity's
// server cart wins. On failure the session keeps its previous identity and
// projection.
func (r *Reconciler) SwitchIdentity(ctx context.Context, sess *domain.Session, identity domain.Identity) error {
	fetched, err := r.client.GetCart(ctx, identity)
	if err != nil {
		return fmt.Errorf("failed to load cart for new identity: %w", err)
	}

	sess.Identity = identity
	sess.Cart = fetched
	r.logger.Info("identity switched",
		"kind", string(identity.Kind),
		"item_count", fetched.ItemCount(),
	)
	return nil
}

// resync replaces the local projection with a fresh server fetch.
func (r *Reconciler) resync(ctx context.Context, sess *domain.Session) error {
	fetched, err := r.client.GetCart(ctx, sess.Identity)
	if err != nil {
		// The mutation already landed server-side; a stale projection is
		// worse than none, so mark it unsynced rather than guessing.
		sess.Cart.SyncedAt = time.Time{}
		return err
	}
	sess.Cart = fetched
	return nil
}
