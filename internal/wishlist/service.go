// Package wishlist wraps the backend wishlist operations with the same
// identity-scoping rule the cart uses.
package wishlist

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hollandm/idunn/internal/commerce"
	"github.com/hollandm/idunn/internal/domain"
)

// Service exposes wishlist reads and mutations for a session's identity.
type Service struct {
	client commerce.Client
	logger *slog.Logger
}

// NewService creates a wishlist service.
func NewService(client commerce.Client, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{client: client, logger: logger}
}

// List returns the identity's saved items.
func (s *Service) List(ctx context.Context, identity domain.Identity) ([]commerce.WishlistItem, error) {
	items, err := s.client.ListWishlist(ctx, identity)
	if err != nil {
		return nil, fmt.Errorf("failed to list wishlist: %w", err)
	}
	return items, nil
}

// Contains reports whether a product is saved.
func (s *Service) Contains(ctx context.Context, identity domain.Identity, productID string) (bool, error) {
	saved, err := s.client.CheckWishlist(ctx, identity, productID)
	if err != nil {
		return false, fmt.Errorf("failed to check wishlist: %w", err)
	}
	return saved, nil
}

// Add saves a product.
func (s *Service) Add(ctx context.Context, identity domain.Identity, productID string) error {
	if productID == "" {
		return domain.Invalid("wishlist.Add", "product ID is required")
	}
	if err := s.client.AddWishlist(ctx, identity, productID); err != nil {
		return fmt.Errorf("failed to add to wishlist: %w", err)
	}
	s.logger.Info("product added to wishlist", "product_id", productID)
	return nil
}

// Remove deletes a saved product.
func (s *Service) Remove(ctx context.Context, identity domain.Identity, productID string) error {
	if err := s.client.RemoveWishlist(ctx, identity, productID); err != nil {
		return fmt.Errorf("failed to remove from wishlist: %w", err)
	}
	return nil
}

// Clear deletes all saved products.
func (s *Service) Clear(ctx context.Context, identity domain.Identity) error {
	if err := s.client.ClearWishlist(ctx, identity); err != nil {
		return fmt.Errorf("failed to clear wishlist: %w", err)
	}
	s.logger.Info("wishlist cleared")
	return nil
}
