// Package commerce is the boundary to the remote commerce backend. It owns the
// single mapping from backend wire shapes into domain types; nothing outside
// this package reads raw backend fields.
package commerce

import (
	"context"

	"github.com/hollandm/idunn/internal/domain"
)

// Client defines the backend operations the engine consumes.
// Implementations can target the hosted storefront API or a mock.
type Client interface {
	// StartGuestSession requests a new anonymous session token.
	// Called once per guest before any cart operation.
	StartGuestSession(ctx context.Context) (string, error)

	// GetCart fetches the authoritative server cart for the identity.
	GetCart(ctx context.Context, identity domain.Identity) (*domain.Cart, error)

	// AddLine adds a product to the server cart and returns the updated cart.
	AddLine(ctx context.Context, identity domain.Identity, params AddLineParams) (*domain.Cart, error)

	// RemoveLine removes a persisted line by its server-assigned ID.
	RemoveLine(ctx context.Context, identity domain.Identity, cartLineID string) error

	// ClearCart empties the server cart for the identity.
	ClearCart(ctx context.Context, identity domain.Identity) error

	// GetRewardBalance fetches the loyalty balance for the identity.
	// Returns nil, nil when the identity has no balance.
	GetRewardBalance(ctx context.Context, identity domain.Identity) (*domain.RewardBalance, error)

	// ListWishlist returns the identity's wishlist items.
	ListWishlist(ctx context.Context, identity domain.Identity) ([]WishlistItem, error)

	// CheckWishlist reports whether a product is on the identity's wishlist.
	CheckWishlist(ctx context.Context, identity domain.Identity, productID string) (bool, error)

	// AddWishlist adds a product to the wishlist.
	AddWishlist(ctx context.Context, identity domain.Identity, productID string) error

	// RemoveWishlist removes a product from the wishlist.
	RemoveWishlist(ctx context.Context, identity domain.Identity, productID string) error

	// ClearWishlist empties the wishlist.
	ClearWishlist(ctx context.Context, identity domain.Identity) error

	// CreateAuthenticatedOrder persists an order on the authenticated path.
	CreateAuthenticatedOrder(ctx context.Context, identity domain.Identity, payload OrderPayload) (*OrderResult, error)

	// CreateGuestOrder persists an order on the guest/session path.
	// Payload shape is identical to the authenticated path; only the
	// transport target differs.
	CreateGuestOrder(ctx context.Context, identity domain.Identity, payload OrderPayload) (*OrderResult, error)
}

// AddLineParams contains parameters for adding a product to the cart.
type AddLineParams struct {
	ProductID string

	// Quantity must be greater than zero.
	Quantity int32

	// SelectedOptions carries size/variant selections.
	SelectedOptions map[string]string
}

// WishlistItem is one saved product on a wishlist.
type WishlistItem struct {
	ProductID   string
	ProductName string
	PriceCents  int64
}

// OrderPayload is the normalized order-creation payload. Money fields are
// explicit; the backend records what was charged, it does not recompute.
type OrderPayload struct {
	CustomerName  string `json:"customer_name"`
	CustomerEmail string `json:"customer_email"`
	CustomerPhone string `json:"customer_phone,omitempty"`

	// ShippingAddress is the concatenated single-string address.
	ShippingAddress string `json:"shipping_address"`

	SubtotalCents int64 `json:"subtotal_cents"`
	ShippingCents int64 `json:"shipping_cents"`
	TaxCents      int64 `json:"tax_cents"`
	DiscountCents int64 `json:"discount_cents"`
	TotalCents    int64 `json:"total_cents"`

	// PointsRedeemed is 0 when redemption was not requested or the
	// identity is a guest.
	PointsRedeemed int64 `json:"points_redeemed"`

	PaymentMethod    string `json:"payment_method"`
	PaymentReference string `json:"payment_reference"`

	Lines []OrderPayloadLine `json:"lines"`
}

// OrderPayloadLine is one order line with its computed total.
type OrderPayloadLine struct {
	ProductID       string            `json:"product_id"`
	ProductName     string            `json:"product_name"`
	UnitPriceCents  int64             `json:"unit_price_cents"`
	Quantity        int32             `json:"quantity"`
	LineTotalCents  int64             `json:"line_total_cents"`
	SelectedOptions map[string]string `json:"selected_options,omitempty"`
}

// OrderResult is the backend's acknowledgement of a created order.
type OrderResult struct {
	OrderID   string
	Status    domain.OrderStatus
	CreatedAt string
}
