package commerce

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hollandm/idunn/internal/domain"
)

// MockClient is an in-memory commerce backend for testing. It keeps one cart
// and wishlist per identity and acts authoritatively, the same way the real
// backend does: mutations change the stored cart, reads return a fresh copy.
type MockClient struct {
	// Per-method overrides. When nil, the default in-memory behavior runs.
	StartGuestSessionFunc func(ctx context.Context) (string, error)
	GetCartFunc           func(ctx context.Context, identity domain.Identity) (*domain.Cart, error)
	AddLineFunc           func(ctx context.Context, identity domain.Identity, params AddLineParams) (*domain.Cart, error)
	RemoveLineFunc        func(ctx context.Context, identity domain.Identity, cartLineID string) error
	ClearCartFunc         func(ctx context.Context, identity domain.Identity) error
	GetRewardBalanceFunc  func(ctx context.Context, identity domain.Identity) (*domain.RewardBalance, error)
	CreateOrderFunc       func(ctx context.Context, identity domain.Identity, payload OrderPayload) (*OrderResult, error)

	// Carts maps identity key to stored lines.
	Carts map[string][]domain.CartLine

	// Wishlists maps identity key to product IDs in insertion order.
	Wishlists map[string][]WishlistItem

	// Balances maps identity key to a reward balance; absent means none.
	Balances map[string]*domain.RewardBalance

	// Orders records every accepted order payload, guest and authenticated.
	Orders []OrderPayload

	// CallLog tracks method calls for test assertions.
	CallLog []string
}

// NewMockClient creates an empty in-memory commerce backend.
func NewMockClient() *MockClient {
	return &MockClient{
		Carts:     make(map[string][]domain.CartLine),
		Wishlists: make(map[string][]WishlistItem),
		Balances:  make(map[string]*domain.RewardBalance),
	}
}

func identityKey(identity domain.Identity) string {
	if identity.Kind == domain.IdentityUser {
		return "user:" + identity.UserID
	}
	return "guest:" + identity.SessionToken
}

func (m *MockClient) log(format string, args ...any) {
	m.CallLog = append(m.CallLog, fmt.Sprintf(format, args...))
}

func (m *MockClient) StartGuestSession(ctx context.Context) (string, error) {
	m.log("StartGuestSession()")
	if m.StartGuestSessionFunc != nil {
		return m.StartGuestSessionFunc(ctx)
	}
	return "sess_" + uuid.New().String(), nil
}

func (m *MockClient) GetCart(ctx context.Context, identity domain.Identity) (*domain.Cart, error) {
	m.log("GetCart(%s)", identityKey(identity))
	if m.GetCartFunc != nil {
		return m.GetCartFunc(ctx, identity)
	}

	stored := m.Carts[identityKey(identity)]
	lines := make([]domain.CartLine, len(stored))
	copy(lines, stored)
	return &domain.Cart{Identity: identity, Lines: lines, SyncedAt: time.Now()}, nil
}

func (m *MockClient) AddLine(ctx context.Context, identity domain.Identity, params AddLineParams) (*domain.Cart, error) {
	m.log("AddLine(%s, %s, %d)", identityKey(identity), params.ProductID, params.Quantity)
	if m.AddLineFunc != nil {
		return m.AddLineFunc(ctx, identity, params)
	}
	if params.Quantity <= 0 {
		return nil, domain.ErrInvalidQuantity
	}

	key := identityKey(identity)
	lines := m.Carts[key]
	found := false
	for i := range lines {
		if lines[i].ProductID == params.ProductID {
			lines[i].Quantity += params.Quantity
			found = true
			break
		}
	}
	if !found {
		lines = append(lines, domain.CartLine{
			ProductID:       params.ProductID,
			CartLineID:      "line_" + uuid.New().String(),
			Quantity:        params.Quantity,
			SelectedOptions: params.SelectedOptions,
		})
	}
	m.Carts[key] = lines
	return m.GetCart(ctx, identity)
}

func (m *MockClient) RemoveLine(ctx context.Context, identity domain.Identity, cartLineID string) error {
	m.log("RemoveLine(%s, %s)", identityKey(identity), cartLineID)
	if m.RemoveLineFunc != nil {
		return m.RemoveLineFunc(ctx, identity, cartLineID)
	}

	key := identityKey(identity)
	lines := m.Carts[key]
	for i, l := range lines {
		if l.CartLineID == cartLineID {
			m.Carts[key] = append(lines[:i:i], lines[i+1:]...)
			return nil
		}
	}
	return domain.ErrLineNotFound
}

func (m *MockClient) ClearCart(ctx context.Context, identity domain.Identity) error {
	m.log("ClearCart(%s)", identityKey(identity))
	if m.ClearCartFunc != nil {
		return m.ClearCartFunc(ctx, identity)
	}
	delete(m.Carts, identityKey(identity))
	return nil
}

func (m *MockClient) GetRewardBalance(ctx context.Context, identity domain.Identity) (*domain.RewardBalance, error) {
	m.log("GetRewardBalance(%s)", identityKey(identity))
	if m.GetRewardBalanceFunc != nil {
		return m.GetRewardBalanceFunc(ctx, identity)
	}
	return m.Balances[identityKey(identity)], nil
}

func (m *MockClient) ListWishlist(ctx context.Context, identity domain.Identity) ([]WishlistItem, error) {
	m.log("ListWishlist(%s)", identityKey(identity))
	items := make([]WishlistItem, len(m.Wishlists[identityKey(identity)]))
	copy(items, m.Wishlists[identityKey(identity)])
	return items, nil
}

func (m *MockClient) CheckWishlist(ctx context.Context, identity domain.Identity, productID string) (bool, error) {
	m.log("CheckWishlist(%s, %s)", identityKey(identity), productID)
	for _, it := range m.Wishlists[identityKey(identity)] {
		if it.ProductID == productID {
			return true, nil
		}
	}
	return false, nil
}

func (m *MockClient) AddWishlist(ctx context.Context, identity domain.Identity, productID string) error {
	m.log("AddWishlist(%s, %s)", identityKey(identity), productID)
	key := identityKey(identity)
	for _, it := range m.Wishlists[key] {
		if it.ProductID == productID {
			return nil
		}
	}
	m.Wishlists[key] = append(m.Wishlists[key], WishlistItem{ProductID: productID})
	return nil
}

func (m *MockClient) RemoveWishlist(ctx context.Context, identity domain.Identity, productID string) error {
	m.log("RemoveWishlist(%s, %s)", identityKey(identity), productID)
	key := identityKey(identity)
	items := m.Wishlists[key]
	for i, it := range items {
		if it.ProductID == productID {
			m.Wishlists[key] = append(items[:i:i], items[i+1:]...)
			return nil
		}
	}
	return domain.NotFound("commerce.RemoveWishlist", "wishlist item", productID)
}

func (m *MockClient) ClearWishlist(ctx context.Context, identity domain.Identity) error {
	m.log("ClearWishlist(%s)", identityKey(identity))
	delete(m.Wishlists, identityKey(identity))
	return nil
}

func (m *MockClient) CreateAuthenticatedOrder(ctx context.Context, identity domain.Identity, payload OrderPayload) (*OrderResult, error) {
	m.log("CreateAuthenticatedOrder(%s, %s)", identityKey(identity), payload.PaymentReference)
	return m.createOrder(ctx, identity, payload)
}

func (m *MockClient) CreateGuestOrder(ctx context.Context, identity domain.Identity, payload OrderPayload) (*OrderResult, error) {
	m.log("CreateGuestOrder(%s, %s)", identityKey(identity), payload.PaymentReference)
	return m.createOrder(ctx, identity, payload)
}

func (m *MockClient) createOrder(ctx context.Context, identity domain.Identity, payload OrderPayload) (*OrderResult, error) {
	if m.CreateOrderFunc != nil {
		return m.CreateOrderFunc(ctx, identity, payload)
	}
	m.Orders = append(m.Orders, payload)
	return &OrderResult{
		OrderID:   "order_" + uuid.New().String(),
		Status:    domain.OrderStatusPaid,
		CreatedAt: time.Now().Format(time.RFC3339),
	}, nil
}
