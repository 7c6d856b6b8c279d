package domain

import "time"

// =============================================================================
// CART DOMAIN ERRORS
// =============================================================================

var (
	ErrCartNotFound    = &Error{Code: ENOTFOUND, Message: "Cart not found"}
	ErrLineNotFound    = &Error{Code: ENOTFOUND, Message: "Cart line not found"}
	ErrInvalidQuantity = &Error{Code: EINVALID, Message: "Quantity must be greater than 0"}
	ErrCartEmpty       = &Error{Code: EINVALID, Message: "Cart is empty"}
)

// IdentityKind discriminates guest sessions from authenticated users.
type IdentityKind string

const (
	IdentityGuest IdentityKind = "guest"
	IdentityUser  IdentityKind = "user"
)

// Identity scopes every cart, wishlist, rewards, and order call. The engine
// only reads the credential's presence; it never issues or refreshes it.
type Identity struct {
	Kind IdentityKind

	// SessionToken is the server-issued anonymous session token (guest only).
	SessionToken string

	// UserID identifies the authenticated user (user only).
	UserID string

	// Credential is the client-held auth token for the authenticated
	// endpoint family. Empty for guests.
	Credential string
}

// GuestIdentity builds a guest identity from a server-issued session token.
func GuestIdentity(sessionToken string) Identity {
	return Identity{Kind: IdentityGuest, SessionToken: sessionToken}
}

// UserIdentity builds an authenticated identity.
func UserIdentity(userID, credential string) Identity {
	return Identity{Kind: IdentityUser, UserID: userID, Credential: credential}
}

// Authenticated reports whether the identity carries a user credential.
func (i Identity) Authenticated() bool {
	return i.Kind == IdentityUser && i.Credential != ""
}

// CartLine is the one normalized line shape. It is populated exactly once at
// the API boundary; no code outside the commerce mapping reads raw backend
// fields with fallbacks.
type CartLine struct {
	// ProductID is unique within a cart.
	ProductID string

	// CartLineID is the server's identity for this line, required for
	// removal. Empty for lines the server has not persisted yet.
	CartLineID string

	ProductName string

	// UnitPriceCents is the base price in minor currency units.
	UnitPriceCents int64

	// DiscountPriceCents is the effective (discounted) price if the backend
	// reported one; 0 means no discount applies.
	DiscountPriceCents int64

	Quantity int32

	// SelectedOptions carries size/variant selections, e.g. {"size": "M"}.
	SelectedOptions map[string]string
}

// EffectiveUnitPriceCents returns the discounted price when present,
// otherwise the base price.
func (l CartLine) EffectiveUnitPriceCents() int64 {
	if l.DiscountPriceCents > 0 {
		return l.DiscountPriceCents
	}
	return l.UnitPriceCents
}

// LineTotalCents returns effective unit price times quantity.
func (l CartLine) LineTotalCents() int64 {
	return l.EffectiveUnitPriceCents() * int64(l.Quantity)
}

// Cart is the local projection of the authoritative server cart for one
// identity. It is replaced wholesale after every mutation that can drift.
type Cart struct {
	Identity Identity
	Lines    []CartLine

	// SyncedAt records when the projection was last refreshed from the server.
	SyncedAt time.Time
}

// IsEmpty reports whether the cart has no lines.
func (c *Cart) IsEmpty() bool {
	return c == nil || len(c.Lines) == 0
}

// SubtotalCents sums effective line totals.
func (c *Cart) SubtotalCents() int64 {
	if c == nil {
		return 0
	}
	var subtotal int64
	for _, l := range c.Lines {
		subtotal += l.LineTotalCents()
	}
	return subtotal
}

// ItemCount sums line quantities.
func (c *Cart) ItemCount() int {
	if c == nil {
		return 0
	}
	var n int
	for _, l := range c.Lines {
		n += int(l.Quantity)
	}
	return n
}

// FindLine returns the index of the line for productID, or -1.
func (c *Cart) FindLine(productID string) int {
	if c == nil {
		return -1
	}
	for i, l := range c.Lines {
		if l.ProductID == productID {
			return i
		}
	}
	return -1
}

// Session is the explicitly passed identity-plus-cart handle threaded through
// every operation. There is no process-wide cart singleton; tests and
// server-side contexts may hold several sessions concurrently.
type Session struct {
	Identity Identity
	Cart     *Cart
}

// NewSession creates a session for an identity with an empty projection.
func NewSession(identity Identity) *Session {
	return &Session{
		Identity: identity,
		Cart:     &Cart{Identity: identity},
	}
}
