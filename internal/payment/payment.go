// Package payment owns the gateway boundary and the per-session payment
// state machine that turns exactly one successful callback into exactly one
// order.
package payment

import "context"

// State is a payment session's position in its lifecycle.
//
//	Idle -> AwaitingGateway -> Materializing -> Done
//	                        -> Failed
//	                        -> Cancelled
//
// Materializing is also where a session stays when the order could not be
// recorded after a captured payment; that condition is terminal here and is
// resolved manually, never by replaying callbacks.
type State string

const (
	StateIdle            State = "idle"
	StateAwaitingGateway State = "awaiting_gateway"
	StateMaterializing   State = "materializing"
	StateDone            State = "done"
	StateFailed          State = "failed"
	StateCancelled       State = "cancelled"
)

// StatusSuccessful is the one callback status that creates an order. Every
// other status string is reported back to the shopper verbatim.
const StatusSuccessful = "successful"

// CallbackResult is the gateway's terminal verdict for a payment session.
type CallbackResult struct {
	// Status is the gateway-provided status string.
	Status string

	// TransactionID is the gateway's transaction identifier, if any.
	TransactionID string

	// GatewayRef is a secondary gateway reference (charge ID etc.).
	GatewayRef string
}

// Successful reports whether the result settles the payment.
func (r CallbackResult) Successful() bool {
	return r.Status == StatusSuccessful
}

// Reference picks the best available transaction identifier, empty when the
// gateway provided none.
func (r CallbackResult) Reference() string {
	if r.TransactionID != "" {
		return r.TransactionID
	}
	return r.GatewayRef
}

// OpenSessionParams contains parameters for opening a gateway session.
type OpenSessionParams struct {
	// AmountCents is charged exactly; the gateway never recomputes totals.
	AmountCents int64

	// Currency code (ISO 4217 lowercase), e.g. "usd".
	Currency string

	CustomerName  string
	CustomerEmail string
	Description   string
}

// GatewaySession identifies an open hosted/embedded payment session.
type GatewaySession struct {
	// Reference keys callbacks back to the owning payment session.
	Reference string

	// ClientSecret is handed to the gateway widget on the client side.
	ClientSecret string
}

// WebhookEvent is one verified gateway notification.
type WebhookEvent struct {
	// Type is the gateway's event type string.
	Type string

	// Reference is the payment session the event belongs to.
	Reference string

	// Result is set for terminal verdicts (success or failure).
	Result *CallbackResult

	// SessionClosed marks the shopper closing the gateway session before
	// any verdict. Mutually exclusive with Result.
	SessionClosed bool
}

// Gateway abstracts the external payment provider.
// Implementations can use Stripe or a mock.
type Gateway interface {
	// OpenSession opens a payment session for exactly the given amount.
	OpenSession(ctx context.Context, params OpenSessionParams) (*GatewaySession, error)

	// ParseWebhook verifies a webhook's signature and maps it onto a
	// WebhookEvent. Unrecognized but valid events return an event with
	// neither Result nor SessionClosed set.
	ParseWebhook(payload []byte, signature string) (*WebhookEvent, error)
}
