package domain

import "time"

// Order-related errors.
var (
	ErrOrderNotFound           = &Error{Code: ENOTFOUND, Message: "Order not found"}
	ErrPaymentNotSucceeded     = &Error{Code: EPAYMENT, Message: "Payment has not succeeded"}
	ErrPaymentAlreadyProcessed = &Error{Code: ECONFLICT, Message: "Payment session already settled"}
)

// OrderStatus is the lifecycle state the backend reported at creation.
// Later status updates belong to the backend, not this engine.
type OrderStatus string

const (
	OrderStatusPending OrderStatus = "pending"
	OrderStatusPaid    OrderStatus = "paid"
)

// Order is a persisted backend order as seen by this engine: created exactly
// once per successful payment and immutable here afterwards.
type Order struct {
	ID        string
	CreatedAt time.Time
	Lines     []CartLine
	Totals    PricingSnapshot

	// PaymentReference is the gateway transaction identifier, or a
	// locally synthesized token when the gateway omitted one.
	PaymentReference string

	Status OrderStatus
}
