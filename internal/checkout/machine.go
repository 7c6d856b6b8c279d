// Package checkout drives the multi-stage checkout flow. Stages advance
// forward one at a time, each gated by validation of the stage being left;
// moving backwards is free and purely local.
package checkout

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/hollandm/idunn/internal/domain"
)

// Stage is the shopper's position in the checkout flow.
type Stage string

const (
	StageShipping  Stage = "shipping"
	StageDelivery  Stage = "delivery"
	StagePayment   Stage = "payment"
	StageConfirmed Stage = "confirmed"
)

// Checkout-flow errors.
var (
	ErrAtFirstStage      = domain.Invalid("checkout.Retreat", "Already at the first stage")
	ErrSessionConfirmed  = domain.Invalid("checkout.Advance", "Checkout is already confirmed")
	ErrNoDeliveryMethod  = &domain.ValidationError{Op: "checkout.delivery", Fields: map[string]string{"delivery_method": "Select a delivery method"}}
	ErrNoPaymentMethod   = &domain.ValidationError{Op: "checkout.payment", Fields: map[string]string{"payment_method": "Select a payment method"}}
	ErrUnknownDeliveryID = domain.Invalid("checkout.SelectDeliveryMethod", "Unknown delivery method")
)

// deliveryCatalog is the flat-rate delivery menu. Costs are fixed per method;
// there is no carrier rate lookup.
var deliveryCatalog = []domain.DeliveryMethod{
	{ID: "standard", Name: "Standard Shipping", CostCents: 599, EstimatedDays: 5},
	{ID: "express", Name: "Express Shipping", CostCents: 1499, EstimatedDays: 2},
	{ID: "pickup", Name: "Store Pickup", CostCents: 0, EstimatedDays: 0},
}

// DeliveryMethods returns the selectable delivery options.
func DeliveryMethods() []domain.DeliveryMethod {
	out := make([]domain.DeliveryMethod, len(deliveryCatalog))
	copy(out, deliveryCatalog)
	return out
}

// DeliveryMethodByID looks up a catalog entry.
func DeliveryMethodByID(id string) (domain.DeliveryMethod, bool) {
	for _, m := range deliveryCatalog {
		if m.ID == id {
			return m, true
		}
	}
	return domain.DeliveryMethod{}, false
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report field names by their json tag so validation errors line up
	// with the request payload.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Session is one checkout flow for a non-empty cart. It is not safe for
// concurrent use; the caller serializes access the same way cart mutations
// are serialized.
type Session struct {
	stage Stage

	ShippingInfo   domain.ShippingInfo
	DeliveryMethod *domain.DeliveryMethod
	PaymentMethod  domain.PaymentMethod

	submitting bool
}

// NewSession starts a checkout for a cart. An empty cart cannot enter
// checkout.
func NewSession(cart *domain.Cart) (*Session, error) {
	if cart.IsEmpty() {
		return nil, domain.ErrCartEmpty
	}
	return &Session{
		stage:         StageShipping,
		PaymentMethod: domain.PaymentMethodCard,
	}, nil
}

// Stage returns the current stage.
func (s *Session) Stage() Stage {
	return s.stage
}

// Confirmed reports whether the session reached its terminal stage.
func (s *Session) Confirmed() bool {
	return s.stage == StageConfirmed
}

// SetShippingInfo records the shipping form. Validation happens on Advance,
// not here, so partial saves are allowed.
func (s *Session) SetShippingInfo(info domain.ShippingInfo) {
	s.ShippingInfo = info
}

// SelectDeliveryMethod records a catalog delivery choice.
func (s *Session) SelectDeliveryMethod(id string) error {
	method, ok := DeliveryMethodByID(id)
	if !ok {
		return ErrUnknownDeliveryID
	}
	s.DeliveryMethod = &method
	return nil
}

// SelectPaymentMethod records how the shopper intends to pay.
func (s *Session) SelectPaymentMethod(method domain.PaymentMethod) {
	s.PaymentMethod = method
}

// ShippingCostCents returns the selected delivery method's cost, zero when
// none is selected yet.
func (s *Session) ShippingCostCents() int64 {
	if s.DeliveryMethod == nil {
		return 0
	}
	return s.DeliveryMethod.CostCents
}

// Advance validates the current stage and moves one stage forward.
// The payment stage never advances here; reaching Confirmed requires a
// completed payment, recorded via Confirm.
func (s *Session) Advance() error {
	switch s.stage {
	case StageShipping:
		if err := s.validateShipping(); err != nil {
			return err
		}
		s.stage = StageDelivery
		return nil
	case StageDelivery:
		if s.DeliveryMethod == nil {
			return ErrNoDeliveryMethod
		}
		s.stage = StagePayment
		return nil
	case StagePayment:
		return domain.Invalid("checkout.Advance", "Payment stage completes through the payment flow")
	default:
		return ErrSessionConfirmed
	}
}

// Retreat moves one stage backward. Always permitted except from the first
// stage and after confirmation.
func (s *Session) Retreat() error {
	switch s.stage {
	case StageShipping:
		return ErrAtFirstStage
	case StageDelivery:
		s.stage = StageShipping
		return nil
	case StagePayment:
		s.stage = StageDelivery
		return nil
	default:
		return ErrSessionConfirmed
	}
}

// ValidateForPayment re-validates everything payment depends on, regardless
// of which stage is currently displayed. A shopper can trigger payment from
// the last stage without having advanced through a re-edited earlier one.
func (s *Session) ValidateForPayment() error {
	if s.stage == StageConfirmed {
		return ErrSessionConfirmed
	}
	if err := s.validateShipping(); err != nil {
		return err
	}
	if s.DeliveryMethod == nil {
		return ErrNoDeliveryMethod
	}
	if s.PaymentMethod == "" {
		return ErrNoPaymentMethod
	}
	return nil
}

// Confirm marks the session terminal. Called once the order exists; after
// this the session accepts no further transitions and a new session is
// required for another purchase.
func (s *Session) Confirm() {
	s.stage = StageConfirmed
	s.submitting = false
}

// SetSubmitting flips the payment-in-flight flag. While set, the caller must
// not open a second payment session.
func (s *Session) SetSubmitting(v bool) {
	s.submitting = v
}

// Submitting reports whether a payment session is in flight.
func (s *Session) Submitting() bool {
	return s.submitting
}

// validateShipping maps struct validation failures onto per-field messages.
func (s *Session) validateShipping() error {
	err := validate.Struct(s.ShippingInfo)
	if err == nil {
		return nil
	}

	invalid, ok := err.(validator.ValidationErrors)
	if !ok {
		return domain.Internal(err, "checkout.shipping", "shipping validation failed")
	}

	ve := &domain.ValidationError{Op: "checkout.shipping", Fields: make(map[string]string)}
	for _, fe := range invalid {
		switch fe.Tag() {
		case "required":
			ve.Fields[fe.Field()] = "This field is required"
		case "email":
			ve.Fields[fe.Field()] = "Must be a valid email address"
		default:
			ve.Fields[fe.Field()] = "Invalid value"
		}
	}
	return ve
}
