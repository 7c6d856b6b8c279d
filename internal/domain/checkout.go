package domain

// ShippingInfo is the shipping stage's form data. Validation tags gate the
// shipping -> delivery transition; every tagged field must be present before
// payment can be submitted.
type ShippingInfo struct {
	FullName   string `json:"full_name" validate:"required"`
	Email      string `json:"email" validate:"required,email"`
	Address    string `json:"address" validate:"required"`
	City       string `json:"city" validate:"required"`
	Region     string `json:"region" validate:"required"`
	PostalCode string `json:"postal_code" validate:"required"`

	// Phone is optional; some gateways use it for receipts.
	Phone string `json:"phone"`
}

// ConcatenatedAddress joins the address parts into the single shipping
// address string the order payload carries.
func (s ShippingInfo) ConcatenatedAddress() string {
	parts := []string{s.Address, s.City, s.Region, s.PostalCode}
	out := ""
	for _, p := range parts {
		if p == "" {
			continue
		}
		if out != "" {
			out += ", "
		}
		out += p
	}
	return out
}

// DeliveryMethod is one selectable delivery option with a flat cost.
type DeliveryMethod struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	CostCents     int64  `json:"cost_cents"`
	EstimatedDays int32  `json:"estimated_days"`
}

// PaymentMethod tags how the shopper intends to pay. The charge itself is
// validated by the external gateway, not here.
type PaymentMethod string

const (
	PaymentMethodCard PaymentMethod = "card"
)
