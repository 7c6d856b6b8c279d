package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/paymentintent"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/hollandm/idunn/internal/domain"
)

// StripeGateway implements Gateway using Stripe PaymentIntents.
type StripeGateway struct {
	webhookSecret string
	logger        *slog.Logger
}

// StripeConfig contains configuration for the Stripe gateway.
type StripeConfig struct {
	APIKey        string
	WebhookSecret string
	Logger        *slog.Logger // Optional: defaults to slog.Default()
}

// NewStripeGateway creates a Stripe payment gateway.
func NewStripeGateway(cfg StripeConfig) (*StripeGateway, error) {
	if cfg.APIKey == "" {
		return nil, domain.Invalid("payment.NewStripeGateway", "Stripe API key is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	stripe.Key = cfg.APIKey

	return &StripeGateway{
		webhookSecret: cfg.WebhookSecret,
		logger:        logger,
	}, nil
}

// OpenSession creates a PaymentIntent for exactly the requested amount.
func (g *StripeGateway) OpenSession(ctx context.Context, params OpenSessionParams) (*GatewaySession, error) {
	if params.AmountCents <= 0 {
		return nil, domain.Invalid("payment.OpenSession", "amount must be positive")
	}

	piParams := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(params.AmountCents),
		Currency: stripe.String(params.Currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	piParams.Context = ctx
	if params.CustomerEmail != "" {
		piParams.ReceiptEmail = stripe.String(params.CustomerEmail)
	}
	if params.Description != "" {
		piParams.Description = stripe.String(params.Description)
	}

	pi, err := paymentintent.New(piParams)
	if err != nil {
		g.logger.Error("failed to create payment intent", "error", err)
		return nil, fmt.Errorf("failed to create payment intent: %w", err)
	}

	g.logger.Info("payment intent created",
		"payment_reference", pi.ID,
		"amount_cents", params.AmountCents,
	)
	return &GatewaySession{
		Reference:    pi.ID,
		ClientSecret: pi.ClientSecret,
	}, nil
}

// ParseWebhook verifies the Stripe signature and maps payment intent events
// onto the engine's callback shapes.
func (g *StripeGateway) ParseWebhook(payload []byte, signature string) (*WebhookEvent, error) {
	event, err := webhook.ConstructEvent(payload, signature, g.webhookSecret)
	if err != nil {
		return nil, domain.WrapError(err, domain.EUNAUTHORIZED, "payment.ParseWebhook", "webhook signature verification failed")
	}

	out := &WebhookEvent{Type: string(event.Type)}

	switch event.Type {
	case "payment_intent.succeeded", "payment_intent.payment_failed", "payment_intent.canceled":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return nil, domain.WrapError(err, domain.EINVALID, "payment.ParseWebhook", "malformed payment intent payload")
		}
		out.Reference = pi.ID

		switch event.Type {
		case "payment_intent.succeeded":
			result := CallbackResult{Status: StatusSuccessful, TransactionID: pi.ID}
			if pi.LatestCharge != nil {
				result.GatewayRef = pi.LatestCharge.ID
			}
			out.Result = &result
		case "payment_intent.payment_failed":
			status := "failed"
			if pi.LastPaymentError != nil && pi.LastPaymentError.DeclineCode != "" {
				status = string(pi.LastPaymentError.DeclineCode)
			}
			out.Result = &CallbackResult{Status: status, TransactionID: pi.ID}
		case "payment_intent.canceled":
			out.SessionClosed = true
		}
	default:
		g.logger.Debug("unhandled stripe event type", "type", string(event.Type))
	}

	return out, nil
}
