package payment

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// MockGateway is a test gateway. Opened sessions are recorded; webhook
// parsing is delegated to ParseWebhookFunc or accepts a JSON WebhookEvent
// verbatim.
type MockGateway struct {
	// OpenSessionFunc allows customizing session creation behavior.
	OpenSessionFunc func(ctx context.Context, params OpenSessionParams) (*GatewaySession, error)

	// ParseWebhookFunc allows customizing webhook parsing behavior.
	ParseWebhookFunc func(payload []byte, signature string) (*WebhookEvent, error)

	// Opened records the parameters of every opened session.
	Opened []OpenSessionParams

	// CallLog tracks method calls for test assertions.
	CallLog []string
}

// NewMockGateway creates a mock payment gateway.
func NewMockGateway() *MockGateway {
	return &MockGateway{}
}

// OpenSession records the request and returns a synthetic session.
func (m *MockGateway) OpenSession(ctx context.Context, params OpenSessionParams) (*GatewaySession, error) {
	m.CallLog = append(m.CallLog, fmt.Sprintf("OpenSession(%d, %s)", params.AmountCents, params.Currency))

	if m.OpenSessionFunc != nil {
		return m.OpenSessionFunc(ctx, params)
	}

	m.Opened = append(m.Opened, params)
	ref := "pi_mock_" + uuid.New().String()[:8]
	return &GatewaySession{
		Reference:    ref,
		ClientSecret: ref + "_secret",
	}, nil
}

// ParseWebhook delegates to ParseWebhookFunc; without one it fails, since
// tests drive callbacks directly through the handler.
func (m *MockGateway) ParseWebhook(payload []byte, signature string) (*WebhookEvent, error) {
	m.CallLog = append(m.CallLog, "ParseWebhook()")

	if m.ParseWebhookFunc != nil {
		return m.ParseWebhookFunc(payload, signature)
	}
	return nil, fmt.Errorf("ParseWebhookFunc not configured")
}
