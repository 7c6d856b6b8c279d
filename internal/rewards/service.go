// Package rewards fetches loyalty balances. Balance lookups are advisory:
// a failed fetch degrades to a zero balance and never blocks checkout.
package rewards

import (
	"context"
	"log/slog"

	"github.com/hollandm/idunn/internal/commerce"
	"github.com/hollandm/idunn/internal/domain"
)

// Service reads reward balances for a session's identity.
type Service struct {
	client commerce.Client
	logger *slog.Logger
}

// NewService creates a rewards service.
func NewService(client commerce.Client, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{client: client, logger: logger}
}

// Balance returns the identity's reward balance, or nil when none exists or
// the fetch failed. Failures are logged and swallowed here so pricing always
// has an answer.
func (s *Service) Balance(ctx context.Context, identity domain.Identity) *domain.RewardBalance {
	balance, err := s.client.GetRewardBalance(ctx, identity)
	if err != nil {
		s.logger.Warn("reward balance fetch failed, treating as zero",
			"kind", string(identity.Kind),
			"error", err,
		)
		return nil
	}
	return balance
}
