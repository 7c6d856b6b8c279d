package handler

import (
	"io"
	"net/http"

	"github.com/hollandm/idunn/internal/domain"
	"github.com/hollandm/idunn/internal/middleware"
	"github.com/hollandm/idunn/internal/telemetry"
)

// maxWebhookBody bounds the gateway payload size.
const maxWebhookBody = 65536

// handlePaymentWebhook receives gateway notifications. The signature is
// verified before anything else; after that the endpoint always acknowledges
// with 200 so the gateway stops retrying, even when processing the verdict
// surfaces an error. Those errors are logged and carried on the payment
// session itself.
func (s *Server) handlePaymentWebhook(w http.ResponseWriter, r *http.Request) {
	logger := middleware.GetLogger(r.Context(), s.logger)

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		ErrorResponse(w, r, domain.Invalid("handler.paymentWebhook", "Could not read webhook body"))
		return
	}

	ev, err := s.gateway.ParseWebhook(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		logger.Warn("webhook rejected", "error", err)
		ErrorResponse(w, r, err)
		return
	}

	if telemetry.Business != nil {
		telemetry.Business.CallbackReceived.WithLabelValues(ev.Type).Inc()
	}

	switch {
	case ev.Result != nil:
		if err := s.payments.HandleCallback(r.Context(), ev.Reference, *ev.Result); err != nil {
			// Unknown references happen when the gateway replays events
			// from before a restart; everything else is already recorded
			// on the session.
			if domain.IsCode(err, domain.ENOTFOUND) {
				logger.Info("webhook for unknown payment session", "payment_reference", ev.Reference)
			} else {
				logger.Warn("payment callback not settled",
					"payment_reference", ev.Reference,
					"code", domain.ErrorCode(err),
					"error", err,
				)
			}
		}
	case ev.SessionClosed:
		s.payments.HandleSessionClosed(ev.Reference)
	default:
		logger.Debug("webhook event ignored", "event_type", ev.Type)
	}

	RespondJSON(w, http.StatusOK, map[string]string{"received": "true"})
}
