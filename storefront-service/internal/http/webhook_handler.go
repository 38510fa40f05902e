package http

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/nana-k-osei/LAGC/storefront-service/internal/payment"
)

const maxWebhookBody = 1 << 20

type Webhooks interface {
	HandleWebhook(ctx context.Context, signature string, body []byte) error
}

type WebhookHandler struct {
	webhooks Webhooks
	logger   *slog.Logger
}

func NewWebhookHandler(webhooks Webhooks, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{webhooks: webhooks, logger: logger}
}

// Paystack acknowledges a gateway event. Failures other than a bad
// signature answer 500 so Paystack redelivers.
func (h *WebhookHandler) Paystack(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "could not read body")
		return
	}

	err = h.webhooks.HandleWebhook(r.Context(), r.Header.Get(payment.SignatureHeader), body)
	switch {
	case errors.Is(err, payment.ErrInvalidSignature):
		h.logger.WarnContext(r.Context(), "rejected webhook with invalid signature", "remote", r.RemoteAddr)
		respondError(w, http.StatusUnauthorized, "invalid_signature", err.Error())
	case err != nil:
		h.logger.ErrorContext(r.Context(), "webhook processing failed", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "webhook processing failed")
	default:
		w.WriteHeader(http.StatusOK)
	}
}
