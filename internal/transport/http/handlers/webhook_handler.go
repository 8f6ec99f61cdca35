package handlers

import (
	"io"
	"net/http"

	paymentsvc "github.com/Arnold003-blacko/etosha-backend-sub000/internal/services/payments"
)

// maxWebhookBody bounds gateway callback bodies. Real callbacks are a few
// hundred bytes.
const maxWebhookBody = 64 * 1024

type WebhookHandler struct {
	payments *paymentsvc.Service
}

func NewWebhookHandler(payments *paymentsvc.Service) *WebhookHandler {
	return &WebhookHandler{payments: payments}
}

// Gateway receives status callbacks from the payment gateway. It always
// answers 200: the gateway retries on anything else and settlement is
// idempotent anyway, so there is nothing useful to signal back.
func (h *WebhookHandler) Gateway(w http.ResponseWriter, r *http.Request) {
	defer func() { _ = r.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err == nil && h.payments != nil {
		h.payments.HandleWebhook(r.Context(), string(body))
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
