package handlers

import (
	"io"
	"net/http"

	"learnhub/http/response"
	"learnhub/logger"
	"learnhub/services"
)

const signatureHeader = "X-Razorpay-Signature"

// WebhookHandler receives gateway webhook deliveries.
type WebhookHandler struct {
	webhooks *services.WebhookService
}

func NewWebhookHandler(webhooks *services.WebhookService) *WebhookHandler {
	return &WebhookHandler{webhooks: webhooks}
}

// Handle verifies and dispatches one delivery. The raw body is captured
// before any parsing; the signature is computed over these exact bytes.
// Error statuses go back only for signature failures, malformed bodies and
// storage errors; everything else is acknowledged so the gateway stops
// retrying.
func (h *WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		response.ErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	rawBody, err := io.ReadAll(r.Body)
	if err != nil {
		response.ErrorResponse(w, http.StatusBadRequest, "Failed to read request body")
		return
	}
	defer r.Body.Close()

	ack, err := h.webhooks.HandleEvent(r.Context(), rawBody, r.Header.Get(signatureHeader))
	if err != nil {
		logger.Error("Webhook processing failed: %v", err)
		response.FromError(w, err)
		return
	}

	response.SendJSON(w, http.StatusOK, ack)
}
