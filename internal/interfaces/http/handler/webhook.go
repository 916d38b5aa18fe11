package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	appfinance "github.com/rentals/backend/internal/application/finance"
	"github.com/rentals/backend/internal/infrastructure/payment"
	"github.com/rentals/backend/internal/interfaces/http/dto"
)

// DefaultMaxWebhookBytes bounds a gateway delivery; Paystack events are a
// few KB
const DefaultMaxWebhookBytes = 64 << 10

// WebhookHandler receives payment gateway events. The route is not
// authenticated; the body signature is the credential.
type WebhookHandler struct {
	BaseHandler
	reconciliation *appfinance.ReconciliationService
	maxBytes       int64
}

// NewWebhookHandler creates a new WebhookHandler
func NewWebhookHandler(reconciliation *appfinance.ReconciliationService, maxBytes int64) *WebhookHandler {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxWebhookBytes
	}
	return &WebhookHandler{reconciliation: reconciliation, maxBytes: maxBytes}
}

// HandlePaystack godoc
// @ID           handlePaystackWebhook
// @Summary      Receive a Paystack event
// @Description  Processes one delivery. Processed, duplicate, ignored and failed outcomes are all acknowledged with 200 so the gateway stops retrying; a bad signature or payload is 400 and an unconfirmed charge 503 so the gateway retries it
// @Tags         webhooks
// @Accept       json
// @Produce      json
// @Param        x-paystack-signature header string true "HMAC-SHA512 of the body"
// @Param        request body object true "Paystack event"
// @Success      200 {object} dto.WebhookResponse
// @Failure      400 {object} ErrorResponse
// @Failure      413 {object} ErrorResponse
// @Failure      503 {object} ErrorResponse
// @Router       /webhooks/paystack [post]
func (h *WebhookHandler) HandlePaystack(c *gin.Context) {
	// the signature covers the exact bytes, so read them before any binding
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, h.maxBytes+1))
	if err != nil {
		h.BadRequest(c, "Failed to read request body")
		return
	}
	if int64(len(body)) > h.maxBytes {
		h.Error(c, http.StatusRequestEntityTooLarge, dto.ErrCodeRequestTooLarge, "Webhook payload too large")
		return
	}

	signature := c.GetHeader(payment.PaystackSignatureHeader)
	if signature == "" {
		signature = c.GetHeader(payment.LegacySignatureHeader)
	}

	result, err := h.reconciliation.ProcessWebhook(c.Request.Context(), body, signature)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	resp := dto.WebhookResponse{
		Received: true,
		Outcome:  string(result.Outcome),
		Reason:   result.Reason,
	}
	if result.Event != nil {
		resp.Event = result.Event.EventType
	}
	c.JSON(http.StatusOK, resp)
}
