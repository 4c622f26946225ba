package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"catalog-sync-service/internal/models"
	"catalog-sync-service/internal/services"
)

// WebhookProcessor accepts verified webhook deliveries.
type WebhookProcessor interface {
	ProcessWebhook(ctx context.Context, d services.WebhookDelivery) (*models.WebhookEvent, error)
}

// WebhookHandler handles store webhook endpoints
type WebhookHandler struct {
	service WebhookProcessor
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(service WebhookProcessor) *WebhookHandler {
	return &WebhookHandler{service: service}
}

// HandleShopifyWebhook verifies a delivery and queues its reconciliation.
// Duplicate deliveries are acknowledged so the sender stops retrying.
func (h *WebhookHandler) HandleShopifyWebhook(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeBadRequest, "failed to read body", nil)
		return
	}

	event, err := h.service.ProcessWebhook(c.Request.Context(), services.WebhookDelivery{
		Topic:      c.GetHeader("X-Shopify-Topic"),
		ShopDomain: c.GetHeader("X-Shopify-Shop-Domain"),
		EventID:    c.GetHeader("X-Shopify-Webhook-Id"),
		Signature:  c.GetHeader("X-Shopify-Hmac-Sha256"),
		Payload:    payload,
	})
	if errors.Is(err, services.ErrDuplicateWebhook) {
		respond(c, http.StatusOK, gin.H{"received": true, "duplicate": true})
		return
	}
	if err != nil {
		handleError(c, err)
		return
	}

	respond(c, http.StatusOK, gin.H{"received": true, "eventId": event.EventID})
}
