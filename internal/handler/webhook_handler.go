package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/trailpaws/service-reservation/internal/application"
	"github.com/trailpaws/service-reservation/internal/payments"
)

// Stripe caps webhook payloads well below this; anything larger is garbage.
const maxWebhookBody = 1 << 20

// WebhookHandler receives payment provider webhooks and hands completed
// sessions to the reconciler.
type WebhookHandler struct {
	reconciler    *application.ReconcileService
	webhookSecret string
	logger        *zap.Logger
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(reconciler *application.ReconcileService, webhookSecret string, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{reconciler: reconciler, webhookSecret: webhookSecret, logger: logger}
}

// RegisterRoutes registers the webhook endpoint. Authentication is the
// provider signature, not a bearer token.
func (h *WebhookHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/api/v1/payments/webhook", h.HandleWebhook)
}

// HandleWebhook handles POST /api/v1/payments/webhook. The response code
// drives provider redelivery: 2xx acknowledges, 4xx drops a malformed or
// unsigned event, 5xx asks for redelivery after an infrastructure failure.
// Redelivery is safe because the reconciler deduplicates on session id.
func (h *WebhookHandler) HandleWebhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}

	evt, err := payments.ParseWebhookEvent(payload, c.GetHeader("Stripe-Signature"), h.webhookSecret)
	if err != nil {
		h.logger.Warn("rejected payment webhook", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid webhook payload"})
		return
	}
	if evt == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	if err := h.reconciler.HandlePaymentCompleted(c.Request.Context(), evt); err != nil {
		h.logger.Error("payment reconciliation failed",
			zap.String("session_id", evt.SessionID),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "reconciliation failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "processed"})
}
