package http

import (
	"io"
	"log"
	"net/http"

	"moral-quiz-service/internal/app"
	"github.com/gin-gonic/gin"
)

const maxWebhookBodyBytes = int64(65536)

type webhookHandler struct {
	parser     WebhookParser
	reconciler *app.Reconciler
}

// Handle verifies a Stripe webhook and applies it. Processing errors return
// 500 so Stripe retries; replays are absorbed by the reconciler.
func (h *webhookHandler) Handle(c *gin.Context) {
	if h.parser == nil {
		log.Printf("stripe webhook received but not configured")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "webhook not configured"})
		return
	}
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBodyBytes))
	if err != nil {
		log.Printf("stripe webhook read failed: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	event, err := h.parser.Parse(body, c.GetHeader("Stripe-Signature"))
	if err != nil {
		log.Printf("stripe webhook signature failed: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "signature verification failed"})
		return
	}

	if err := h.reconciler.HandleEvent(c.Request.Context(), event); err != nil {
		log.Printf("stripe webhook processing failed event=%s type=%s err=%v", event.ID, event.Type, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "processing failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
