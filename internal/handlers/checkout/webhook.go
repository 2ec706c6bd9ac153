package checkout

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v83"

	"farmstore_back_end/internal/fulfillment"
	"farmstore_back_end/internal/models"
)

// maxWebhookBody bounds how much of a webhook request is read before
// signature verification.
const maxWebhookBody = 64 << 10

type WebhookVerifier interface {
	VerifyWebhook(payload []byte, signatureHeader string) (stripe.Event, error)
}

type Fulfiller interface {
	Fulfill(ctx context.Context, evt fulfillment.CompletedCheckout) (*models.Order, error)
}

type WebhookHandler struct {
	Verifier  WebhookVerifier
	Fulfiller Fulfiller
}

// Handle receives processor events. The signature is checked over the
// raw bytes before anything is parsed; an unverified body is never
// inspected. Unhandled event types are acknowledged so the processor
// stops redelivering them, while a fulfillment failure returns 500 so
// the completed-checkout event is redelivered.
func (h *WebhookHandler) Handle(c *gin.Context) {
	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable_body"})
		return
	}

	event, err := h.Verifier.VerifyWebhook(payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		log.Printf("🚫 Webhook signature rejected: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_signature"})
		return
	}

	if event.Type != stripe.EventTypeCheckoutSessionCompleted {
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		log.Printf("❌ Malformed checkout.session.completed payload: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed_event"})
		return
	}

	evt := fulfillment.CompletedCheckout{
		SessionID:      sess.ID,
		AmountTotal:    sess.AmountTotal,
		AmountSubtotal: sess.AmountSubtotal,
		Metadata:       sess.Metadata,
	}
	if sess.TotalDetails != nil {
		evt.AmountDiscount = sess.TotalDetails.AmountDiscount
	}
	if sess.CustomerDetails != nil {
		evt.CustomerName = sess.CustomerDetails.Name
		evt.CustomerEmail = sess.CustomerDetails.Email
	}

	order, err := h.Fulfiller.Fulfill(c.Request.Context(), evt)
	if err != nil {
		log.Printf("❌ Fulfillment failed for session %s: %v", sess.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "fulfillment_failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true, "orderNumber": order.OrderNumber})
}
