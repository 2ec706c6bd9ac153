// Package orders exposes the post-payment order lifecycle: listing,
// lookup, status progression and cancellation with refund.
package orders

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"farmstore_back_end/internal/models"
	"farmstore_back_end/internal/repository"
	"farmstore_back_end/internal/utils"
)

type OrderStore interface {
	FindByID(ctx context.Context, id string) (*models.Order, error)
	Update(ctx context.Context, order *models.Order) error
	List(ctx context.Context, email string) ([]models.Order, error)
}

type ProductStore interface {
	FindByID(ctx context.Context, id string) (*models.Product, error)
	IncrementStock(ctx context.Context, id string, delta int) error
}

type Refunder interface {
	PaymentIntentID(sessionID string) (string, error)
	Refund(paymentIntentID string) error
}

type LedgerAppender interface {
	RecordRefund(ctx context.Context, order *models.Order) error
}

type OrderSearcher interface {
	SearchOrders(ctx context.Context, query string) ([]map[string]interface{}, error)
}

type Handler struct {
	Orders   OrderStore
	Products ProductStore
	Payments Refunder
	Ledger   LedgerAppender
	Search   OrderSearcher
}

// Status moves forward only. Cancellation stays open until delivery;
// DELIVERED and CANCELLED are terminal.
var allowedTransitions = map[models.OrderStatus][]models.OrderStatus{
	models.OrderPending:    {models.OrderProcessing, models.OrderShipped, models.OrderCancelled},
	models.OrderProcessing: {models.OrderShipped, models.OrderCancelled},
	models.OrderShipped:    {models.OrderDelivered, models.OrderCancelled},
	models.OrderDelivered:  {},
	models.OrderCancelled:  {},
}

func transitionAllowed(from, to models.OrderStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// List returns all orders, optionally filtered by customer email.
func (h *Handler) List(c *gin.Context) {
	orders, err := h.Orders.List(c.Request.Context(), c.Query("email"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list orders"})
		return
	}
	c.JSON(http.StatusOK, orders)
}

// MyOrders returns the authenticated customer's own orders.
func (h *Handler) MyOrders(c *gin.Context) {
	email := c.GetString("email")
	if email == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	orders, err := h.Orders.List(c.Request.Context(), email)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list orders"})
		return
	}
	c.JSON(http.StatusOK, orders)
}

// GetByID returns one order. Customers only see their own; admins see
// everything.
func (h *Handler) GetByID(c *gin.Context) {
	order, err := h.Orders.FindByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
		return
	}

	if c.GetString("role") != "admin" && order.Customer.Email != c.GetString("email") {
		// 404, not 403: existence of someone else's order is not disclosed.
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
		return
	}
	c.JSON(http.StatusOK, order)
}

// UpdateStatus is the admin lifecycle endpoint. Setting CANCELLED here
// runs the full cancellation flow, refund included.
func (h *Handler) UpdateStatus(c *gin.Context) {
	var req struct {
		Status models.OrderStatus `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "details": err.Error()})
		return
	}
	if _, known := allowedTransitions[req.Status]; !known {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown_status"})
		return
	}

	order, err := h.Orders.FindByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
		return
	}

	if order.Status == req.Status {
		// Idempotent no-op; repeating a status must not touch stock.
		c.JSON(http.StatusOK, order)
		return
	}
	if !transitionAllowed(order.Status, req.Status) {
		c.JSON(http.StatusConflict, gin.H{
			"error": "invalid_transition",
			"from":  order.Status,
			"to":    req.Status,
		})
		return
	}

	if req.Status == models.OrderCancelled {
		h.cancel(c, order, c.GetString("email"))
		return
	}

	previous := order.Status
	order.Status = req.Status
	if req.Status == models.OrderDelivered && order.DeliveredAt == nil {
		now := time.Now()
		order.DeliveredAt = &now
	}

	if err := h.Orders.Update(c.Request.Context(), order); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not update order"})
		return
	}

	log.Printf("📦 Order %s: %s → %s", order.OrderNumber, previous, order.Status)
	utils.LogAction(utils.ActionOrderUpdate, utils.ResourceOrder, order.OrderNumber, c.GetString("email"),
		gin.H{"status": previous}, gin.H{"status": order.Status})
	c.JSON(http.StatusOK, order)
}

// CancelOrder is the customer-facing cancellation. Only the owner may
// cancel, and only before shipment.
func (h *Handler) CancelOrder(c *gin.Context) {
	order, err := h.Orders.FindByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
		return
	}

	email := c.GetString("email")
	if order.Customer.Email != email {
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
		return
	}
	if order.Status != models.OrderPending && order.Status != models.OrderProcessing {
		c.JSON(http.StatusConflict, gin.H{"error": "order already shipped", "status": order.Status})
		return
	}

	h.cancel(c, order, email)
}

// cancel refunds a paid order, restocks its lines and marks it
// CANCELLED. The refund is the one step that can abort: money moves
// first, bookkeeping follows.
func (h *Handler) cancel(c *gin.Context, order *models.Order, actor string) {
	wasPaid := order.IsPaid

	if wasPaid {
		intentID, err := h.Payments.PaymentIntentID(order.StripeSessionID)
		if err != nil {
			log.Printf("❌ Cannot resolve payment intent for order %s: %v", order.OrderNumber, err)
			c.JSON(http.StatusBadGateway, gin.H{"error": "refund_failed"})
			return
		}
		if err := h.Payments.Refund(intentID); err != nil {
			log.Printf("❌ Refund failed for order %s: %v", order.OrderNumber, err)
			c.JSON(http.StatusBadGateway, gin.H{"error": "refund_failed"})
			return
		}
		log.Printf("💸 Refunded order %s (%.2f)", order.OrderNumber, order.TotalPrice)
	}

	for _, item := range order.Items {
		if item.ProductID == nil {
			continue
		}
		if err := h.Products.IncrementStock(c.Request.Context(), item.ProductID.Hex(), item.Quantity); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				log.Printf("⚠️ Product %s gone, skipping restock for order %s", item.ProductID.Hex(), order.OrderNumber)
				continue
			}
			log.Printf("⚠️ Restock failed for product %s on order %s: %v", item.ProductID.Hex(), order.OrderNumber, err)
		}
	}

	previous := order.Status
	order.Status = models.OrderCancelled
	order.IsPaid = false
	order.PaidAt = nil

	if err := h.Orders.Update(c.Request.Context(), order); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not update order"})
		return
	}

	if wasPaid && h.Ledger != nil {
		if err := h.Ledger.RecordRefund(c.Request.Context(), order); err != nil {
			log.Printf("⚠️ Refund ledger entry failed for order %s: %v", order.OrderNumber, err)
		}
	}

	log.Printf("🚫 Order %s cancelled (was %s, refunded=%t)", order.OrderNumber, previous, wasPaid)
	utils.LogAction(utils.ActionOrderCancel, utils.ResourceOrder, order.OrderNumber, actor,
		gin.H{"status": previous, "isPaid": wasPaid}, gin.H{"status": order.Status})
	c.JSON(http.StatusOK, order)
}

// SearchOrders queries the Elasticsearch mirror.
func (h *Handler) SearchOrders(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing query"})
		return
	}
	if h.Search == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "search not configured"})
		return
	}

	results, err := h.Search.SearchOrders(c.Request.Context(), query)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "search failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results, "count": len(results)})
}
