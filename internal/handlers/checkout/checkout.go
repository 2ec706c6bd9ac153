// Package checkout exposes the payment-facing endpoints: opening a
// hosted checkout session, pre-validating discount codes and receiving
// the processor's completion webhook.
package checkout

import (
	"context"
	"log"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"farmstore_back_end/internal/cartcodec"
	"farmstore_back_end/internal/fulfillment"
	"farmstore_back_end/internal/models"
	"farmstore_back_end/internal/payments"
)

type ProductStore interface {
	FindByID(ctx context.Context, id string) (*models.Product, error)
}

type DiscountStore interface {
	FindByID(ctx context.Context, id string) (*models.Discount, error)
	FindByCode(ctx context.Context, code string) (*models.Discount, error)
}

type SessionCreator interface {
	CreateCheckoutSession(items []payments.LineItem, customerEmail, couponID string, metadata map[string]string) (string, string, error)
	CreateCoupon(percentOff float64, amountOffCents int64) (string, error)
}

type Handler struct {
	Products  ProductStore
	Discounts DiscountStore
	Payments  SessionCreator
}

// CreateSession resolves the cart against the live catalog, packs it
// into session metadata and opens a hosted checkout page. Every price
// sent to the processor comes from the database, never from the client.
func (h *Handler) CreateSession(c *gin.Context) {
	var req struct {
		Items []struct {
			ProductID string `json:"productId" binding:"required"`
			Quantity  int    `json:"quantity"`
		} `json:"items" binding:"required,min=1"`
		Customer struct {
			Name  string `json:"name" binding:"required"`
			Email string `json:"email" binding:"required,email"`
			Phone string `json:"phone"`
		} `json:"customer" binding:"required"`
		Shipping struct {
			Line       string `json:"line" binding:"required"`
			City       string `json:"city" binding:"required"`
			PostalCode string `json:"postalCode" binding:"required"`
		} `json:"shipping" binding:"required"`
		DiscountID string `json:"discountId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "details": err.Error()})
		return
	}

	var (
		lineItems    []payments.LineItem
		entries      []cartcodec.Entry
		subtotalCent int64
	)
	for _, item := range req.Items {
		product, err := h.Products.FindByID(c.Request.Context(), item.ProductID)
		if err != nil {
			// One unknown product fails the whole request. Charging for a
			// partial cart is worse than asking the client to refresh.
			c.JSON(http.StatusBadRequest, gin.H{"error": "product_not_found", "productId": item.ProductID})
			return
		}
		if !product.IsActive {
			c.JSON(http.StatusBadRequest, gin.H{"error": "product_unavailable", "productId": item.ProductID})
			return
		}

		qty := item.Quantity
		if qty < 1 {
			qty = 1
		}
		unitCents := int64(math.Round(product.Price * 100))
		subtotalCent += unitCents * int64(qty)

		lineItems = append(lineItems, payments.LineItem{
			Name:       product.Name,
			UnitAmount: unitCents,
			Quantity:   int64(qty),
			ImageURL:   product.ImageURL,
		})
		entries = append(entries, cartcodec.Entry{
			ProductID:  product.ID.Hex(),
			Quantity:   qty,
			PriceCents: unitCents,
			Name:       product.Name,
		})
	}

	payload, format, idEncoding, err := cartcodec.Encode(entries, cartcodec.MetadataBudget)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cart_too_large"})
		return
	}

	metadata := map[string]string{
		fulfillment.MetaCart:           payload,
		fulfillment.MetaCartFormat:     format,
		fulfillment.MetaCartIDEncoding: idEncoding,
		fulfillment.MetaCodecVersion:   cartcodec.Version,
		fulfillment.MetaCustomerName:   req.Customer.Name,
		fulfillment.MetaCustomerEmail:  req.Customer.Email,
		fulfillment.MetaPhone:          req.Customer.Phone,
		fulfillment.MetaAddressLine:    req.Shipping.Line,
		fulfillment.MetaAddressCity:    req.Shipping.City,
		fulfillment.MetaPostalCode:     req.Shipping.PostalCode,
	}

	couponID := h.applyDiscount(c.Request.Context(), req.DiscountID, subtotalCent, metadata)

	sessionID, url, err := h.Payments.CreateCheckoutSession(lineItems, req.Customer.Email, couponID, metadata)
	if err != nil {
		log.Printf("❌ Checkout session creation failed: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "processor_error"})
		return
	}

	log.Printf("🛒 Checkout session %s opened (%d lines, subtotal %.2f)", sessionID, len(entries), float64(subtotalCent)/100)
	c.JSON(http.StatusOK, gin.H{"sessionId": sessionID, "url": url})
}

// applyDiscount turns a discount into a processor coupon. A discount
// that is missing, expired or below its minimum purchase is skipped
// without failing the checkout, but its identifying fields still land
// in metadata so fulfillment can reconcile what was requested against
// what the processor actually applied.
func (h *Handler) applyDiscount(ctx context.Context, discountID string, subtotalCents int64, metadata map[string]string) string {
	discountID = strings.TrimSpace(discountID)
	if discountID == "" {
		return ""
	}
	metadata[fulfillment.MetaDiscountID] = discountID

	discount, err := h.Discounts.FindByID(ctx, discountID)
	if err != nil {
		log.Printf("⚠️ Discount %s not found, continuing without it", discountID)
		return ""
	}
	metadata[fulfillment.MetaDiscountCode] = discount.Code
	metadata[fulfillment.MetaDiscountType] = discount.Type

	subtotal := float64(subtotalCents) / 100
	if !discount.UsableAt(time.Now(), subtotal) {
		log.Printf("⚠️ Discount %q not usable (active=%t used=%d/%d min=%.2f), continuing without it",
			discount.Code, discount.IsActive, discount.TimesUsed, discount.UsageLimit, discount.MinPurchase)
		return ""
	}

	var couponID string
	if discount.Type == models.DiscountPercentage {
		couponID, err = h.Payments.CreateCoupon(discount.Value, 0)
	} else {
		amountCents := int64(math.Round(discount.AmountFor(subtotal) * 100))
		couponID, err = h.Payments.CreateCoupon(0, amountCents)
	}
	if err != nil {
		log.Printf("⚠️ Coupon creation failed for %q: %v, continuing without discount", discount.Code, err)
		return ""
	}
	return couponID
}

// ValidateDiscount lets the storefront check a code before checkout and
// show the would-be reduction.
func (h *Handler) ValidateDiscount(c *gin.Context) {
	var req struct {
		Code     string  `json:"code" binding:"required"`
		Subtotal float64 `json:"subtotal" binding:"required,gt=0"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "details": err.Error()})
		return
	}

	discount, err := h.Discounts.FindByCode(c.Request.Context(), req.Code)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"valid": false, "reason": "unknown_code"})
		return
	}
	if !discount.UsableAt(time.Now(), req.Subtotal) {
		c.JSON(http.StatusOK, gin.H{"valid": false, "reason": "not_applicable"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"valid":  true,
		"code":   discount.Code,
		"type":   discount.Type,
		"amount": discount.AmountFor(req.Subtotal),
	})
}
