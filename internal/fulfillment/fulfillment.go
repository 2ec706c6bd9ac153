// Package fulfillment turns a verified payment-completion event back
// into an authoritative order: it decodes the cart metadata, re-resolves
// every line against the live catalog, persists the order exactly once
// per checkout session, and fires the bookkeeping side effects.
package fulfillment

import (
	"context"
	"errors"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"farmstore_back_end/internal/cartcodec"
	"farmstore_back_end/internal/models"
	"farmstore_back_end/internal/repository"
	"farmstore_back_end/internal/utils"
)

// Session metadata keys shared between checkout session creation and
// webhook fulfillment. The two halves of the pipeline share no process
// state; everything correlates through these.
const (
	MetaCart           = "cart"
	MetaCartFormat     = "cart_format"
	MetaCartIDEncoding = "cart_id_encoding"
	MetaCodecVersion   = "cart_codec_version"

	MetaCustomerName  = "customer_name"
	MetaCustomerEmail = "customer_email"
	MetaPhone         = "phone"
	MetaAddressLine   = "address_line"
	MetaAddressCity   = "address_city"
	MetaPostalCode    = "postal_code"

	MetaDiscountID   = "discount_id"
	MetaDiscountCode = "discount_code"
	MetaDiscountType = "discount_type"
)

const placeholderImage = "/images/product-placeholder.png"

type OrderStore interface {
	Create(ctx context.Context, order *models.Order) error
	FindBySessionID(ctx context.Context, sessionID string) (*models.Order, error)
	GenerateOrderNumber(ctx context.Context) (string, error)
}

type ProductStore interface {
	FindByID(ctx context.Context, id string) (*models.Product, error)
	IncrementStock(ctx context.Context, id string, delta int) error
}

type DiscountStore interface {
	FindByID(ctx context.Context, id string) (*models.Discount, error)
	IncrementUsage(ctx context.Context, id primitive.ObjectID) error
}

type LedgerAppender interface {
	RecordSale(ctx context.Context, order *models.Order) error
}

type InvoiceRenderer interface {
	Render(order *models.Order) ([]byte, error)
}

type ReceiptMailer interface {
	SendReceipt(order *models.Order, pdf []byte) error
}

type InvoiceArchiver interface {
	StoreInvoice(ctx context.Context, orderNumber string, pdf []byte) error
}

type OrderIndexer interface {
	IndexOrder(ctx context.Context, order *models.Order) error
}

// CompletedCheckout is the processor-neutral view of a completed
// checkout session. Amounts are in cents, as reported by the processor.
type CompletedCheckout struct {
	SessionID      string
	AmountTotal    int64
	AmountSubtotal int64
	AmountDiscount int64
	CustomerName   string
	CustomerEmail  string
	Metadata       map[string]string
}

// Engine drives fulfillment. Orders, Products and Discounts are
// required; the rest are optional best-effort collaborators that may be
// nil.
type Engine struct {
	Orders    OrderStore
	Products  ProductStore
	Discounts DiscountStore
	Ledger    LedgerAppender
	Invoices  InvoiceRenderer
	Mailer    ReceiptMailer
	Archive   InvoiceArchiver
	Search    OrderIndexer
}

// Fulfill converts the completed checkout into a persisted order. The
// order write is the only hard guarantee: every step after it is
// attempted independently and failures are logged, never propagated. A
// redelivered event for an already-fulfilled session returns the
// existing order.
func (e *Engine) Fulfill(ctx context.Context, evt CompletedCheckout) (*models.Order, error) {
	meta := evt.Metadata
	if meta == nil {
		meta = map[string]string{}
	}

	entries := cartcodec.Decode(meta[MetaCart], meta[MetaCartFormat], meta[MetaCartIDEncoding])
	if len(entries) == 0 {
		// The payment still happened; create the order anyway so the
		// money is never orphaned. This shows up in audit as an order
		// with no recoverable lines.
		log.Printf("⚠️ Cart metadata unrecoverable for session %s (format=%q), fulfilling with zero lines",
			evt.SessionID, meta[MetaCartFormat])
	}

	totalQty := 0
	for _, entry := range entries {
		totalQty += entry.Quantity
	}
	var fallbackPrice float64
	if totalQty > 0 {
		fallbackPrice = float64(evt.AmountSubtotal) / 100 / float64(totalQty)
	}

	items := e.resolveItems(ctx, entries, fallbackPrice)

	customer := models.OrderCustomer{Name: evt.CustomerName, Email: evt.CustomerEmail}
	if customer.Name == "" {
		customer.Name = meta[MetaCustomerName]
	}
	if customer.Email == "" {
		customer.Email = meta[MetaCustomerEmail]
	}

	now := time.Now()
	order := &models.Order{
		Customer: customer,
		Items:    items,
		ShippingAddress: models.ShippingAddress{
			Line:       meta[MetaAddressLine],
			City:       meta[MetaAddressCity],
			PostalCode: meta[MetaPostalCode],
			Phone:      meta[MetaPhone],
		},
		TotalPrice:      float64(evt.AmountTotal) / 100,
		IsPaid:          true,
		PaidAt:          &now,
		Status:          models.OrderProcessing,
		StripeSessionID: evt.SessionID,
	}

	if snapshot := e.snapshotDiscount(ctx, meta, evt.AmountDiscount); snapshot != nil {
		order.Discount = snapshot
	}

	number, err := e.Orders.GenerateOrderNumber(ctx)
	if err != nil {
		return nil, err
	}
	order.OrderNumber = number

	if err := e.Orders.Create(ctx, order); err != nil {
		if errors.Is(err, repository.ErrDuplicateSession) {
			log.Printf("🔁 Session %s already fulfilled, acknowledging redelivery", evt.SessionID)
			return e.Orders.FindBySessionID(ctx, evt.SessionID)
		}
		return nil, err
	}

	log.Printf("✅ Order %s created for session %s (%.2f, %d items)",
		order.OrderNumber, evt.SessionID, order.TotalPrice, len(order.Items))
	utils.LogAction(utils.ActionOrderCreate, utils.ResourceOrder, order.OrderNumber, customer.Email, nil, order)

	e.runSideEffects(ctx, order)
	return order, nil
}

// resolveItems builds order items from decoded entries. Product lookups
// are memoized per run so repeated ids cost one query. A product that no
// longer exists still yields an item from metadata or the averaged
// fallback price, so historical carts stay completable.
func (e *Engine) resolveItems(ctx context.Context, entries []cartcodec.Entry, fallbackPrice float64) []models.OrderItem {
	memo := make(map[string]*models.Product)
	items := make([]models.OrderItem, 0, len(entries))

	for _, entry := range entries {
		product, seen := memo[entry.ProductID]
		if !seen {
			var err error
			product, err = e.Products.FindByID(ctx, entry.ProductID)
			if err != nil {
				if !errors.Is(err, repository.ErrNotFound) {
					log.Printf("⚠️ Product lookup failed for %s: %v", entry.ProductID, err)
				}
				product = nil
			}
			memo[entry.ProductID] = product
		}

		item := models.OrderItem{Quantity: entry.Quantity}
		switch {
		case product != nil:
			item.ProductID = &product.ID
			item.Name = product.Name
			item.Price = product.Price
			item.Image = product.ImageURL
		default:
			if oid, err := primitive.ObjectIDFromHex(entry.ProductID); err == nil {
				item.ProductID = &oid
			}
			item.Name = entry.Name
			if item.Name == "" {
				item.Name = "Unavailable product"
			}
			if entry.PriceCents > 0 {
				item.Price = float64(entry.PriceCents) / 100
			} else {
				item.Price = fallbackPrice
			}
		}
		if item.Image == "" {
			item.Image = placeholderImage
		}
		items = append(items, item)
	}
	return items
}

// snapshotDiscount captures the applied discount onto the order when the
// processor reports one. A discount that lapsed between checkout and
// payment simply is not reported; that silence is deliberate, so it is
// only flagged in the logs.
func (e *Engine) snapshotDiscount(ctx context.Context, meta map[string]string, amountDiscount int64) *models.DiscountSnapshot {
	discountID := meta[MetaDiscountID]
	if discountID == "" {
		return nil
	}
	if amountDiscount <= 0 {
		log.Printf("⚠️ Discount %s was recorded at checkout but not applied by the processor (lapsed?)", discountID)
		return nil
	}

	discount, err := e.Discounts.FindByID(ctx, discountID)
	if err != nil {
		log.Printf("⚠️ Applied discount %s no longer resolvable: %v", discountID, err)
		return &models.DiscountSnapshot{
			Code:   meta[MetaDiscountCode],
			Type:   meta[MetaDiscountType],
			Amount: float64(amountDiscount) / 100,
		}
	}

	if err := e.Discounts.IncrementUsage(ctx, discount.ID); err != nil {
		log.Printf("⚠️ Could not increment usage for discount %s: %v", discount.Code, err)
	}

	return &models.DiscountSnapshot{
		DiscountID: discount.ID,
		Code:       discount.Code,
		Type:       discount.Type,
		Amount:     float64(amountDiscount) / 100,
	}
}

// runSideEffects fires the post-commit effects. Each one fails on its
// own; none of them can undo the order.
func (e *Engine) runSideEffects(ctx context.Context, order *models.Order) {
	if e.Ledger != nil {
		if err := e.Ledger.RecordSale(ctx, order); err != nil {
			log.Printf("⚠️ Ledger entry failed for order %s: %v", order.OrderNumber, err)
		}
	}

	if e.Invoices != nil {
		pdf, err := e.Invoices.Render(order)
		if err != nil {
			log.Printf("⚠️ Invoice rendering failed for order %s: %v", order.OrderNumber, err)
			pdf = nil
		}
		if pdf != nil && e.Archive != nil {
			if err := e.Archive.StoreInvoice(ctx, order.OrderNumber, pdf); err != nil {
				log.Printf("⚠️ Invoice archiving failed for order %s: %v", order.OrderNumber, err)
			}
		}
		if e.Mailer != nil {
			if err := e.Mailer.SendReceipt(order, pdf); err != nil {
				log.Printf("⚠️ Receipt email failed for order %s: %v", order.OrderNumber, err)
			}
		}
	}

	for _, item := range order.Items {
		if item.ProductID == nil {
			continue
		}
		if err := e.Products.IncrementStock(ctx, item.ProductID.Hex(), -item.Quantity); err != nil {
			log.Printf("⚠️ Stock decrement failed for product %s: %v", item.ProductID.Hex(), err)
		}
	}

	if e.Search != nil {
		if err := e.Search.IndexOrder(ctx, order); err != nil {
			log.Printf("⚠️ Order indexing failed for %s: %v", order.OrderNumber, err)
		}
	}
}
