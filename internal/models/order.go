package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type OrderStatus string

const (
	OrderPending    OrderStatus = "PENDING"
	OrderProcessing OrderStatus = "PROCESSING"
	OrderShipped    OrderStatus = "SHIPPED"
	OrderDelivered  OrderStatus = "DELIVERED"
	OrderCancelled  OrderStatus = "CANCELLED"
)

// OrderItem is owned by its order. ProductID may be nil when the product
// was deleted after checkout but before fulfillment.
type OrderItem struct {
	ProductID *primitive.ObjectID `bson:"product_id,omitempty" json:"productId,omitempty"`
	Name      string              `bson:"name" json:"name"`
	Quantity  int                 `bson:"quantity" json:"quantity"`
	Price     float64             `bson:"price" json:"price"`
	Image     string              `bson:"image,omitempty" json:"image,omitempty"`
}

type OrderCustomer struct {
	Name  string `bson:"name" json:"name"`
	Email string `bson:"email" json:"email"`
}

type ShippingAddress struct {
	Line       string `bson:"line" json:"line"`
	City       string `bson:"city" json:"city"`
	PostalCode string `bson:"postal_code" json:"postalCode"`
	Phone      string `bson:"phone,omitempty" json:"phone,omitempty"`
}

// DiscountSnapshot freezes the discount terms actually applied at
// fulfillment time, so later edits of the live discount never rewrite
// order history.
type DiscountSnapshot struct {
	DiscountID primitive.ObjectID `bson:"discount_id" json:"discountId"`
	Code       string             `bson:"code" json:"code"`
	Type       string             `bson:"type" json:"type"`
	Amount     float64            `bson:"amount" json:"amount"`
}

type Order struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	OrderNumber     string             `bson:"order_number" json:"orderNumber"`
	Customer        OrderCustomer      `bson:"customer" json:"customer"`
	Items           []OrderItem        `bson:"items" json:"items"`
	ShippingAddress ShippingAddress    `bson:"shipping_address" json:"shippingAddress"`
	TotalPrice      float64            `bson:"total_price" json:"totalPrice"`
	IsPaid          bool               `bson:"is_paid" json:"isPaid"`
	PaidAt          *time.Time         `bson:"paid_at,omitempty" json:"paidAt,omitempty"`
	Status          OrderStatus        `bson:"status" json:"status"`
	StripeSessionID string             `bson:"stripe_session_id" json:"stripeSessionId"`
	Discount        *DiscountSnapshot  `bson:"discount,omitempty" json:"discount,omitempty"`
	DeliveredAt     *time.Time         `bson:"delivered_at,omitempty" json:"deliveredAt,omitempty"`
	CreatedAt       time.Time          `bson:"created_at" json:"createdAt"`
	UpdatedAt       time.Time          `bson:"updated_at" json:"updatedAt"`
}
