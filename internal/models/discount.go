package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	DiscountPercentage = "PERCENTAGE"
	DiscountFixed      = "FIXED"
)

type Discount struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Code        string             `bson:"code" json:"code"`
	Type        string             `bson:"type" json:"type"`
	Value       float64            `bson:"value" json:"value"`
	MinPurchase float64            `bson:"min_purchase" json:"minPurchase"`
	UsageLimit  int                `bson:"usage_limit" json:"usageLimit"`
	TimesUsed   int                `bson:"times_used" json:"timesUsed"`
	IsActive    bool               `bson:"is_active" json:"isActive"`
	StartsAt    time.Time          `bson:"starts_at" json:"startsAt"`
	ExpiresAt   time.Time          `bson:"expires_at" json:"expiresAt"`
	CreatedAt   time.Time          `bson:"created_at" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updated_at" json:"updatedAt"`
}

// AmountFor computes the discount actually granted on a subtotal.
func (d Discount) AmountFor(subtotal float64) float64 {
	var amount float64
	switch d.Type {
	case DiscountPercentage:
		amount = subtotal * d.Value / 100
	case DiscountFixed:
		amount = d.Value
	}
	if amount > subtotal {
		amount = subtotal
	}
	return amount
}

// UsableAt reports whether the discount can be applied right now against
// the given subtotal. The date window is inclusive on both ends.
func (d Discount) UsableAt(now time.Time, subtotal float64) bool {
	if !d.IsActive {
		return false
	}
	if now.Before(d.StartsAt) || now.After(d.ExpiresAt) {
		return false
	}
	if subtotal < d.MinPurchase {
		return false
	}
	if d.UsageLimit > 0 && d.TimesUsed >= d.UsageLimit {
		return false
	}
	return true
}
