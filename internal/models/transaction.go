package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	TransactionSale   = "SALE"
	TransactionRefund = "REFUND"
)

// Transaction is one financial ledger entry. Entries are append-only.
type Transaction struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Reference   string             `bson:"reference" json:"reference"`
	Type        string             `bson:"type" json:"type"`
	Amount      float64            `bson:"amount" json:"amount"`
	OrderNumber string             `bson:"order_number" json:"orderNumber"`
	Note        string             `bson:"note,omitempty" json:"note,omitempty"`
	CreatedAt   time.Time          `bson:"created_at" json:"createdAt"`
}
