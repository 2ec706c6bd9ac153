// Package ledger appends financial bookkeeping entries for payments and
// refunds. Entries are append-only and each one leaves an audit trail.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"

	"farmstore_back_end/internal/models"
	"farmstore_back_end/internal/utils"
)

type Ledger struct {
	collection *mongo.Collection
}

func New(db *mongo.Database) *Ledger {
	return &Ledger{collection: db.Collection("transactions")}
}

// RecordSale books the payment received for a fulfilled order.
func (l *Ledger) RecordSale(ctx context.Context, order *models.Order) error {
	return l.append(ctx, models.Transaction{
		Reference:   uuid.NewString(),
		Type:        models.TransactionSale,
		Amount:      order.TotalPrice,
		OrderNumber: order.OrderNumber,
		Note:        fmt.Sprintf("Payment received for order %s", order.OrderNumber),
	})
}

// RecordRefund books the reversal when a paid order is cancelled.
func (l *Ledger) RecordRefund(ctx context.Context, order *models.Order) error {
	return l.append(ctx, models.Transaction{
		Reference:   uuid.NewString(),
		Type:        models.TransactionRefund,
		Amount:      -order.TotalPrice,
		OrderNumber: order.OrderNumber,
		Note:        fmt.Sprintf("Refund issued for order %s", order.OrderNumber),
	})
}

func (l *Ledger) append(ctx context.Context, tx models.Transaction) error {
	tx.CreatedAt = time.Now()
	if _, err := l.collection.InsertOne(ctx, tx); err != nil {
		return err
	}
	utils.LogAction(utils.ActionPaymentRecord, utils.ResourceTransaction, tx.Reference, "", nil, tx)
	return nil
}
