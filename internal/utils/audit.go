package utils

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"farmstore_back_end/internal/database"
	"farmstore_back_end/internal/models"
)

// Audit actions recorded by the checkout pipeline.
const (
	ActionOrderCreate   = "order.create"
	ActionOrderUpdate   = "order.update"
	ActionOrderCancel   = "order.cancel"
	ActionOrderRefund   = "order.refund"
	ActionPaymentRecord = "payment.record"
	ActionStockUpdate   = "stock.update"
)

const (
	ResourceOrder       = "order"
	ResourceTransaction = "transaction"
	ResourceProduct     = "product"
)

// LogAction appends an audit entry asynchronously. Audit persistence is
// best-effort and never blocks or fails the caller.
func LogAction(action, resource, resourceID, userEmail string, oldValue, newValue interface{}) {
	go func() {
		if err := logAction(action, resource, resourceID, userEmail, oldValue, newValue); err != nil {
			log.Printf("❌ Audit log write failed (%s %s): %v", action, resourceID, err)
		}
	}()
}

func logAction(action, resource, resourceID, userEmail string, oldValue, newValue interface{}) error {
	if database.Mongo == nil {
		return nil
	}

	entry := models.AuditLog{
		Action:     action,
		Resource:   resource,
		ResourceID: resourceID,
		UserEmail:  userEmail,
		OldValue:   marshalValue(oldValue),
		NewValue:   marshalValue(newValue),
		Timestamp:  time.Now(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := database.Mongo.Collection("audit_logs").InsertOne(ctx, entry)
	return err
}

func marshalValue(v interface{}) string {
	if v == nil {
		return ""
	}
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}
