package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type AuditLog struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Action     string             `bson:"action" json:"action"`
	Resource   string             `bson:"resource" json:"resource"`
	ResourceID string             `bson:"resource_id" json:"resourceId"`
	UserEmail  string             `bson:"user_email,omitempty" json:"userEmail,omitempty"`
	OldValue   string             `bson:"old_value,omitempty" json:"oldValue,omitempty"`
	NewValue   string             `bson:"new_value,omitempty" json:"newValue,omitempty"`
	Timestamp  time.Time          `bson:"timestamp" json:"timestamp"`
}
