package database

import (
	"context"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnsureIndexes creates the indexes fulfillment correctness depends on.
// The unique index on stripe_session_id is what makes duplicate webhook
// deliveries collapse into a single order.
func EnsureIndexes(db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	orderIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "stripe_session_id", Value: 1}},
			Options: options.Index().SetName("stripe_session_id_unique").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "order_number", Value: 1}},
			Options: options.Index().SetName("order_number_unique").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "customer.email", Value: 1}},
			Options: options.Index().SetName("customer_email_index"),
		},
	}

	if _, err := db.Collection("orders").Indexes().CreateMany(ctx, orderIndexes); err != nil {
		log.Println("❌ Order index creation error:", err)
		return err
	}

	discountIndex := mongo.IndexModel{
		Keys:    bson.D{{Key: "code", Value: 1}},
		Options: options.Index().SetName("discount_code_unique").SetUnique(true),
	}
	if _, err := db.Collection("discounts").Indexes().CreateOne(ctx, discountIndex); err != nil {
		log.Println("❌ Discount index creation error:", err)
		return err
	}

	log.Println("✅ MongoDB indexes ensured")
	return nil
}
