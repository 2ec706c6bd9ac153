package repository

import (
	"context"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"farmstore_back_end/internal/models"
)

type DiscountRepository struct {
	collection *mongo.Collection
}

func NewDiscountRepository(db *mongo.Database) *DiscountRepository {
	return &DiscountRepository{collection: db.Collection("discounts")}
}

func (r *DiscountRepository) FindByID(ctx context.Context, id string) (*models.Discount, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}

	var discount models.Discount
	err = r.collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&discount)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &discount, nil
}

// FindByCode looks a discount up by its customer-facing code. Codes are
// stored uppercase and matched case-insensitively.
func (r *DiscountRepository) FindByCode(ctx context.Context, code string) (*models.Discount, error) {
	var discount models.Discount
	err := r.collection.FindOne(ctx, bson.M{"code": strings.ToUpper(strings.TrimSpace(code))}).Decode(&discount)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &discount, nil
}

// IncrementUsage bumps the usage counter after a discount was actually
// applied to a fulfilled order.
func (r *DiscountRepository) IncrementUsage(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$inc": bson.M{"times_used": 1}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
