package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"farmstore_back_end/internal/models"
)

const productCacheTTL = 10 * time.Minute

type ProductRepository struct {
	collection *mongo.Collection
	cache      *redis.Client
}

// NewProductRepository builds a product repo with an optional read-through
// Redis cache in front of Mongo. Pass nil to skip caching.
func NewProductRepository(db *mongo.Database, cache *redis.Client) *ProductRepository {
	return &ProductRepository{collection: db.Collection("products"), cache: cache}
}

func (r *ProductRepository) FindByID(ctx context.Context, id string) (*models.Product, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}

	if r.cache != nil {
		if data, err := r.cache.Get(ctx, "product:"+id).Result(); err == nil {
			var product models.Product
			if json.Unmarshal([]byte(data), &product) == nil {
				return &product, nil
			}
		}
	}

	var product models.Product
	err = r.collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&product)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if r.cache != nil {
		if data, err := json.Marshal(product); err == nil {
			r.cache.Set(ctx, "product:"+id, data, productCacheTTL)
		}
	}
	return &product, nil
}

func (r *ProductRepository) List(ctx context.Context) ([]models.Product, error) {
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{"is_active": true}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var products []models.Product
	if err := cursor.All(ctx, &products); err != nil {
		return nil, err
	}
	return products, nil
}

// IncrementStock adjusts stock by delta as one atomic field increment.
// Negative delta decrements (fulfillment), positive restocks (cancel).
func (r *ProductRepository) IncrementStock(ctx context.Context, id string, delta int) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}

	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": oid},
		bson.M{"$inc": bson.M{"stock": delta}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}

	if r.cache != nil {
		r.cache.Del(ctx, "product:"+id)
	}
	return nil
}
