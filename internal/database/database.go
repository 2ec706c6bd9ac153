package database

import (
	"context"
	"log"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"farmstore_back_end/internal/config"
)

var (
	Mongo   *mongo.Database
	Redis   *redis.Client
	Elastic *elasticsearch.Client
	MinIO   *minio.Client
)

// ConnectDatabases wires up every backing store. Mongo and Redis are
// required; Elasticsearch and MinIO are optional and the features that
// need them degrade to no-ops when unset.
func ConnectDatabases(cfg config.App) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	connectMongo(ctx, cfg)
	connectRedis(ctx, cfg)
	connectElastic(cfg)
	connectMinIO(ctx, cfg)

	log.Println("✅ All data stores connected")
}

func connectMongo(ctx context.Context, cfg config.App) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatalf("❌ MongoDB connection failed: %v", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		log.Fatalf("❌ MongoDB ping failed: %v", err)
	}
	Mongo = client.Database(cfg.DBName)
	log.Println("✅ Connected to MongoDB:", cfg.DBName)

	if err := EnsureIndexes(Mongo); err != nil {
		log.Fatalf("❌ Index creation failed: %v", err)
	}
}

func connectRedis(ctx context.Context, cfg config.App) {
	Redis = redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	})

	if err := Redis.Ping(ctx).Err(); err != nil {
		log.Fatal("❌ Redis connection failed:", err)
	}
	log.Println("✅ Connected to Redis")
}

func connectElastic(cfg config.App) {
	if cfg.ElasticURL == "" {
		log.Println("⚠️ ELASTIC_URL not set, order search indexing disabled")
		return
	}

	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{cfg.ElasticURL},
		Username:  cfg.ElasticUser,
		Password:  cfg.ElasticPassword,
	})
	if err != nil {
		log.Println("⚠️ Elasticsearch client error:", err)
		return
	}

	res, err := client.Info()
	if err != nil {
		log.Println("⚠️ Elasticsearch unreachable:", err)
		return
	}
	defer res.Body.Close()

	Elastic = client
	log.Println("✅ Connected to Elasticsearch")
}

func connectMinIO(ctx context.Context, cfg config.App) {
	if cfg.MinioEndpoint == "" {
		log.Println("⚠️ MINIO_ENDPOINT not set, invoice archiving disabled")
		return
	}

	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
	})
	if err != nil {
		log.Println("⚠️ MinIO connection failed:", err)
		return
	}

	exists, err := client.BucketExists(ctx, cfg.InvoiceBucket)
	if err != nil {
		log.Println("⚠️ MinIO bucket check failed:", err)
		return
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.InvoiceBucket, minio.MakeBucketOptions{}); err != nil {
			log.Println("⚠️ MinIO bucket creation failed:", err)
			return
		}
		log.Println("🪣 Bucket created:", cfg.InvoiceBucket)
	}

	MinIO = client
	log.Println("✅ Connected to MinIO:", cfg.MinioEndpoint)
}
