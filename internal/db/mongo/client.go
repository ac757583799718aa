package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/kailas-cloud/cityrag/internal/db"
)

// Compile-time check: Store implements db.Store.
var _ db.Store = (*Store)(nil)

// DefaultBatchLimit caps the operations inside one BulkWrite commit.
const DefaultBatchLimit = 400

// kvCollection holds KVStore entries.
const kvCollection = "kv"

// Config holds connection parameters for a MongoDB store.
type Config struct {
	URI        string
	Database   string
	Username   string
	Password   string
	BatchLimit int
}

// Store implements db.Store on MongoDB. Each logical collection maps to a
// MongoDB collection; document ids are stored as _id.
type Store struct {
	client     *mongo.Client
	database   *mongo.Database
	batchLimit int
	now        func() time.Time
}

// NewStore connects to MongoDB. Connectivity is checked lazily by WaitForReady.
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("uri is required")
	}
	if cfg.Database == "" {
		return nil, fmt.Errorf("database is required")
	}

	opts := options.Client().ApplyURI(cfg.URI)
	if cfg.Username != "" && cfg.Password != "" {
		opts.SetAuth(options.Credential{
			Username: cfg.Username,
			Password: cfg.Password,
		})
	}

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	return newStore(client.Database(cfg.Database), cfg), nil
}

func newStore(database *mongo.Database, cfg Config) *Store {
	limit := cfg.BatchLimit
	if limit <= 0 {
		limit = DefaultBatchLimit
	}
	return &Store{database: database, client: database.Client(), batchLimit: limit, now: time.Now}
}

// Ping checks connectivity against the primary.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Close disconnects the client.
func (s *Store) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.client.Disconnect(ctx)
}

// WaitForReady polls Ping until the store responds or timeout expires.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for database: %w", ctx.Err())
		case <-ticker.C:
			if err := s.Ping(ctx); err == nil {
				return nil
			}
		}
	}
}

// MaxBatchOps returns the per-commit operation ceiling.
func (s *Store) MaxBatchOps() int { return s.batchLimit }

// EnsureCollections creates the filter indexes of every collection and the kv TTL index.
func (s *Store) EnsureCollections(ctx context.Context, collections ...string) error {
	for _, c := range collections {
		models := []mongo.IndexModel{
			{Keys: bson.D{{Key: "citySlug", Value: 1}, {Key: "type", Value: 1}}},
			{Keys: bson.D{{Key: "isActive", Value: 1}, {Key: "hasEmbedding", Value: 1}}},
			{Keys: bson.D{{Key: db.SeqField, Value: 1}, {Key: "_id", Value: 1}}},
		}
		if _, err := s.database.Collection(c).Indexes().CreateMany(ctx, models); err != nil {
			return &db.Error{Op: db.OpCreateIndexes, Err: fmt.Errorf("%s: %w", c, err)}
		}
	}

	ttl := mongo.IndexModel{
		Keys:    bson.D{{Key: "expiresAt", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0),
	}
	if _, err := s.database.Collection(kvCollection).Indexes().CreateOne(ctx, ttl); err != nil {
		return &db.Error{Op: db.OpCreateIndexes, Err: fmt.Errorf("%s: %w", kvCollection, err)}
	}
	return nil
}
