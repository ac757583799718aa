package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/kailas-cloud/cityrag/internal/db"
)

type kvEntry struct {
	Key       string     `bson:"_id"`
	Value     []byte     `bson:"value"`
	ExpiresAt *time.Time `bson:"expiresAt,omitempty"`
}

// Get retrieves a value by key. Expired entries not yet reaped by the TTL monitor count as missing.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var e kvEntry
	err := s.database.Collection(kvCollection).FindOne(ctx, bson.M{"_id": key}).Decode(&e)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, db.ErrKeyNotFound
		}
		return nil, &db.Error{Op: db.OpGet, Err: err}
	}
	if e.ExpiresAt != nil && !e.ExpiresAt.After(s.now()) {
		return nil, db.ErrKeyNotFound
	}
	return e.Value, nil
}

// Set stores a value at the given key.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	return s.put(ctx, kvEntry{Key: key, Value: value})
}

// SetWithTTL stores a value with an expiration.
func (s *Store) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	exp := s.now().Add(ttl)
	return s.put(ctx, kvEntry{Key: key, Value: value, ExpiresAt: &exp})
}

func (s *Store) put(ctx context.Context, e kvEntry) error {
	_, err := s.database.Collection(kvCollection).ReplaceOne(ctx,
		bson.M{"_id": e.Key}, e, options.Replace().SetUpsert(true))
	if err != nil {
		return &db.Error{Op: db.OpSet, Err: err}
	}
	return nil
}
