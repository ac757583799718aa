package mongo

import (
	"time"

	"go.mongodb.org/mongo-driver/mongo"
)

// NewStoreForTest creates a Store over an existing database handle (test-only).
func NewStoreForTest(database *mongo.Database, cfg Config, now func() time.Time) *Store {
	s := newStore(database, cfg)
	if now != nil {
		s.now = now
	}
	return s
}
