package db

import (
	"context"
	"time"
)

// Store is the main database facade combining all sub-interfaces.
//
//nolint:interfacebloat // facade; consumers depend on the narrow sub-interfaces
type Store interface {
	Pinger
	DocumentStore
	KVStore
	SchemaManager
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// DocumentStore provides JSON document operations over named collections.
type DocumentStore interface {
	// Fetch returns one document by id or ErrKeyNotFound.
	Fetch(ctx context.Context, collection, id string) ([]byte, error)
	// Stream calls fn for every document matching q, in store order.
	// fn may return ErrStopStream to end iteration early without error.
	Stream(ctx context.Context, q *Query, fn func(Entry) error) error
	// Commit applies ops as one batch, atomically where the backend allows.
	// len(ops) must not exceed MaxBatchOps.
	Commit(ctx context.Context, collection string, ops []WriteOp) error
	// MaxBatchOps is the per-batch operation ceiling of the backend.
	MaxBatchOps() int
}

// KVStore provides simple key-value operations.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// SchemaManager prepares backend-side structures (indexes) for collections.
type SchemaManager interface {
	EnsureCollections(ctx context.Context, collections ...string) error
}
