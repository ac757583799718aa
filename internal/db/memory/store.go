package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kailas-cloud/cityrag/internal/db"
	"github.com/kailas-cloud/cityrag/internal/domain/search/filter"
)

// Compile-time check: Store implements db.Store.
var _ db.Store = (*Store)(nil)

// DefaultBatchLimit mirrors the hosted backends' per-commit ceiling.
const DefaultBatchLimit = 400

type record struct {
	data []byte
	seq  int64
}

type kvRecord struct {
	value     []byte
	expiresAt time.Time
}

// Store is an in-process db.Store for local runs and tests.
type Store struct {
	mu          sync.RWMutex
	collections map[string]map[string]record
	kv          map[string]kvRecord
	seq         int64
	commits     int
	batchLimit  int
	now         func() time.Time
}

// Option configures a memory Store.
type Option func(*Store)

// WithBatchLimit overrides the per-commit operation ceiling.
func WithBatchLimit(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.batchLimit = n
		}
	}
}

// WithClock overrides the clock used for KV expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		collections: make(map[string]map[string]record),
		kv:          make(map[string]kvRecord),
		batchLimit:  DefaultBatchLimit,
		now:         time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// Close is a no-op.
func (s *Store) Close() {}

// WaitForReady returns immediately.
func (s *Store) WaitForReady(context.Context, time.Duration) error { return nil }

// MaxBatchOps returns the per-commit operation ceiling.
func (s *Store) MaxBatchOps() int { return s.batchLimit }

// EnsureCollections creates empty collections.
func (s *Store) EnsureCollections(_ context.Context, collections ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range collections {
		if _, ok := s.collections[c]; !ok {
			s.collections[c] = make(map[string]record)
		}
	}
	return nil
}

// Commits returns how many non-empty commits have been applied.
func (s *Store) Commits() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.commits
}

// Fetch retrieves one document by collection and id.
func (s *Store) Fetch(_ context.Context, collection, id string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.collections[collection][id]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return append([]byte(nil), r.data...), nil
}

// Stream iterates matching documents in insertion order over a snapshot,
// so fn may write to the store.
func (s *Store) Stream(ctx context.Context, q *db.Query, fn func(db.Entry) error) error {
	if q == nil || q.Collection == "" {
		return fmt.Errorf("collection is required")
	}

	entries, err := s.snapshot(q)
	if err != nil {
		return err
	}

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := fn(e)
		if errors.Is(err, db.ErrStopStream) {
			return nil
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) snapshot(q *db.Query) ([]db.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type seqEntry struct {
		db.Entry
		seq int64
	}
	var matched []seqEntry
	for id, r := range s.collections[q.Collection] {
		ok, err := matches(r.data, q.Filter)
		if err != nil {
			return nil, fmt.Errorf("evaluate filter on %s: %w", id, err)
		}
		if ok {
			matched = append(matched, seqEntry{Entry: db.Entry{ID: id, Data: append([]byte(nil), r.data...)}, seq: r.seq})
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].seq < matched[j].seq })

	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}
	out := make([]db.Entry, len(matched))
	for i, m := range matched {
		out[i] = m.Entry
	}
	return out, nil
}

// Commit applies ops atomically under the write lock.
func (s *Store) Commit(_ context.Context, collection string, ops []db.WriteOp) error {
	if len(ops) == 0 {
		return nil
	}
	if len(ops) > s.batchLimit {
		return &db.Error{Op: db.OpCommit, Err: fmt.Errorf("%d ops, limit %d: %w", len(ops), s.batchLimit, db.ErrBatchTooLarge)}
	}
	for _, op := range ops {
		if op.Kind == db.OpPut && !json.Valid(op.Data) {
			return &db.Error{Op: db.OpCommit, Err: fmt.Errorf("document %s is not valid JSON", op.ID)}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	coll, ok := s.collections[collection]
	if !ok {
		coll = make(map[string]record)
		s.collections[collection] = coll
	}
	for _, op := range ops {
		switch op.Kind {
		case db.OpPut:
			seq := s.seq
			if existing, ok := coll[op.ID]; ok {
				seq = existing.seq
			} else {
				s.seq++
			}
			coll[op.ID] = record{data: append([]byte(nil), op.Data...), seq: seq}
		case db.OpDelete:
			delete(coll, op.ID)
		}
	}
	s.commits++
	return nil
}

// Get retrieves a value by key.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.kv[key]
	if !ok || (!r.expiresAt.IsZero() && !r.expiresAt.After(s.now())) {
		return nil, db.ErrKeyNotFound
	}
	return append([]byte(nil), r.value...), nil
}

// Set stores a value at the given key.
func (s *Store) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kv[key] = kvRecord{value: append([]byte(nil), value...)}
	return nil
}

// SetWithTTL stores a value with an expiration.
func (s *Store) SetWithTTL(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kv[key] = kvRecord{value: append([]byte(nil), value...), expiresAt: s.now().Add(ttl)}
	return nil
}

// matches evaluates a conjunction of equality conditions against a JSON document.
// Array fields match when any element equals the value.
func matches(data []byte, expr filter.Expression) (bool, error) {
	if expr.IsEmpty() {
		return true, nil
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return false, err
	}
	for _, cond := range expr.Must() {
		if !matchValue(doc[cond.Key()], cond) {
			return false, nil
		}
	}
	return true, nil
}

func matchValue(v any, cond filter.Condition) bool {
	switch val := v.(type) {
	case bool:
		return cond.IsBool() && val == cond.Bool()
	case string:
		return !cond.IsBool() && val == cond.Match()
	case []any:
		for _, item := range val {
			if matchValue(item, cond) {
				return true
			}
		}
	}
	return false
}
