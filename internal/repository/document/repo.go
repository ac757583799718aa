package document

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kailas-cloud/cityrag/internal/db"
	"github.com/kailas-cloud/cityrag/internal/domain"
	"github.com/kailas-cloud/cityrag/internal/domain/batch"
	domdoc "github.com/kailas-cloud/cityrag/internal/domain/document"
	"github.com/kailas-cloud/cityrag/internal/domain/search/filter"
)

// store is the consumer interface for documents (ISP).
type store interface {
	Fetch(ctx context.Context, collection, id string) ([]byte, error)
	Stream(ctx context.Context, q *db.Query, fn func(db.Entry) error) error
	Commit(ctx context.Context, collection string, ops []db.WriteOp) error
	MaxBatchOps() int
}

// Repo persists documents of one collection.
type Repo struct {
	store      store
	collection string
	batchLimit int
	newID      func() string
	now        func() time.Time
	seq        db.Sequencer
}

// Option configures a Repo.
type Option func(*Repo)

// WithCollection overrides the collection name.
func WithCollection(name string) Option {
	return func(r *Repo) { r.collection = name }
}

// WithBatchLimit caps the chunk size below the store's own ceiling.
func WithBatchLimit(n int) Option {
	return func(r *Repo) { r.batchLimit = n }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(r *Repo) { r.now = now }
}

// WithIDGenerator overrides document id generation.
func WithIDGenerator(fn func() string) Option {
	return func(r *Repo) { r.newID = fn }
}

// New creates a document repository.
func New(s store, opts ...Option) *Repo {
	r := &Repo{
		store:      s,
		collection: domain.CollectionDocuments,
		newID:      uuid.NewString,
		now:        time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Collection returns the collection name.
func (r *Repo) Collection() string { return r.collection }

// CreateBatch assigns ids, timestamps and stream sequence numbers and writes docs in chunks.
// Each chunk commits on its own; the report tells which ones landed.
func (r *Repo) CreateBatch(ctx context.Context, docs []domdoc.Document) (batch.Report, error) {
	now := r.now().UTC()
	ops := make([]db.WriteOp, 0, len(docs))
	for i := range docs {
		doc := docs[i].WithIdentity(r.newID(), now)
		j := toJSON(&doc)
		j.Seq = r.seq.Next(now)
		data, err := json.Marshal(j)
		if err != nil {
			return batch.Report{}, fmt.Errorf("marshal document %d: %w", i, err)
		}
		ops = append(ops, db.WriteOp{Kind: db.OpPut, ID: doc.ID(), Data: data})
	}
	return r.commitChunks(ctx, ops), nil
}

// Get returns a document by id.
func (r *Repo) Get(ctx context.Context, id string) (domdoc.Document, error) {
	raw, err := r.store.Fetch(ctx, r.collection, id)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return domdoc.Document{}, fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
		}
		return domdoc.Document{}, fmt.Errorf("fetch %s: %w: %w", id, domain.ErrStoreUnavailable, err)
	}
	return decode(id, raw)
}

// Each calls fn for every document matching expr, in creation order.
// fn may return db.ErrStopStream to end early.
func (r *Repo) Each(ctx context.Context, expr filter.Expression, fn func(domdoc.Document) error) error {
	q := &db.Query{Collection: r.collection, Filter: expr}
	var cbErr error
	err := r.store.Stream(ctx, q, func(e db.Entry) error {
		doc, err := decode(e.ID, e.Data)
		if err == nil {
			err = fn(doc)
		}
		if err != nil && !errors.Is(err, db.ErrStopStream) {
			cbErr = err
		}
		return err
	})
	if cbErr != nil {
		return cbErr
	}
	if err != nil {
		return fmt.Errorf("stream %s: %w: %w", r.collection, domain.ErrStoreUnavailable, err)
	}
	return nil
}

// Find returns up to limit documents matching expr (limit <= 0 means all).
func (r *Repo) Find(ctx context.Context, expr filter.Expression, limit int) ([]domdoc.Document, error) {
	var docs []domdoc.Document
	err := r.Each(ctx, expr, func(d domdoc.Document) error {
		docs = append(docs, d)
		if limit > 0 && len(docs) >= limit {
			return db.ErrStopStream
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return docs, nil
}

// DeleteMatching removes every document matching expr in chunks.
// Ids are collected first so deletes never race the scan.
func (r *Repo) DeleteMatching(ctx context.Context, expr filter.Expression) (batch.Report, error) {
	var ids []string
	err := r.store.Stream(ctx, &db.Query{Collection: r.collection, Filter: expr}, func(e db.Entry) error {
		ids = append(ids, e.ID)
		return nil
	})
	if err != nil {
		return batch.Report{}, fmt.Errorf("scan %s: %w: %w", r.collection, domain.ErrStoreUnavailable, err)
	}

	ops := make([]db.WriteOp, len(ids))
	for i, id := range ids {
		ops[i] = db.WriteOp{Kind: db.OpDelete, ID: id}
	}
	return r.commitChunks(ctx, ops), nil
}

func (r *Repo) chunkSize() int {
	limit := r.store.MaxBatchOps()
	if r.batchLimit > 0 && (limit <= 0 || r.batchLimit < limit) {
		limit = r.batchLimit
	}
	return limit
}

func (r *Repo) commitChunks(ctx context.Context, ops []db.WriteOp) batch.Report {
	var report batch.Report
	for i, b := range batch.Bounds(len(ops), r.chunkSize()) {
		chunk := ops[b[0]:b[1]]
		if err := r.store.Commit(ctx, r.collection, chunk); err != nil {
			wrapped := fmt.Errorf("commit chunk %d: %w: %w", i, domain.ErrStoreUnavailable, err)
			report.Chunks = append(report.Chunks, batch.NewError(i, len(chunk), wrapped))
			continue
		}
		report.Chunks = append(report.Chunks, batch.NewOK(i, len(chunk)))
	}
	return report
}

func decode(id string, raw []byte) (domdoc.Document, error) {
	var j docJSON
	if err := json.Unmarshal(raw, &j); err != nil {
		return domdoc.Document{}, fmt.Errorf("decode document %s: %w", id, err)
	}
	return fromJSON(id, &j), nil
}
