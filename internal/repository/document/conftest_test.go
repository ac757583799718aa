package document

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/kailas-cloud/cityrag/internal/db"
	domdoc "github.com/kailas-cloud/cityrag/internal/domain/document"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	fetchFn  func(ctx context.Context, collection, id string) ([]byte, error)
	streamFn func(ctx context.Context, q *db.Query, fn func(db.Entry) error) error
	commitFn func(ctx context.Context, collection string, ops []db.WriteOp) error
	maxOps   int
}

func (m *mockStore) Fetch(ctx context.Context, collection, id string) ([]byte, error) {
	if m.fetchFn != nil {
		return m.fetchFn(ctx, collection, id)
	}
	return nil, db.ErrKeyNotFound
}

func (m *mockStore) Stream(ctx context.Context, q *db.Query, fn func(db.Entry) error) error {
	if m.streamFn != nil {
		return m.streamFn(ctx, q, fn)
	}
	return nil
}

func (m *mockStore) Commit(ctx context.Context, collection string, ops []db.WriteOp) error {
	if m.commitFn != nil {
		return m.commitFn(ctx, collection, ops)
	}
	return nil
}

func (m *mockStore) MaxBatchOps() int {
	if m.maxOps > 0 {
		return m.maxOps
	}
	return 400
}

var fixedNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("doc-%03d", n)
	}
}

func makeDoc(t *testing.T, city, title string) domdoc.Document {
	t.Helper()
	d, err := domdoc.New(domdoc.Draft{
		Type:     domdoc.TypeEvent,
		Title:    title,
		CitySlug: city,
		AdminIDs: []string{"superadmin"},
		Metadata: domdoc.Metadata{Category: "cultura", Tags: []string{"Música"}, Confidence: domdoc.Confidence(0.8)},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return d
}
