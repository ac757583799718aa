package document

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/kailas-cloud/cityrag/internal/db"
	"github.com/kailas-cloud/cityrag/internal/db/memory"
	"github.com/kailas-cloud/cityrag/internal/domain"
	domdoc "github.com/kailas-cloud/cityrag/internal/domain/document"
	"github.com/kailas-cloud/cityrag/internal/domain/search/filter"
)

func newMemoryRepo(s *memory.Store, opts ...Option) *Repo {
	base := []Option{WithClock(func() time.Time { return fixedNow }), WithIDGenerator(sequentialIDs())}
	return New(s, append(base, opts...)...)
}

func cityExpr(t *testing.T, slug string) filter.Expression {
	t.Helper()
	c, err := filter.NewMatch(filter.FieldCitySlug, slug)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expr, err := filter.NewExpression(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return expr
}

func TestCreateBatch_RoundTrip(t *testing.T) {
	s := memory.New()
	r := newMemoryRepo(s)
	ctx := context.Background()

	doc := makeDoc(t, "madrid", "Concierto")
	doc = doc.WithEmbedding([]float32{0.1, 0.2})

	report, err := r.CreateBatch(ctx, []domdoc.Document{doc})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Committed() != 1 || report.Err() != nil {
		t.Fatalf("unexpected report: committed=%d err=%v", report.Committed(), report.Err())
	}

	got, err := r.Get(ctx, "doc-001")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Title() != "Concierto" || got.CitySlug() != "madrid" || got.CityName() != "madrid" {
		t.Errorf("unexpected document: %+v", got.State())
	}
	if !got.CreatedAt().Equal(fixedNow) || !got.UpdatedAt().Equal(fixedNow) {
		t.Errorf("unexpected timestamps: %v %v", got.CreatedAt(), got.UpdatedAt())
	}
	if !got.HasEmbedding() || got.EmbeddingDimensions() != 2 {
		t.Errorf("expected 2-dim embedding, got %v", got.Embedding())
	}
	if got.Metadata().ConfidenceValue() != 0.8 {
		t.Errorf("unexpected confidence %v", got.Metadata().ConfidenceValue())
	}
	if !got.IsActive() {
		t.Error("expected active document")
	}
}

func TestCreateBatch_StoredShape(t *testing.T) {
	s := memory.New()
	r := newMemoryRepo(s)
	ctx := context.Background()

	if _, err := r.CreateBatch(ctx, []domdoc.Document{makeDoc(t, "madrid", "Feria")}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	raw, err := s.Fetch(ctx, domain.CollectionDocuments, "doc-001")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if m["hasEmbedding"] != false || m["embeddingDimensions"] != float64(0) {
		t.Errorf("unexpected embedding flags: %v %v", m["hasEmbedding"], m["embeddingDimensions"])
	}
	if emb, ok := m["embedding"].([]any); !ok || len(emb) != 0 {
		t.Errorf("expected empty embedding array, got %#v", m["embedding"])
	}
	if m["createdAt"] != float64(fixedNow.UnixMilli()) {
		t.Errorf("unexpected createdAt %v", m["createdAt"])
	}
	for _, key := range []string{"citySlug", "cityName", "adminIds", "searchKeywords", "metadata", "isActive"} {
		if _, ok := m[key]; !ok {
			t.Errorf("missing field %q", key)
		}
	}
}

func TestCreateBatch_SeqStrictlyIncreasing(t *testing.T) {
	s := memory.New()
	r := newMemoryRepo(s)
	ctx := context.Background()

	docs := []domdoc.Document{makeDoc(t, "madrid", "a"), makeDoc(t, "madrid", "b"), makeDoc(t, "madrid", "c")}
	if _, err := r.CreateBatch(ctx, docs); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := r.CreateBatch(ctx, []domdoc.Document{makeDoc(t, "madrid", "d")}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var prev int64
	for i, id := range []string{"doc-001", "doc-002", "doc-003", "doc-004"} {
		raw, err := s.Fetch(ctx, domain.CollectionDocuments, id)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		var j docJSON
		if err := json.Unmarshal(raw, &j); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if j.CreatedAt != fixedNow.UnixMilli() {
			t.Errorf("%s: unexpected createdAt %d", id, j.CreatedAt)
		}
		if i == 0 && j.Seq != fixedNow.UnixMicro() {
			t.Errorf("expected first seq %d, got %d", fixedNow.UnixMicro(), j.Seq)
		}
		if i > 0 && j.Seq <= prev {
			t.Errorf("%s: seq %d not above %d", id, j.Seq, prev)
		}
		prev = j.Seq
	}
}

func TestCreateBatch_Chunks(t *testing.T) {
	s := memory.New()
	r := newMemoryRepo(s, WithBatchLimit(2))

	docs := []domdoc.Document{
		makeDoc(t, "madrid", "a"), makeDoc(t, "madrid", "b"),
		makeDoc(t, "madrid", "c"), makeDoc(t, "madrid", "d"), makeDoc(t, "madrid", "e"),
	}
	report, err := r.CreateBatch(context.Background(), docs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(report.Chunks) != 3 || report.CommittedChunks() != 3 || report.Committed() != 5 {
		t.Errorf("unexpected report: %d chunks, %d committed", len(report.Chunks), report.Committed())
	}
	if s.Commits() != 3 {
		t.Errorf("expected 3 commits, got %d", s.Commits())
	}
}

func TestCreateBatch_StoreCeilingWins(t *testing.T) {
	var sizes []int
	ms := &mockStore{
		maxOps: 2,
		commitFn: func(_ context.Context, _ string, ops []db.WriteOp) error {
			sizes = append(sizes, len(ops))
			return nil
		},
	}
	r := New(ms, WithBatchLimit(10))

	docs := []domdoc.Document{makeDoc(t, "x", "a"), makeDoc(t, "x", "b"), makeDoc(t, "x", "c")}
	if _, err := r.CreateBatch(context.Background(), docs); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sizes) != 2 || sizes[0] != 2 || sizes[1] != 1 {
		t.Errorf("unexpected chunk sizes %v", sizes)
	}
}

func TestCreateBatch_PartialFailure(t *testing.T) {
	calls := 0
	ms := &mockStore{
		maxOps: 1,
		commitFn: func(context.Context, string, []db.WriteOp) error {
			calls++
			if calls == 2 {
				return errors.New("connection reset")
			}
			return nil
		},
	}
	r := New(ms)

	docs := []domdoc.Document{makeDoc(t, "x", "a"), makeDoc(t, "x", "b"), makeDoc(t, "x", "c")}
	report, err := r.CreateBatch(context.Background(), docs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Committed() != 2 || report.CommittedChunks() != 2 {
		t.Errorf("expected 2 committed, got %d", report.Committed())
	}
	if !errors.Is(report.Err(), domain.ErrStoreUnavailable) {
		t.Errorf("expected ErrStoreUnavailable, got %v", report.Err())
	}
}

func TestGet_NotFound(t *testing.T) {
	r := New(&mockStore{})
	_, err := r.Get(context.Background(), "missing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestGet_StoreError(t *testing.T) {
	r := New(&mockStore{
		fetchFn: func(context.Context, string, string) ([]byte, error) {
			return nil, &db.Error{Op: db.OpJSONGet, Err: errors.New("boom")}
		},
	})
	_, err := r.Get(context.Background(), "x")
	if !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Errorf("expected ErrStoreUnavailable, got %v", err)
	}
}

func TestFind_FilterAndLimit(t *testing.T) {
	s := memory.New()
	r := newMemoryRepo(s)
	ctx := context.Background()

	docs := []domdoc.Document{
		makeDoc(t, "madrid", "a"), makeDoc(t, "sevilla", "b"),
		makeDoc(t, "madrid", "c"), makeDoc(t, "madrid", "d"),
	}
	if _, err := r.CreateBatch(ctx, docs); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := r.Find(ctx, cityExpr(t, "madrid"), 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0].Title() != "a" || got[1].Title() != "c" {
		t.Errorf("unexpected result: %d docs", len(got))
	}

	all, err := r.Find(ctx, filter.Expression{}, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all) != 4 {
		t.Errorf("expected 4 docs, got %d", len(all))
	}
}

func TestEach_CallbackErrorPassesThrough(t *testing.T) {
	s := memory.New()
	r := newMemoryRepo(s)
	ctx := context.Background()
	_, _ = r.CreateBatch(ctx, []domdoc.Document{makeDoc(t, "madrid", "a")})

	sentinel := errors.New("stop here")
	err := r.Each(ctx, filter.Expression{}, func(domdoc.Document) error { return sentinel })
	if !errors.Is(err, sentinel) {
		t.Errorf("expected callback error, got %v", err)
	}
	if errors.Is(err, domain.ErrStoreUnavailable) {
		t.Error("callback errors are not store failures")
	}
}

func TestEach_StreamError(t *testing.T) {
	r := New(&mockStore{
		streamFn: func(context.Context, *db.Query, func(db.Entry) error) error {
			return &db.Error{Op: db.OpSearch, Err: errors.New("down")}
		},
	})
	err := r.Each(context.Background(), filter.Expression{}, func(domdoc.Document) error { return nil })
	if !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Errorf("expected ErrStoreUnavailable, got %v", err)
	}
}

func TestEach_CorruptEntry(t *testing.T) {
	r := New(&mockStore{
		streamFn: func(_ context.Context, _ *db.Query, fn func(db.Entry) error) error {
			return fn(db.Entry{ID: "bad", Data: []byte("{")})
		},
	})
	err := r.Each(context.Background(), filter.Expression{}, func(domdoc.Document) error { return nil })
	if err == nil {
		t.Fatal("expected decode error")
	}
}

func TestDeleteMatching(t *testing.T) {
	s := memory.New()
	r := newMemoryRepo(s, WithBatchLimit(2))
	ctx := context.Background()

	docs := []domdoc.Document{
		makeDoc(t, "madrid", "a"), makeDoc(t, "sevilla", "b"),
		makeDoc(t, "madrid", "c"), makeDoc(t, "madrid", "d"),
	}
	if _, err := r.CreateBatch(ctx, docs); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	report, err := r.DeleteMatching(ctx, cityExpr(t, "madrid"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Committed() != 3 || report.CommittedChunks() != 2 {
		t.Errorf("unexpected report: committed=%d chunks=%d", report.Committed(), report.CommittedChunks())
	}

	left, _ := r.Find(ctx, filter.Expression{}, 0)
	if len(left) != 1 || left[0].CitySlug() != "sevilla" {
		t.Errorf("unexpected remaining docs: %d", len(left))
	}
}

func TestDeleteMatching_Empty(t *testing.T) {
	r := newMemoryRepo(memory.New())
	report, err := r.DeleteMatching(context.Background(), cityExpr(t, "nowhere"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(report.Chunks) != 0 || report.Committed() != 0 {
		t.Errorf("expected empty report, got %+v", report)
	}
}
