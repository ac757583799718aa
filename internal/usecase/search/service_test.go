package search

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kailas-cloud/cityrag/internal/db/memory"
	"github.com/kailas-cloud/cityrag/internal/domain"
	domdoc "github.com/kailas-cloud/cityrag/internal/domain/document"
	"github.com/kailas-cloud/cityrag/internal/domain/query"
	"github.com/kailas-cloud/cityrag/internal/domain/search/filter"
	"github.com/kailas-cloud/cityrag/internal/domain/search/result"
	docrepo "github.com/kailas-cloud/cityrag/internal/repository/document"
)

// --- Mocks ---

type mockRepo struct {
	docs     []domdoc.Document
	err      error
	lastExpr filter.Expression
	lastLim  int
	calls    int
}

func (m *mockRepo) Find(_ context.Context, expr filter.Expression, limit int) ([]domdoc.Document, error) {
	m.calls++
	m.lastExpr = expr
	m.lastLim = limit
	if m.err != nil {
		return nil, m.err
	}
	if limit > 0 && len(m.docs) > limit {
		return m.docs[:limit], nil
	}
	return m.docs, nil
}

type mockEmbedder struct {
	vec    []float32
	err    error
	called bool
}

func (m *mockEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	m.called = true
	return domain.EmbeddingResult{Embedding: m.vec}, m.err
}

// --- Helpers ---

var limits = query.Limits{Default: 10, Max: 100}

func mustQuery(t *testing.T, text, city, typ string, limit int) query.Query {
	t.Helper()
	q, err := query.New(text, city, typ, limit, limits)
	require.NoError(t, err)
	return q
}

func draftDoc(t *testing.T, city, title, description string, tags ...string) domdoc.Document {
	t.Helper()
	d, err := domdoc.New(domdoc.Draft{
		Type:        domdoc.TypeEvent,
		Title:       title,
		Description: description,
		CitySlug:    city,
		Metadata:    domdoc.Metadata{Category: "cultura", Location: "Plaza Mayor", Tags: tags},
	})
	require.NoError(t, err)
	return d
}

func inactive(d domdoc.Document) domdoc.Document {
	st := d.State()
	st.IsActive = false
	return domdoc.Reconstruct(st)
}

func titles(rs []result.Result) []string {
	out := make([]string, 0, len(rs))
	for _, r := range rs {
		d := r.Document()
		out = append(out, d.Title())
	}
	return out
}

func conditionKeys(expr filter.Expression) map[string]string {
	out := make(map[string]string)
	for _, c := range expr.Must() {
		out[c.Key()] = c.Match()
	}
	return out
}

func newStoreRepo(t *testing.T, docs ...domdoc.Document) *docrepo.Repo {
	t.Helper()
	n := 0
	repo := docrepo.New(memory.New(), docrepo.WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("doc-%02d", n)
	}))
	if len(docs) > 0 {
		_, err := repo.CreateBatch(context.Background(), docs)
		require.NoError(t, err)
	}
	return repo
}

// --- Keyword scoring ---

func TestKeywordScore_Weights(t *testing.T) {
	d := draftDoc(t, "valencia", "Festival de Música", "concierto gratuito", "verano")

	tests := []struct {
		name   string
		tokens []string
		want   int
	}{
		{"title and keyword", []string{"música"}, 3 + 1},
		{"description and keyword", []string{"gratuito"}, 2 + 1},
		{"metadata only", []string{"plaza"}, 1},
		{"tag as keyword and metadata", []string{"verano"}, 1 + 1},
		{"substring without keyword", []string{"fest"}, 3},
		{"no match", []string{"teatro"}, 0},
		{"sums tokens", []string{"música", "gratuito"}, 4 + 3},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, KeywordScore(tc.tokens, &d))
		})
	}
}

func TestKeyword_OverFetchesAndFilters(t *testing.T) {
	repo := &mockRepo{}
	svc := New(repo, nil)

	_, err := svc.Keyword(context.Background(), mustQuery(t, "feria", "madrid", "event", 5))
	require.NoError(t, err)

	assert.Equal(t, 10, repo.lastLim)
	assert.Equal(t, map[string]string{
		filter.FieldIsActive: "true",
		filter.FieldCitySlug: "madrid",
		filter.FieldType:     "event",
	}, conditionKeys(repo.lastExpr))
}

func TestKeyword_AllFiltersOmitted(t *testing.T) {
	repo := &mockRepo{}
	svc := New(repo, nil)

	_, err := svc.Keyword(context.Background(), mustQuery(t, "feria", "all", "", 0))
	require.NoError(t, err)

	assert.Equal(t, map[string]string{filter.FieldIsActive: "true"}, conditionKeys(repo.lastExpr))
	assert.Equal(t, 20, repo.lastLim)
}

func TestKeyword_DropsZeroAndRanks(t *testing.T) {
	repo := &mockRepo{docs: []domdoc.Document{
		draftDoc(t, "madrid", "Mercado", "puestos de artesanía"),
		draftDoc(t, "madrid", "Teatro", "obra de teatro en la feria"),
		draftDoc(t, "madrid", "Feria del libro", "feria anual"),
	}}
	svc := New(repo, nil)

	out, err := svc.Keyword(context.Background(), mustQuery(t, "feria", "madrid", "all", 10))
	require.NoError(t, err)

	assert.Equal(t, []string{"Feria del libro", "Teatro"}, titles(out.Results))
	assert.Greater(t, out.Results[0].Score(), out.Results[1].Score())
	assert.False(t, out.FellBack)
}

func TestKeyword_TruncatesToLimit(t *testing.T) {
	docs := make([]domdoc.Document, 0, 6)
	for i := range 6 {
		docs = append(docs, draftDoc(t, "madrid", fmt.Sprintf("Feria %d", i), ""))
	}
	svc := New(&mockRepo{docs: docs}, nil)

	out, err := svc.Keyword(context.Background(), mustQuery(t, "feria", "madrid", "all", 3))
	require.NoError(t, err)
	assert.Len(t, out.Results, 3)
}

func TestKeyword_EmptyQueryReturnsCandidates(t *testing.T) {
	docs := []domdoc.Document{
		draftDoc(t, "madrid", "A", ""),
		draftDoc(t, "madrid", "B", ""),
		draftDoc(t, "madrid", "C", ""),
	}
	svc := New(&mockRepo{docs: docs}, nil)

	out, err := svc.Keyword(context.Background(), mustQuery(t, "  ", "madrid", "all", 2))
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, titles(out.Results))
	assert.Zero(t, out.Results[0].Score())
}

func TestKeyword_RepoError(t *testing.T) {
	svc := New(&mockRepo{err: domain.ErrStoreUnavailable}, nil)

	_, err := svc.Keyword(context.Background(), mustQuery(t, "feria", "madrid", "all", 10))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
}

// --- Vector ---

func TestVector_FilterIncludesEmbeddingFlag(t *testing.T) {
	repo := &mockRepo{}
	svc := New(repo, &mockEmbedder{vec: []float32{1, 0}})

	_, err := svc.Vector(context.Background(), mustQuery(t, "feria", "madrid", "all", 5))
	require.NoError(t, err)

	assert.Equal(t, 0, repo.lastLim, "vector search scans every candidate")
	assert.Equal(t, map[string]string{
		filter.FieldIsActive:     "true",
		filter.FieldCitySlug:     "madrid",
		filter.FieldHasEmbedding: "true",
	}, conditionKeys(repo.lastExpr))
}

func TestVector_ThresholdAndOrder(t *testing.T) {
	a := draftDoc(t, "madrid", "Este", "")
	b := draftDoc(t, "madrid", "Norte", "")
	c := draftDoc(t, "madrid", "Diagonal", "")
	repo := &mockRepo{docs: []domdoc.Document{
		b.WithEmbedding([]float32{0, 1}),
		c.WithEmbedding([]float32{1, 1}),
		a.WithEmbedding([]float32{1, 0}),
	}}
	svc := New(repo, &mockEmbedder{vec: []float32{1, 0}})

	out, err := svc.Vector(context.Background(), mustQuery(t, "este", "madrid", "all", 10))
	require.NoError(t, err)

	assert.Equal(t, []string{"Este", "Diagonal"}, titles(out.Results))
	assert.InDelta(t, 1.0, out.Results[0].Score(), 1e-9)
	for _, r := range out.Results {
		assert.Greater(t, r.Score(), DefaultThreshold)
	}
	assert.Equal(t, 3, out.TotalCandidates)
	assert.Equal(t, 2, out.QueryDimensions)
	assert.Equal(t, DefaultThreshold, out.Threshold)
	assert.False(t, out.FellBack)
}

func TestVector_CustomThreshold(t *testing.T) {
	d := draftDoc(t, "madrid", "Diagonal", "")
	repo := &mockRepo{docs: []domdoc.Document{d.WithEmbedding([]float32{1, 1})}}
	svc := New(repo, &mockEmbedder{vec: []float32{1, 0}}, WithThreshold(0.9))

	out, err := svc.Vector(context.Background(), mustQuery(t, "x", "all", "all", 10))
	require.NoError(t, err)
	assert.Empty(t, out.Results)
	assert.Equal(t, 0.9, out.Threshold)
}

func TestVector_DimensionMismatchExcluded(t *testing.T) {
	d := draftDoc(t, "madrid", "Tres", "")
	repo := &mockRepo{docs: []domdoc.Document{d.WithEmbedding([]float32{1, 0, 0})}}
	svc := New(repo, &mockEmbedder{vec: []float32{1, 0}})

	out, err := svc.Vector(context.Background(), mustQuery(t, "tres", "madrid", "all", 10))
	require.NoError(t, err)
	assert.Empty(t, out.Results)
	assert.Equal(t, 1, out.TotalCandidates)
}

func TestVector_FallsBackOnEmbedError(t *testing.T) {
	docs := []domdoc.Document{
		draftDoc(t, "madrid", "Feria", "feria anual"),
		draftDoc(t, "madrid", "Mercado", ""),
	}
	emb := &mockEmbedder{err: domain.ErrEmbeddingProviderError}
	svc := New(&mockRepo{docs: docs}, emb)
	q := mustQuery(t, "feria", "madrid", "all", 10)

	vec, err := svc.Vector(context.Background(), q)
	require.NoError(t, err)
	kw, err := svc.Keyword(context.Background(), q)
	require.NoError(t, err)

	assert.True(t, emb.called)
	assert.True(t, vec.FellBack)
	assert.Equal(t, kw.Results, vec.Results)
	assert.Zero(t, vec.TotalCandidates)
}

func TestVector_FallsBackOnEmptyEmbedding(t *testing.T) {
	repo := &mockRepo{docs: []domdoc.Document{draftDoc(t, "madrid", "Feria", "")}}
	svc := New(repo, &mockEmbedder{vec: nil})

	out, err := svc.Vector(context.Background(), mustQuery(t, "feria", "madrid", "all", 10))
	require.NoError(t, err)
	assert.True(t, out.FellBack)
	assert.Equal(t, 20, repo.lastLim)
	assert.Equal(t, []string{"Feria"}, titles(out.Results))
}

func TestVector_NilEmbedderFallsBack(t *testing.T) {
	svc := New(&mockRepo{}, nil)

	out, err := svc.Vector(context.Background(), mustQuery(t, "feria", "madrid", "all", 10))
	require.NoError(t, err)
	assert.True(t, out.FellBack)
}

func TestVector_RepoError(t *testing.T) {
	svc := New(&mockRepo{err: errors.New("boom")}, &mockEmbedder{vec: []float32{1}})

	_, err := svc.Vector(context.Background(), mustQuery(t, "feria", "madrid", "all", 10))
	require.Error(t, err)
}

// --- Scenarios over the memory store ---

func TestScenario_KeywordCaseInsensitiveTitle(t *testing.T) {
	repo := newStoreRepo(t, draftDoc(t, "valencia", "Festival de Música", "concierto gratuito"))
	svc := New(repo, nil)

	out, err := svc.Keyword(context.Background(), mustQuery(t, "música", "valencia", "event", 10))
	require.NoError(t, err)
	require.Len(t, out.Results, 1)
	assert.GreaterOrEqual(t, out.Results[0].Score(), 2.0)
	assert.Equal(t, 4.0, out.Results[0].Score())
}

func TestScenario_ToyVectors(t *testing.T) {
	first := draftDoc(t, "madrid", "Primero", "")
	second := draftDoc(t, "madrid", "Segundo", "")
	repo := newStoreRepo(t,
		first.WithEmbedding([]float32{1, 0}),
		second.WithEmbedding([]float32{0, 1}),
		draftDoc(t, "madrid", "Sin vector", ""),
	)
	svc := New(repo, &mockEmbedder{vec: []float32{1, 0}})

	out, err := svc.Vector(context.Background(), mustQuery(t, "primero", "madrid", "all", 10))
	require.NoError(t, err)
	assert.Equal(t, []string{"Primero"}, titles(out.Results))
	assert.Equal(t, 2, out.TotalCandidates)
}

func TestScenario_InactiveNeverReturned(t *testing.T) {
	hidden := inactive(draftDoc(t, "madrid", "Feria oculta", "feria"))
	repo := newStoreRepo(t,
		hidden.WithEmbedding([]float32{1, 0}),
		draftDoc(t, "madrid", "Feria visible", "feria"),
	)
	svc := New(repo, &mockEmbedder{vec: []float32{1, 0}})
	q := mustQuery(t, "feria", "madrid", "all", 10)

	kw, err := svc.Keyword(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, []string{"Feria visible"}, titles(kw.Results))

	vec, err := svc.Vector(context.Background(), q)
	require.NoError(t, err)
	assert.Empty(t, vec.Results)
}

func TestScenario_KeywordIdempotent(t *testing.T) {
	repo := newStoreRepo(t,
		draftDoc(t, "madrid", "Feria", "feria"),
		draftDoc(t, "madrid", "Mercado de feria", ""),
	)
	svc := New(repo, nil)
	q := mustQuery(t, "feria", "madrid", "all", 10)

	first, err := svc.Keyword(context.Background(), q)
	require.NoError(t, err)
	second, err := svc.Keyword(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
