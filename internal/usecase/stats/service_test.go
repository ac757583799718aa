package stats

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domdoc "github.com/kailas-cloud/cityrag/internal/domain/document"
	"github.com/kailas-cloud/cityrag/internal/domain/search/filter"
)

type mockRepo struct {
	docs     []domdoc.Document
	err      error
	lastExpr filter.Expression
}

func (m *mockRepo) Each(_ context.Context, expr filter.Expression, fn func(domdoc.Document) error) error {
	m.lastExpr = expr
	if m.err != nil {
		return m.err
	}
	for _, d := range m.docs {
		if c := expr.Must(); len(c) == 1 && d.CitySlug() != c[0].Match() {
			continue
		}
		if err := fn(d); err != nil {
			return err
		}
	}
	return nil
}

var base = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func doc(city string, typ domdoc.Type, source string, conf *float64, active bool, created time.Time) domdoc.Document {
	return domdoc.Reconstruct(domdoc.State{
		ID:        city + string(typ) + source,
		Type:      typ,
		CitySlug:  city,
		Metadata:  domdoc.Metadata{SourceURL: source, Confidence: conf},
		IsActive:  active,
		CreatedAt: created,
	})
}

func fixture() []domdoc.Document {
	return []domdoc.Document{
		doc("madrid", domdoc.TypeEvent, "https://madrid.es/agenda", domdoc.Confidence(0.9), true, base),
		doc("madrid", domdoc.TypeEvent, "", domdoc.Confidence(0.6), false, base.Add(time.Hour)),
		doc("madrid", domdoc.TypeProcedure, "", domdoc.Confidence(0), true, base.Add(-time.Hour)),
		doc("madrid", "", "https://madrid.es/agenda", nil, true, base),
		doc("valencia", domdoc.TypeNews, "https://valencia.es", domdoc.Confidence(0.7), true, base.Add(2*time.Hour)),
	}
}

func TestCompute_EmptyCollection(t *testing.T) {
	svc := New(&mockRepo{})

	s, err := svc.Compute(context.Background(), "")
	require.NoError(t, err)

	assert.Zero(t, s.TotalItems)
	assert.Zero(t, s.AverageConfidence)
	assert.Empty(t, s.ItemsByType)
	assert.NotNil(t, s.ItemsByType)
	assert.Empty(t, s.ItemsBySource)
	assert.Empty(t, s.CitiesWithData)
	assert.True(t, s.LastUpdate.IsZero())
	assert.False(t, s.Scoped())
}

func TestCompute_City(t *testing.T) {
	repo := &mockRepo{docs: fixture()}
	svc := New(repo)

	s, err := svc.Compute(context.Background(), "madrid")
	require.NoError(t, err)

	require.Len(t, repo.lastExpr.Must(), 1)
	assert.Equal(t, filter.FieldCitySlug, repo.lastExpr.Must()[0].Key())

	assert.True(t, s.Scoped())
	assert.Equal(t, 4, s.TotalItems)
	assert.Equal(t, 3, s.ActiveItems)
	assert.Equal(t, map[string]int{"event": 2, "procedure": 1, Unknown: 1}, s.ItemsByType)
	assert.Equal(t, map[string]int{"https://madrid.es/agenda": 2, Unknown: 2}, s.ItemsBySource)
	assert.Equal(t, 0.75, s.AverageConfidence, "zero and missing confidences are skipped")
	assert.Nil(t, s.CitiesWithData)
	assert.Equal(t, base.Add(time.Hour), s.LastUpdate)
}

func TestCompute_Global(t *testing.T) {
	repo := &mockRepo{docs: fixture()}
	svc := New(repo)

	s, err := svc.Compute(context.Background(), "")
	require.NoError(t, err)

	assert.Empty(t, repo.lastExpr.Must())
	assert.Equal(t, 5, s.TotalItems)
	assert.Equal(t, []string{"madrid", "valencia"}, s.CitiesWithData)
	assert.Equal(t, 1, s.ItemsByType["news"])
	assert.Equal(t, 0.73, s.AverageConfidence)
	assert.Equal(t, base.Add(2*time.Hour), s.LastUpdate)
}

func TestCompute_RepoError(t *testing.T) {
	svc := New(&mockRepo{err: errors.New("down")})

	_, err := svc.Compute(context.Background(), "madrid")
	require.Error(t, err)
}
