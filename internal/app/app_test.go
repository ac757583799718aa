package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kailas-cloud/cityrag/internal/config"
	"github.com/kailas-cloud/cityrag/internal/db/memory"
	"github.com/kailas-cloud/cityrag/internal/domain"
	"github.com/kailas-cloud/cityrag/internal/domain/authz"
	domdoc "github.com/kailas-cloud/cityrag/internal/domain/document"
	"github.com/kailas-cloud/cityrag/internal/domain/query"
	healthuc "github.com/kailas-cloud/cityrag/internal/usecase/health"
	"github.com/kailas-cloud/cityrag/internal/usecase/ingest"
)

type stubEmbedder struct{}

func (stubEmbedder) Embed(context.Context, string) (domain.EmbeddingResult, error) {
	return domain.EmbeddingResult{Embedding: []float32{0.6, 0.8}}, nil
}

func memoryConfig() config.Config {
	cfg := config.Config{
		HTTP:      config.HTTPConfig{Port: 8080},
		Database:  config.DatabaseConfig{Driver: "memory"},
		Embedding: config.EmbeddingConfig{Provider: "ollama", Model: "nomic-embed-text"},
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestBuild_MemoryStore(t *testing.T) {
	a, err := Build(context.Background(), memoryConfig(), nil, WithEmbedder(stubEmbedder{}))
	require.NoError(t, err)
	t.Cleanup(a.Close)

	assert.Nil(t, a.Scrape, "scraping is off without a base url")
	assert.Equal(t, query.Limits{Default: 10, Max: 100}, a.Limits)

	rep, err := a.Ingest.Ingest(context.Background(), authz.System(), ingest.Request{
		CitySlug: "valencia",
		Type:     domdoc.TypeEvent,
		Items:    []ingest.Item{{Title: "Mercado medieval", Description: "artesanía y gastronomía"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Inserted)

	q, err := query.New("mercado", "valencia", "", 0, a.Limits)
	require.NoError(t, err)
	out, err := a.Search.Keyword(context.Background(), q)
	require.NoError(t, err)
	assert.Len(t, out.Results, 1)

	report := a.Health.Check(context.Background())
	assert.Equal(t, healthuc.Healthy, report.Status)
	assert.NotContains(t, report.Checks, "scraper")
}

func TestBuild_IngestedCityCanBeCleared(t *testing.T) {
	a, err := Build(context.Background(), memoryConfig(), nil, WithStore(memory.New()), WithEmbedder(stubEmbedder{}))
	require.NoError(t, err)
	t.Cleanup(a.Close)
	ctx := context.Background()

	req := ingest.Request{
		CitySlug: "Valencia",
		Type:     domdoc.TypeEvent,
		Items:    []ingest.Item{{Title: "Fallas"}, {Title: "Mascletà"}},
	}
	_, err = a.Ingest.Ingest(ctx, authz.System(), req)
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	req.CitySlug = "valencia"
	rep, err := a.Ingest.Ingest(ctx, authz.System(), req)
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Inserted)

	res, err := a.Purge.ClearCity(ctx, authz.System(), "valencia")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Deleted)

	stats, err := a.Stats.Compute(ctx, "valencia")
	require.NoError(t, err)
	assert.Zero(t, stats.TotalItems)
}

func TestBuild_ScraperConfigured(t *testing.T) {
	cfg := memoryConfig()
	cfg.Scraper.BaseURL = "http://localhost:3001"

	a, err := Build(context.Background(), cfg, nil, WithStore(memory.New()), WithEmbedder(stubEmbedder{}))
	require.NoError(t, err)
	t.Cleanup(a.Close)

	assert.NotNil(t, a.Scrape)
	assert.NotNil(t, a.HTTPServices().Scrape)
	assert.NotNil(t, a.MCPServices().Scrape)
}

func TestOpenStore_UnknownDriver(t *testing.T) {
	_, err := OpenStore(context.Background(), config.DatabaseConfig{Driver: "firestore"})
	assert.Error(t, err)
}

func TestNewProviderEmbedder(t *testing.T) {
	cfg := memoryConfig().Embedding

	e, closeFn, err := NewProviderEmbedder(context.Background(), cfg, nil)
	require.NoError(t, err)
	assert.NotNil(t, e)
	assert.Nil(t, closeFn)

	cfg.Provider = "vertex"
	_, _, err = NewProviderEmbedder(context.Background(), cfg, nil)
	assert.Error(t, err)
}
