// Package cityrag embeds the municipal document collection in a Go program:
// ingestion with embeddings, keyword and vector search, statistics and purges.
package cityrag

import (
	"context"
	"errors"
	"fmt"

	"github.com/kailas-cloud/cityrag/internal/app"
	"github.com/kailas-cloud/cityrag/internal/config"
	"github.com/kailas-cloud/cityrag/internal/domain"
	"github.com/kailas-cloud/cityrag/internal/domain/authz"
	domcity "github.com/kailas-cloud/cityrag/internal/domain/city"
	domdoc "github.com/kailas-cloud/cityrag/internal/domain/document"
	"github.com/kailas-cloud/cityrag/internal/transport/payload"
	ingestuc "github.com/kailas-cloud/cityrag/internal/usecase/ingest"
)

type (
	// Item is one record to ingest.
	Item = ingestuc.Item
	// City is the configuration of one municipality.
	City = domcity.City
	// URLCategory names a group of official city URLs.
	URLCategory = domcity.URLCategory
	// Principal identifies the caller of a mutating operation.
	Principal = authz.Principal
	// DocumentType classifies ingested items.
	DocumentType = domdoc.Type

	// SearchResult is the keyword search response.
	SearchResult = payload.Search
	// VectorSearchResult is the vector search response.
	VectorSearchResult = payload.VectorSearch
	// IngestResult reports an ingestion.
	IngestResult = payload.Ingest
	// StatsResult holds collection statistics.
	StatsResult = payload.Stats
	// ClearCityResult reports a city purge.
	ClearCityResult = payload.ClearCity
	// ClearAllResult reports a global purge.
	ClearAllResult = payload.ClearAll
)

// Document types.
const (
	TypeEvent     = domdoc.TypeEvent
	TypeProcedure = domdoc.TypeProcedure
	TypeNews      = domdoc.TypeNews
	TypeTourism   = domdoc.TypeTourism
)

// Principals.
var (
	// System may write every city and purge the collection.
	System = authz.System
	// Anonymous may only read.
	Anonymous = authz.Anonymous
)

// Sentinel errors, matched with errors.Is.
var (
	ErrInvalidInput = domain.ErrInvalidInput
	ErrForbidden    = domain.ErrForbidden
	ErrCityNotFound = domain.ErrCityNotFound
)

// Embedder vectorizes text.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// EmbeddingResult is a vector with token usage.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// Client is the cityrag SDK entry point.
type Client struct {
	app *app.App
}

// New creates a Client and connects to the database.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{}
	for _, o := range opts {
		o(cfg)
	}
	if cfg.driver == "" {
		return nil, errors.New("cityrag: database required (use WithRedis, WithMongo or WithMemory)")
	}

	var emb domain.Embedder = noopEmbedder{}
	if cfg.embedder != nil {
		emb = &embedderAdapter{inner: cfg.embedder}
	}

	a, err := app.Build(ctx, cfg.appConfig(), cfg.logger, app.WithEmbedder(emb))
	if err != nil {
		return nil, fmt.Errorf("cityrag: %w", err)
	}
	return &Client{app: a}, nil
}

func (c *clientConfig) appConfig() config.Config {
	cfg := config.Config{
		Database: config.DatabaseConfig{
			Driver:   c.driver,
			Addrs:    c.addrs,
			Password: c.password,
			URI:      c.uri,
			Name:     c.database,
		},
		RAG: config.RAGConfig{
			DefaultLimit:        c.defaultLimit,
			MaxLimit:            c.maxLimit,
			SimilarityThreshold: c.threshold,
			EmbedWorkers:        c.workers,
		},
		Admin: config.AdminConfig{AllowPurgeAll: c.allowPurgeAll},
	}
	cfg.ApplyDefaults()
	return cfg
}

// Close releases all resources.
func (c *Client) Close() {
	c.app.Close()
}

// Ping checks database connectivity.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.app.Store.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Ingest stores items as documents of one city and type.
func (c *Client) Ingest(ctx context.Context, p Principal, citySlug string, t DocumentType, items []Item) (IngestResult, error) {
	rep, err := c.app.Ingest.Ingest(ctx, p, ingestuc.Request{CitySlug: citySlug, Type: t, Items: items})
	if err != nil {
		return payload.NewIngest(rep), fmt.Errorf("ingest: %w", err)
	}
	return payload.NewIngest(rep), nil
}

// Stats aggregates the collection, or one city when citySlug is not empty.
func (c *Client) Stats(ctx context.Context, citySlug string) (StatsResult, error) {
	st, err := c.app.Stats.Compute(ctx, citySlug)
	if err != nil {
		return StatsResult{}, fmt.Errorf("stats: %w", err)
	}
	return payload.NewStats(st), nil
}

// PutCity creates or replaces a city configuration.
func (c *Client) PutCity(ctx context.Context, city City) error {
	if err := c.app.Cities.Put(ctx, city); err != nil {
		return fmt.Errorf("put city: %w", err)
	}
	return nil
}

// ClearCity deletes every document of a city.
func (c *Client) ClearCity(ctx context.Context, p Principal, citySlug string) (ClearCityResult, error) {
	res, err := c.app.Purge.ClearCity(ctx, p, citySlug)
	if err != nil {
		return payload.NewClearCity(res), fmt.Errorf("clear city: %w", err)
	}
	return payload.NewClearCity(res), nil
}

// ClearAll deletes the whole collection when WithPurgeAll is set; otherwise it reports zero counts.
func (c *Client) ClearAll(ctx context.Context, p Principal) (ClearAllResult, error) {
	res, err := c.app.Purge.ClearAll(ctx, p)
	if err != nil {
		return ClearAllResult{}, fmt.Errorf("clear all: %w", err)
	}
	return payload.NewClearAll(res), nil
}

// embedderAdapter wraps public Embedder to satisfy internal domain.Embedder.
type embedderAdapter struct {
	inner Embedder
}

func (a *embedderAdapter) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	r, err := a.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %v: %w", err, domain.ErrEmbeddingProviderError)
	}
	return domain.EmbeddingResult{
		Embedding:    r.Embedding,
		PromptTokens: r.PromptTokens,
		TotalTokens:  r.TotalTokens,
	}, nil
}

// noopEmbedder fails every call, which stores documents without vectors.
type noopEmbedder struct{}

func (noopEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	return domain.EmbeddingResult{}, fmt.Errorf("cityrag: embedder not configured: %w", domain.ErrEmbeddingProviderError)
}
