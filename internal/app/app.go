// Package app is the composition root shared by the server and the admin CLI.
package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/cityrag/internal/config"
	"github.com/kailas-cloud/cityrag/internal/db"
	"github.com/kailas-cloud/cityrag/internal/db/memory"
	dbMongo "github.com/kailas-cloud/cityrag/internal/db/mongo"
	dbRedis "github.com/kailas-cloud/cityrag/internal/db/redis"
	"github.com/kailas-cloud/cityrag/internal/domain"
	"github.com/kailas-cloud/cityrag/internal/domain/query"
	"github.com/kailas-cloud/cityrag/internal/metrics"
	cityrepo "github.com/kailas-cloud/cityrag/internal/repository/city"
	docrepo "github.com/kailas-cloud/cityrag/internal/repository/document"
	"github.com/kailas-cloud/cityrag/internal/repository/embcache"
	chiTransport "github.com/kailas-cloud/cityrag/internal/transport/chi"
	genaiEmb "github.com/kailas-cloud/cityrag/internal/transport/genai"
	"github.com/kailas-cloud/cityrag/internal/transport/mcp"
	ollamaEmb "github.com/kailas-cloud/cityrag/internal/transport/ollama"
	openaiEmb "github.com/kailas-cloud/cityrag/internal/transport/openai"
	"github.com/kailas-cloud/cityrag/internal/transport/scraper"
	cityuc "github.com/kailas-cloud/cityrag/internal/usecase/city"
	embeddinguc "github.com/kailas-cloud/cityrag/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/cityrag/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/cityrag/internal/usecase/ingest"
	purgeuc "github.com/kailas-cloud/cityrag/internal/usecase/purge"
	scrapeuc "github.com/kailas-cloud/cityrag/internal/usecase/scrape"
	searchuc "github.com/kailas-cloud/cityrag/internal/usecase/search"
	statsuc "github.com/kailas-cloud/cityrag/internal/usecase/stats"
)

// App holds the wired services. Close releases them.
type App struct {
	Store    db.Store
	Embedder domain.Embedder
	Cities   *cityrepo.Repo
	Limits   query.Limits

	Search *searchuc.Service
	Ingest *ingestuc.Service
	Stats  *statsuc.Service
	Purge  *purgeuc.Service
	City   *cityuc.Service
	Scrape *scrapeuc.Service
	Health *healthuc.Service

	closers []func()
}

// Option overrides parts of the wiring.
type Option func(*options)

type options struct {
	store    db.Store
	embedder domain.Embedder
}

// WithStore uses s instead of opening the configured database.
func WithStore(s db.Store) Option {
	return func(o *options) { o.store = s }
}

// WithEmbedder uses e instead of the configured provider chain.
func WithEmbedder(e domain.Embedder) Option {
	return func(o *options) { o.embedder = e }
}

// Build opens the store, assembles the embedder chain and creates every use case.
func Build(ctx context.Context, cfg config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var o options
	for _, fn := range opts {
		fn(&o)
	}

	a := &App{Limits: query.Limits{Default: cfg.RAG.DefaultLimit, Max: cfg.RAG.MaxLimit}}

	store := o.store
	if store == nil {
		var err error
		store, err = OpenStore(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, store.Close)
	}
	a.Store = store

	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		a.Close()
		return nil, fmt.Errorf("database not ready: %w", err)
	}
	if err := store.EnsureCollections(ctx, domain.CollectionDocuments, domain.CollectionCities); err != nil {
		a.Close()
		return nil, fmt.Errorf("ensure collections: %w", err)
	}

	var embedChecker healthuc.EmbeddingChecker
	embedder := o.embedder
	if embedder == nil {
		base, closeFn, err := NewProviderEmbedder(ctx, cfg.Embedding, logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		if closeFn != nil {
			a.closers = append(a.closers, closeFn)
		}
		embedChecker = newEmbeddingHealthChecker(base)
		embedder = decorateEmbedder(base, cfg.Embedding, store, logger)
	}
	a.Embedder = embedder

	docs := docrepo.New(store, docrepo.WithBatchLimit(cfg.Database.BatchLimit))
	a.Cities = cityrepo.New(store)

	ingest, err := ingestuc.New(docs, a.Cities, embedder,
		ingestuc.WithWorkers(cfg.RAG.EmbedWorkers),
		ingestuc.WithDefaults(ingestuc.Defaults{
			AdminIDs:   cfg.RAG.DefaultAdminIDs,
			Language:   cfg.RAG.Language,
			Confidence: cfg.RAG.DefaultConfidence,
			Category:   cfg.RAG.DefaultCategory,
		}),
		ingestuc.WithLogger(logger),
	)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.closers = append(a.closers, ingest.Release)
	a.Ingest = ingest

	a.Search = searchuc.New(docs, embedder,
		searchuc.WithThreshold(cfg.RAG.SimilarityThreshold),
		searchuc.WithLogger(logger),
	)
	a.Stats = statsuc.New(docs)
	a.Purge = purgeuc.New(docs, cfg.Admin.AllowPurgeAll, logger)
	a.City = cityuc.New(a.Cities)

	// Pass a nil interface, not a typed nil pointer, when scraping is off.
	var scrapeChecker healthuc.ScraperChecker
	if cfg.Scraper.BaseURL != "" {
		client := scraper.New(&scraper.Config{
			BaseURL:     cfg.Scraper.BaseURL,
			Timeout:     time.Duration(cfg.Scraper.TimeoutSec) * time.Second,
			PageTimeout: time.Duration(cfg.Scraper.PageTimeoutMs) * time.Millisecond,
			Logger:      logger,
		})
		a.Scrape = scrapeuc.New(client, ingest, a.Cities, logger)
		scrapeChecker = client
	}

	a.Health = healthuc.New(store, embedChecker, scrapeChecker)
	return a, nil
}

// Close releases pools, clients and the store in reverse order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// HTTPServices returns the REST dependencies.
func (a *App) HTTPServices() chiTransport.Services {
	return chiTransport.Services{
		Search:   a.Search,
		Ingest:   a.Ingest,
		Stats:    a.Stats,
		Purge:    a.Purge,
		Cities:   a.City,
		Scrape:   a.Scrape,
		Health:   a.Health,
		Embedder: a.Embedder,
	}
}

// MCPServices returns the tool dependencies.
func (a *App) MCPServices() mcp.Services {
	return mcp.Services{
		Search:   a.Search,
		Ingest:   a.Ingest,
		Stats:    a.Stats,
		Purge:    a.Purge,
		Cities:   a.City,
		Scrape:   a.Scrape,
		Embedder: a.Embedder,
	}
}

// OpenStore connects to the configured database driver.
func OpenStore(ctx context.Context, cfg config.DatabaseConfig) (db.Store, error) {
	switch cfg.Driver {
	case "redis":
		s, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:      cfg.Addrs,
			Password:   cfg.Password,
			KeyPrefix:  cfg.KeyPrefix,
			BatchLimit: cfg.BatchLimit,
		})
		if err != nil {
			return nil, fmt.Errorf("create redis store: %w", err)
		}
		return s, nil
	case "mongo":
		s, err := dbMongo.NewStore(ctx, dbMongo.Config{
			URI:        cfg.URI,
			Database:   cfg.Name,
			Password:   cfg.Password,
			BatchLimit: cfg.BatchLimit,
		})
		if err != nil {
			return nil, fmt.Errorf("create mongo store: %w", err)
		}
		return s, nil
	case "memory":
		return memory.New(memory.WithBatchLimit(cfg.BatchLimit)), nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

// NewProviderEmbedder creates the base embedding provider. The returned func, when non-nil, releases it.
func NewProviderEmbedder(ctx context.Context, cfg config.EmbeddingConfig, logger *zap.Logger) (domain.Embedder, func(), error) {
	switch cfg.Provider {
	case "openai":
		return openaiEmb.NewEmbedder(&openaiEmb.Config{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			Logger:     logger,
		}), nil, nil
	case "genai":
		e, err := genaiEmb.NewEmbedder(ctx, &genaiEmb.Config{
			APIKey:   cfg.APIKey,
			Model:    cfg.Model,
			Endpoint: cfg.BaseURL,
			Logger:   logger,
		})
		if err != nil {
			return nil, nil, err
		}
		return e, func() { _ = e.Close() }, nil
	case "ollama":
		e, err := ollamaEmb.NewEmbedder(&ollamaEmb.Config{
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: time.Duration(cfg.TimeoutSec) * time.Second,
			Logger:  logger,
		})
		if err != nil {
			return nil, nil, err
		}
		return e, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}

// decorateEmbedder assembles the chain: provider -> cached -> instrumented.
func decorateEmbedder(base domain.Embedder, cfg config.EmbeddingConfig, store db.Store, logger *zap.Logger) domain.Embedder {
	embedder := base
	if cfg.Cache {
		embedder = embcache.New(base, store, metrics.EmbeddingCacheTotal, logger,
			embcache.WithNamespace(cfg.Provider+":"+cfg.Model),
			embcache.WithTTL(time.Duration(cfg.CacheTTLSec)*time.Second),
		)
	}
	return embeddinguc.NewInstrumentedEmbedder(
		embedder, cfg.Provider, cfg.Model,
		time.Duration(cfg.TimeoutSec)*time.Second, logger,
	)
}

// embeddingHealthChecker adapts domain.Embedder to health.EmbeddingChecker.
type embeddingHealthChecker struct {
	embedder domain.Embedder
}

func newEmbeddingHealthChecker(embedder domain.Embedder) *embeddingHealthChecker {
	return &embeddingHealthChecker{embedder: embedder}
}

func (h *embeddingHealthChecker) HealthCheck(ctx context.Context) error {
	if hc, ok := h.embedder.(domain.HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			return fmt.Errorf("embedding health check: %w", err)
		}
	}
	return nil
}
