package ingest

import (
	"context"

	"github.com/kailas-cloud/cityrag/internal/domain"
	"github.com/kailas-cloud/cityrag/internal/domain/batch"
	domcity "github.com/kailas-cloud/cityrag/internal/domain/city"
	domdoc "github.com/kailas-cloud/cityrag/internal/domain/document"
)

// DocumentWriter persists new documents in chunks.
type DocumentWriter interface {
	CreateBatch(ctx context.Context, docs []domdoc.Document) (batch.Report, error)
}

// CityReader resolves city configuration.
type CityReader interface {
	Get(ctx context.Context, slug string) (domcity.City, error)
}

// Embedder vectorizes text into embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
