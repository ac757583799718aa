package search

import (
	"context"

	"github.com/kailas-cloud/cityrag/internal/domain"
	domdoc "github.com/kailas-cloud/cityrag/internal/domain/document"
	"github.com/kailas-cloud/cityrag/internal/domain/search/filter"
)

// Repository defines the storage contract for search operations.
// limit <= 0 returns every match.
type Repository interface {
	Find(ctx context.Context, expr filter.Expression, limit int) ([]domdoc.Document, error)
}

// Embedder vectorizes text into embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
