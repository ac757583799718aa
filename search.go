package cityrag

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/cityrag/internal/domain/query"
	"github.com/kailas-cloud/cityrag/internal/transport/payload"
)

// SearchBuilder is a fluent builder for search queries over active documents.
type SearchBuilder struct {
	c        *Client
	text     string
	citySlug string
	dataType string
	limit    int
}

// Search starts a query for text. City and type default to every city and type.
func (c *Client) Search(text string) *SearchBuilder {
	return &SearchBuilder{c: c, text: text, citySlug: query.All, dataType: query.All}
}

// City restricts the search to one city.
func (b *SearchBuilder) City(slug string) *SearchBuilder {
	b.citySlug = slug
	return b
}

// Type restricts the search to one document type.
func (b *SearchBuilder) Type(t DocumentType) *SearchBuilder {
	b.dataType = string(t)
	return b
}

// Limit sets the maximum number of results.
func (b *SearchBuilder) Limit(n int) *SearchBuilder {
	b.limit = n
	return b
}

func (b *SearchBuilder) build() (query.Query, error) {
	q, err := query.New(b.text, b.citySlug, b.dataType, b.limit, b.c.app.Limits)
	if err != nil {
		return query.Query{}, fmt.Errorf("%v: %w", err, ErrInvalidInput)
	}
	return q, nil
}

// Do runs a keyword search.
func (b *SearchBuilder) Do(ctx context.Context) (SearchResult, error) {
	q, err := b.build()
	if err != nil {
		return SearchResult{}, err
	}
	out, err := b.c.app.Search.Keyword(ctx, q)
	if err != nil {
		return SearchResult{}, fmt.Errorf("keyword search: %w", err)
	}
	return payload.NewSearch(q, out), nil
}

// Vector runs a similarity search, falling back to keyword ranking when the query cannot be embedded.
func (b *SearchBuilder) Vector(ctx context.Context) (VectorSearchResult, error) {
	q, err := b.build()
	if err != nil {
		return VectorSearchResult{}, err
	}
	out, err := b.c.app.Search.Vector(ctx, q)
	if err != nil {
		return VectorSearchResult{}, fmt.Errorf("vector search: %w", err)
	}
	return payload.NewVectorSearch(q, out), nil
}
