package scrape

import (
	"context"

	"github.com/kailas-cloud/cityrag/internal/domain/authz"
	domcity "github.com/kailas-cloud/cityrag/internal/domain/city"
	domscrape "github.com/kailas-cloud/cityrag/internal/domain/scrape"
	"github.com/kailas-cloud/cityrag/internal/usecase/ingest"
)

// Client calls the scrape service.
type Client interface {
	Scrape(ctx context.Context, url, citySlug string) (domscrape.Result, error)
}

// Ingester stores scraped events as documents.
type Ingester interface {
	Ingest(ctx context.Context, p authz.Principal, req ingest.Request) (ingest.Report, error)
}

// CityReader resolves the agenda URLs of a city.
type CityReader interface {
	Get(ctx context.Context, slug string) (domcity.City, error)
}
