package payload

import (
	"fmt"
	"time"

	domcity "github.com/kailas-cloud/cityrag/internal/domain/city"
	"github.com/kailas-cloud/cityrag/internal/domain/query"
	domscrape "github.com/kailas-cloud/cityrag/internal/domain/scrape"
	citysvc "github.com/kailas-cloud/cityrag/internal/usecase/city"
	"github.com/kailas-cloud/cityrag/internal/usecase/embedding"
	"github.com/kailas-cloud/cityrag/internal/usecase/health"
	"github.com/kailas-cloud/cityrag/internal/usecase/ingest"
	"github.com/kailas-cloud/cityrag/internal/usecase/purge"
	"github.com/kailas-cloud/cityrag/internal/usecase/scrape"
	"github.com/kailas-cloud/cityrag/internal/usecase/search"
	"github.com/kailas-cloud/cityrag/internal/usecase/stats"
)

// Collection is the logical collection name reported by ingestion and stats.
const Collection = "rag_collection"

// Source values reported by search results.
const (
	SourceKeyword = "rag_collection"
	SourceVector  = "rag_collection_vector"
)

// SearchTypeVector is the search_type of a vector search that did not fall back.
const SearchTypeVector = "vector_semantic"

// Search is the result of a keyword search.
type Search struct {
	Query           string `json:"query"`
	CitySlug        string `json:"city_slug"`
	DataType        string `json:"data_type"`
	ItemsFound      []Hit  `json:"items_found"`
	TotalResults    int    `json:"total_results"`
	SearchPerformed bool   `json:"search_performed"`
	Source          string `json:"source"`
	Success         bool   `json:"success"`
}

// VectorSearch is the result of a vector search. A fallback carries keyword hits and no vector diagnostics.
type VectorSearch struct {
	Search
	SearchType               string   `json:"search_type"`
	TotalCandidates          int      `json:"total_candidates"`
	SimilarityThreshold      *float64 `json:"similarity_threshold,omitempty"`
	QueryEmbeddingDimensions int      `json:"query_embedding_dimensions"`
	FellBack                 bool     `json:"fallback,omitempty"`
}

// NewSearch builds a keyword search result.
func NewSearch(q query.Query, out search.Outcome) Search {
	hits := KeywordHits(out.Results)
	return Search{
		Query:           q.Text(),
		CitySlug:        q.CitySlug(),
		DataType:        q.DataType(),
		ItemsFound:      hits,
		TotalResults:    len(hits),
		SearchPerformed: true,
		Source:          SourceKeyword,
		Success:         true,
	}
}

// NewVectorSearch builds a vector search result.
func NewVectorSearch(q query.Query, out search.Outcome) VectorSearch {
	if out.FellBack {
		return VectorSearch{
			Search:     NewSearch(q, out),
			SearchType: search.ModeVectorFallback,
			FellBack:   true,
		}
	}
	hits := VectorHits(out.Results)
	threshold := out.Threshold
	return VectorSearch{
		Search: Search{
			Query:           q.Text(),
			CitySlug:        q.CitySlug(),
			DataType:        q.DataType(),
			ItemsFound:      hits,
			TotalResults:    len(hits),
			SearchPerformed: true,
			Source:          SourceVector,
			Success:         true,
		},
		SearchType:               SearchTypeVector,
		TotalCandidates:          out.TotalCandidates,
		SimilarityThreshold:      &threshold,
		QueryEmbeddingDimensions: out.QueryDimensions,
	}
}

// Documents is the result of a document listing.
type Documents struct {
	Items   []Document `json:"items"`
	Total   int        `json:"total"`
	Success bool       `json:"success"`
}

// Ingest is the result of an ingestion call.
type Ingest struct {
	CitySlug             string  `json:"city_slug"`
	DataType             string  `json:"data_type"`
	ItemsInserted        int     `json:"items_inserted"`
	EmbeddingsGenerated  int     `json:"embeddings_generated"`
	EmbeddingSuccessRate float64 `json:"embedding_success_rate"`
	VectorSearchEnabled  bool    `json:"vector_search_enabled"`
	ChunksCommitted      int     `json:"chunks_committed"`
	RAGCollection        string  `json:"rag_collection"`
	Success              bool    `json:"success"`
	Message              string  `json:"message"`
}

// NewIngest builds an ingestion result.
func NewIngest(r ingest.Report) Ingest {
	return Ingest{
		CitySlug:             r.CitySlug,
		DataType:             string(r.Type),
		ItemsInserted:        r.Inserted,
		EmbeddingsGenerated:  r.Embedded,
		EmbeddingSuccessRate: r.SuccessRate(),
		VectorSearchEnabled:  r.VectorSearchEnabled(),
		ChunksCommitted:      r.Chunks,
		RAGCollection:        Collection,
		Success:              true,
		Message:              r.Message(),
	}
}

// Stats is the result of the statistics call. Pointer fields appear only in the matching mode.
type Stats struct {
	CitySlug            *string        `json:"city_slug"`
	TotalItems          int            `json:"total_items"`
	ActiveItems         *int           `json:"active_items,omitempty"`
	ItemsByType         map[string]int `json:"items_by_type"`
	ItemsBySource       map[string]int `json:"items_by_source"`
	AverageConfidence   float64        `json:"average_confidence"`
	CitiesWithData      []string       `json:"cities_with_data,omitempty"`
	TotalCities         *int           `json:"total_cities,omitempty"`
	LastUpdate          *time.Time     `json:"last_update"`
	RAGCollectionSource string         `json:"rag_collection_source"`
	Success             bool           `json:"success"`
}

// NewStats builds a statistics result.
func NewStats(s stats.Stats) Stats {
	out := Stats{
		TotalItems:          s.TotalItems,
		ItemsByType:         nonNilMap(s.ItemsByType),
		ItemsBySource:       nonNilMap(s.ItemsBySource),
		AverageConfidence:   s.AverageConfidence,
		RAGCollectionSource: Collection,
		Success:             true,
	}
	if !s.LastUpdate.IsZero() {
		t := s.LastUpdate
		out.LastUpdate = &t
	}
	if s.Scoped() {
		slug, active := s.CitySlug, s.ActiveItems
		out.CitySlug = &slug
		out.ActiveItems = &active
		return out
	}
	cities := nonNil(s.CitiesWithData)
	total := len(cities)
	out.CitiesWithData = cities
	out.TotalCities = &total
	return out
}

// CityInfo is the descriptive part of a city URL lookup.
type CityInfo struct {
	Name            string   `json:"name"`
	DisplayName     string   `json:"displayName"`
	Province        string   `json:"province"`
	Population      int      `json:"population"`
	IsActive        bool     `json:"isActive"`
	ScrapingEnabled bool     `json:"scrapingEnabled"`
	AdminIDs        []string `json:"adminIds"`
}

// CityURLs is the result of a city URL lookup.
type CityURLs struct {
	CitySlug  string              `json:"city_slug"`
	CityName  string              `json:"city_name"`
	URLs      map[string][]string `json:"urls"`
	CityInfo  CityInfo            `json:"city_info"`
	URLCounts map[string]int      `json:"url_counts"`
	TotalURLs int                 `json:"total_urls"`
	Success   bool                `json:"success"`
}

// NewCityURLs builds a city URL lookup result. Every category is present, empty when unconfigured.
func NewCityURLs(u citysvc.URLs) CityURLs {
	c := u.City
	urls := make(map[string][]string, len(domcity.URLCategories))
	counts := make(map[string]int, len(domcity.URLCategories))
	for _, cat := range domcity.URLCategories {
		urls[string(cat)] = nonNil(c.URLs[cat])
		counts[string(cat)] = u.Counts[cat]
	}
	return CityURLs{
		CitySlug: c.Slug,
		CityName: c.Label(),
		URLs:     urls,
		CityInfo: CityInfo{
			Name:            c.Name,
			DisplayName:     c.DisplayName,
			Province:        c.Province,
			Population:      c.Population,
			IsActive:        c.IsActive,
			ScrapingEnabled: c.ScrapingEnabled,
			AdminIDs:        nonNil(c.AdminIDs),
		},
		URLCounts: counts,
		TotalURLs: u.TotalURLs,
		Success:   true,
	}
}

// ClearCity is the result of clearing one city.
type ClearCity struct {
	CitySlug            string `json:"city_slug"`
	RAGItemsDeleted     int    `json:"rag_items_deleted"`
	LegacyEventsDeleted int    `json:"legacy_events_deleted"`
	ChunksCommitted     int    `json:"chunks_committed"`
	Success             bool   `json:"success"`
	Message             string `json:"message"`
}

// NewClearCity builds a clear-city result.
func NewClearCity(r purge.CityResult) ClearCity {
	return ClearCity{
		CitySlug:        r.CitySlug,
		RAGItemsDeleted: r.Deleted,
		ChunksCommitted: r.Chunks,
		Success:         true,
		Message:         fmt.Sprintf("deleted %d documents for %s", r.Deleted, r.CitySlug),
	}
}

// ClearAll is the result of the global clear.
type ClearAll struct {
	TotalEventsDeleted     int      `json:"total_events_deleted"`
	TotalRAGSourcesDeleted int      `json:"total_rag_sources_deleted"`
	ChunksCommitted        int      `json:"chunks_committed"`
	CitiesAffected         []string `json:"cities_affected"`
	Success                bool     `json:"success"`
	Message                string   `json:"message"`
}

// NewClearAll builds a global clear result.
func NewClearAll(r purge.AllResult) ClearAll {
	msg := "global deletion is disabled; nothing was deleted"
	if r.Performed {
		msg = fmt.Sprintf("deleted %d documents across %d cities", r.Deleted, len(r.CitiesAffected))
	}
	return ClearAll{
		TotalRAGSourcesDeleted: r.Deleted,
		ChunksCommitted:        r.Chunks,
		CitiesAffected:         nonNil(r.CitiesAffected),
		Success:                true,
		Message:                msg,
	}
}

// Event is the response form of a scraped event.
type Event struct {
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Date        string    `json:"date,omitempty"`
	Time        string    `json:"time,omitempty"`
	Location    string    `json:"location,omitempty"`
	Link        string    `json:"link,omitempty"`
	Image       string    `json:"image,omitempty"`
	Source      string    `json:"source,omitempty"`
	Category    string    `json:"category"`
	Tags        []string  `json:"tags"`
	Confidence  float64   `json:"confidence"`
	IsActive    bool      `json:"isActive"`
	ExtractedAt time.Time `json:"extractedAt,omitzero"`
}

// Scrape is the result of a scrape call.
type Scrape struct {
	Success         bool      `json:"success"`
	CitySlug        string    `json:"citySlug"`
	URL             string    `json:"url"`
	EventsExtracted int       `json:"eventsExtracted"`
	Events          []Event   `json:"events"`
	Timestamp       time.Time `json:"timestamp"`
}

// NewScrape builds a scrape result.
func NewScrape(r domscrape.Result) Scrape {
	events := make([]Event, 0, len(r.Events))
	for _, e := range r.Events {
		events = append(events, Event{
			Title:       e.Title,
			Description: e.Description,
			Date:        e.Date,
			Time:        e.Time,
			Location:    e.Location,
			Link:        e.Link,
			Image:       e.Image,
			Source:      e.SourceURL,
			Category:    e.Category,
			Tags:        nonNil(e.Tags),
			Confidence:  e.Confidence,
			IsActive:    e.IsActive,
			ExtractedAt: e.ExtractedAt,
		})
	}
	return Scrape{
		Success:         true,
		CitySlug:        r.CitySlug,
		URL:             r.URL,
		EventsExtracted: len(events),
		Events:          events,
		Timestamp:       r.Timestamp,
	}
}

// ScrapeIngest is the result of scraping one URL into the collection.
type ScrapeIngest struct {
	URL           string  `json:"url"`
	EventsScraped int     `json:"events_scraped"`
	Ingest        *Ingest `json:"ingest,omitempty"`
	Error         string  `json:"error,omitempty"`
	Success       bool    `json:"success"`
}

// NewScrapeIngest builds the result of one scrape-and-ingest.
func NewScrapeIngest(o scrape.Outcome) ScrapeIngest {
	out := ScrapeIngest{URL: o.URL, EventsScraped: o.Scraped, Success: o.Err == nil}
	if o.Report.CitySlug != "" {
		in := NewIngest(o.Report)
		out.Ingest = &in
	}
	if o.Err != nil {
		out.Error = o.Err.Error()
	}
	return out
}

// ScrapeCity is the result of scraping every agenda URL of a city.
type ScrapeCity struct {
	CitySlug      string         `json:"city_slug"`
	URLs          []ScrapeIngest `json:"urls"`
	ItemsInserted int            `json:"items_inserted"`
	FailedURLs    int            `json:"failed_urls"`
	Success       bool           `json:"success"`
}

// NewScrapeCity builds a city-wide scrape result. Success means at least one URL went through.
func NewScrapeCity(o scrape.CityOutcome) ScrapeCity {
	urls := make([]ScrapeIngest, 0, len(o.URLs))
	for _, u := range o.URLs {
		urls = append(urls, NewScrapeIngest(u))
	}
	return ScrapeCity{
		CitySlug:      o.CitySlug,
		URLs:          urls,
		ItemsInserted: o.Inserted(),
		FailedURLs:    o.Failed(),
		Success:       o.Failed() < len(o.URLs),
	}
}

// Embedding is the result of the embedding probe.
type Embedding struct {
	TextLength          int  `json:"text_length"`
	EmbeddingDimensions int  `json:"embedding_dimensions"`
	Success             bool `json:"success"`
}

// NewEmbedding builds the embedding probe result.
func NewEmbedding(r embedding.ProbeResult) Embedding {
	return Embedding{TextLength: r.TextLength, EmbeddingDimensions: r.Dimensions, Success: true}
}

// Health is the readiness result.
type Health struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// NewHealth builds a readiness result.
func NewHealth(r health.Report) Health {
	checks := make(map[string]string, len(r.Checks))
	for k, v := range r.Checks {
		checks[k] = string(v)
	}
	return Health{Status: string(r.Status), Checks: checks}
}

func nonNilMap(m map[string]int) map[string]int {
	if m == nil {
		return map[string]int{}
	}
	return m
}
