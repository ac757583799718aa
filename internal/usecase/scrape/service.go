// Package scrape fetches agenda pages through the scrape service and feeds the events to ingestion.
package scrape

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/cityrag/internal/domain"
	"github.com/kailas-cloud/cityrag/internal/domain/authz"
	domcity "github.com/kailas-cloud/cityrag/internal/domain/city"
	domdoc "github.com/kailas-cloud/cityrag/internal/domain/document"
	domscrape "github.com/kailas-cloud/cityrag/internal/domain/scrape"
	"github.com/kailas-cloud/cityrag/internal/metrics"
	"github.com/kailas-cloud/cityrag/internal/usecase/ingest"
)

// Outcome is the result of scraping one URL and ingesting its events.
type Outcome struct {
	URL     string
	Scraped int
	Report  ingest.Report
	Err     error
}

// CityOutcome aggregates the per-URL outcomes of a city-wide scrape.
type CityOutcome struct {
	CitySlug string
	URLs     []Outcome
}

// Inserted sums the documents stored across URLs.
func (c CityOutcome) Inserted() int {
	n := 0
	for _, o := range c.URLs {
		n += o.Report.Inserted
	}
	return n
}

// Failed counts URLs whose scrape or ingestion failed.
func (c CityOutcome) Failed() int {
	n := 0
	for _, o := range c.URLs {
		if o.Err != nil {
			n++
		}
	}
	return n
}

// Service coordinates scraping and ingestion.
type Service struct {
	client Client
	ingest Ingester
	cities CityReader
	logger *zap.Logger
}

// New creates a scrape service.
func New(client Client, ingester Ingester, cities CityReader, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{client: client, ingest: ingester, cities: cities, logger: logger}
}

// Scrape extracts and normalizes the events of one page. It writes nothing.
func (s *Service) Scrape(ctx context.Context, pageURL, citySlug string) (domscrape.Result, error) {
	if err := validate(pageURL, citySlug); err != nil {
		return domscrape.Result{}, err
	}
	res, err := s.client.Scrape(ctx, pageURL, citySlug)
	if err != nil {
		metrics.ScrapeRequestsTotal.WithLabelValues("error").Inc()
		s.logger.Warn("scrape failed", zap.String("url", pageURL), zap.String("city_slug", citySlug), zap.Error(err))
		return domscrape.Result{}, fmt.Errorf("scrape %s: %w", pageURL, err)
	}
	metrics.ScrapeRequestsTotal.WithLabelValues("ok").Inc()

	res.Events = domscrape.Normalize(res.Events)
	if res.CitySlug == "" {
		res.CitySlug = citySlug
	}
	if res.URL == "" {
		res.URL = pageURL
	}
	s.logger.Info("page scraped", zap.String("url", pageURL), zap.Int("events", len(res.Events)))
	return res, nil
}

// ScrapeAndIngest scrapes one page and stores its events as event documents.
func (s *Service) ScrapeAndIngest(ctx context.Context, p authz.Principal, pageURL, citySlug string) (Outcome, error) {
	if err := p.CanWriteCity(citySlug); err != nil {
		return Outcome{URL: pageURL}, err
	}
	out := Outcome{URL: pageURL}

	res, err := s.Scrape(ctx, pageURL, citySlug)
	if err != nil {
		return out, err
	}
	out.Scraped = len(res.Events)

	out.Report, err = s.ingest.Ingest(ctx, p, ingest.Request{
		CitySlug: citySlug,
		Type:     domdoc.TypeEvent,
		Items:    ToItems(res.Events),
	})
	if err != nil {
		return out, fmt.Errorf("ingest scraped events: %w", err)
	}
	return out, nil
}

// ScrapeCity runs ScrapeAndIngest for every agenda URL configured for the city.
// A failing URL is recorded in its outcome and does not stop the others.
func (s *Service) ScrapeCity(ctx context.Context, p authz.Principal, citySlug string) (CityOutcome, error) {
	if err := p.CanWriteCity(citySlug); err != nil {
		return CityOutcome{}, err
	}
	c, err := s.cities.Get(ctx, citySlug)
	if err != nil {
		return CityOutcome{}, fmt.Errorf("get city: %w", err)
	}

	out := CityOutcome{CitySlug: citySlug}
	for _, u := range c.URLs[domcity.URLAgendaEventos] {
		if strings.TrimSpace(u) == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return out, err
		}
		o, err := s.ScrapeAndIngest(ctx, p, u, citySlug)
		o.Err = err
		out.URLs = append(out.URLs, o)
	}
	if len(out.URLs) == 0 {
		return out, fmt.Errorf("%w: city %s has no agenda urls", domain.ErrInvalidInput, citySlug)
	}
	return out, nil
}

// ToItems maps normalized events to ingestion items.
func ToItems(events []domscrape.Event) []ingest.Item {
	items := make([]ingest.Item, len(events))
	for i, e := range events {
		items[i] = ingest.Item{
			Title:       e.Title,
			Description: e.Description,
			Date:        e.Date,
			Time:        e.Time,
			Location:    e.Location,
			Category:    e.Category,
			Tags:        e.Tags,
			SourceURL:   e.SourceURL,
			Confidence:  domdoc.Confidence(e.Confidence),
		}
	}
	return items
}

func validate(pageURL, citySlug string) error {
	if !domcity.ValidSlug(citySlug) {
		return fmt.Errorf("%w: invalid city slug %q", domain.ErrInvalidInput, citySlug)
	}
	u, err := url.Parse(pageURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: invalid url %q", domain.ErrInvalidInput, pageURL)
	}
	return nil
}
