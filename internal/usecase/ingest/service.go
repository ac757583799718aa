package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/cityrag/internal/domain"
	"github.com/kailas-cloud/cityrag/internal/domain/authz"
	"github.com/kailas-cloud/cityrag/internal/domain/batch"
	domcity "github.com/kailas-cloud/cityrag/internal/domain/city"
	domdoc "github.com/kailas-cloud/cityrag/internal/domain/document"
	"github.com/kailas-cloud/cityrag/internal/metrics"
)

// Defaults fills fields the raw items leave empty.
type Defaults struct {
	AdminIDs   []string
	Language   string
	Confidence float64
	Category   string
}

// DefaultDefaults mirrors the values the agent tools have always written.
var DefaultDefaults = Defaults{
	AdminIDs:   []string{"superadmin"},
	Language:   "es",
	Confidence: 0.8,
	Category:   "general",
}

// Service turns raw items into documents, embeds them and stores them.
// Re-ingesting an item creates a new document; there is no dedup key.
type Service struct {
	docs     DocumentWriter
	cities   CityReader
	embed    Embedder
	pool     *ants.Pool
	defaults Defaults
	logger   *zap.Logger
}

// Option configures a Service.
type Option func(*Service) error

// WithWorkers sets the number of concurrent embedding calls.
func WithWorkers(n int) Option {
	return func(s *Service) error {
		if n < 1 {
			n = 1
		}
		pool, err := ants.NewPool(n)
		if err != nil {
			return fmt.Errorf("create embedding pool: %w", err)
		}
		if s.pool != nil {
			s.pool.Release()
		}
		s.pool = pool
		return nil
	}
}

// WithDefaults overrides DefaultDefaults.
func WithDefaults(d Defaults) Option {
	return func(s *Service) error {
		s.defaults = d
		return nil
	}
}

// WithLogger sets the service logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) error {
		s.logger = l
		return nil
	}
}

// New creates an ingestion service. cities may be nil; the slug then doubles as the city name.
// Call Release when done.
func New(docs DocumentWriter, cities CityReader, embed Embedder, opts ...Option) (*Service, error) {
	s := &Service{
		docs:     docs,
		cities:   cities,
		embed:    embed,
		defaults: DefaultDefaults,
		logger:   zap.NewNop(),
	}
	for _, o := range opts {
		if err := o(s); err != nil {
			s.Release()
			return nil, err
		}
	}
	if s.pool == nil {
		if err := WithWorkers(4)(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Release frees the embedding worker pool.
func (s *Service) Release() {
	if s.pool != nil {
		s.pool.Release()
	}
}

// Ingest stores one document per item. Embedding failures only leave the affected
// document without a vector; store chunk failures are returned with the partial report.
func (s *Service) Ingest(ctx context.Context, p authz.Principal, req Request) (Report, error) {
	if err := p.CanWriteCity(req.CitySlug); err != nil {
		return Report{}, err
	}
	if req.CitySlug == "" || req.Type == "" {
		return Report{}, fmt.Errorf("%w: city slug and type are required", domain.ErrInvalidInput)
	}
	if !domcity.ValidSlug(req.CitySlug) {
		return Report{}, fmt.Errorf("%w: invalid city slug %q", domain.ErrInvalidInput, req.CitySlug)
	}

	cityName, adminIDs := s.resolveCity(ctx, req.CitySlug)
	report := Report{CitySlug: req.CitySlug, CityName: cityName, Type: req.Type}
	if len(req.Items) == 0 {
		return report, nil
	}

	docs := make([]domdoc.Document, len(req.Items))
	for i, it := range req.Items {
		d, err := domdoc.New(s.draft(req, it, cityName, adminIDs, p.Subject))
		if err != nil {
			return report, fmt.Errorf("%w: item %d: %w", domain.ErrInvalidInput, i, err)
		}
		docs[i] = d
	}

	s.embedAll(ctx, docs)

	chunks, err := s.docs.CreateBatch(ctx, docs)
	if err != nil {
		return report, fmt.Errorf("create documents: %w", err)
	}
	s.tally(&report, docs, chunks)

	s.logger.Info("documents ingested",
		zap.String("city_slug", req.CitySlug),
		zap.String("type", string(req.Type)),
		zap.Int("inserted", report.Inserted),
		zap.Int("embedded", report.Embedded),
		zap.Int("chunks", len(chunks.Chunks)),
	)

	if err := chunks.Err(); err != nil {
		return report, fmt.Errorf("persist documents: %w", err)
	}
	return report, nil
}

func (s *Service) resolveCity(ctx context.Context, slug string) (string, []string) {
	name, admins := slug, s.defaults.AdminIDs
	if s.cities == nil {
		return name, admins
	}
	c, err := s.cities.Get(ctx, slug)
	if err != nil {
		if !errors.Is(err, domain.ErrCityNotFound) {
			s.logger.Warn("city lookup failed, using slug", zap.String("city_slug", slug), zap.Error(err))
		}
		return name, admins
	}
	if c.Name != "" {
		name = c.Name
	}
	if len(c.AdminIDs) > 0 {
		admins = c.AdminIDs
	}
	return name, admins
}

func (s *Service) draft(req Request, it Item, cityName string, adminIDs []string, subject string) domdoc.Draft {
	category := it.Category
	if category == "" {
		category = s.defaults.Category
	}
	confidence := domdoc.Confidence(s.defaults.Confidence)
	if it.Confidence != nil {
		confidence = domdoc.Confidence(*it.Confidence)
	}
	return domdoc.Draft{
		Type:        req.Type,
		Title:       it.Title,
		Description: it.Description,
		CitySlug:    req.CitySlug,
		CityName:    cityName,
		AdminIDs:    adminIDs,
		InsertedBy:  subject,
		Metadata: domdoc.Metadata{
			Date:       it.Date,
			Time:       it.Time,
			Location:   it.Location,
			Category:   category,
			Tags:       it.Tags,
			SourceURL:  it.SourceURL,
			Confidence: confidence,
			Language:   s.defaults.Language,
		},
	}
}

// embedAll embeds every document content on the worker pool. Each task writes only its own slot.
func (s *Service) embedAll(ctx context.Context, docs []domdoc.Document) {
	if s.embed == nil {
		return
	}
	var wg sync.WaitGroup
	for i := range docs {
		wg.Add(1)
		task := func() {
			defer wg.Done()
			s.embedOne(ctx, docs, i)
		}
		if err := s.pool.Submit(task); err != nil {
			s.logger.Warn("embedding pool rejected task, running inline", zap.Error(err))
			task()
		}
	}
	wg.Wait()
}

func (s *Service) embedOne(ctx context.Context, docs []domdoc.Document, i int) {
	res, err := s.embed.Embed(ctx, docs[i].Content())
	switch {
	case err != nil:
		s.logger.Warn("item embedding failed", zap.Int("item", i), zap.Error(err))
	case res.Empty():
		s.logger.Warn("item embedding empty", zap.Int("item", i))
	default:
		docs[i] = docs[i].WithEmbedding(res.Embedding)
	}
}

// tally counts committed documents and their embeddings. Chunks cover docs in order.
func (s *Service) tally(r *Report, docs []domdoc.Document, chunks batch.Report) {
	offset := 0
	for _, c := range chunks.Chunks {
		status := string(c.Status())
		metrics.StoreChunksTotal.WithLabelValues("create", status).Inc()
		if c.Status() == batch.StatusOK {
			r.Chunks++
			for _, d := range docs[offset : offset+c.Size()] {
				r.Inserted++
				embedded := d.HasEmbedding()
				if embedded {
					r.Embedded++
				}
				metrics.IngestItemsTotal.WithLabelValues(string(r.Type), embeddedLabel(embedded)).Inc()
			}
		}
		offset += c.Size()
	}
}

func embeddedLabel(ok bool) string {
	if ok {
		return "embedded"
	}
	return "unembedded"
}
