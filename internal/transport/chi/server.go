// Package chi exposes the retrieval and administration operations as a REST API.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/oapi-codegen/runtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/cityrag/internal/domain"
	"github.com/kailas-cloud/cityrag/internal/domain/authz"
	domdoc "github.com/kailas-cloud/cityrag/internal/domain/document"
	"github.com/kailas-cloud/cityrag/internal/domain/query"
	logpkg "github.com/kailas-cloud/cityrag/internal/logger"
	"github.com/kailas-cloud/cityrag/internal/transport/payload"
	cityuc "github.com/kailas-cloud/cityrag/internal/usecase/city"
	embeddinguc "github.com/kailas-cloud/cityrag/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/cityrag/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/cityrag/internal/usecase/ingest"
	purgeuc "github.com/kailas-cloud/cityrag/internal/usecase/purge"
	scrapeuc "github.com/kailas-cloud/cityrag/internal/usecase/scrape"
	searchuc "github.com/kailas-cloud/cityrag/internal/usecase/search"
	statsuc "github.com/kailas-cloud/cityrag/internal/usecase/stats"
)

const maxBodyBytes = 8 << 20

// errorHandler maps a domain error to an HTTP status. Returns false if err is not its class.
type errorHandler func(err error) (int, bool)

// Services are the use cases the API dispatches to. Scrape and Embedder may be nil.
type Services struct {
	Search   *searchuc.Service
	Ingest   *ingestuc.Service
	Stats    *statsuc.Service
	Purge    *purgeuc.Service
	Cities   *cityuc.Service
	Scrape   *scrapeuc.Service
	Health   *healthuc.Service
	Embedder domain.Embedder
}

// Server is the REST API.
type Server struct {
	svc           Services
	limits        query.Limits
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(svc Services, limits query.Limits, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{svc: svc, limits: limits, logger: logger}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInvalidInput, http.StatusBadRequest),
		sentinelHandler(domain.ErrUnauthenticated, http.StatusUnauthorized),
		sentinelHandler(domain.ErrForbidden, http.StatusForbidden),
		sentinelHandler(domain.ErrCityNotFound, http.StatusNotFound),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound),
		sentinelHandler(domain.ErrTimeout, http.StatusGatewayTimeout),
		sentinelHandler(context.DeadlineExceeded, http.StatusGatewayTimeout),
		sentinelHandler(domain.ErrScrapeFailed, http.StatusBadGateway),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway),
		sentinelHandler(domain.ErrStoreUnavailable, http.StatusServiceUnavailable),
		sentinelHandler(domain.ErrNotImplemented, http.StatusNotImplemented),
	}
	return s
}

// Routes registers the API on r.
func (s *Server) Routes(r chi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/search", s.KeywordSearch)
		r.Get("/search/vector", s.VectorSearch)
		r.Get("/documents", s.ListDocuments)
		r.Delete("/documents", s.ClearAll)
		r.Get("/stats", s.Stats)
		r.Post("/embeddings", s.GenerateEmbedding)
		r.Post("/scrape", s.Scrape)

		r.Get("/cities", s.ListCities)
		r.Route("/cities/{city}", func(r chi.Router) {
			r.Get("/urls", s.CityURLs)
			r.Post("/documents", s.Ingest)
			r.Delete("/documents", s.ClearCity)
			r.Post("/scrape", s.ScrapeAndIngest)
		})
	})
}

type searchParams struct {
	Query    string
	CitySlug string
	DataType string
	Limit    int
}

func (s *Server) bindSearch(r *http.Request) (query.Query, error) {
	var p searchParams
	q := r.URL.Query()
	if err := runtime.BindQueryParameter("form", true, false, "query", q, &p.Query); err != nil {
		return query.Query{}, fmt.Errorf("query: %v: %w", err, domain.ErrInvalidInput)
	}
	if err := runtime.BindQueryParameter("form", true, false, "city_slug", q, &p.CitySlug); err != nil {
		return query.Query{}, fmt.Errorf("city_slug: %v: %w", err, domain.ErrInvalidInput)
	}
	if err := runtime.BindQueryParameter("form", true, false, "data_type", q, &p.DataType); err != nil {
		return query.Query{}, fmt.Errorf("data_type: %v: %w", err, domain.ErrInvalidInput)
	}
	if err := runtime.BindQueryParameter("form", true, false, "limit", q, &p.Limit); err != nil {
		return query.Query{}, fmt.Errorf("limit: %v: %w", err, domain.ErrInvalidInput)
	}
	qq, err := query.New(p.Query, p.CitySlug, p.DataType, p.Limit, s.limits)
	if err != nil {
		return query.Query{}, fmt.Errorf("%v: %w", err, domain.ErrInvalidInput)
	}
	return qq, nil
}

// KeywordSearch handles GET /v1/search.
func (s *Server) KeywordSearch(w http.ResponseWriter, r *http.Request) {
	q, err := s.bindSearch(r)
	if err != nil {
		s.fail(w, r, err, payload.SearchDefaults, nil)
		return
	}
	out, err := s.svc.Search.Keyword(r.Context(), q)
	if err != nil {
		s.fail(w, r, err, payload.SearchDefaults, nil)
		return
	}
	writeJSON(w, http.StatusOK, payload.NewSearch(q, out))
}

// VectorSearch handles GET /v1/search/vector.
func (s *Server) VectorSearch(w http.ResponseWriter, r *http.Request) {
	q, err := s.bindSearch(r)
	if err != nil {
		s.fail(w, r, err, payload.SearchDefaults, nil)
		return
	}
	out, err := s.svc.Search.Vector(r.Context(), q)
	if err != nil {
		s.fail(w, r, err, payload.SearchDefaults, nil)
		return
	}
	writeJSON(w, http.StatusOK, payload.NewVectorSearch(q, out))
}

// ListDocuments handles GET /v1/documents.
func (s *Server) ListDocuments(w http.ResponseWriter, r *http.Request) {
	var l searchuc.Listing
	q := r.URL.Query()
	binds := []struct {
		name string
		dest any
	}{
		{"city_slug", &l.CitySlug},
		{"data_type", &l.Type},
		{"admin_id", &l.AdminID},
		{"active_only", &l.ActiveOnly},
		{"limit", &l.Limit},
	}
	for _, b := range binds {
		if err := runtime.BindQueryParameter("form", true, false, b.name, q, b.dest); err != nil {
			s.fail(w, r, fmt.Errorf("%s: %v: %w", b.name, err, domain.ErrInvalidInput), payload.ListingDefaults, nil)
			return
		}
	}
	if l.Limit <= 0 {
		l.Limit = s.limits.Default
	}
	if s.limits.Max > 0 && l.Limit > s.limits.Max {
		s.fail(w, r, fmt.Errorf("limit %d exceeds maximum %d: %w", l.Limit, s.limits.Max, domain.ErrInvalidInput), payload.ListingDefaults, nil)
		return
	}

	docs, err := s.svc.Search.List(r.Context(), l)
	if err != nil {
		s.fail(w, r, err, payload.ListingDefaults, nil)
		return
	}
	items := payload.NewDocuments(docs)
	writeJSON(w, http.StatusOK, payload.Documents{Items: items, Total: len(items), Success: true})
}

// Ingest handles POST /v1/cities/{city}/documents?data_type=.
// The body is {"events": [...]} or {"items": [...]}.
func (s *Server) Ingest(w http.ResponseWriter, r *http.Request) {
	city := chi.URLParam(r, "city")
	ctx := logpkg.WithCity(r.Context(), city)

	var dataType string
	if err := runtime.BindQueryParameter("form", true, false, "data_type", r.URL.Query(), &dataType); err != nil {
		s.fail(w, r, fmt.Errorf("data_type: %v: %w", err, domain.ErrInvalidInput), payload.IngestDefaults, nil)
		return
	}
	if dataType == "" {
		dataType = string(domdoc.TypeEvent)
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		s.fail(w, r, fmt.Errorf("read body: %v: %w", err, domain.ErrInvalidInput), payload.IngestDefaults, nil)
		return
	}
	data, err := payload.ParseIngestData(body)
	if err != nil {
		s.fail(w, r, err, payload.IngestDefaults, nil)
		return
	}

	rep, err := s.svc.Ingest.Ingest(ctx, authz.FromContext(ctx), data.Request(city, domdoc.Type(dataType)))
	if err != nil {
		var partial any
		if rep.Inserted > 0 {
			partial = payload.NewIngest(rep)
		}
		s.fail(w, r, err, payload.IngestDefaults, partial)
		return
	}
	writeJSON(w, http.StatusOK, payload.NewIngest(rep))
}

// Stats handles GET /v1/stats.
func (s *Server) Stats(w http.ResponseWriter, r *http.Request) {
	var city string
	if err := runtime.BindQueryParameter("form", true, false, "city_slug", r.URL.Query(), &city); err != nil {
		s.fail(w, r, fmt.Errorf("city_slug: %v: %w", err, domain.ErrInvalidInput), payload.StatsDefaults, nil)
		return
	}
	if strings.EqualFold(city, query.All) {
		city = ""
	}
	st, err := s.svc.Stats.Compute(r.Context(), city)
	if err != nil {
		s.fail(w, r, err, payload.StatsDefaults, nil)
		return
	}
	writeJSON(w, http.StatusOK, payload.NewStats(st))
}

// ListCities handles GET /v1/cities.
func (s *Server) ListCities(w http.ResponseWriter, r *http.Request) {
	cities, err := s.svc.Cities.List(r.Context())
	if err != nil {
		s.fail(w, r, err, payload.Defaults{"cities": []any{}}, nil)
		return
	}
	out := make([]payload.CityURLs, 0, len(cities))
	for _, c := range cities {
		counts, total := c.URLCounts()
		out = append(out, payload.NewCityURLs(cityuc.URLs{City: c, Counts: counts, TotalURLs: total}))
	}
	writeJSON(w, http.StatusOK, map[string]any{"cities": out, "total": len(out), "success": true})
}

// CityURLs handles GET /v1/cities/{city}/urls.
func (s *Server) CityURLs(w http.ResponseWriter, r *http.Request) {
	urls, err := s.svc.Cities.GetURLs(r.Context(), chi.URLParam(r, "city"))
	if err != nil {
		s.fail(w, r, err, payload.CityURLDefaults, nil)
		return
	}
	writeJSON(w, http.StatusOK, payload.NewCityURLs(urls))
}

// ClearCity handles DELETE /v1/cities/{city}/documents.
func (s *Server) ClearCity(w http.ResponseWriter, r *http.Request) {
	city := chi.URLParam(r, "city")
	ctx := logpkg.WithCity(r.Context(), city)

	res, err := s.svc.Purge.ClearCity(ctx, authz.FromContext(ctx), city)
	if err != nil {
		var partial any
		if res.Deleted > 0 {
			partial = payload.NewClearCity(res)
		}
		s.fail(w, r, err, payload.ClearDefaults, partial)
		return
	}
	writeJSON(w, http.StatusOK, payload.NewClearCity(res))
}

// ClearAll handles DELETE /v1/documents.
func (s *Server) ClearAll(w http.ResponseWriter, r *http.Request) {
	res, err := s.svc.Purge.ClearAll(r.Context(), authz.FromContext(r.Context()))
	if err != nil {
		s.fail(w, r, err, payload.ClearAllDefaults, nil)
		return
	}
	writeJSON(w, http.StatusOK, payload.NewClearAll(res))
}

type scrapeBody struct {
	URL      string `json:"url"`
	CitySlug string `json:"city_slug"`
}

// Scrape handles POST /v1/scrape. Nothing is stored.
func (s *Server) Scrape(w http.ResponseWriter, r *http.Request) {
	if s.svc.Scrape == nil {
		s.fail(w, r, fmt.Errorf("scrape service: %w", domain.ErrNotImplemented), payload.ScrapeDefaults, nil)
		return
	}
	var body scrapeBody
	if err := decodeBody(w, r, &body, false); err != nil {
		s.fail(w, r, err, payload.ScrapeDefaults, nil)
		return
	}
	res, err := s.svc.Scrape.Scrape(r.Context(), body.URL, body.CitySlug)
	if err != nil {
		s.fail(w, r, err, payload.ScrapeDefaults, nil)
		return
	}
	writeJSON(w, http.StatusOK, payload.NewScrape(res))
}

// ScrapeAndIngest handles POST /v1/cities/{city}/scrape.
// With a url in the body that page is scraped; without one every agenda URL of the city is.
func (s *Server) ScrapeAndIngest(w http.ResponseWriter, r *http.Request) {
	if s.svc.Scrape == nil {
		s.fail(w, r, fmt.Errorf("scrape service: %w", domain.ErrNotImplemented), payload.IngestDefaults, nil)
		return
	}
	city := chi.URLParam(r, "city")
	ctx := logpkg.WithCity(r.Context(), city)

	var body scrapeBody
	if err := decodeBody(w, r, &body, true); err != nil {
		s.fail(w, r, err, payload.IngestDefaults, nil)
		return
	}

	p := authz.FromContext(ctx)
	if body.URL == "" {
		out, err := s.svc.Scrape.ScrapeCity(ctx, p, city)
		if err != nil {
			s.fail(w, r, err, payload.IngestDefaults, nil)
			return
		}
		writeJSON(w, http.StatusOK, payload.NewScrapeCity(out))
		return
	}

	out, err := s.svc.Scrape.ScrapeAndIngest(ctx, p, body.URL, city)
	if err != nil {
		s.fail(w, r, err, payload.IngestDefaults, payload.NewScrapeIngest(out))
		return
	}
	writeJSON(w, http.StatusOK, payload.NewScrapeIngest(out))
}

type embedBody struct {
	Text string `json:"text"`
}

// GenerateEmbedding handles POST /v1/embeddings. Only the shape of the vector is returned.
func (s *Server) GenerateEmbedding(w http.ResponseWriter, r *http.Request) {
	var body embedBody
	if err := decodeBody(w, r, &body, false); err != nil {
		s.fail(w, r, err, payload.EmbedDefaults, nil)
		return
	}
	res, err := embeddinguc.Probe(r.Context(), s.svc.Embedder, body.Text)
	if err != nil {
		s.fail(w, r, err, payload.EmbedDefaults, nil)
		return
	}
	writeJSON(w, http.StatusOK, payload.NewEmbedding(res))
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	rep := s.svc.Health.Check(ctx)
	status := http.StatusOK
	if rep.Status != healthuc.Healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, payload.NewHealth(rep))
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// decodeBody reads a JSON body into v. An optional body may be absent.
func decodeBody(w http.ResponseWriter, r *http.Request, v any, optional bool) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("invalid request body: %v: %w", err, domain.ErrInvalidInput)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func sentinelHandler(sentinel error, status int) errorHandler {
	return func(err error) (int, bool) {
		if !errors.Is(err, sentinel) {
			return 0, false
		}
		return status, true
	}
}

func (s *Server) status(err error) int {
	for _, h := range s.errorHandlers {
		if status, ok := h(err); ok {
			return status
		}
	}
	return http.StatusInternalServerError
}

// fail writes the error payload, merged over the operation's defaults and any partial result.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error, defaults payload.Defaults, partial any) {
	status := s.status(err)
	log := s.logger.With(zap.String("request_id", chiMiddleware.GetReqID(r.Context())), zap.String("path", r.URL.Path))
	if status >= http.StatusInternalServerError {
		log.Error("request failed", zap.Error(err), zap.Int("status", status))
	} else {
		log.Warn("request rejected", zap.Error(err), zap.Int("status", status))
	}
	body := payload.Error(err, defaults, partial)
	if status == http.StatusInternalServerError {
		body["error"] = "internal error"
	}
	writeJSON(w, status, body)
}
