package search

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"

	domdoc "github.com/kailas-cloud/cityrag/internal/domain/document"
	"github.com/kailas-cloud/cityrag/internal/domain/query"
	"github.com/kailas-cloud/cityrag/internal/domain/search/filter"
	"github.com/kailas-cloud/cityrag/internal/domain/search/result"
	"github.com/kailas-cloud/cityrag/internal/domain/vector"
	"github.com/kailas-cloud/cityrag/internal/metrics"
)

// DefaultThreshold is the minimum cosine similarity a vector hit must exceed.
const DefaultThreshold = 0.1

// Search modes, used as metric labels and reported to callers.
const (
	ModeKeyword        = "keyword"
	ModeVector         = "vector"
	ModeVectorFallback = "vector_fallback"
)

// Outcome is the ranked result of a search plus the diagnostics callers report.
type Outcome struct {
	Results []result.Result
	// FellBack is set when a vector search could not embed the query and ran keyword search instead.
	FellBack bool
	// TotalCandidates is the number of documents scored before thresholding (vector only).
	TotalCandidates int
	// Threshold is the similarity cutoff applied (vector only).
	Threshold float64
	// QueryDimensions is the length of the query embedding (vector only).
	QueryDimensions int
}

// Service ranks active documents by keyword relevance or embedding similarity.
type Service struct {
	repo      Repository
	embed     Embedder
	threshold float64
	logger    *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithThreshold overrides DefaultThreshold.
func WithThreshold(t float64) Option {
	return func(s *Service) { s.threshold = t }
}

// WithLogger sets the service logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// New creates a search service. embed may be nil; vector search then always falls back.
func New(repo Repository, embed Embedder, opts ...Option) *Service {
	s := &Service{repo: repo, embed: embed, threshold: DefaultThreshold, logger: zap.NewNop()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Threshold returns the similarity cutoff.
func (s *Service) Threshold() float64 { return s.threshold }

// Keyword scores active candidates by term overlap and returns the non-zero hits, best first.
func (s *Service) Keyword(ctx context.Context, q query.Query) (Outcome, error) {
	results, err := s.keyword(ctx, q)
	if err != nil {
		metrics.SearchRequestsTotal.WithLabelValues(ModeKeyword, "error").Inc()
		return Outcome{}, err
	}
	metrics.SearchRequestsTotal.WithLabelValues(ModeKeyword, "ok").Inc()
	metrics.SearchResultsReturned.WithLabelValues(ModeKeyword).Observe(float64(len(results)))
	return Outcome{Results: results}, nil
}

func (s *Service) keyword(ctx context.Context, q query.Query) ([]result.Result, error) {
	expr, err := candidateFilter(q)
	if err != nil {
		return nil, err
	}
	docs, err := s.repo.Find(ctx, expr, 2*q.Limit())
	if err != nil {
		return nil, fmt.Errorf("find candidates: %w", err)
	}

	tokens := q.Tokens()
	if len(tokens) == 0 {
		out := make([]result.Result, 0, min(len(docs), q.Limit()))
		for _, d := range docs[:min(len(docs), q.Limit())] {
			out = append(out, result.New(d, 0))
		}
		return out, nil
	}

	out := make([]result.Result, 0, len(docs))
	for _, d := range docs {
		if score := KeywordScore(tokens, &d); score > 0 {
			out = append(out, result.New(d, float64(score)))
		}
	}
	sortByScore(out)
	return truncate(out, q.Limit()), nil
}

// Vector embeds the query and ranks active documents with embeddings by cosine similarity.
// When the query cannot be embedded the keyword path runs with the same arguments.
func (s *Service) Vector(ctx context.Context, q query.Query) (Outcome, error) {
	vec, ok := s.embedQuery(ctx, q.Text())
	if !ok {
		results, err := s.keyword(ctx, q)
		if err != nil {
			metrics.SearchRequestsTotal.WithLabelValues(ModeVectorFallback, "error").Inc()
			return Outcome{}, err
		}
		metrics.SearchRequestsTotal.WithLabelValues(ModeVectorFallback, "ok").Inc()
		metrics.SearchResultsReturned.WithLabelValues(ModeVectorFallback).Observe(float64(len(results)))
		return Outcome{Results: results, FellBack: true}, nil
	}

	expr, err := candidateFilter(q)
	if err == nil {
		expr, err = withEmbedding(expr)
	}
	if err != nil {
		return Outcome{}, err
	}

	docs, err := s.repo.Find(ctx, expr, 0)
	if err != nil {
		metrics.SearchRequestsTotal.WithLabelValues(ModeVector, "error").Inc()
		return Outcome{}, fmt.Errorf("find candidates: %w", err)
	}
	s.logger.Debug("vector candidates", zap.Int("candidates", len(docs)), zap.String("city_slug", q.CitySlug()))

	out := make([]result.Result, 0, len(docs))
	for _, d := range docs {
		if !d.HasEmbedding() {
			continue
		}
		if sim := vector.Cosine(vec, d.Embedding()); sim > s.threshold {
			out = append(out, result.New(d, sim))
		}
	}
	sortByScore(out)
	out = truncate(out, q.Limit())

	metrics.SearchRequestsTotal.WithLabelValues(ModeVector, "ok").Inc()
	metrics.SearchResultsReturned.WithLabelValues(ModeVector).Observe(float64(len(out)))

	return Outcome{
		Results:         out,
		TotalCandidates: len(docs),
		Threshold:       s.threshold,
		QueryDimensions: len(vec),
	}, nil
}

func (s *Service) embedQuery(ctx context.Context, text string) ([]float32, bool) {
	if s.embed == nil || text == "" {
		return nil, false
	}
	res, err := s.embed.Embed(ctx, text)
	if err != nil {
		s.logger.Warn("query embedding failed, using keyword search", zap.Error(err))
		return nil, false
	}
	if res.Empty() {
		s.logger.Warn("query embedding empty, using keyword search")
		return nil, false
	}
	return res.Embedding, true
}

// KeywordScore returns the relevance of d for the lowercase query tokens:
// +3 per token in the title, +2 in the description, +1 for an exact keyword
// and +1 in the flattened category, location and tags.
func KeywordScore(tokens []string, d *domdoc.Document) int {
	title := strings.ToLower(d.Title())
	description := strings.ToLower(d.Description())
	keywords := d.Keywords()
	meta := d.Metadata().MetadataText()

	score := 0
	for _, t := range tokens {
		if strings.Contains(title, t) {
			score += 3
		}
		if strings.Contains(description, t) {
			score += 2
		}
		if slices.Contains(keywords, t) {
			score++
		}
		if strings.Contains(meta, t) {
			score++
		}
	}
	return score
}

func candidateFilter(q query.Query) (filter.Expression, error) {
	conds := make([]filter.Condition, 0, 3)
	active, err := filter.NewBool(filter.FieldIsActive, true)
	if err != nil {
		return filter.Expression{}, err
	}
	conds = append(conds, active)
	if city, ok := q.CityFilter(); ok {
		c, err := filter.NewMatch(filter.FieldCitySlug, city)
		if err != nil {
			return filter.Expression{}, err
		}
		conds = append(conds, c)
	}
	if typ, ok := q.TypeFilter(); ok {
		c, err := filter.NewMatch(filter.FieldType, typ)
		if err != nil {
			return filter.Expression{}, err
		}
		conds = append(conds, c)
	}
	return filter.NewExpression(conds...)
}

func withEmbedding(expr filter.Expression) (filter.Expression, error) {
	c, err := filter.NewBool(filter.FieldHasEmbedding, true)
	if err != nil {
		return filter.Expression{}, err
	}
	return expr.And(c)
}

// sortByScore orders results by descending score, keeping retrieval order on ties.
func sortByScore(rs []result.Result) {
	slices.SortStableFunc(rs, func(a, b result.Result) int {
		switch sa, sb := a.Score(), b.Score(); {
		case sa > sb:
			return -1
		case sa < sb:
			return 1
		default:
			return 0
		}
	})
}

func truncate(rs []result.Result, limit int) []result.Result {
	if limit > 0 && len(rs) > limit {
		return rs[:limit]
	}
	return rs
}
