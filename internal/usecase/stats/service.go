// Package stats aggregates counts and confidence over the document collection.
package stats

import (
	"context"
	"fmt"
	"math"
	"slices"
	"time"

	domdoc "github.com/kailas-cloud/cityrag/internal/domain/document"
	"github.com/kailas-cloud/cityrag/internal/domain/search/filter"
)

// Unknown is the group key for documents without a type or source URL.
const Unknown = "unknown"

// Repository streams documents matching a filter.
type Repository interface {
	Each(ctx context.Context, expr filter.Expression, fn func(domdoc.Document) error) error
}

// Stats is the aggregate view of the collection, optionally scoped to one city.
type Stats struct {
	// CitySlug is empty for collection-wide stats.
	CitySlug          string
	TotalItems        int
	ActiveItems       int
	ItemsByType       map[string]int
	ItemsBySource     map[string]int
	AverageConfidence float64
	// CitiesWithData is sorted and only filled for collection-wide stats.
	CitiesWithData []string
	// LastUpdate is the newest creation time seen; zero when empty.
	LastUpdate time.Time
}

// Scoped reports whether the stats cover a single city.
func (s Stats) Scoped() bool { return s.CitySlug != "" }

// Service computes statistics.
type Service struct {
	repo Repository
}

// New creates a stats service.
func New(repo Repository) *Service {
	return &Service{repo: repo}
}

// Compute aggregates every document of citySlug, or of the whole collection when citySlug is empty.
// An empty collection yields zero counts and empty maps.
func (s *Service) Compute(ctx context.Context, citySlug string) (Stats, error) {
	var conds []filter.Condition
	if citySlug != "" {
		c, err := filter.NewMatch(filter.FieldCitySlug, citySlug)
		if err != nil {
			return Stats{}, err
		}
		conds = append(conds, c)
	}
	expr, err := filter.NewExpression(conds...)
	if err != nil {
		return Stats{}, err
	}

	out := Stats{
		CitySlug:      citySlug,
		ItemsByType:   make(map[string]int),
		ItemsBySource: make(map[string]int),
	}
	var (
		confSum   float64
		confCount int
		cities    = make(map[string]struct{})
	)

	err = s.repo.Each(ctx, expr, func(d domdoc.Document) error {
		out.TotalItems++
		if d.IsActive() {
			out.ActiveItems++
		}
		out.ItemsByType[orUnknown(string(d.Type()))]++

		meta := d.Metadata()
		out.ItemsBySource[orUnknown(meta.SourceURL)]++
		if meta.HasConfidence() {
			confSum += meta.ConfidenceValue()
			confCount++
		}
		if d.CreatedAt().After(out.LastUpdate) {
			out.LastUpdate = d.CreatedAt()
		}
		cities[d.CitySlug()] = struct{}{}
		return nil
	})
	if err != nil {
		return Stats{}, fmt.Errorf("aggregate documents: %w", err)
	}

	if confCount > 0 {
		out.AverageConfidence = round2(confSum / float64(confCount))
	}
	if citySlug == "" {
		out.CitiesWithData = make([]string, 0, len(cities))
		for c := range cities {
			out.CitiesWithData = append(out.CitiesWithData, c)
		}
		slices.Sort(out.CitiesWithData)
	}
	return out, nil
}

func orUnknown(s string) string {
	if s == "" {
		return Unknown
	}
	return s
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
