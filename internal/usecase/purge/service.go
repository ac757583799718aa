// Package purge deletes documents in store-sized chunks.
package purge

import (
	"context"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/kailas-cloud/cityrag/internal/domain"
	"github.com/kailas-cloud/cityrag/internal/domain/authz"
	"github.com/kailas-cloud/cityrag/internal/domain/batch"
	domcity "github.com/kailas-cloud/cityrag/internal/domain/city"
	domdoc "github.com/kailas-cloud/cityrag/internal/domain/document"
	"github.com/kailas-cloud/cityrag/internal/domain/search/filter"
	"github.com/kailas-cloud/cityrag/internal/metrics"
)

// Repository deletes and streams documents.
type Repository interface {
	DeleteMatching(ctx context.Context, expr filter.Expression) (batch.Report, error)
	Each(ctx context.Context, expr filter.Expression, fn func(domdoc.Document) error) error
}

// CityResult is the outcome of clearing one city.
type CityResult struct {
	CitySlug string
	Deleted  int
	Chunks   int
}

// AllResult is the outcome of clearing the whole collection.
type AllResult struct {
	// Performed is false when global deletion is disabled and nothing was touched.
	Performed      bool
	Deleted        int
	Chunks         int
	CitiesAffected []string
}

// Service runs administrative bulk deletions.
type Service struct {
	repo          Repository
	allowPurgeAll bool
	logger        *zap.Logger
}

// New creates a purge service. With allowPurgeAll false, ClearAll reports zero counts and deletes nothing.
func New(repo Repository, allowPurgeAll bool, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, allowPurgeAll: allowPurgeAll, logger: logger}
}

// ClearCity deletes every document of citySlug. Chunks committed before a failure stay deleted.
func (s *Service) ClearCity(ctx context.Context, p authz.Principal, citySlug string) (CityResult, error) {
	if err := p.CanWriteCity(citySlug); err != nil {
		return CityResult{}, err
	}
	if !domcity.ValidSlug(citySlug) {
		return CityResult{}, fmt.Errorf("%w: invalid city slug %q", domain.ErrInvalidInput, citySlug)
	}
	c, err := filter.NewMatch(filter.FieldCitySlug, citySlug)
	if err != nil {
		return CityResult{}, err
	}
	expr, err := filter.NewExpression(c)
	if err != nil {
		return CityResult{}, err
	}

	report, err := s.repo.DeleteMatching(ctx, expr)
	if err != nil {
		return CityResult{CitySlug: citySlug}, fmt.Errorf("delete city documents: %w", err)
	}
	record(report)

	res := CityResult{CitySlug: citySlug, Deleted: report.Committed(), Chunks: report.CommittedChunks()}
	s.logger.Info("city documents cleared",
		zap.String("city_slug", citySlug),
		zap.String("principal", p.Subject),
		zap.Int("deleted", res.Deleted),
		zap.Int("chunks", res.Chunks),
	)
	if err := report.Err(); err != nil {
		return res, fmt.Errorf("delete city documents: %w", err)
	}
	return res, nil
}

// ClearAll deletes the whole document collection when enabled.
func (s *Service) ClearAll(ctx context.Context, p authz.Principal) (AllResult, error) {
	if err := p.CanPurgeAll(); err != nil {
		return AllResult{}, err
	}
	if !s.allowPurgeAll {
		s.logger.Warn("global purge requested but disabled", zap.String("principal", p.Subject))
		return AllResult{CitiesAffected: []string{}}, nil
	}

	cities := make(map[string]struct{})
	err := s.repo.Each(ctx, filter.Expression{}, func(d domdoc.Document) error {
		cities[d.CitySlug()] = struct{}{}
		return nil
	})
	if err != nil {
		return AllResult{}, fmt.Errorf("scan documents: %w", err)
	}

	report, err := s.repo.DeleteMatching(ctx, filter.Expression{})
	if err != nil {
		return AllResult{}, fmt.Errorf("delete all documents: %w", err)
	}
	record(report)

	res := AllResult{
		Performed:      true,
		Deleted:        report.Committed(),
		Chunks:         report.CommittedChunks(),
		CitiesAffected: make([]string, 0, len(cities)),
	}
	for c := range cities {
		res.CitiesAffected = append(res.CitiesAffected, c)
	}
	slices.Sort(res.CitiesAffected)

	s.logger.Warn("all documents cleared",
		zap.String("principal", p.Subject),
		zap.Int("deleted", res.Deleted),
		zap.Strings("cities", res.CitiesAffected),
	)
	if err := report.Err(); err != nil {
		return res, fmt.Errorf("delete all documents: %w", err)
	}
	return res, nil
}

func record(r batch.Report) {
	for _, c := range r.Chunks {
		metrics.StoreChunksTotal.WithLabelValues("delete", string(c.Status())).Inc()
	}
}
