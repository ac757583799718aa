// Package city serves the configured official URLs of a municipality.
package city

import (
	"context"
	"fmt"

	domcity "github.com/kailas-cloud/cityrag/internal/domain/city"
)

// Repository reads city configuration.
type Repository interface {
	Get(ctx context.Context, slug string) (domcity.City, error)
	List(ctx context.Context) ([]domcity.City, error)
}

// URLs is the URL lookup result for one city.
type URLs struct {
	City      domcity.City
	Counts    map[domcity.URLCategory]int
	TotalURLs int
}

// Service answers city configuration lookups.
type Service struct {
	repo Repository
}

// New creates a city service.
func New(repo Repository) *Service {
	return &Service{repo: repo}
}

// GetURLs returns every configured URL of the city with per-category counts.
// A missing city yields domain.ErrCityNotFound.
func (s *Service) GetURLs(ctx context.Context, slug string) (URLs, error) {
	c, err := s.repo.Get(ctx, slug)
	if err != nil {
		return URLs{}, fmt.Errorf("get city urls: %w", err)
	}
	counts, total := c.URLCounts()
	return URLs{City: c, Counts: counts, TotalURLs: total}, nil
}

// List returns every configured city.
func (s *Service) List(ctx context.Context) ([]domcity.City, error) {
	cities, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list cities: %w", err)
	}
	return cities, nil
}
