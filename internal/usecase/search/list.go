package search

import (
	"context"
	"fmt"

	domdoc "github.com/kailas-cloud/cityrag/internal/domain/document"
	"github.com/kailas-cloud/cityrag/internal/domain/query"
	"github.com/kailas-cloud/cityrag/internal/domain/search/filter"
)

// Listing selects stored documents by equality filters. Blank or "all" fields are unfiltered.
type Listing struct {
	CitySlug string
	Type     string
	AdminID  string
	// ActiveOnly restricts the listing to active documents.
	ActiveOnly bool
	Limit      int
}

// List returns up to l.Limit documents matching the listing filters, in store order.
// A non-positive limit returns every match.
func (s *Service) List(ctx context.Context, l Listing) ([]domdoc.Document, error) {
	expr, err := listingFilter(l)
	if err != nil {
		return nil, err
	}
	limit := max(l.Limit, 0)
	docs, err := s.repo.Find(ctx, expr, limit)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return docs, nil
}

func listingFilter(l Listing) (filter.Expression, error) {
	var conds []filter.Condition
	add := func(key, v string) error {
		if v == "" || v == query.All {
			return nil
		}
		c, err := filter.NewMatch(key, v)
		if err != nil {
			return err
		}
		conds = append(conds, c)
		return nil
	}
	if err := add(filter.FieldCitySlug, l.CitySlug); err != nil {
		return filter.Expression{}, err
	}
	if err := add(filter.FieldType, l.Type); err != nil {
		return filter.Expression{}, err
	}
	if err := add(filter.FieldAdminIDs, l.AdminID); err != nil {
		return filter.Expression{}, err
	}
	if l.ActiveOnly {
		c, err := filter.NewBool(filter.FieldIsActive, true)
		if err != nil {
			return filter.Expression{}, err
		}
		conds = append(conds, c)
	}
	return filter.NewExpression(conds...)
}
