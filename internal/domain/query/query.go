package query

import (
	"fmt"
	"strings"
)

// All is the wildcard accepted for the city and type filters.
const All = "all"

// Query is an ephemeral search request: free text plus city/type filters and a limit.
type Query struct {
	text     string
	citySlug string
	dataType string
	limit    int
}

// Limits bounds the result count of a Query.
type Limits struct {
	Default int
	Max     int
}

// New validates and creates a Query. Empty filters normalize to All; limit <= 0 takes the default.
func New(text, citySlug, dataType string, limit int, l Limits) (Query, error) {
	citySlug = normalizeFilter(citySlug)
	dataType = normalizeFilter(dataType)

	if limit <= 0 {
		limit = l.Default
	}
	if l.Max > 0 && limit > l.Max {
		return Query{}, fmt.Errorf("limit %d exceeds maximum %d", limit, l.Max)
	}

	return Query{text: strings.TrimSpace(text), citySlug: citySlug, dataType: dataType, limit: limit}, nil
}

// Text returns the trimmed query text.
func (q Query) Text() string { return q.text }

// CitySlug returns the city filter as given ("all" when unfiltered).
func (q Query) CitySlug() string { return q.citySlug }

// DataType returns the type filter as given ("all" when unfiltered).
func (q Query) DataType() string { return q.dataType }

// Limit returns the maximum number of results.
func (q Query) Limit() int { return q.limit }

// CityFilter returns the city to filter on, if any.
func (q Query) CityFilter() (string, bool) { return q.citySlug, q.citySlug != All }

// TypeFilter returns the type to filter on, if any.
func (q Query) TypeFilter() (string, bool) { return q.dataType, q.dataType != All }

// Tokens returns the lowercase whitespace-separated query terms.
func (q Query) Tokens() []string { return strings.Fields(strings.ToLower(q.text)) }

func normalizeFilter(v string) string {
	v = strings.TrimSpace(v)
	if v == "" || strings.EqualFold(v, All) {
		return All
	}
	return v
}
