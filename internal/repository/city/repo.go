package city

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/kailas-cloud/cityrag/internal/db"
	"github.com/kailas-cloud/cityrag/internal/domain"
	domcity "github.com/kailas-cloud/cityrag/internal/domain/city"
)

// store is the consumer interface for city configuration (ISP).
type store interface {
	Fetch(ctx context.Context, collection, id string) ([]byte, error)
	Stream(ctx context.Context, q *db.Query, fn func(db.Entry) error) error
	Commit(ctx context.Context, collection string, ops []db.WriteOp) error
}

// cityJSON is the stored shape of a city document, keyed by slug.
type cityJSON struct {
	Slug            string              `json:"slug"`
	Name            string              `json:"name"`
	DisplayName     string              `json:"displayName,omitempty"`
	Province        string              `json:"province,omitempty"`
	Population      int                 `json:"population,omitempty"`
	IsActive        bool                `json:"isActive"`
	ScrapingEnabled bool                `json:"scrapingEnabled"`
	AdminIDs        []string            `json:"adminIds"`
	URLs            map[string][]string `json:"urls"`
	Seq             int64               `json:"seq"`
}

// Repo reads and writes city configuration.
type Repo struct {
	store store
	seq   db.Sequencer
}

// New creates a city repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// Get returns the city stored under slug.
func (r *Repo) Get(ctx context.Context, slug string) (domcity.City, error) {
	raw, err := r.store.Fetch(ctx, domain.CollectionCities, slug)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return domcity.City{}, fmt.Errorf("city %s: %w", slug, domain.ErrCityNotFound)
		}
		return domcity.City{}, fmt.Errorf("fetch city %s: %w: %w", slug, domain.ErrStoreUnavailable, err)
	}
	return decode(slug, raw)
}

// Put creates or replaces a city.
func (r *Repo) Put(ctx context.Context, c domcity.City) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}
	j := toJSON(&c)
	j.Seq = r.seq.Next(time.Now())
	data, err := json.Marshal(j)
	if err != nil {
		return fmt.Errorf("marshal city: %w", err)
	}
	op := db.WriteOp{Kind: db.OpPut, ID: c.Slug, Data: data}
	if err := r.store.Commit(ctx, domain.CollectionCities, []db.WriteOp{op}); err != nil {
		return fmt.Errorf("put city %s: %w: %w", c.Slug, domain.ErrStoreUnavailable, err)
	}
	return nil
}

// List returns every configured city ordered by slug.
func (r *Repo) List(ctx context.Context) ([]domcity.City, error) {
	var cities []domcity.City
	var decodeErr error
	err := r.store.Stream(ctx, &db.Query{Collection: domain.CollectionCities}, func(e db.Entry) error {
		c, err := decode(e.ID, e.Data)
		if err != nil {
			decodeErr = err
			return err
		}
		cities = append(cities, c)
		return nil
	})
	if decodeErr != nil {
		return nil, decodeErr
	}
	if err != nil {
		return nil, fmt.Errorf("list cities: %w: %w", domain.ErrStoreUnavailable, err)
	}
	sort.Slice(cities, func(i, j int) bool { return cities[i].Slug < cities[j].Slug })
	return cities, nil
}

func toJSON(c *domcity.City) cityJSON {
	urls := make(map[string][]string, len(c.URLs))
	for cat, list := range c.URLs {
		urls[string(cat)] = list
	}
	return cityJSON{
		Slug:            c.Slug,
		Name:            c.Name,
		DisplayName:     c.DisplayName,
		Province:        c.Province,
		Population:      c.Population,
		IsActive:        c.IsActive,
		ScrapingEnabled: c.ScrapingEnabled,
		AdminIDs:        c.AdminIDs,
		URLs:            urls,
	}
}

func decode(slug string, raw []byte) (domcity.City, error) {
	var j cityJSON
	if err := json.Unmarshal(raw, &j); err != nil {
		return domcity.City{}, fmt.Errorf("decode city %s: %w", slug, err)
	}
	if j.Slug == "" {
		j.Slug = slug
	}
	urls := make(map[domcity.URLCategory][]string, len(j.URLs))
	for cat, list := range j.URLs {
		urls[domcity.URLCategory(cat)] = list
	}
	return domcity.City{
		Slug:            j.Slug,
		Name:            j.Name,
		DisplayName:     j.DisplayName,
		Province:        j.Province,
		Population:      j.Population,
		IsActive:        j.IsActive,
		ScrapingEnabled: j.ScrapingEnabled,
		AdminIDs:        j.AdminIDs,
		URLs:            urls,
	}, nil
}
