package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/kailas-cloud/cityrag/internal/db"
	"github.com/kailas-cloud/cityrag/internal/domain/search/filter"
)

// EnsureCollections creates the FT index of every collection; existing indexes are kept.
func (s *Store) EnsureCollections(ctx context.Context, collections ...string) error {
	for _, c := range collections {
		err := s.CreateIndex(ctx, s.collectionIndex(c))
		if err != nil && !errors.Is(err, db.ErrIndexExists) {
			return fmt.Errorf("ensure index for %s: %w", c, err)
		}
	}
	return nil
}

// collectionIndex indexes the filterable fields as TAGs over the collection's JSON documents.
func (s *Store) collectionIndex(collection string) *db.IndexDefinition {
	return db.NewIndex(s.indexName(collection)).
		OnJSON().
		Prefix(s.collectionPrefix(collection)).
		TagAs("$."+filter.FieldCitySlug, filter.FieldCitySlug).
		TagAs("$."+filter.FieldType, filter.FieldType).
		TagAs("$."+filter.FieldIsActive, filter.FieldIsActive).
		TagAs("$."+filter.FieldHasEmbedding, filter.FieldHasEmbedding).
		TagAs("$."+filter.FieldAdminIDs+"[*]", filter.FieldAdminIDs).
		NumericAs("$.createdAt", "createdAt").
		NumericAs("$."+db.SeqField, db.SeqField).
		MustBuild()
}

// CreateIndex creates an FT index from the given definition.
func (s *Store) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	args, err := buildCreateArgs(def)
	if err != nil {
		return err
	}

	cmd := s.b().Arbitrary("FT.CREATE").Args(args...).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		if isRedisErr(err, "index already exists") {
			return db.ErrIndexExists
		}
		return &db.Error{Op: db.OpCreateIndex, Err: err}
	}
	return nil
}

func buildCreateArgs(idx *db.IndexDefinition) ([]string, error) {
	if err := idx.Validate(); err != nil {
		return nil, err
	}

	args := []string{idx.Name}

	storage := idx.StorageType
	if storage == "" {
		storage = db.StorageHash
	}
	args = append(args, "ON", string(storage))

	if len(idx.Prefixes) > 0 {
		args = append(args, "PREFIX", strconv.Itoa(len(idx.Prefixes)))
		args = append(args, idx.Prefixes...)
	}

	args = append(args, "SCHEMA")

	for i := range idx.Fields {
		args = append(args, buildFieldArgs(&idx.Fields[i])...)
	}

	return args, nil
}

func buildFieldArgs(f *db.IndexField) []string {
	args := []string{f.Name}

	if f.Alias != "" {
		args = append(args, "AS", f.Alias)
	}

	switch f.Type {
	case db.IndexFieldNumeric:
		args = append(args, "NUMERIC")

	case db.IndexFieldTag:
		args = append(args, "TAG")
		if f.TagSeparator != "" {
			args = append(args, "SEPARATOR", f.TagSeparator)
		}
		if f.TagCaseSensitive {
			args = append(args, "CASESENSITIVE")
		}
	}

	return args
}
