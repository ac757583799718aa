package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/kailas-cloud/cityrag/internal/db"
	"github.com/kailas-cloud/cityrag/internal/domain/search/filter"
)

// Fetch retrieves one document by collection and id as JSON.
func (s *Store) Fetch(ctx context.Context, collection, id string) ([]byte, error) {
	raw, err := s.database.Collection(collection).FindOne(ctx, bson.M{"_id": id}).Raw()
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, db.ErrKeyNotFound
		}
		return nil, &db.Error{Op: db.OpFind, Err: err}
	}
	return toJSON(raw)
}

// Stream iterates documents matching q in seq order.
func (s *Store) Stream(ctx context.Context, q *db.Query, fn func(db.Entry) error) error {
	if q == nil || q.Collection == "" {
		return fmt.Errorf("collection is required")
	}

	opts := options.Find().SetSort(bson.D{{Key: db.SeqField, Value: 1}, {Key: "_id", Value: 1}})
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}

	cursor, err := s.database.Collection(q.Collection).Find(ctx, buildFilter(q.Filter), opts)
	if err != nil {
		return &db.Error{Op: db.OpFind, Err: err}
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		id, _ := cursor.Current.Lookup("_id").StringValueOK()
		data, err := toJSON(cursor.Current)
		if err != nil {
			return err
		}
		err = fn(db.Entry{ID: id, Data: data})
		if errors.Is(err, db.ErrStopStream) {
			return nil
		}
		if err != nil {
			return err
		}
	}
	if err := cursor.Err(); err != nil {
		return &db.Error{Op: db.OpFind, Err: err}
	}
	return nil
}

// Commit applies ops as one ordered BulkWrite.
func (s *Store) Commit(ctx context.Context, collection string, ops []db.WriteOp) error {
	if len(ops) == 0 {
		return nil
	}
	if len(ops) > s.batchLimit {
		return &db.Error{Op: db.OpBulkWrite, Err: fmt.Errorf("%d ops, limit %d: %w", len(ops), s.batchLimit, db.ErrBatchTooLarge)}
	}

	models := make([]mongo.WriteModel, 0, len(ops))
	for _, op := range ops {
		switch op.Kind {
		case db.OpPut:
			doc, err := fromJSON(op.ID, op.Data)
			if err != nil {
				return err
			}
			models = append(models, mongo.NewReplaceOneModel().
				SetFilter(bson.M{"_id": op.ID}).
				SetReplacement(doc).
				SetUpsert(true))
		case db.OpDelete:
			models = append(models, mongo.NewDeleteOneModel().SetFilter(bson.M{"_id": op.ID}))
		default:
			return &db.Error{Op: db.OpBulkWrite, Err: fmt.Errorf("unknown op kind %d", op.Kind)}
		}
	}

	_, err := s.database.Collection(collection).BulkWrite(ctx, models, options.BulkWrite().SetOrdered(true))
	if err != nil {
		return &db.Error{Op: db.OpBulkWrite, Err: err}
	}
	return nil
}

// buildFilter translates filter.Expression into a MongoDB query document.
// Array fields match on membership natively.
func buildFilter(expr filter.Expression) bson.M {
	m := bson.M{}
	for _, cond := range expr.Must() {
		if cond.IsBool() {
			m[cond.Key()] = cond.Bool()
			continue
		}
		m[cond.Key()] = cond.Match()
	}
	return m
}

func fromJSON(id string, data []byte) (bson.M, error) {
	var doc bson.M
	if err := bson.UnmarshalExtJSON(data, false, &doc); err != nil {
		return nil, fmt.Errorf("decode document %s: %w", id, err)
	}
	doc["_id"] = id
	return doc, nil
}

func toJSON(raw bson.Raw) ([]byte, error) {
	data, err := bson.MarshalExtJSON(raw, false, false)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return data, nil
}
