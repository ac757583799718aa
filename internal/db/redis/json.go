package redis

import (
	"context"
	"fmt"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/cityrag/internal/db"
)

// Fetch retrieves one JSON document by collection and id.
func (s *Store) Fetch(ctx context.Context, collection, id string) ([]byte, error) {
	cmd := s.b().Arbitrary("JSON.GET").Keys(s.docKey(collection, id)).Build()
	raw, err := s.do(ctx, cmd).ToString()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, db.ErrKeyNotFound
		}
		return nil, &db.Error{Op: db.OpJSONGet, Err: err}
	}
	if raw == "" {
		return nil, db.ErrKeyNotFound
	}
	return []byte(raw), nil
}

// Commit applies ops inside one MULTI/EXEC transaction.
func (s *Store) Commit(ctx context.Context, collection string, ops []db.WriteOp) error {
	if len(ops) == 0 {
		return nil
	}
	if len(ops) > s.batchLimit {
		return &db.Error{Op: db.OpCommit, Err: fmt.Errorf("%d ops, limit %d: %w", len(ops), s.batchLimit, db.ErrBatchTooLarge)}
	}

	cmds := make(rueidis.Commands, 0, len(ops)+2)
	cmds = append(cmds, s.b().Multi().Build())
	for _, op := range ops {
		key := s.docKey(collection, op.ID)
		switch op.Kind {
		case db.OpPut:
			cmds = append(cmds, s.b().Arbitrary("JSON.SET").Keys(key).Args("$", string(op.Data)).Build())
		case db.OpDelete:
			cmds = append(cmds, s.b().Del().Key(key).Build())
		default:
			return &db.Error{Op: db.OpCommit, Err: fmt.Errorf("unknown op kind %d", op.Kind)}
		}
	}
	cmds = append(cmds, s.b().Exec().Build())

	results := s.client.DoMulti(ctx, cmds...)
	for _, r := range results {
		if err := r.Error(); err != nil {
			return &db.Error{Op: db.OpCommit, Err: err}
		}
	}
	return nil
}
