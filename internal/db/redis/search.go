package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/cityrag/internal/db"
	"github.com/kailas-cloud/cityrag/internal/domain/search/filter"
)

// streamPageSize is the FT.SEARCH page size used by Stream.
const streamPageSize = 500

// listEntry is one parsed FT.SEARCH hit.
type listEntry struct {
	Key    string
	Fields map[string]string
}

// Stream pages through FT.SEARCH results in seq order and hands each document to fn.
// Pages follow an inclusive seq cursor; keys already emitted at the cursor value are skipped.
func (s *Store) Stream(ctx context.Context, q *db.Query, fn func(db.Entry) error) error {
	if q == nil || q.Collection == "" {
		return fmt.Errorf("collection is required")
	}

	base := buildFilter(q.Filter)

	var (
		cursor   int64
		started  bool
		boundary = map[string]struct{}{}
		seen     int
	)
	for {
		size := streamPageSize
		if q.Limit > 0 && q.Limit-seen < size {
			size = q.Limit - seen
		}

		// Keys already emitted at the cursor come back on the next page.
		fetch := size + len(boundary)
		query := pageQuery(base, cursor, started)
		_, entries, err := s.searchPage(ctx, q.Collection, query, fetch)
		if err != nil {
			return err
		}

		for _, e := range entries {
			if q.Limit > 0 && seen >= q.Limit {
				return nil
			}
			f, _ := strconv.ParseFloat(e.Fields[db.SeqField], 64)
			seq := int64(f)
			if started && seq == cursor {
				if _, dup := boundary[e.Key]; dup {
					continue
				}
			}
			if !started || seq != cursor {
				cursor, started = seq, true
				clear(boundary)
			}
			boundary[e.Key] = struct{}{}

			data, ok := e.Fields["$"]
			if !ok {
				continue
			}
			err := fn(db.Entry{ID: s.idFromKey(q.Collection, e.Key), Data: []byte(data)})
			if errors.Is(err, db.ErrStopStream) {
				return nil
			}
			if err != nil {
				return err
			}
			seen++
		}

		if len(entries) < fetch {
			return nil
		}
		if q.Limit > 0 && seen >= q.Limit {
			return nil
		}
	}
}

// pageQuery narrows base to entries at or after the cursor.
func pageQuery(base string, cursor int64, started bool) string {
	if !started {
		if base == "" {
			return "*"
		}
		return base
	}
	rng := fmt.Sprintf("@%s:[%d +inf]", db.SeqField, cursor)
	if base == "" {
		return rng
	}
	return base + " " + rng
}

func (s *Store) searchPage(
	ctx context.Context, collection, query string, limit int,
) (int, []listEntry, error) {
	args := []string{
		s.indexName(collection), query,
		"RETURN", "2", "$", db.SeqField,
		"SORTBY", db.SeqField, "ASC",
		"LIMIT", "0", strconv.Itoa(limit),
		"DIALECT", "2",
	}

	cmd := s.b().Arbitrary("FT.SEARCH").Args(args...).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return 0, nil, &db.Error{Op: db.OpSearch, Err: err}
	}
	return parseListResult(raw)
}

// --- Result parsing ---

func parseListResult(raw []rueidis.RedisMessage) (int, []listEntry, error) {
	if len(raw) == 0 {
		return 0, nil, nil
	}

	total, err := raw[0].AsInt64()
	if err != nil {
		return 0, nil, fmt.Errorf("parse total: %w", err)
	}
	if total == 0 {
		return 0, nil, nil
	}

	entries := make([]listEntry, 0, len(raw)/2)
	// 2-stride: [total, key1, fields1, key2, fields2, ...]
	for i := 1; i+1 < len(raw); i += 2 {
		key, err := raw[i].ToString()
		if err != nil {
			continue
		}

		fields, err := raw[i+1].ToArray()
		if err != nil {
			continue
		}

		entries = append(entries, listEntry{
			Key:    key,
			Fields: parseFieldPairs(fields),
		})
	}

	return int(total), entries, nil
}

func parseFieldPairs(fields []rueidis.RedisMessage) map[string]string {
	m := make(map[string]string, len(fields)/2)
	for j := 0; j+1 < len(fields); j += 2 {
		name, err := fields[j].ToString()
		if err != nil {
			continue
		}
		value, err := fields[j+1].ToString()
		if err != nil {
			continue
		}
		m[name] = value
	}
	return m
}

// --- Filter building ---

// buildFilter translates filter.Expression into an FT.SEARCH query string.
func buildFilter(expr filter.Expression) string {
	if expr.IsEmpty() {
		return ""
	}

	parts := make([]string, 0, len(expr.Must()))
	for _, cond := range expr.Must() {
		parts = append(parts, buildTagFilter(cond.Key(), cond.Match()))
	}
	return strings.Join(parts, " ")
}

func buildTagFilter(key, value string) string {
	escaped := tagEscaper.Replace(value)
	return fmt.Sprintf("@%s:{%s}", key, escaped)
}

var tagEscaper = strings.NewReplacer(
	",", "\\,",
	".", "\\.",
	"<", "\\<",
	">", "\\>",
	"{", "\\{",
	"}", "\\}",
	"\"", "\\\"",
	"'", "\\'",
	":", "\\:",
	";", "\\;",
	"!", "\\!",
	"@", "\\@",
	"#", "\\#",
	"$", "\\$",
	"%", "\\%",
	"^", "\\^",
	"&", "\\&",
	"*", "\\*",
	"(", "\\(",
	")", "\\)",
	"-", "\\-",
	"+", "\\+",
	"=", "\\=",
	"~", "\\~",
	" ", "\\ ",
)
