package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/cityrag/internal/db"
	"github.com/kailas-cloud/cityrag/internal/domain"
)

// Compile-time check: Store implements db.Store.
var _ db.Store = (*Store)(nil)

// DefaultBatchLimit caps the commands inside one MULTI/EXEC commit.
const DefaultBatchLimit = 400

// Config holds connection parameters for a Redis store.
type Config struct {
	Addrs      []string
	Username   string
	Password   string
	DB         int
	KeyPrefix  string
	BatchLimit int
}

// Store implements db.Store via rueidis for Redis 8+ (JSON and query engine built in).
type Store struct {
	client     rueidis.Client
	prefix     string
	batchLimit int
}

// NewStore creates a Redis store via rueidis.
func NewStore(cfg Config) (*Store, error) {
	if len(cfg.Addrs) == 0 {
		return nil, fmt.Errorf("addrs is required")
	}

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  cfg.Addrs,
		Username:     cfg.Username,
		Password:     cfg.Password,
		SelectDB:     cfg.DB,
		DisableCache: true,
		AlwaysRESP2:  true, // FT.SEARCH result parsing expects RESP2 array format
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	return newStore(client, cfg), nil
}

func newStore(client rueidis.Client, cfg Config) *Store {
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = domain.KeyPrefix
	}
	limit := cfg.BatchLimit
	if limit <= 0 {
		limit = DefaultBatchLimit
	}
	return &Store{client: client, prefix: prefix, batchLimit: limit}
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	cmd := s.client.B().Ping().Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Close shuts down the client.
func (s *Store) Close() {
	s.client.Close()
}

// WaitForReady polls Ping until the store responds or timeout expires.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for database: %w", ctx.Err())
		case <-ticker.C:
			if err := s.Ping(ctx); err == nil {
				return nil
			}
		}
	}
}

// MaxBatchOps returns the per-commit operation ceiling.
func (s *Store) MaxBatchOps() int { return s.batchLimit }

func (s *Store) do(ctx context.Context, cmd rueidis.Completed) rueidis.RedisResult {
	return s.client.Do(ctx, cmd)
}

func (s *Store) b() rueidis.Builder {
	return s.client.B()
}

// collectionPrefix is the key prefix shared by every document of a collection.
func (s *Store) collectionPrefix(collection string) string {
	return s.prefix + collection + ":"
}

func (s *Store) docKey(collection, id string) string {
	return s.collectionPrefix(collection) + id
}

func (s *Store) indexName(collection string) string {
	return s.prefix + "idx:" + collection
}

func (s *Store) idFromKey(collection, key string) string {
	return strings.TrimPrefix(key, s.collectionPrefix(collection))
}

// isRedisErr checks if err is a Redis server error containing substr (case-insensitive).
func isRedisErr(err error, substr string) bool {
	re, ok := rueidis.IsRedisErr(err)
	if !ok {
		return false
	}
	return strings.Contains(strings.ToLower(re.Error()), strings.ToLower(substr))
}
