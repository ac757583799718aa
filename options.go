package cityrag

import (
	"go.uber.org/zap"
)

// Option configures the Client.
type Option func(*clientConfig)

type clientConfig struct {
	driver   string // redis, mongo or memory
	addrs    []string
	password string
	uri      string
	database string

	embedder      Embedder
	allowPurgeAll bool
	defaultLimit  int
	maxLimit      int
	threshold     float64
	workers       int

	logger *zap.Logger
}

// WithRedis stores documents in Redis 8+ (JSON and query engine built in).
func WithRedis(addr, password string) Option {
	return func(c *clientConfig) {
		c.driver = "redis"
		c.addrs = []string{addr}
		c.password = password
	}
}

// WithMongo stores documents in a MongoDB database.
func WithMongo(uri, database string) Option {
	return func(c *clientConfig) {
		c.driver = "mongo"
		c.uri = uri
		c.database = database
	}
}

// WithMemory keeps documents in process memory. Nothing survives Close.
func WithMemory() Option {
	return func(c *clientConfig) { c.driver = "memory" }
}

// WithEmbedder sets the embedding provider. Without one, documents are stored
// without vectors and vector search falls back to keyword ranking.
func WithEmbedder(e Embedder) Option {
	return func(c *clientConfig) { c.embedder = e }
}

// WithPurgeAll enables real deletion for ClearAll.
func WithPurgeAll(allow bool) Option {
	return func(c *clientConfig) { c.allowPurgeAll = allow }
}

// WithLimits overrides the default and maximum result counts.
func WithLimits(def, max int) Option {
	return func(c *clientConfig) {
		c.defaultLimit = def
		c.maxLimit = max
	}
}

// WithSimilarityThreshold overrides the vector search cutoff.
func WithSimilarityThreshold(t float64) Option {
	return func(c *clientConfig) { c.threshold = t }
}

// WithWorkers sets the number of concurrent embedding calls during ingestion.
func WithWorkers(n int) Option {
	return func(c *clientConfig) { c.workers = n }
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *clientConfig) { c.logger = l }
}
