package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the cityrag service configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	RAG       RAGConfig       `yaml:"rag"`
	Admin     AdminConfig     `yaml:"admin"`
	Auth      AuthConfig      `yaml:"auth"`
	Scraper   ScraperConfig   `yaml:"scraper"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
// API keys grant read access; JWTs signed with JWTSecret carry admin capabilities.
type AuthConfig struct {
	APIKeys   []string `yaml:"api_keys"`
	JWTSecret string   `yaml:"jwt_secret"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds document store connection settings.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // redis, mongo, memory (default: redis)
	Addrs            []string `yaml:"addrs"`  // redis
	Password         string   `yaml:"password"`
	URI              string   `yaml:"uri"`  // mongo
	Name             string   `yaml:"name"` // mongo database name
	KeyPrefix        string   `yaml:"key_prefix"`
	BatchLimit       int      `yaml:"batch_limit"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
	OpTimeoutSec     int      `yaml:"op_timeout_sec"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider    string `yaml:"provider"` // openai, genai, ollama
	APIKey      string `yaml:"api_key"`
	BaseURL     string `yaml:"base_url"`
	Model       string `yaml:"model"`
	Dimensions  int    `yaml:"dimensions"`
	TimeoutSec  int    `yaml:"timeout_sec"`
	Cache       bool   `yaml:"cache"`
	CacheTTLSec int    `yaml:"cache_ttl_sec"`
}

// RAGConfig holds retrieval and ingestion tuning.
type RAGConfig struct {
	DefaultLimit        int      `yaml:"default_limit"`
	MaxLimit            int      `yaml:"max_limit"`
	SimilarityThreshold float64  `yaml:"similarity_threshold"`
	EmbedWorkers        int      `yaml:"embed_workers"`
	DefaultAdminIDs     []string `yaml:"default_admin_ids"`
	Language            string   `yaml:"language"`
	DefaultConfidence   float64  `yaml:"default_confidence"`
	DefaultCategory     string   `yaml:"default_category"`
}

// AdminConfig holds administrative switches.
type AdminConfig struct {
	// AllowPurgeAll enables real deletion for the global clear operation.
	// When false the operation reports zero counts and deletes nothing.
	AllowPurgeAll bool `yaml:"allow_purge_all"`
}

// ScraperConfig holds headless-browser scrape service settings.
type ScraperConfig struct {
	BaseURL       string `yaml:"base_url"`
	TimeoutSec    int    `yaml:"timeout_sec"`
	PageTimeoutMs int    `yaml:"page_timeout_ms"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile reads configuration from an explicit path.
func LoadFile(configPath string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 90 // scrape-and-ingest holds the connection for the scrape call
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	c.applyDatabaseDefaults()
	c.applyEmbeddingDefaults()
	c.applyRAGDefaults()
	if c.Scraper.TimeoutSec <= 0 {
		c.Scraper.TimeoutSec = 60
	}
	if c.Scraper.PageTimeoutMs <= 0 {
		c.Scraper.PageTimeoutMs = 30000
	}
}

func (c *Config) applyDatabaseDefaults() {
	if c.Database.Driver == "" {
		c.Database.Driver = "redis"
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Database.OpTimeoutSec <= 0 {
		c.Database.OpTimeoutSec = 10
	}
	if c.Database.BatchLimit <= 0 {
		c.Database.BatchLimit = 400
	}
	if c.Database.KeyPrefix == "" {
		c.Database.KeyPrefix = "cityrag:"
	}
	if c.Database.Name == "" {
		c.Database.Name = "cityrag"
	}
}

func (c *Config) applyEmbeddingDefaults() {
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "openai"
	}
	if c.Embedding.Dimensions <= 0 {
		c.Embedding.Dimensions = 768
	}
	if c.Embedding.TimeoutSec <= 0 {
		c.Embedding.TimeoutSec = 30
	}
	if c.Embedding.CacheTTLSec <= 0 {
		c.Embedding.CacheTTLSec = 7 * 24 * 3600
	}
}

func (c *Config) applyRAGDefaults() {
	if c.RAG.DefaultLimit <= 0 {
		c.RAG.DefaultLimit = 10
	}
	if c.RAG.MaxLimit <= 0 {
		c.RAG.MaxLimit = 100
	}
	if c.RAG.SimilarityThreshold <= 0 {
		c.RAG.SimilarityThreshold = 0.1
	}
	if c.RAG.EmbedWorkers <= 0 {
		c.RAG.EmbedWorkers = 4
	}
	if len(c.RAG.DefaultAdminIDs) == 0 {
		c.RAG.DefaultAdminIDs = []string{"superadmin"}
	}
	if c.RAG.Language == "" {
		c.RAG.Language = "es"
	}
	if c.RAG.DefaultConfidence <= 0 {
		c.RAG.DefaultConfidence = 0.8
	}
	if c.RAG.DefaultCategory == "" {
		c.RAG.DefaultCategory = "general"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	switch c.Database.Driver {
	case "redis":
		if len(c.Database.Addrs) == 0 {
			return fmt.Errorf("database.addrs is required for driver redis")
		}
	case "mongo":
		if c.Database.URI == "" {
			return fmt.Errorf("database.uri is required for driver mongo")
		}
	case "memory":
	default:
		return fmt.Errorf("database.driver must be one of redis, mongo, memory, got %q", c.Database.Driver)
	}
	switch c.Embedding.Provider {
	case "openai", "genai", "ollama":
	default:
		return fmt.Errorf("embedding.provider must be one of openai, genai, ollama, got %q", c.Embedding.Provider)
	}
	if c.Embedding.Model == "" {
		return fmt.Errorf("embedding.model is required")
	}
	if c.RAG.SimilarityThreshold >= 1 {
		return fmt.Errorf("rag.similarity_threshold must be below 1, got %g", c.RAG.SimilarityThreshold)
	}
	if c.RAG.DefaultLimit > c.RAG.MaxLimit {
		return fmt.Errorf("rag.default_limit (%d) exceeds rag.max_limit (%d)", c.RAG.DefaultLimit, c.RAG.MaxLimit)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
