// Package genai embeds text with Google's text-embedding models through generative-ai-go.
package genai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/kailas-cloud/cityrag/internal/domain"
	"github.com/kailas-cloud/cityrag/internal/metrics"
)

// ProviderName labels metrics recorded by this embedder.
const ProviderName = "genai"

// DefaultModel produces the 768-dimension vectors the document collection is built around.
const DefaultModel = "text-embedding-004"

// model is the subset of *genai.EmbeddingModel the embedder calls.
type model interface {
	EmbedContent(ctx context.Context, parts ...genai.Part) (*genai.EmbedContentResponse, error)
	Info(ctx context.Context) (*genai.ModelInfo, error)
}

// Config holds the provider settings.
type Config struct {
	APIKey   string
	Model    string
	Endpoint string // optional override
	Logger   *zap.Logger
}

// Embedder is a domain.Embedder backed by the Gemini API.
type Embedder struct {
	client    *genai.Client
	model     model
	modelName string
	logger    *zap.Logger
}

// NewEmbedder dials the Gemini API. Close releases the client.
func NewEmbedder(ctx context.Context, cfg *Config) (*Embedder, error) {
	name := cfg.Model
	if name == "" {
		name = DefaultModel
	}
	opts := []option.ClientOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	em := client.EmbeddingModel(name)
	em.TaskType = genai.TaskTypeRetrievalDocument

	e := newEmbedder(em, name, cfg.Logger)
	e.client = client
	return e, nil
}

func newEmbedder(m model, name string, logger *zap.Logger) *Embedder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Embedder{model: m, modelName: name, logger: logger}
}

// Close releases the underlying client.
func (e *Embedder) Close() error {
	if e.client == nil {
		return nil
	}
	return e.client.Close()
}

// Embed implements domain.Embedder.
func (e *Embedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	start := time.Now()
	res, err := e.model.EmbedContent(ctx, genai.Text(text))
	duration := time.Since(start)

	if err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues(ProviderName, e.modelName, "error").Inc()
		metrics.EmbeddingErrorsTotal.WithLabelValues(ProviderName, e.modelName, "api_error").Inc()
		if ctx.Err() != nil {
			return domain.EmbeddingResult{}, fmt.Errorf("embed content: %w", ctx.Err())
		}
		return domain.EmbeddingResult{}, wrapAPIError(err)
	}
	if res == nil || res.Embedding == nil || len(res.Embedding.Values) == 0 {
		metrics.EmbeddingRequestsTotal.WithLabelValues(ProviderName, e.modelName, "error").Inc()
		metrics.EmbeddingErrorsTotal.WithLabelValues(ProviderName, e.modelName, "empty_response").Inc()
		return domain.EmbeddingResult{}, fmt.Errorf("empty embedding response: %w", domain.ErrEmbeddingProviderError)
	}

	metrics.EmbeddingRequestsTotal.WithLabelValues(ProviderName, e.modelName, "success").Inc()
	metrics.EmbeddingRequestDuration.WithLabelValues(ProviderName, e.modelName).Observe(duration.Seconds())

	// The embedding endpoint reports no token usage.
	return domain.EmbeddingResult{Embedding: res.Embedding.Values}, nil
}

// HealthCheck fetches the model description.
func (e *Embedder) HealthCheck(ctx context.Context) error {
	if _, err := e.model.Info(ctx); err != nil {
		return fmt.Errorf("model info: %w", err)
	}
	return nil
}

func wrapAPIError(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return fmt.Errorf("embedding API error %d: %s: %w", apiErr.Code, apiErr.Message, domain.ErrEmbeddingProviderError)
	}
	return fmt.Errorf("embedding request failed: %v: %w", err, domain.ErrEmbeddingProviderError)
}
