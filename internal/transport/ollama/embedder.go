// Package ollama embeds text with a local Ollama server.
package ollama

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	ollama "github.com/ollama/ollama/api"
	"go.uber.org/zap"

	"github.com/kailas-cloud/cityrag/internal/domain"
	"github.com/kailas-cloud/cityrag/internal/metrics"
)

// ProviderName labels metrics recorded by this embedder.
const ProviderName = "ollama"

// DefaultBaseURL is the address of a local Ollama server.
const DefaultBaseURL = "http://localhost:11434"

// Config holds the provider settings.
type Config struct {
	BaseURL string
	Model   string
	Timeout time.Duration
	Logger  *zap.Logger
}

// Embedder is a domain.Embedder backed by Ollama's /api/embed.
type Embedder struct {
	client *ollama.Client
	model  string
	logger *zap.Logger
}

// NewEmbedder creates an Ollama embedder.
func NewEmbedder(cfg *Config) (*Embedder, error) {
	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama base url: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Embedder{
		client: ollama.NewClient(u, &http.Client{Timeout: timeout}),
		model:  cfg.Model,
		logger: logger,
	}, nil
}

// Embed implements domain.Embedder.
func (e *Embedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	start := time.Now()
	resp, err := e.client.Embed(ctx, &ollama.EmbedRequest{Model: e.model, Input: text})
	duration := time.Since(start)

	if err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues(ProviderName, e.model, "error").Inc()
		metrics.EmbeddingErrorsTotal.WithLabelValues(ProviderName, e.model, "api_error").Inc()
		if ctx.Err() != nil {
			return domain.EmbeddingResult{}, fmt.Errorf("ollama embed: %w", ctx.Err())
		}
		var se ollama.StatusError
		if errors.As(err, &se) {
			return domain.EmbeddingResult{}, fmt.Errorf("ollama error %d: %s: %w", se.StatusCode, se.ErrorMessage, domain.ErrEmbeddingProviderError)
		}
		return domain.EmbeddingResult{}, fmt.Errorf("ollama embed: %v: %w", err, domain.ErrEmbeddingProviderError)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0]) == 0 {
		metrics.EmbeddingRequestsTotal.WithLabelValues(ProviderName, e.model, "error").Inc()
		metrics.EmbeddingErrorsTotal.WithLabelValues(ProviderName, e.model, "empty_response").Inc()
		return domain.EmbeddingResult{}, fmt.Errorf("empty embedding response: %w", domain.ErrEmbeddingProviderError)
	}

	metrics.EmbeddingRequestsTotal.WithLabelValues(ProviderName, e.model, "success").Inc()
	metrics.EmbeddingRequestDuration.WithLabelValues(ProviderName, e.model).Observe(duration.Seconds())
	if resp.PromptEvalCount > 0 {
		metrics.EmbeddingTokensTotal.WithLabelValues(ProviderName, e.model, "prompt").Add(float64(resp.PromptEvalCount))
	}

	return domain.EmbeddingResult{
		Embedding:    resp.Embeddings[0],
		PromptTokens: resp.PromptEvalCount,
		TotalTokens:  resp.PromptEvalCount,
	}, nil
}

// HealthCheck pings the server.
func (e *Embedder) HealthCheck(ctx context.Context) error {
	if err := e.client.Heartbeat(ctx); err != nil {
		return fmt.Errorf("ollama heartbeat: %w", err)
	}
	return nil
}
