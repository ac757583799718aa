package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/cityrag/internal/domain"
)

// InstrumentedEmbedder wraps Embedder with a per-call timeout, logging and usage accounting.
// Transport metrics (requests, duration, tokens) are recorded by the provider transports.
type InstrumentedEmbedder struct {
	inner    domain.Embedder
	provider string
	model    string
	timeout  time.Duration
	logger   *zap.Logger
}

// NewInstrumentedEmbedder wraps an embedder. timeout <= 0 disables the per-call deadline.
func NewInstrumentedEmbedder(
	inner domain.Embedder, provider, model string,
	timeout time.Duration, logger *zap.Logger,
) *InstrumentedEmbedder {
	return &InstrumentedEmbedder{
		inner:    inner,
		provider: provider,
		model:    model,
		timeout:  timeout,
		logger:   logger,
	}
}

// Embed delegates to the inner embedder under the configured deadline.
// A deadline hit is reported as domain.ErrTimeout. Usage is recorded on the
// request's domain.EmbeddingUsage when one is attached to ctx.
func (p *InstrumentedEmbedder) Embed(
	ctx context.Context, text string,
) (domain.EmbeddingResult, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	start := time.Now()

	result, err := p.inner.Embed(ctx, text)

	duration := time.Since(start)
	usage := domain.UsageFromContext(ctx)

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("%w after %s: %w", domain.ErrTimeout, p.timeout, err)
		}
		p.logger.Error("Embedding request failed",
			zap.String("provider", p.provider),
			zap.String("model", p.model),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		usage.Record(0, true)
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}

	usage.Record(result.TotalTokens, result.Empty())

	p.logger.Debug("Embedding request completed",
		zap.String("provider", p.provider),
		zap.String("model", p.model),
		zap.Duration("duration", duration),
		zap.Int("dimensions", len(result.Embedding)),
		zap.Int("prompt_tokens", result.PromptTokens),
		zap.Int("total_tokens", result.TotalTokens),
	)

	return result, nil
}
