package embedding

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/kailas-cloud/cityrag/internal/domain"
)

// ProbeResult describes one embedding generated on demand.
type ProbeResult struct {
	TextLength int
	Dimensions int
}

// Probe embeds text and reports its rune length and the vector dimensions.
// A missing provider or an empty vector is reported as domain.ErrEmbeddingProviderError.
func Probe(ctx context.Context, e domain.Embedder, text string) (ProbeResult, error) {
	if strings.TrimSpace(text) == "" {
		return ProbeResult{}, fmt.Errorf("%w: text is required", domain.ErrInvalidInput)
	}
	if e == nil {
		return ProbeResult{}, fmt.Errorf("no embedding provider configured: %w", domain.ErrEmbeddingProviderError)
	}
	res, err := e.Embed(ctx, text)
	if err != nil {
		return ProbeResult{}, fmt.Errorf("generate embedding: %w", err)
	}
	if res.Empty() {
		return ProbeResult{}, fmt.Errorf("empty embedding: %w", domain.ErrEmbeddingProviderError)
	}
	return ProbeResult{TextLength: utf8.RuneCountInString(text), Dimensions: len(res.Embedding)}, nil
}
