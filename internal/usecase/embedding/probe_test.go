package embedding

import (
	"context"
	"errors"
	"testing"

	"github.com/kailas-cloud/cityrag/internal/domain"
)

func TestProbe(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: make([]float32, 768)}}

	res, err := Probe(context.Background(), inner, "Trámite de empadronamiento")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.TextLength != 26 || res.Dimensions != 768 {
		t.Errorf("unexpected probe result: %+v", res)
	}
}

func TestProbe_Errors(t *testing.T) {
	tests := []struct {
		name  string
		embed domain.Embedder
		text  string
		want  error
	}{
		{"blank text", &mockEmbedder{}, "  ", domain.ErrInvalidInput},
		{"no provider", nil, "hola", domain.ErrEmbeddingProviderError},
		{"empty vector", &mockEmbedder{}, "hola", domain.ErrEmbeddingProviderError},
		{"provider error", &mockEmbedder{err: domain.ErrTimeout}, "hola", domain.ErrTimeout},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Probe(context.Background(), tc.embed, tc.text)
			if !errors.Is(err, tc.want) {
				t.Errorf("expected %v, got %v", tc.want, err)
			}
		})
	}
}
