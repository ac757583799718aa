package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"deadline", fmt.Errorf("embed: %w", context.DeadlineExceeded), true},
		{"timeout", fmt.Errorf("scrape: %w", ErrTimeout), true},
		{"store", fmt.Errorf("commit: %w", ErrStoreUnavailable), true},
		{"provider", fmt.Errorf("embed: %w", ErrEmbeddingProviderError), true},
		{"scrape", ErrScrapeFailed, true},
		{"forbidden", ErrForbidden, false},
		{"not found", ErrCityNotFound, false},
		{"plain", errors.New("boom"), false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsRetryable(tc.err); got != tc.want {
				t.Errorf("IsRetryable(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestEmbeddingResult_Empty(t *testing.T) {
	if !(EmbeddingResult{}).Empty() {
		t.Error("zero result should be empty")
	}
	if (EmbeddingResult{Embedding: []float32{0.1}}).Empty() {
		t.Error("non-empty vector reported as empty")
	}
}
