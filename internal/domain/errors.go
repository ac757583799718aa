package domain

import (
	"context"
	"errors"
)

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrCityNotFound signals a city without stored configuration.
	ErrCityNotFound = errors.New("city not found")
	// ErrInvalidInput signals a malformed request or ingestion payload.
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnauthenticated signals a missing or invalid credential.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden signals a principal lacking the capability for a mutating call.
	ErrForbidden = errors.New("forbidden")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrScrapeFailed signals a scrape service failure.
	ErrScrapeFailed = errors.New("scrape failed")
	// ErrTimeout signals an external call that exceeded its deadline.
	ErrTimeout = errors.New("timeout")
	// ErrStoreUnavailable signals a document store failure.
	ErrStoreUnavailable = errors.New("document store unavailable")
	// ErrNotImplemented signals an unimplemented feature.
	ErrNotImplemented = errors.New("not implemented")
)

// IsRetryable reports whether err belongs to the transient class: the caller may retry the same call.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrStoreUnavailable) ||
		errors.Is(err, ErrEmbeddingProviderError) ||
		errors.Is(err, ErrScrapeFailed)
}
