package payload

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/kailas-cloud/cityrag/internal/domain"
)

// Error codes reported in error payloads.
const (
	CodeInvalidInput     = "invalid_input"
	CodeUnauthenticated  = "unauthenticated"
	CodeForbidden        = "forbidden"
	CodeNotFound         = "not_found"
	CodeCityNotFound     = "city_not_found"
	CodeEmbeddingFailed  = "embedding_provider_error"
	CodeScrapeFailed     = "scrape_failed"
	CodeTimeout          = "timeout"
	CodeStoreUnavailable = "store_unavailable"
	CodeNotImplemented   = "not_implemented"
	CodeInternal         = "internal_error"
)

// Code maps an error to its payload code. Order matters: a scrape timeout reports timeout.
func Code(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return CodeInvalidInput
	case errors.Is(err, domain.ErrUnauthenticated):
		return CodeUnauthenticated
	case errors.Is(err, domain.ErrForbidden):
		return CodeForbidden
	case errors.Is(err, domain.ErrCityNotFound):
		return CodeCityNotFound
	case errors.Is(err, domain.ErrNotFound):
		return CodeNotFound
	case errors.Is(err, domain.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return CodeTimeout
	case errors.Is(err, domain.ErrScrapeFailed):
		return CodeScrapeFailed
	case errors.Is(err, domain.ErrEmbeddingProviderError):
		return CodeEmbeddingFailed
	case errors.Is(err, domain.ErrStoreUnavailable):
		return CodeStoreUnavailable
	case errors.Is(err, domain.ErrNotImplemented):
		return CodeNotImplemented
	default:
		return CodeInternal
	}
}

// Defaults are the zero-valued result fields an operation reports alongside an error.
type Defaults map[string]any

// Partial defaults per operation.
var (
	SearchDefaults   = Defaults{"items_found": []any{}, "total_results": 0, "search_performed": false}
	IngestDefaults   = Defaults{"items_inserted": 0, "embeddings_generated": 0, "embedding_success_rate": 0}
	StatsDefaults    = Defaults{"total_items": 0, "items_by_type": map[string]int{}, "items_by_source": map[string]int{}, "average_confidence": 0}
	CityURLDefaults  = Defaults{"urls": map[string]any{}, "city_info": map[string]any{}}
	ClearDefaults    = Defaults{"rag_items_deleted": 0}
	ScrapeDefaults   = Defaults{"events": []any{}}
	ListingDefaults  = Defaults{"items": []any{}, "total": 0}
	EmbedDefaults    = Defaults{"text_length": 0, "embedding_dimensions": 0}
	ClearAllDefaults = Defaults{"total_events_deleted": 0, "total_rag_sources_deleted": 0, "cities_affected": []any{}}
)

// Error builds {success:false, error, code, retryable} merged over the defaults.
// partial, when non-nil, is a result computed before the failure; its fields override the defaults.
func Error(err error, defaults Defaults, partial any) map[string]any {
	out := make(map[string]any, len(defaults)+4)
	for k, v := range defaults {
		out[k] = v
	}
	if partial != nil {
		if m, convErr := toMap(partial); convErr == nil {
			for k, v := range m {
				out[k] = v
			}
		}
	}
	out["success"] = false
	out["error"] = err.Error()
	out["code"] = Code(err)
	out["retryable"] = domain.IsRetryable(err)
	return out
}

func toMap(v any) (map[string]any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}
