package metrics

import "github.com/prometheus/client_golang/prometheus"

// Retrieval and ingestion Prometheus metrics.
var (
	SearchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cityrag",
			Name:      "search_requests_total",
			Help:      "Search requests by mode (keyword, vector, vector_fallback) and outcome",
		},
		[]string{"mode", "outcome"},
	)

	SearchResultsReturned = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "cityrag",
			Name:      "search_results_returned",
			Help:      "Number of documents returned per search",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50, 100},
		},
		[]string{"mode"},
	)

	IngestItemsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cityrag",
			Name:      "ingest_items_total",
			Help:      "Ingested items by document type and embedding result (embedded, unembedded)",
		},
		[]string{"type", "embedding"},
	)

	StoreChunksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cityrag",
			Name:      "store_chunks_total",
			Help:      "Chunked store commits by operation (create, delete) and status",
		},
		[]string{"operation", "status"},
	)

	ScrapeRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cityrag",
			Name:      "scrape_requests_total",
			Help:      "Scrape service calls by status",
		},
		[]string{"status"},
	)
)

var ragMetricsRegistered bool

// RegisterRAGMetrics registers retrieval and ingestion metrics. Must be called once from main.
func RegisterRAGMetrics() {
	if ragMetricsRegistered {
		return
	}
	prometheus.MustRegister(SearchRequestsTotal)
	prometheus.MustRegister(SearchResultsReturned)
	prometheus.MustRegister(IngestItemsTotal)
	prometheus.MustRegister(StoreChunksTotal)
	prometheus.MustRegister(ScrapeRequestsTotal)
	ragMetricsRegistered = true
}
