package domain

// Logical collections shared by every store backend.
const (
	// CollectionDocuments holds retrievable documents (RAG records).
	CollectionDocuments = "rag_sources"
	// CollectionCities holds per-city configuration keyed by slug.
	CollectionCities = "cities"
)

// KeyPrefix is the default namespace for keys owned by cityrag in shared key-value stores.
const KeyPrefix = "cityrag:"
