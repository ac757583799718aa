package ingest

import (
	"fmt"

	domdoc "github.com/kailas-cloud/cityrag/internal/domain/document"
)

// Item is one raw scraped or manually supplied record.
type Item struct {
	Title       string
	Description string
	Date        string
	Time        string
	Location    string
	Category    string
	Tags        []string
	SourceURL   string
	Confidence  *float64
}

// Request asks for items to be stored as documents of one city and type.
type Request struct {
	CitySlug string
	Type     domdoc.Type
	Items    []Item
}

// SelectItems picks the input list for a document type: events for TypeEvent,
// items otherwise, falling back to the other list when the preferred one is empty.
func SelectItems(t domdoc.Type, events, items []Item) []Item {
	preferred, other := items, events
	if t == domdoc.TypeEvent {
		preferred, other = events, items
	}
	if len(preferred) > 0 {
		return preferred
	}
	return other
}

// Report is the outcome of one ingestion call.
type Report struct {
	CitySlug string
	CityName string
	Type     domdoc.Type
	// Inserted counts documents in committed chunks.
	Inserted int
	// Embedded counts committed documents that carry an embedding.
	Embedded int
	// Chunks is the number of committed store chunks.
	Chunks int
}

// SuccessRate returns Embedded as a percentage of Inserted, 0 when nothing was inserted.
func (r Report) SuccessRate() float64 {
	if r.Inserted == 0 {
		return 0
	}
	return float64(r.Embedded) / float64(r.Inserted) * 100
}

// VectorSearchEnabled reports whether at least one stored document can be found by vector search.
func (r Report) VectorSearchEnabled() bool { return r.Embedded > 0 }

// Message renders the summary line returned to callers.
func (r Report) Message() string {
	return fmt.Sprintf("inserted %d %s documents with %d embeddings for %s", r.Inserted, r.Type, r.Embedded, r.CityName)
}
