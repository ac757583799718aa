package document

import (
	"fmt"
	"slices"
	"time"

	domcity "github.com/kailas-cloud/cityrag/internal/domain/city"
)

// Type is the document category. Stored as free text; the constants cover the
// categories the agent tools produce.
type Type string

// Known document types.
const (
	TypeEvent     Type = "event"
	TypeProcedure Type = "procedure"
	TypeNews      Type = "news"
	TypeTourism   Type = "tourism"
)

// Document is the RAG record aggregate (immutable value object).
type Document struct {
	id          string
	docType     Type
	title       string
	description string
	content     string
	citySlug    string
	cityName    string
	adminIDs    []string
	metadata    Metadata
	keywords    []string
	embedding   []float32
	isActive    bool
	insertedBy  string
	createdAt   time.Time
	updatedAt   time.Time
}

// Draft carries the caller-supplied fields of a new document.
type Draft struct {
	Type        Type
	Title       string
	Description string
	CitySlug    string
	CityName    string
	AdminIDs    []string
	Metadata    Metadata
	InsertedBy  string
}

// New validates a draft and derives content and keywords from it.
// The document starts active, without id, timestamps or embedding; the store assigns the former.
func New(d Draft) (Document, error) {
	if d.CitySlug == "" {
		return Document{}, fmt.Errorf("city slug is required")
	}
	if !domcity.ValidSlug(d.CitySlug) {
		return Document{}, fmt.Errorf("invalid city slug %q", d.CitySlug)
	}
	if d.Type == "" {
		return Document{}, fmt.Errorf("document type is required")
	}
	cityName := d.CityName
	if cityName == "" {
		cityName = d.CitySlug
	}

	content := ContentBlock(d.Title, d.Description, d.Metadata.Location, d.Metadata.Category, d.Metadata.Tags, cityName)

	return Document{
		docType:     d.Type,
		title:       d.Title,
		description: d.Description,
		content:     content,
		citySlug:    d.CitySlug,
		cityName:    cityName,
		adminIDs:    dedupe(d.AdminIDs),
		metadata:    d.Metadata.clone(),
		keywords:    Keywords(d.Title, d.Description, d.Metadata.Tags),
		isActive:    true,
		insertedBy:  d.InsertedBy,
	}, nil
}

// State is the full persisted shape of a document, used for storage hydration.
type State struct {
	ID          string
	Type        Type
	Title       string
	Description string
	Content     string
	CitySlug    string
	CityName    string
	AdminIDs    []string
	Metadata    Metadata
	Keywords    []string
	Embedding   []float32
	IsActive    bool
	InsertedBy  string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Reconstruct creates a Document without validation (storage hydration).
func Reconstruct(s State) Document {
	return Document{
		id: s.ID, docType: s.Type, title: s.Title, description: s.Description,
		content: s.Content, citySlug: s.CitySlug, cityName: s.CityName,
		adminIDs: s.AdminIDs, metadata: s.Metadata, keywords: s.Keywords,
		embedding: s.Embedding, isActive: s.IsActive, insertedBy: s.InsertedBy,
		createdAt: s.CreatedAt, updatedAt: s.UpdatedAt,
	}
}

// State returns the persisted shape of the document.
func (d *Document) State() State {
	return State{
		ID: d.id, Type: d.docType, Title: d.title, Description: d.description,
		Content: d.content, CitySlug: d.citySlug, CityName: d.cityName,
		AdminIDs: d.adminIDs, Metadata: d.metadata, Keywords: d.keywords,
		Embedding: d.embedding, IsActive: d.isActive, InsertedBy: d.insertedBy,
		CreatedAt: d.createdAt, UpdatedAt: d.updatedAt,
	}
}

// ID returns the store-assigned identifier.
func (d *Document) ID() string { return d.id }

// Type returns the document category.
func (d *Document) Type() Type { return d.docType }

// Title returns the title.
func (d *Document) Title() string { return d.title }

// Description returns the description.
func (d *Document) Description() string { return d.description }

// Content returns the synthesized text block used as embedding input.
func (d *Document) Content() string { return d.content }

// CitySlug returns the partition key.
func (d *Document) CitySlug() string { return d.citySlug }

// CityName returns the display name of the owning city.
func (d *Document) CityName() string { return d.cityName }

// AdminIDs returns the administrators with write authority over the record.
func (d *Document) AdminIDs() []string { return d.adminIDs }

// Metadata returns the typed metadata.
func (d *Document) Metadata() Metadata { return d.metadata }

// Keywords returns the deduplicated lowercase search keywords.
func (d *Document) Keywords() []string { return d.keywords }

// Embedding returns the embedding vector, empty if generation failed.
func (d *Document) Embedding() []float32 { return d.embedding }

// HasEmbedding reports whether the embedding is non-empty.
func (d *Document) HasEmbedding() bool { return len(d.embedding) > 0 }

// EmbeddingDimensions returns the embedding length.
func (d *Document) EmbeddingDimensions() int { return len(d.embedding) }

// IsActive reports visibility; inactive documents never appear in search results.
func (d *Document) IsActive() bool { return d.isActive }

// InsertedBy returns the subject of the principal that ingested the document.
func (d *Document) InsertedBy() string { return d.insertedBy }

// CreatedAt returns the store-assigned creation time.
func (d *Document) CreatedAt() time.Time { return d.createdAt }

// UpdatedAt returns the store-assigned last update time.
func (d *Document) UpdatedAt() time.Time { return d.updatedAt }

// HasAdmin reports whether id is one of the document administrators.
func (d *Document) HasAdmin(id string) bool { return slices.Contains(d.adminIDs, id) }

// WithEmbedding returns a copy with the given vector set.
func (d *Document) WithEmbedding(v []float32) Document {
	c := *d
	c.embedding = v
	return c
}

// WithIdentity returns a copy carrying store-assigned id and timestamps.
func (d *Document) WithIdentity(id string, at time.Time) Document {
	c := *d
	c.id = id
	c.createdAt = at
	c.updatedAt = at
	return c
}

func dedupe(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != "" && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}
