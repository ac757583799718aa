// Package payload defines the JSON result shapes shared by the REST and MCP surfaces.
package payload

import (
	"time"

	domdoc "github.com/kailas-cloud/cityrag/internal/domain/document"
	"github.com/kailas-cloud/cityrag/internal/domain/search/result"
)

// Metadata is the response form of document metadata.
type Metadata struct {
	Date       string   `json:"date,omitempty"`
	Time       string   `json:"time,omitempty"`
	Location   string   `json:"location,omitempty"`
	Category   string   `json:"category,omitempty"`
	Tags       []string `json:"tags"`
	SourceURL  string   `json:"sourceUrl,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
	Language   string   `json:"language,omitempty"`
}

// Document is the response form of a stored document. The embedding itself is never returned.
type Document struct {
	ID                  string    `json:"id"`
	Type                string    `json:"type"`
	Title               string    `json:"title"`
	Description         string    `json:"description"`
	Content             string    `json:"content"`
	CitySlug            string    `json:"citySlug"`
	CityName            string    `json:"cityName"`
	AdminIDs            []string  `json:"adminIds"`
	Metadata            Metadata  `json:"metadata"`
	SearchKeywords      []string  `json:"searchKeywords"`
	HasEmbedding        bool      `json:"hasEmbedding"`
	EmbeddingDimensions int       `json:"embeddingDimensions"`
	IsActive            bool      `json:"isActive"`
	InsertedByAgent     string    `json:"insertedByAgent,omitempty"`
	CreatedAt           time.Time `json:"createdAt"`
	UpdatedAt           time.Time `json:"updatedAt"`
}

// Hit is a ranked document. Exactly one of the score fields is set.
type Hit struct {
	Document
	RelevanceScore  *float64 `json:"relevance_score,omitempty"`
	SimilarityScore *float64 `json:"similarity_score,omitempty"`
}

// NewDocument converts a domain document.
func NewDocument(d *domdoc.Document) Document {
	m := d.Metadata()
	return Document{
		ID:          d.ID(),
		Type:        string(d.Type()),
		Title:       d.Title(),
		Description: d.Description(),
		Content:     d.Content(),
		CitySlug:    d.CitySlug(),
		CityName:    d.CityName(),
		AdminIDs:    nonNil(d.AdminIDs()),
		Metadata: Metadata{
			Date:       m.Date,
			Time:       m.Time,
			Location:   m.Location,
			Category:   m.Category,
			Tags:       nonNil(m.Tags),
			SourceURL:  m.SourceURL,
			Confidence: m.Confidence,
			Language:   m.Language,
		},
		SearchKeywords:      nonNil(d.Keywords()),
		HasEmbedding:        d.HasEmbedding(),
		EmbeddingDimensions: d.EmbeddingDimensions(),
		IsActive:            d.IsActive(),
		InsertedByAgent:     d.InsertedBy(),
		CreatedAt:           d.CreatedAt(),
		UpdatedAt:           d.UpdatedAt(),
	}
}

// NewDocuments converts a document list.
func NewDocuments(docs []domdoc.Document) []Document {
	out := make([]Document, 0, len(docs))
	for i := range docs {
		out = append(out, NewDocument(&docs[i]))
	}
	return out
}

// KeywordHits converts keyword results, scores reported as relevance_score.
func KeywordHits(rs []result.Result) []Hit {
	out := make([]Hit, 0, len(rs))
	for i := range rs {
		d := rs[i].Document()
		score := rs[i].Score()
		out = append(out, Hit{Document: NewDocument(&d), RelevanceScore: &score})
	}
	return out
}

// VectorHits converts vector results, scores reported as similarity_score.
func VectorHits(rs []result.Result) []Hit {
	out := make([]Hit, 0, len(rs))
	for i := range rs {
		d := rs[i].Document()
		score := rs[i].Score()
		out = append(out, Hit{Document: NewDocument(&d), SimilarityScore: &score})
	}
	return out
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
