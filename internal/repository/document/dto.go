package document

import (
	"time"

	domdoc "github.com/kailas-cloud/cityrag/internal/domain/document"
)

// docJSON is the stored JSON shape of a document. Field names are the
// camelCase names other tooling reads from the collection.
type docJSON struct {
	ID                  string       `json:"id"`
	Type                string       `json:"type"`
	Title               string       `json:"title"`
	Description         string       `json:"description"`
	Content             string       `json:"content"`
	CitySlug            string       `json:"citySlug"`
	CityName            string       `json:"cityName"`
	AdminIDs            []string     `json:"adminIds"`
	Metadata            metadataJSON `json:"metadata"`
	SearchKeywords      []string     `json:"searchKeywords"`
	Embedding           []float32    `json:"embedding"`
	EmbeddingDimensions int          `json:"embeddingDimensions"`
	HasEmbedding        bool         `json:"hasEmbedding"`
	IsActive            bool         `json:"isActive"`
	InsertedByAgent     string       `json:"insertedByAgent,omitempty"`
	CreatedAt           int64        `json:"createdAt"` // unix ms
	UpdatedAt           int64        `json:"updatedAt"` // unix ms
	Seq                 int64        `json:"seq"`
}

type metadataJSON struct {
	Date       string   `json:"date,omitempty"`
	Time       string   `json:"time,omitempty"`
	Location   string   `json:"location,omitempty"`
	Category   string   `json:"category,omitempty"`
	Tags       []string `json:"tags"`
	SourceURL  string   `json:"sourceUrl,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
	Language   string   `json:"language,omitempty"`
}

func toJSON(d *domdoc.Document) docJSON {
	s := d.State()
	tags := s.Metadata.Tags
	if tags == nil {
		tags = []string{}
	}
	emb := s.Embedding
	if emb == nil {
		emb = []float32{}
	}
	return docJSON{
		ID:          s.ID,
		Type:        string(s.Type),
		Title:       s.Title,
		Description: s.Description,
		Content:     s.Content,
		CitySlug:    s.CitySlug,
		CityName:    s.CityName,
		AdminIDs:    s.AdminIDs,
		Metadata: metadataJSON{
			Date:       s.Metadata.Date,
			Time:       s.Metadata.Time,
			Location:   s.Metadata.Location,
			Category:   s.Metadata.Category,
			Tags:       tags,
			SourceURL:  s.Metadata.SourceURL,
			Confidence: s.Metadata.Confidence,
			Language:   s.Metadata.Language,
		},
		SearchKeywords:      s.Keywords,
		Embedding:           emb,
		EmbeddingDimensions: len(s.Embedding),
		HasEmbedding:        len(s.Embedding) > 0,
		IsActive:            s.IsActive,
		InsertedByAgent:     s.InsertedBy,
		CreatedAt:           s.CreatedAt.UnixMilli(),
		UpdatedAt:           s.UpdatedAt.UnixMilli(),
	}
}

func fromJSON(id string, j *docJSON) domdoc.Document {
	if j.ID != "" {
		id = j.ID
	}
	return domdoc.Reconstruct(domdoc.State{
		ID:          id,
		Type:        domdoc.Type(j.Type),
		Title:       j.Title,
		Description: j.Description,
		Content:     j.Content,
		CitySlug:    j.CitySlug,
		CityName:    j.CityName,
		AdminIDs:    j.AdminIDs,
		Metadata: domdoc.Metadata{
			Date:       j.Metadata.Date,
			Time:       j.Metadata.Time,
			Location:   j.Metadata.Location,
			Category:   j.Metadata.Category,
			Tags:       j.Metadata.Tags,
			SourceURL:  j.Metadata.SourceURL,
			Confidence: j.Metadata.Confidence,
			Language:   j.Metadata.Language,
		},
		Keywords:   j.SearchKeywords,
		Embedding:  j.Embedding,
		IsActive:   j.IsActive,
		InsertedBy: j.InsertedByAgent,
		CreatedAt:  fromMillis(j.CreatedAt),
		UpdatedAt:  fromMillis(j.UpdatedAt),
	})
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
