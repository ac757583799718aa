package payload

import (
	"encoding/json"
	"fmt"

	"github.com/kailas-cloud/cityrag/internal/domain"
	domdoc "github.com/kailas-cloud/cityrag/internal/domain/document"
	"github.com/kailas-cloud/cityrag/internal/usecase/ingest"
)

// ItemInput is one raw item as supplied by callers. Both "source" and "sourceUrl" name the source URL.
type ItemInput struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Date        string   `json:"date"`
	Time        string   `json:"time"`
	Location    string   `json:"location"`
	Category    string   `json:"category"`
	Tags        []string `json:"tags"`
	Source      string   `json:"source"`
	SourceURL   string   `json:"sourceUrl"`
	Confidence  *float64 `json:"confidence"`
}

// IngestData is the ingestion input: events for type event, items otherwise.
type IngestData struct {
	Events []ItemInput `json:"events"`
	Items  []ItemInput `json:"items"`
}

// ParseIngestData decodes the raw data document of an ingestion call.
func ParseIngestData(raw []byte) (IngestData, error) {
	var d IngestData
	if err := json.Unmarshal(raw, &d); err != nil {
		return IngestData{}, fmt.Errorf("parse ingest data: %v: %w", err, domain.ErrInvalidInput)
	}
	return d, nil
}

// Request builds the ingestion request for a city and type.
func (d IngestData) Request(citySlug string, t domdoc.Type) ingest.Request {
	return ingest.Request{
		CitySlug: citySlug,
		Type:     t,
		Items:    ingest.SelectItems(t, toItems(d.Events), toItems(d.Items)),
	}
}

func toItems(in []ItemInput) []ingest.Item {
	out := make([]ingest.Item, 0, len(in))
	for _, i := range in {
		src := i.SourceURL
		if src == "" {
			src = i.Source
		}
		out = append(out, ingest.Item{
			Title:       i.Title,
			Description: i.Description,
			Date:        i.Date,
			Time:        i.Time,
			Location:    i.Location,
			Category:    i.Category,
			Tags:        i.Tags,
			SourceURL:   src,
			Confidence:  i.Confidence,
		})
	}
	return out
}
