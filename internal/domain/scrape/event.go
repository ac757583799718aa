// Package scrape models events extracted by the headless-browser scrape service.
package scrape

import (
	"strings"
	"time"
)

// Confidence levels assigned by normalization.
const (
	ConfidenceDated   = 0.9
	ConfidenceUndated = 0.6
	DefaultCategory   = "general"
	// MinTitleLength is the shortest title kept; shorter ones are page noise.
	MinTitleLength = 4
)

// Event is one extracted agenda entry.
type Event struct {
	Title       string
	Description string
	Date        string
	Time        string
	Location    string
	Link        string
	Image       string
	SourceURL   string
	Category    string
	Tags        []string
	Confidence  float64
	IsActive    bool
	ExtractedAt time.Time
}

// Result is the outcome of scraping one page.
type Result struct {
	CitySlug  string
	URL       string
	Events    []Event
	Timestamp time.Time
}

// Normalize drops untitled noise and fills the fields the service may leave empty:
// confidence 0.9 with title and date else 0.6, category "general", empty tags, active.
func Normalize(events []Event) []Event {
	out := make([]Event, 0, len(events))
	for _, e := range events {
		e.Title = strings.TrimSpace(e.Title)
		if len([]rune(e.Title)) < MinTitleLength {
			continue
		}
		if e.Confidence <= 0 {
			e.Confidence = ConfidenceUndated
			if strings.TrimSpace(e.Date) != "" {
				e.Confidence = ConfidenceDated
			}
		}
		if e.Category == "" {
			e.Category = DefaultCategory
		}
		if e.Tags == nil {
			e.Tags = []string{}
		}
		e.IsActive = true
		out = append(out, e)
	}
	return out
}
