package document

import "slices"

// Metadata holds the optional domain fields of a document.
// Which fields are set depends on the type: events carry Date/Time/Location,
// procedures and news usually only Category/Tags/SourceURL.
type Metadata struct {
	Date       string
	Time       string
	Location   string
	Category   string
	Tags       []string
	SourceURL  string
	Confidence *float64 // in [0,1]; nil when the source gave none
	Language   string
}

// HasConfidence reports whether a usable confidence is present. Zero counts as absent.
func (m Metadata) HasConfidence() bool {
	return m.Confidence != nil && *m.Confidence > 0
}

// ConfidenceValue returns the confidence or 0.
func (m Metadata) ConfidenceValue() float64 {
	if m.Confidence == nil {
		return 0
	}
	return *m.Confidence
}

func (m Metadata) clone() Metadata {
	c := m
	c.Tags = slices.Clone(m.Tags)
	if m.Confidence != nil {
		v := *m.Confidence
		c.Confidence = &v
	}
	return c
}

// Confidence returns a pointer for Metadata.Confidence, clamped to [0,1].
func Confidence(v float64) *float64 {
	v = max(0, min(1, v))
	return &v
}
