package scrape

import "testing"

func TestNormalize(t *testing.T) {
	in := []Event{
		{Title: "  Concierto de verano ", Date: "12/07"},
		{Title: "Mercadillo"},
		{Title: "Ok"},
		{Title: "Feria", Category: "ocio", Tags: []string{"x"}, Confidence: 0.5},
	}
	out := Normalize(in)

	if len(out) != 3 {
		t.Fatalf("expected 3 events, got %d", len(out))
	}
	if out[0].Title != "Concierto de verano" || out[0].Confidence != ConfidenceDated {
		t.Errorf("unexpected first event: %+v", out[0])
	}
	if out[1].Confidence != ConfidenceUndated || out[1].Category != DefaultCategory {
		t.Errorf("unexpected second event: %+v", out[1])
	}
	if out[1].Tags == nil || len(out[1].Tags) != 0 {
		t.Errorf("expected empty tags, got %v", out[1].Tags)
	}
	if out[2].Confidence != 0.5 || out[2].Category != "ocio" {
		t.Errorf("provided fields must be kept: %+v", out[2])
	}
	for _, e := range out {
		if !e.IsActive {
			t.Errorf("expected active event: %+v", e)
		}
	}
}

func TestNormalize_Empty(t *testing.T) {
	if out := Normalize(nil); out == nil || len(out) != 0 {
		t.Errorf("expected empty non-nil slice, got %v", out)
	}
}
