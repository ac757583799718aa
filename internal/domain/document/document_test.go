package document

import (
	"slices"
	"strings"
	"testing"
	"time"
)

func validDraft() Draft {
	return Draft{
		Type:        TypeEvent,
		Title:       "Festival de Música",
		Description: "concierto gratuito",
		CitySlug:    "valencia",
		CityName:    "Valencia",
		AdminIDs:    []string{"superadmin", "superadmin", ""},
		Metadata: Metadata{
			Location:   "Plaza del Ayuntamiento",
			Category:   "cultura",
			Tags:       []string{"Música", "Gratis"},
			Confidence: Confidence(0.9),
		},
		InsertedBy: "agent",
	}
}

func TestNew_Valid(t *testing.T) {
	doc, err := New(validDraft())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !doc.IsActive() {
		t.Error("new documents must be active")
	}
	if doc.HasEmbedding() || doc.EmbeddingDimensions() != 0 {
		t.Error("new documents carry no embedding")
	}
	if !slices.Equal(doc.AdminIDs(), []string{"superadmin"}) {
		t.Errorf("admin ids not deduplicated: %v", doc.AdminIDs())
	}
	if doc.ID() != "" {
		t.Errorf("id must be store-assigned, got %q", doc.ID())
	}
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Draft)
	}{
		{"missing city", func(d *Draft) { d.CitySlug = "" }},
		{"missing type", func(d *Draft) { d.Type = "" }},
		{"uppercase slug", func(d *Draft) { d.CitySlug = "Valencia" }},
		{"slug with spaces", func(d *Draft) { d.CitySlug = "la vila" }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d := validDraft()
			tc.mutate(&d)
			if _, err := New(d); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestNew_LargeContent(t *testing.T) {
	d := validDraft()
	d.Description = strings.Repeat("programa completo ", 12000)

	doc, err := New(d)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(doc.Content()) < 200_000 {
		t.Errorf("expected full content, got %d bytes", len(doc.Content()))
	}
}

func TestNew_CityNameFallsBackToSlug(t *testing.T) {
	d := validDraft()
	d.CityName = ""
	doc, err := New(d)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.CityName() != "valencia" {
		t.Errorf("city name: got %q, want slug", doc.CityName())
	}
}

func TestNew_CopiesMetadata(t *testing.T) {
	d := validDraft()
	doc, err := New(d)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	d.Metadata.Tags[0] = "changed"
	*d.Metadata.Confidence = 0.1

	if doc.Metadata().Tags[0] != "Música" {
		t.Error("tags aliased with draft")
	}
	if doc.Metadata().ConfidenceValue() != 0.9 {
		t.Error("confidence aliased with draft")
	}
}

func TestEmbeddingInvariant(t *testing.T) {
	doc, _ := New(validDraft())

	with := doc.WithEmbedding([]float32{1, 0, 0})
	if !with.HasEmbedding() || with.EmbeddingDimensions() != 3 {
		t.Errorf("hasEmbedding=%v dims=%d", with.HasEmbedding(), with.EmbeddingDimensions())
	}

	empty := doc.WithEmbedding([]float32{})
	if empty.HasEmbedding() || empty.EmbeddingDimensions() != 0 {
		t.Error("empty vector must not count as embedding")
	}
	if doc.HasEmbedding() {
		t.Error("WithEmbedding mutated the original")
	}
}

func TestWithIdentity(t *testing.T) {
	doc, _ := New(validDraft())
	at := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	stored := doc.WithIdentity("abc", at)
	if stored.ID() != "abc" || !stored.CreatedAt().Equal(at) || !stored.UpdatedAt().Equal(at) {
		t.Errorf("identity not applied: %q %v %v", stored.ID(), stored.CreatedAt(), stored.UpdatedAt())
	}
}

func TestStateRoundTrip(t *testing.T) {
	doc, _ := New(validDraft())
	doc = doc.WithEmbedding([]float32{0.5, 0.5})
	doc = doc.WithIdentity("id-1", time.Unix(100, 0))

	back := Reconstruct(doc.State())
	if back.ID() != "id-1" || back.Content() != doc.Content() || back.EmbeddingDimensions() != 2 {
		t.Errorf("round trip mismatch: %+v", back.State())
	}
	if !back.HasAdmin("superadmin") || back.HasAdmin("other") {
		t.Error("HasAdmin mismatch")
	}
}

func TestContentBlock(t *testing.T) {
	got := ContentBlock("Festival", "Concierto", "Plaza", "cultura", []string{"música", "gratis"}, "Valencia")
	want := "Título: Festival\nDescripción: Concierto\nUbicación: Plaza\nCategoría: cultura\nEtiquetas: música, gratis\nCiudad: Valencia"
	if got != want {
		t.Errorf("ContentBlock:\ngot:  %q\nwant: %q", got, want)
	}
}

func TestKeywords(t *testing.T) {
	got := Keywords("Festival de Música", "Concierto  de música gratuito", []string{"Aire Libre", "música"})
	want := []string{"aire libre", "concierto", "de", "festival", "gratuito", "música"}
	if !slices.Equal(got, want) {
		t.Errorf("Keywords:\ngot:  %v\nwant: %v", got, want)
	}
}

func TestConfidence_Clamped(t *testing.T) {
	if *Confidence(1.7) != 1 || *Confidence(-0.2) != 0 {
		t.Error("confidence not clamped to [0,1]")
	}
	m := Metadata{Confidence: Confidence(0)}
	if m.HasConfidence() {
		t.Error("zero confidence must count as absent")
	}
}
