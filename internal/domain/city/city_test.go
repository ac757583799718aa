package city

import "testing"

func TestValidate(t *testing.T) {
	c := City{Slug: "la-vila-joiosa", URLs: map[URLCategory][]string{URLAgendaEventos: {"https://x"}}}
	if err := c.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	bad := City{Slug: "La Vila"}
	if err := bad.Validate(); err == nil {
		t.Fatal("expected error for invalid slug")
	}

	unknown := City{Slug: "valencia", URLs: map[URLCategory][]string{"blogUrls": {"https://x"}}}
	if err := unknown.Validate(); err == nil {
		t.Fatal("expected error for unknown category")
	}
}

func TestLabel(t *testing.T) {
	tests := []struct {
		c    City
		want string
	}{
		{City{Slug: "valencia", Name: "Valencia", DisplayName: "València"}, "València"},
		{City{Slug: "valencia", Name: "Valencia"}, "Valencia"},
		{City{Slug: "valencia"}, "valencia"},
	}
	for _, tc := range tests {
		if got := tc.c.Label(); got != tc.want {
			t.Errorf("Label() = %q, want %q", got, tc.want)
		}
	}
}

func TestURLCounts(t *testing.T) {
	c := City{Slug: "valencia", URLs: map[URLCategory][]string{
		URLOfficialWebsite: {"https://valencia.es"},
		URLAgendaEventos:   {"https://a", "https://b", "  "},
	}}
	counts, total := c.URLCounts()
	if total != 3 {
		t.Errorf("total: got %d, want 3", total)
	}
	if len(counts) != len(URLCategories) {
		t.Errorf("expected every category present, got %d", len(counts))
	}
	if counts[URLAgendaEventos] != 2 || counts[URLTramites] != 0 {
		t.Errorf("unexpected counts: %v", counts)
	}
}
