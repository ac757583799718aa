package document

import (
	"slices"
	"strings"
)

// ContentBlock renders the structured fields into the text stored as content and sent to the embedder.
// Search-time and store-time representations must come from this one function.
func ContentBlock(title, description, location, category string, tags []string, cityName string) string {
	var b strings.Builder
	b.WriteString("Título: " + title + "\n")
	b.WriteString("Descripción: " + description + "\n")
	b.WriteString("Ubicación: " + location + "\n")
	b.WriteString("Categoría: " + category + "\n")
	b.WriteString("Etiquetas: " + strings.Join(tags, ", ") + "\n")
	b.WriteString("Ciudad: " + cityName)
	return strings.TrimSpace(b.String())
}

// Keywords returns the lowercase whitespace tokens of title and description plus
// each lowercased tag as a whole, deduplicated and sorted.
func Keywords(title, description string, tags []string) []string {
	seen := make(map[string]struct{})
	add := func(w string) {
		if w != "" {
			seen[w] = struct{}{}
		}
	}
	for _, w := range strings.Fields(strings.ToLower(title)) {
		add(w)
	}
	for _, w := range strings.Fields(strings.ToLower(description)) {
		add(w)
	}
	for _, tag := range tags {
		add(strings.ToLower(strings.TrimSpace(tag)))
	}

	out := make([]string, 0, len(seen))
	for w := range seen {
		out = append(out, w)
	}
	slices.Sort(out)
	return out
}

// MetadataText returns the lowercase category, location and tags joined by spaces,
// the metadata surface matched by keyword search.
func (m Metadata) MetadataText() string {
	return strings.ToLower(m.Category + " " + m.Location + " " + strings.Join(m.Tags, " "))
}
