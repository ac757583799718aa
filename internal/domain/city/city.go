package city

import (
	"fmt"
	"regexp"
	"strings"
)

var slugRegex = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// URLCategory names a group of official URLs configured for a city.
type URLCategory string

// URL categories, in presentation order.
const (
	URLOfficialWebsite URLCategory = "officialWebsite"
	URLAgendaEventos   URLCategory = "agendaEventosUrls"
	URLTramites        URLCategory = "tramitesUrls"
	URLNoticias        URLCategory = "noticiasUrls"
	URLTurismo         URLCategory = "turismoUrls"
	URLContact         URLCategory = "contactUrls"
	URLServicios       URLCategory = "serviciosUrls"
	URLTransporte      URLCategory = "transporteUrls"
	URLCultural        URLCategory = "culturalUrls"
)

// URLCategories lists every category in presentation order.
var URLCategories = []URLCategory{
	URLOfficialWebsite, URLAgendaEventos, URLTramites, URLNoticias, URLTurismo,
	URLContact, URLServicios, URLTransporte, URLCultural,
}

// City is the configuration of one municipality.
type City struct {
	Slug            string
	Name            string
	DisplayName     string
	Province        string
	Population      int
	IsActive        bool
	ScrapingEnabled bool
	AdminIDs        []string
	URLs            map[URLCategory][]string
}

// Validate checks the slug and URL categories.
func (c *City) Validate() error {
	if !ValidSlug(c.Slug) {
		return fmt.Errorf("invalid city slug %q", c.Slug)
	}
	for cat := range c.URLs {
		if !knownCategory(cat) {
			return fmt.Errorf("unknown url category %q", cat)
		}
	}
	return nil
}

// ValidSlug reports whether s is a lowercase hyphenated slug.
func ValidSlug(s string) bool { return slugRegex.MatchString(s) }

// Label returns the best human-readable name: display name, name, then slug.
func (c *City) Label() string {
	switch {
	case strings.TrimSpace(c.DisplayName) != "":
		return c.DisplayName
	case strings.TrimSpace(c.Name) != "":
		return c.Name
	default:
		return c.Slug
	}
}

// URLCounts returns the number of non-blank URLs per category (every category present) and the total.
func (c *City) URLCounts() (map[URLCategory]int, int) {
	counts := make(map[URLCategory]int, len(URLCategories))
	total := 0
	for _, cat := range URLCategories {
		n := 0
		for _, u := range c.URLs[cat] {
			if strings.TrimSpace(u) != "" {
				n++
			}
		}
		counts[cat] = n
		total += n
	}
	return counts, total
}

func knownCategory(cat URLCategory) bool {
	for _, c := range URLCategories {
		if c == cat {
			return true
		}
	}
	return false
}
