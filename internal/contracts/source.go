package contracts

import "time"

// SourceName identifies one upstream dataset
type SourceName string

const (
	SourceUKCases            SourceName = "uk_cases"
	SourceLTLACases          SourceName = "ltla_cases"
	SourcePublishedCases     SourceName = "published_cases"
	SourceTesting            SourceName = "testing"
	SourceAgeRates           SourceName = "age_rates"
	SourceNHSDeaths          SourceName = "nhs_deaths"
	SourceHospitalAdmissions SourceName = "hospital_admissions"
	SourceTriageOnline       SourceName = "triage_online"
	SourceTriagePathways     SourceName = "triage_pathways"
	SourceScotlandCases      SourceName = "scotland_cases"
	SourceAppExposures       SourceName = "app_exposures"
	SourceRiskyVenues        SourceName = "risky_venues"
)

// Provenance is the metadata a source attaches to its table.
// Every transform copies it through unchanged.
type Provenance struct {
	Source    SourceName `json:"source"`
	Publisher string     `json:"publisher"`
	Title     string     `json:"title"`
	URL       string     `json:"url"`
	AsOf      time.Time  `json:"as_of"`
}

// IsZero reports whether no provenance has been attached
func (p Provenance) IsZero() bool {
	return p.Source == "" && p.URL == ""
}

// Citation returns the presentation form of the provenance
func (p Provenance) Citation() Citation {
	asOf := ""
	if !p.AsOf.IsZero() {
		asOf = p.AsOf.Format("2006-01-02")
	}
	return Citation{
		Publisher: p.Publisher,
		Title:     p.Title,
		URL:       p.URL,
		AsOf:      asOf,
	}
}

// Citation is a (publisher, title, url, as-of) tuple shown under each page
type Citation struct {
	Publisher string `json:"publisher"`
	Title     string `json:"title"`
	URL       string `json:"url"`
	AsOf      string `json:"as_of"`
}

// DedupeCitations keeps the first citation for each (publisher, title, url)
func DedupeCitations(in []Citation) []Citation {
	seen := make(map[string]bool, len(in))
	out := make([]Citation, 0, len(in))
	for _, c := range in {
		key := c.Publisher + "\x00" + c.Title + "\x00" + c.URL
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, c)
	}
	return out
}
