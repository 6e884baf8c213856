// Package tender holds the record shapes that flow through ingestion:
// raw table rows, normalized records, classifier output and indexed documents.
package tender

import (
	"strings"
)

// Taxonomy fallbacks used when classification is skipped or fails.
const (
	DomainUnclassified = "Unclassified"
	TypeUnknown        = "Unknown"
	EntityUnknown      = "Unknown"

	// NoDescription replaces an empty description before classification.
	NoDescription = "No description provided."
)

// RawRecord is one row of the input table keyed by header name. Missing columns are simply absent.
type RawRecord map[string]string

// First returns the first non-empty value among the given column aliases.
func (r RawRecord) First(aliases []string) string {
	for _, a := range aliases {
		if v := strings.TrimSpace(r[a]); v != "" {
			return v
		}
	}
	return ""
}

// Columns maps logical fields to input header aliases, tried in order.
type Columns struct {
	Title       []string `yaml:"title"`
	Description []string `yaml:"description"`
	Location    []string `yaml:"location"`
	Amount      []string `yaml:"amount"`
	Date        []string `yaml:"date"`
	ReferenceID []string `yaml:"reference_id"`
	ClosingDate []string `yaml:"closing_date"`
	URL         []string `yaml:"url"`
	Authority   []string `yaml:"authority"`
	Country     []string `yaml:"country"`
	SourceID    []string `yaml:"source_id"`
}

// DefaultColumns matches the tender export layout.
func DefaultColumns() Columns {
	return Columns{
		Title:       []string{"Summary", "Title"},
		Description: []string{"Description"},
		Location:    []string{"Country", "Location"},
		Amount:      []string{"Amount", "Tender_Value"},
		Date:        []string{"Date", "Published_Date"},
		ReferenceID: []string{"RefNo", "Reference_No"},
		ClosingDate: []string{"Closing_Date"},
		URL:         []string{"Tender_Notice_Document", "URL"},
		Authority:   []string{"Purchaser_Name"},
		Country:     []string{"Country"},
		SourceID:    []string{"TOT_ID"},
	}
}

// WithDefaults fills empty alias lists from DefaultColumns.
func (c Columns) WithDefaults() Columns {
	d := DefaultColumns()
	fill := func(dst *[]string, def []string) {
		if len(*dst) == 0 {
			*dst = def
		}
	}
	fill(&c.Title, d.Title)
	fill(&c.Description, d.Description)
	fill(&c.Location, d.Location)
	fill(&c.Amount, d.Amount)
	fill(&c.Date, d.Date)
	fill(&c.ReferenceID, d.ReferenceID)
	fill(&c.ClosingDate, d.ClosingDate)
	fill(&c.URL, d.URL)
	fill(&c.Authority, d.Authority)
	fill(&c.Country, d.Country)
	fill(&c.SourceID, d.SourceID)
	return c
}

// NormalizedRecord is a raw row plus derived fields. Title, Description and Location are
// resolved through Columns; AmountNumeric is nil and DateISO empty when unparseable.
type NormalizedRecord struct {
	Raw           RawRecord
	Title         string
	Description   string
	Location      string
	AmountNumeric *int64
	DateISO       string
	Fingerprint   string
	ReferenceID   string
}

// Entities are the named entities the classifier resolves. Unresolved values are "Unknown".
type Entities struct {
	AuthorityName string `json:"authority_name"`
	LocationCity  string `json:"location_city"`
	LocationState string `json:"location_state"`
}

// Enrichment is the classifier output for one record.
type Enrichment struct {
	CoreDomain      string   `json:"core_domain"`
	ProjectTags     []string `json:"project_tags"`
	ProcurementType string   `json:"procurement_type"`
	SearchKeywords  []string `json:"search_keywords"`
	Entities        Entities `json:"entities"`
	SignalSummary   string   `json:"signal_summary"`
	Error           string   `json:"error,omitempty"`
	Note            string   `json:"note,omitempty"`
}

// Skipped is the result for a record rejected before any external call.
// The title is kept as the summary so the record stays reachable by unfiltered search.
func Skipped(title, note string) Enrichment {
	return Enrichment{
		CoreDomain:      DomainUnclassified,
		ProjectTags:     []string{},
		ProcurementType: TypeUnknown,
		SearchKeywords:  []string{},
		Entities:        unknownEntities(),
		SignalSummary:   title,
		Note:            note,
	}
}

// Degraded is the result for a record whose classification call or decode failed.
func Degraded(title string, err error) Enrichment {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return Enrichment{
		CoreDomain:      DomainUnclassified,
		ProjectTags:     []string{},
		ProcurementType: TypeUnknown,
		SearchKeywords:  []string{},
		SignalSummary:   title,
		Error:           msg,
	}
}

func unknownEntities() Entities {
	return Entities{AuthorityName: EntityUnknown, LocationCity: EntityUnknown, LocationState: EntityUnknown}
}

// Indexable reports whether the enrichment carries something worth embedding.
func (e Enrichment) Indexable() bool {
	return e.Error == "" && strings.TrimSpace(e.SignalSummary) != ""
}

// EnrichedRecord is a normalized record with its enrichment merged on top.
// It is the line format of the intermediate chunk artifact.
type EnrichedRecord struct {
	NormalizedRecord
	Enrichment
}

// IsCorrigendum reports whether a title announces a corrigendum. Only the title is inspected.
func IsCorrigendum(title string) bool {
	return strings.Contains(strings.ToLower(title), "corrigendum")
}
