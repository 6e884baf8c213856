// Package taxonomy holds the versioned classification vocabulary shared by ingestion
// and query analysis: domains, procurement types, project tags and keyword rules.
package taxonomy

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/tenderdex/internal/domain/tender"
)

// OtherDomain is the catch-all domain; unknown classifier domains collapse to it when present.
const OtherDomain = "Other"

// Taxonomy is the loaded vocabulary. Use Load or Parse to get a validated instance.
type Taxonomy struct {
	Version          int                 `yaml:"version"`
	Domains          []string            `yaml:"domains"`
	ProcurementTypes []string            `yaml:"procurement_types"`
	ProjectTags      map[string][]string `yaml:"project_tags"`
	FilterKeywords   []string            `yaml:"filter_keywords"`
	ExpansionRules   []ExpansionRule     `yaml:"expansion_rules"`
	ProcurementRules []ProcurementRule   `yaml:"procurement_rules"`
	TypeAliases      map[string]string   `yaml:"type_aliases"`
	IntentHints      []IntentHint        `yaml:"intent_hints"`

	domainIndex map[string]string
	typeIndex   map[string]string
	tagIndex    map[string]string
	keywords    []string
}

// ExpansionRule tells the classifier which related terms to add when a term appears.
type ExpansionRule struct {
	When string   `yaml:"when"`
	Add  []string `yaml:"add"`
}

// ProcurementRule infers a procurement type from title keywords. Rules are tried in order.
type ProcurementRule struct {
	Type     string   `yaml:"type"`
	Keywords []string `yaml:"keywords"`
}

// IntentHint maps query phrases to a procurement type for the intent prompt.
type IntentHint struct {
	Phrases []string `yaml:"phrases"`
	Type    string   `yaml:"type"`
}

// Load reads and validates a taxonomy YAML file.
func Load(path string) (*Taxonomy, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read taxonomy %s: %w", path, err)
	}
	t, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("taxonomy %s: %w", path, err)
	}
	return t, nil
}

// Parse decodes and validates taxonomy YAML.
func Parse(data []byte) (*Taxonomy, error) {
	var t Taxonomy
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse taxonomy: %w", err)
	}
	if err := t.init(); err != nil {
		return nil, err
	}
	return &t, nil
}

func (t *Taxonomy) init() error {
	if len(t.Domains) == 0 {
		return fmt.Errorf("domains must not be empty")
	}
	if len(t.ProcurementTypes) == 0 {
		return fmt.Errorf("procurement_types must not be empty")
	}

	t.domainIndex = indexOf(t.Domains)
	t.typeIndex = indexOf(t.ProcurementTypes)

	for d := range t.ProjectTags {
		if _, ok := t.domainIndex[fold(d)]; !ok {
			return fmt.Errorf("project_tags: unknown domain %q", d)
		}
	}
	for i, r := range t.ProcurementRules {
		if _, ok := t.typeIndex[fold(r.Type)]; !ok {
			return fmt.Errorf("procurement_rules[%d]: unknown type %q", i, r.Type)
		}
	}
	for from, to := range t.TypeAliases {
		if _, ok := t.typeIndex[fold(to)]; !ok && to != tender.TypeUnknown {
			return fmt.Errorf("type_aliases[%s]: unknown target type %q", from, to)
		}
	}
	for i, h := range t.IntentHints {
		if _, ok := t.typeIndex[fold(h.Type)]; !ok {
			return fmt.Errorf("intent_hints[%d]: unknown type %q", i, h.Type)
		}
	}

	t.tagIndex = make(map[string]string)
	for _, d := range t.sortedTagDomains() {
		for _, tag := range t.ProjectTags[d] {
			if _, ok := t.tagIndex[fold(tag)]; !ok {
				t.tagIndex[fold(tag)] = strings.TrimSpace(tag)
			}
		}
	}

	t.keywords = lowerAll(t.FilterKeywords)
	if len(t.keywords) == 0 {
		for _, tag := range t.tagIndex {
			t.keywords = append(t.keywords, fold(tag))
		}
		t.keywords = append(t.keywords, lowerAll(t.Domains)...)
		sort.Strings(t.keywords)
	}
	return nil
}

// Keywords returns the lowercased keyword list used by the pre-call filter.
func (t *Taxonomy) Keywords() []string { return t.keywords }

// HasKeyword reports whether text contains any taxonomy keyword, case-insensitively.
func (t *Taxonomy) HasKeyword(text string) bool {
	lower := strings.ToLower(text)
	for _, k := range t.keywords {
		if k != "" && strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

// CanonicalDomain maps a classifier domain onto the vocabulary. Unknown values become
// OtherDomain when the taxonomy has it, otherwise Unclassified.
func (t *Taxonomy) CanonicalDomain(s string) string {
	if d, ok := t.domainIndex[fold(s)]; ok {
		return d
	}
	if d, ok := t.domainIndex[fold(OtherDomain)]; ok {
		return d
	}
	return tender.DomainUnclassified
}

// CanonicalType maps a classifier procurement type onto the vocabulary or Unknown.
func (t *Taxonomy) CanonicalType(s string) string {
	if p, ok := t.typeIndex[fold(s)]; ok {
		return p
	}
	return tender.TypeUnknown
}

// CanonicalTags keeps known project tags in their canonical spelling, drops duplicates
// and caps the list at limit.
func (t *Taxonomy) CanonicalTags(tags []string, limit int) []string {
	out := make([]string, 0, limit)
	seen := make(map[string]struct{})
	for _, tag := range tags {
		c, ok := t.tagIndex[fold(tag)]
		if !ok {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
		if len(out) == limit {
			break
		}
	}
	return out
}

// FilterDomains keeps known domains only, canonical and deduplicated. Used for query intent,
// where an unknown domain must not turn into a filter.
func (t *Taxonomy) FilterDomains(values []string) []string {
	return filterKnown(values, t.domainIndex)
}

// FilterTypes keeps known procurement types only.
func (t *Taxonomy) FilterTypes(values []string) []string {
	return filterKnown(values, t.typeIndex)
}

// ResolveType applies type aliases and, for unresolved types, the keyword rules against
// the title. changed is false when the stored type should stay.
func (t *Taxonomy) ResolveType(current, title string) (string, bool) {
	for from, to := range t.TypeAliases {
		if strings.EqualFold(from, current) && !strings.EqualFold(to, current) {
			return t.canonicalOr(to), true
		}
	}

	if _, known := t.typeIndex[fold(current)]; known {
		return current, false
	}

	lower := strings.ToLower(title)
	for _, r := range t.ProcurementRules {
		for _, k := range r.Keywords {
			if k != "" && strings.Contains(lower, strings.ToLower(k)) {
				return t.CanonicalType(r.Type), true
			}
		}
	}
	return current, false
}

func (t *Taxonomy) canonicalOr(s string) string {
	if p, ok := t.typeIndex[fold(s)]; ok {
		return p
	}
	return s
}

func (t *Taxonomy) sortedTagDomains() []string {
	ds := make([]string, 0, len(t.ProjectTags))
	for d := range t.ProjectTags {
		ds = append(ds, d)
	}
	sort.Strings(ds)
	return ds
}

func filterKnown(values []string, index map[string]string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, v := range values {
		c, ok := index[fold(v)]
		if !ok {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

func indexOf(values []string) map[string]string {
	m := make(map[string]string, len(values))
	for _, v := range values {
		m[fold(v)] = strings.TrimSpace(v)
	}
	return m
}

func lowerAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = fold(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func fold(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
