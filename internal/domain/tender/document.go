package tender

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/kailas-cloud/tenderdex/internal/domain"
)

// Metadata keys stored alongside each indexed document.
const (
	FieldCoreDomain      = "core_domain"
	FieldProjectTags     = "project_tags"
	FieldProcurementType = "procurement_type"
	FieldSearchKeywords  = "search_keywords"
	FieldSignalSummary   = "signal_summary"
	FieldAuthorityName   = "authority_name"
	FieldLocationCity    = "location_city"
	FieldLocationState   = "location_state"
	FieldCountry         = "country"
	FieldOriginalTitle   = "original_title"
	FieldDescription     = "description"
	FieldClosingDate     = "closing_date"
	FieldURL             = "url"
	FieldReferenceID     = "reference_id"
	FieldSourceID        = "source_id"
	FieldAmountNumeric   = "amount_numeric"
	FieldDateISO         = "date_iso"
	FieldIsCorrigendum   = "is_corrigendum"
)

// MetadataFields lists every metadata key written for a document, in a stable order.
var MetadataFields = []string{
	FieldCoreDomain, FieldProjectTags, FieldProcurementType, FieldSearchKeywords,
	FieldSignalSummary, FieldAuthorityName, FieldLocationCity, FieldLocationState,
	FieldCountry, FieldOriginalTitle, FieldDescription, FieldClosingDate, FieldURL,
	FieldReferenceID, FieldSourceID, FieldAmountNumeric, FieldDateISO, FieldIsCorrigendum,
}

// ListSeparator joins list values into a single scalar.
const ListSeparator = ", "

var fieldNameRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Metadata is the flat scalar map stored next to a vector. Lists are joined with ListSeparator
// and booleans are "true"/"false".
type Metadata map[string]string

// Validate rejects keys that are not identifiers or that start with "__", which the store
// reserves for its own fields, and values containing NUL.
func (m Metadata) Validate() error {
	for k, v := range m {
		if !fieldNameRe.MatchString(k) {
			return fmt.Errorf("%w: key %q is not an identifier", domain.ErrInvalidMetadata, k)
		}
		if strings.HasPrefix(k, "__") {
			return fmt.Errorf("%w: key %q is reserved", domain.ErrInvalidMetadata, k)
		}
		if strings.ContainsRune(v, 0) {
			return fmt.Errorf("%w: value of %q contains NUL", domain.ErrInvalidMetadata, k)
		}
	}
	return nil
}

// Bool reads a flag stored by JoinBool.
func (m Metadata) Bool(key string) bool {
	return m[key] == "true"
}

// JoinList flattens a list value.
func JoinList(values []string) string {
	return strings.Join(values, ListSeparator)
}

// SplitList reverses JoinList. An empty string yields no items.
func SplitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ListSeparator)
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// JoinBool flattens a flag.
func JoinBool(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// Document is one vector store entry: identity, embedded text, flat metadata and vector.
type Document struct {
	ID       string
	Text     string
	Metadata Metadata
	Vector   []float32
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
