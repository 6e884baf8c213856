package classifier

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kailas-cloud/tenderdex/internal/taxonomy"
)

// SystemContext renders the static part of the classification prompt for a taxonomy.
// It is identical for every record, which makes it the unit of context caching.
func SystemContext(t *taxonomy.Taxonomy, maxTags int) string {
	tags, _ := json.MarshalIndent(t.ProjectTags, "", "  ")

	var b strings.Builder
	b.WriteString("You are an expert tender analyst. Structure and enrich procurement data for a high-precision search engine.\n\n")

	b.WriteString("## PROJECT TAGS BY DOMAIN\n")
	b.WriteString("Pick project_tags only from these values.\n")
	b.Write(tags)
	b.WriteString("\n\n## TASKS\n")

	fmt.Fprintf(&b, "1. Assign a broad core_domain from: [%s].\n", strings.Join(t.Domains, ", "))
	fmt.Fprintf(&b, "   Select 1-%d project_tags that match the tender.\n", maxTags)
	fmt.Fprintf(&b, "   Assign a procurement_type from: [%s].\n", strings.Join(t.ProcurementTypes, ", "))
	b.WriteString("   Construction of a facility is Infrastructure; equipment for it belongs to the facility's domain.\n")

	b.WriteString("2. Generate search_keywords so the tender is found by related terms.\n")
	for _, r := range t.ExpansionRules {
		fmt.Fprintf(&b, "   If %q appears, add: %s.\n", r.When, strings.Join(r.Add, ", "))
	}

	b.WriteString("3. Extract entities: authority_name (issuing organization), location_city, location_state. ")
	b.WriteString("Use \"Unknown\" when not present.\n")
	b.WriteString("4. Write signal_summary: a clean 5-10 word summary of the core requirement (action + object), without admin jargon.\n\n")

	b.WriteString("## OUTPUT SCHEMA (JSON ONLY, NO OTHER KEYS)\n")
	b.WriteString(`{
  "core_domain": "String",
  "project_tags": ["String"],
  "procurement_type": "String",
  "search_keywords": ["String"],
  "entities": {
    "authority_name": "String",
    "location_city": "String",
    "location_state": "String"
  },
  "signal_summary": "String"
}`)
	b.WriteString("\n")
	return b.String()
}

// UserPrompt renders the per-record part of the prompt.
func UserPrompt(title, description string) string {
	return fmt.Sprintf("Analyze the following tender:\nTitle: %s\nDescription: %s\n", title, description)
}
