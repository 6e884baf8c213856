package tender

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Derived and enrichment keys of the flat JSONL line. Raw columns share the same object,
// so a raw header with one of these names is shadowed.
const (
	keyTitle           = "title"
	keyDescription     = "description"
	keyLocation        = "location"
	keyAmountNumeric   = "amount_numeric"
	keyDateISO         = "date_iso"
	keyFingerprint     = "dedup_fingerprint"
	keyReferenceID     = "reference_id"
	keyCoreDomain      = "core_domain"
	keyProjectTags     = "project_tags"
	keyProcurementType = "procurement_type"
	keySearchKeywords  = "search_keywords"
	keyEntities        = "entities"
	keySignalSummary   = "signal_summary"
	keyError           = "error"
	keyNote            = "note"
)

// MarshalJSON flattens the record: raw columns first, then derived fields, then the
// enrichment, each layer overriding the previous on key collision.
func (r EnrichedRecord) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Raw)+16)
	for k, v := range r.Raw {
		out[k] = v
	}

	out[keyTitle] = r.Title
	out[keyDescription] = r.Description
	out[keyLocation] = r.Location
	if r.AmountNumeric != nil {
		out[keyAmountNumeric] = *r.AmountNumeric
	} else {
		delete(out, keyAmountNumeric)
	}
	if r.DateISO != "" {
		out[keyDateISO] = r.DateISO
	} else {
		delete(out, keyDateISO)
	}
	out[keyFingerprint] = r.Fingerprint
	out[keyReferenceID] = r.ReferenceID

	out[keyCoreDomain] = r.CoreDomain
	out[keyProjectTags] = nonNil(r.ProjectTags)
	out[keyProcurementType] = r.ProcurementType
	out[keySearchKeywords] = nonNil(r.SearchKeywords)
	out[keyEntities] = r.Entities
	out[keySignalSummary] = r.SignalSummary
	delete(out, keyError)
	delete(out, keyNote)
	if r.Error != "" {
		out[keyError] = r.Error
	}
	if r.Note != "" {
		out[keyNote] = r.Note
	}

	return json.Marshal(out)
}

// UnmarshalJSON decodes a flat line. Known keys must have the expected JSON types;
// everything else is kept as a raw column.
func (r *EnrichedRecord) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("decode enriched record: %w", err)
	}
	if fields == nil {
		return fmt.Errorf("decode enriched record: not an object")
	}

	var rec EnrichedRecord
	d := decoder{fields: fields}
	d.str(keyTitle, &rec.Title)
	d.str(keyDescription, &rec.Description)
	d.str(keyLocation, &rec.Location)
	d.str(keyDateISO, &rec.DateISO)
	d.str(keyFingerprint, &rec.Fingerprint)
	d.str(keyReferenceID, &rec.ReferenceID)
	if raw, ok := d.take(keyAmountNumeric); ok && !isNull(raw) {
		var n int64
		d.decode(keyAmountNumeric, raw, &n)
		rec.AmountNumeric = &n
	}

	d.str(keyCoreDomain, &rec.CoreDomain)
	d.strs(keyProjectTags, &rec.ProjectTags)
	d.str(keyProcurementType, &rec.ProcurementType)
	d.strs(keySearchKeywords, &rec.SearchKeywords)
	if raw, ok := d.take(keyEntities); ok && !isNull(raw) {
		d.decode(keyEntities, raw, &rec.Entities)
	}
	d.str(keySignalSummary, &rec.SignalSummary)
	d.str(keyError, &rec.Error)
	d.str(keyNote, &rec.Note)
	if d.err != nil {
		return d.err
	}

	rec.Raw = make(RawRecord, len(fields))
	for k, v := range fields {
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			s = string(bytes.TrimSpace(v))
			if s == "null" {
				s = ""
			}
		}
		rec.Raw[k] = s
	}

	*r = rec
	return nil
}

type decoder struct {
	fields map[string]json.RawMessage
	err    error
}

func (d *decoder) take(key string) (json.RawMessage, bool) {
	raw, ok := d.fields[key]
	if ok {
		delete(d.fields, key)
	}
	return raw, ok
}

func (d *decoder) decode(key string, raw json.RawMessage, dst any) {
	if d.err != nil {
		return
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		d.err = fmt.Errorf("decode enriched record field %q: %w", key, err)
	}
}

func (d *decoder) str(key string, dst *string) {
	if raw, ok := d.take(key); ok && !isNull(raw) {
		d.decode(key, raw, dst)
	}
}

func (d *decoder) strs(key string, dst *[]string) {
	if raw, ok := d.take(key); ok && !isNull(raw) {
		d.decode(key, raw, dst)
	}
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
