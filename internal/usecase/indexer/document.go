package indexer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/kailas-cloud/tenderdex/internal/domain/tender"
)

// Truncation limits for provenance metadata, in runes.
const (
	maxTitleRunes       = 300
	maxDescriptionRunes = 500
	maxAuthorityRunes   = 100
)

// DocumentText is the embedded text of an enriched record.
func DocumentText(rec *tender.EnrichedRecord) string {
	return fmt.Sprintf("%s. Tags: %s. Keywords: %s",
		rec.SignalSummary, tender.JoinList(rec.ProjectTags), tender.JoinList(rec.SearchKeywords))
}

// DocumentID is the reference id, or a content hash of text when the record has none.
func DocumentID(rec *tender.EnrichedRecord, text string) string {
	if id := strings.TrimSpace(rec.ReferenceID); id != "" {
		return id
	}
	sum := sha256.Sum256([]byte(text))
	return "hash_" + hex.EncodeToString(sum[:])[:32]
}

// BuildMetadata flattens an enriched record into scalar metadata.
func BuildMetadata(rec *tender.EnrichedRecord, cols tender.Columns) tender.Metadata {
	authority := rec.Entities.AuthorityName
	if authority == "" || authority == tender.EntityUnknown || authority == "N/A" {
		if purchaser := rec.Raw.First(cols.Authority); purchaser != "" {
			authority = tender.Truncate(purchaser, maxAuthorityRunes)
		} else if authority == "" {
			authority = tender.EntityUnknown
		}
	}

	description := rec.Description
	if description == "" || description == tender.NoDescription {
		description = rec.SignalSummary
	}

	amount := ""
	if rec.AmountNumeric != nil {
		amount = strconv.FormatInt(*rec.AmountNumeric, 10)
	}

	return tender.Metadata{
		tender.FieldCoreDomain:      orDefault(rec.CoreDomain, tender.DomainUnclassified),
		tender.FieldProjectTags:     tender.JoinList(rec.ProjectTags),
		tender.FieldProcurementType: orDefault(rec.ProcurementType, tender.TypeUnknown),
		tender.FieldSearchKeywords:  tender.JoinList(rec.SearchKeywords),
		tender.FieldSignalSummary:   rec.SignalSummary,
		tender.FieldAuthorityName:   authority,
		tender.FieldLocationCity:    orDefault(rec.Entities.LocationCity, tender.EntityUnknown),
		tender.FieldLocationState:   orDefault(rec.Entities.LocationState, tender.EntityUnknown),
		tender.FieldCountry:         orDefault(rec.Raw.First(cols.Country), tender.EntityUnknown),
		tender.FieldOriginalTitle:   tender.Truncate(rec.Title, maxTitleRunes),
		tender.FieldDescription:     tender.Truncate(description, maxDescriptionRunes),
		tender.FieldClosingDate:     orDefault(rec.Raw.First(cols.ClosingDate), "N/A"),
		tender.FieldURL:             orDefault(rec.Raw.First(cols.URL), "#"),
		tender.FieldReferenceID:     rec.ReferenceID,
		tender.FieldSourceID:        orDefault(rec.Raw.First(cols.SourceID), "N/A"),
		tender.FieldAmountNumeric:   amount,
		tender.FieldDateISO:         rec.DateISO,
		tender.FieldIsCorrigendum:   tender.JoinBool(tender.IsCorrigendum(rec.Title)),
	}
}

func orDefault(s, def string) string {
	if s = strings.TrimSpace(s); s == "" {
		return def
	}
	return s
}
