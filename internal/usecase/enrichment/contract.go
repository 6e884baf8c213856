package enrichment

import (
	"context"

	"github.com/kailas-cloud/tenderdex/internal/domain/tender"
)

// TableReader reads a window of source rows.
type TableReader interface {
	ReadWindow(offset, limit int) ([]tender.RawRecord, error)
}

// Enricher classifies one record and never fails.
type Enricher interface {
	Enrich(ctx context.Context, title, description string) tender.Enrichment
}
