package ingest

import (
	"context"

	"github.com/kailas-cloud/tenderdex/internal/repository/deadletter"
	"github.com/kailas-cloud/tenderdex/internal/usecase/enrichment"
	"github.com/kailas-cloud/tenderdex/internal/usecase/indexer"
)

// Enricher writes one enriched window to a JSONL artifact.
type Enricher interface {
	Run(ctx context.Context, w enrichment.Window, outPath string) (enrichment.Stats, error)
}

// Indexer loads a JSONL artifact into the vector store.
type Indexer interface {
	Load(ctx context.Context, path string) (indexer.Stats, error)
}

// RowCounter reports the number of source rows.
type RowCounter interface {
	Count() (int, error)
}

// DeadLetters records failed chunks for replay.
type DeadLetters interface {
	Record(ctx context.Context, offset, limit int, reason string) error
	List(ctx context.Context) ([]deadletter.Entry, error)
	Remove(ctx context.Context, offset, limit int) error
}
