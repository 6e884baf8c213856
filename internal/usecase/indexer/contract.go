package indexer

import (
	"context"

	"github.com/kailas-cloud/tenderdex/internal/domain/tender"
)

// Store persists embedded documents.
type Store interface {
	Upsert(ctx context.Context, docs []tender.Document) error
}
