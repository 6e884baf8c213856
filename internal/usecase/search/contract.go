package search

import (
	"context"

	"github.com/kailas-cloud/tenderdex/internal/domain"
	"github.com/kailas-cloud/tenderdex/internal/domain/search/filter"
	"github.com/kailas-cloud/tenderdex/internal/domain/search/result"
	"github.com/kailas-cloud/tenderdex/internal/usecase/intent"
)

// Repository runs filtered nearest-neighbour lookups.
type Repository interface {
	SearchKNN(ctx context.Context, vector []float32, filters filter.Expression, topK int) ([]result.Result, error)
}

// Embedder vectorizes the query text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// IntentAnalyzer reads filters out of a query. It must not fail.
type IntentAnalyzer interface {
	Analyze(ctx context.Context, query string) intent.Intent
}
