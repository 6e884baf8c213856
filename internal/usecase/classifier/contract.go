package classifier

import (
	"context"

	"github.com/kailas-cloud/tenderdex/internal/domain"
	"github.com/kailas-cloud/tenderdex/internal/taxonomy"
)

// Completer runs one structured-output completion.
type Completer interface {
	Complete(ctx context.Context, req domain.CompletionRequest) (domain.CompletionResult, error)
}

// TaxonomySource yields the taxonomy in effect. *taxonomy.Holder satisfies it.
type TaxonomySource interface {
	Get() *taxonomy.Taxonomy
}
