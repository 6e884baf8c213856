package tender

import (
	"github.com/kailas-cloud/tenderdex/internal/db"
	domtender "github.com/kailas-cloud/tenderdex/internal/domain/tender"
)

// buildIndex describes the tender index: filterable TAG fields, the title as TEXT
// and one HNSW/COSINE vector.
func buildIndex(name, prefix string, dim int, hnsw HNSWConfig) (*db.IndexDefinition, error) {
	return db.NewIndex(name).
		Prefix(prefix).
		Tag(domtender.FieldCoreDomain, domtender.FieldProcurementType, domtender.FieldIsCorrigendum).
		TagWithOpts(domtender.FieldProjectTags, ",", false).
		Text(domtender.FieldOriginalTitle).
		VectorHNSW(db.VectorField, dim, db.DistanceCosine, hnsw.M, hnsw.EFConstruct).
		Build()
}
