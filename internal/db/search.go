package db

import "github.com/kailas-cloud/tenderdex/internal/domain/search/filter"

// Reserved hash fields written next to document metadata.
const (
	VectorField = "__vector"
	TextField   = "__text"
	ScoreField  = "__vector_score"
)

// KNNQuery is the input for vector similarity search.
type KNNQuery struct {
	IndexName    string
	Filters      filter.Expression
	Vector       []float32
	K            int
	ReturnFields []string
	RawScores    bool // return cosine distance as-is instead of 1-distance
}

// ListQuery pages through documents matching a filter in key order.
type ListQuery struct {
	IndexName    string
	Filters      filter.Expression
	Offset       int
	Limit        int
	ReturnFields []string
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single document hit from a search.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}
