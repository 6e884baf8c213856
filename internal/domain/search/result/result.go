package result

// Result is a single search hit.
type Result struct {
	id       string
	distance float64
	score    float64
	text     string
	metadata map[string]string
}

// New creates a search result. Score starts at zero until calibrated.
func New(id string, distance float64, text string, metadata map[string]string) Result {
	return Result{id: id, distance: distance, text: text, metadata: metadata}
}

// ID returns the document identifier.
func (r *Result) ID() string { return r.id }

// Distance returns the raw cosine distance reported by the index.
func (r *Result) Distance() float64 { return r.distance }

// Score returns the calibrated 0-100 relevance score.
func (r *Result) Score() float64 { return r.score }

// Text returns the embedded document text.
func (r *Result) Text() string { return r.text }

// Metadata returns the flat metadata stored with the document.
func (r *Result) Metadata() map[string]string { return r.metadata }

// Field returns a single metadata value, or "" if absent.
func (r *Result) Field(name string) string { return r.metadata[name] }

// WithScore returns a copy carrying the given calibrated score.
func (r Result) WithScore(score float64) Result {
	r.score = score
	return r
}
