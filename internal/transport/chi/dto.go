package chi

import (
	"time"

	"github.com/kailas-cloud/tenderdex/internal/domain/search/result"
	domtender "github.com/kailas-cloud/tenderdex/internal/domain/tender"
	"github.com/kailas-cloud/tenderdex/internal/usecase/ingest"
	"github.com/kailas-cloud/tenderdex/internal/usecase/intent"
)

type searchRequest struct {
	Query              string `json:"query"`
	Limit              int    `json:"limit"`
	IncludeCorrigendum bool   `json:"include_corrigendum"`
}

type searchResultItem struct {
	ID       string            `json:"id"`
	Title    string            `json:"title"`
	Score    float64           `json:"score"`
	Distance float64           `json:"distance"`
	Metadata map[string]string `json:"metadata"`
}

type searchResponse struct {
	Results   []searchResultItem `json:"results"`
	Count     int                `json:"count"`
	Intent    intent.Intent      `json:"intent"`
	LatencyMS int64              `json:"latency_ms"`
}

type statsResponse struct {
	Documents int `json:"documents"`
}

type ingestStartResponse struct {
	JobID string `json:"job_id"`
}

type ingestJobResponse struct {
	JobID     string          `json:"job_id"`
	Params    ingest.Params   `json:"params"`
	StartedAt time.Time       `json:"started_at"`
	Progress  ingest.Snapshot `json:"progress"`
	Finished  bool            `json:"finished"`
	Summary   *ingest.Summary `json:"summary,omitempty"`
	Error     string          `json:"error,omitempty"`
}

func searchResultToDTO(r *result.Result) searchResultItem {
	meta := r.Metadata()
	if meta == nil {
		meta = map[string]string{}
	}
	return searchResultItem{
		ID:       r.ID(),
		Title:    r.Field(domtender.FieldOriginalTitle),
		Score:    r.Score(),
		Distance: r.Distance(),
		Metadata: meta,
	}
}

func ingestJobToDTO(j *ingest.Job) ingestJobResponse {
	resp := ingestJobResponse{
		JobID:     j.ID,
		Params:    j.Params,
		StartedAt: j.StartedAt,
		Progress:  j.Progress(),
		Finished:  j.Finished(),
	}
	if resp.Finished {
		sum, err := j.Result()
		resp.Summary = &sum
		if err != nil {
			resp.Error = err.Error()
		}
	}
	return resp
}
