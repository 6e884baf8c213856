// Package chi exposes search, stats and ingestion control over a small JSON API.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/tenderdex/internal/metrics"
	healthuc "github.com/kailas-cloud/tenderdex/internal/usecase/health"
	"github.com/kailas-cloud/tenderdex/internal/usecase/ingest"
	searchuc "github.com/kailas-cloud/tenderdex/internal/usecase/search"
)

const maxBodyBytes = 1 << 20

// Searcher answers search requests.
type Searcher interface {
	Search(ctx context.Context, req searchuc.Request) (searchuc.Response, error)
}

// StatsReader reports index size.
type StatsReader interface {
	Count(ctx context.Context) (int, error)
}

// IngestRunner starts and looks up background ingestion jobs.
type IngestRunner interface {
	Start(parent context.Context, p ingest.Params) (*ingest.Job, error)
	Get(id string) (*ingest.Job, error)
}

// HealthChecker aggregates component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// Deps are the use cases behind the API. Ingest may be nil to disable /api/ingest.
type Deps struct {
	Search  Searcher
	Stats   StatsReader
	Ingest  IngestRunner
	Health  HealthChecker
	APIKeys []string
}

// Server holds the HTTP handlers.
type Server struct {
	deps   Deps
	logger *zap.Logger
}

// NewServer creates an HTTP API server.
func NewServer(deps Deps, logger *zap.Logger) *Server {
	return &Server{deps: deps, logger: logger}
}

// Router builds the chi router with the full middleware chain.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(jsonRecoverer(s.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(s.logger))
	r.Use(BearerAuthMiddleware(s.deps.APIKeys))
	r.Use(metrics.Middleware())

	r.Get("/health", s.HealthCheck)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/search", s.Search)
		r.Get("/stats", s.Stats)
		if s.deps.Ingest != nil {
			r.Post("/ingest", s.StartIngest)
			r.Get("/ingest/{id}", s.GetIngest)
		}
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, codeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, codeBadRequest, "method not allowed")
	})
	return r
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.deps.Health.Check(r.Context())

	status := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, report)
}

// Search handles POST /api/search.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := decodeBody(w, r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	resp, err := s.deps.Search.Search(r.Context(), searchuc.Request{
		Query:              req.Query,
		Limit:              req.Limit,
		IncludeCorrigendum: req.IncludeCorrigendum,
	})
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	items := make([]searchResultItem, len(resp.Results))
	for i := range resp.Results {
		items[i] = searchResultToDTO(&resp.Results[i])
	}

	writeJSON(w, http.StatusOK, searchResponse{
		Results:   items,
		Count:     resp.Count,
		Intent:    resp.Intent,
		LatencyMS: resp.Latency.Milliseconds(),
	})
}

// Stats handles GET /api/stats.
func (s *Server) Stats(w http.ResponseWriter, r *http.Request) {
	n, err := s.deps.Stats.Count(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{Documents: n})
}

// StartIngest handles POST /api/ingest. The job outlives the request; it is stopped by
// the runner on shutdown.
func (s *Server) StartIngest(w http.ResponseWriter, r *http.Request) {
	var p ingest.Params
	if err := decodeBody(w, r, &p, true); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if p.StartOffset < 0 || p.Total < 0 || p.ChunkSize < 0 {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "start_offset, total and chunk_size must not be negative")
		return
	}

	job, err := s.deps.Ingest.Start(context.WithoutCancel(r.Context()), p)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, ingestStartResponse{JobID: job.ID})
}

// GetIngest handles GET /api/ingest/{id}.
func (s *Server) GetIngest(w http.ResponseWriter, r *http.Request) {
	job, err := s.deps.Ingest.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ingestJobToDTO(job))
}

// decodeBody reads a JSON body, rejecting unknown fields. An empty body is accepted
// when allowEmpty is set and leaves dst untouched.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any, allowEmpty bool) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if allowEmpty && errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	return nil
}
