package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/tenderdex/internal/domain"
	"github.com/kailas-cloud/tenderdex/internal/domain/search/result"
	domtender "github.com/kailas-cloud/tenderdex/internal/domain/tender"
	"github.com/kailas-cloud/tenderdex/internal/usecase/enrichment"
	healthuc "github.com/kailas-cloud/tenderdex/internal/usecase/health"
	"github.com/kailas-cloud/tenderdex/internal/usecase/indexer"
	"github.com/kailas-cloud/tenderdex/internal/usecase/ingest"
	"github.com/kailas-cloud/tenderdex/internal/usecase/intent"
	searchuc "github.com/kailas-cloud/tenderdex/internal/usecase/search"
)

// --- Fakes ---

type fakeSearcher struct {
	resp searchuc.Response
	err  error
	last searchuc.Request
}

func (f *fakeSearcher) Search(_ context.Context, req searchuc.Request) (searchuc.Response, error) {
	f.last = req
	return f.resp, f.err
}

type fakeStats struct {
	n   int
	err error
}

func (f fakeStats) Count(context.Context) (int, error) { return f.n, f.err }

type fakeHealth struct {
	report healthuc.Report
}

func (f fakeHealth) Check(context.Context) healthuc.Report { return f.report }

// blockingEnricher holds every chunk until release is closed.
type blockingEnricher struct {
	release chan struct{}
}

func (b *blockingEnricher) Run(_ context.Context, _ enrichment.Window, path string) (enrichment.Stats, error) {
	<-b.release
	if err := os.WriteFile(path, []byte("{}\n"), 0o600); err != nil {
		return enrichment.Stats{}, err
	}
	return enrichment.Stats{Read: 1, Enriched: 1, Written: 1}, nil
}

type countingIndexer struct{}

func (countingIndexer) Load(context.Context, string) (indexer.Stats, error) {
	return indexer.Stats{Lines: 1, Indexed: 1}, nil
}

type fixedRows int

func (n fixedRows) Count() (int, error) { return int(n), nil }

func newRunner(t *testing.T, enr ingest.Enricher) *ingest.Runner {
	t.Helper()
	orch := ingest.New(enr, countingIndexer{}, fixedRows(1), nil,
		ingest.Options{WorkDir: t.TempDir(), OnChunkFailure: ingest.FailureDrop}, zap.NewNop())
	r, err := ingest.NewRunner(orch, zap.NewNop())
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	t.Cleanup(func() { _ = r.Close(time.Second) })
	return r
}

func newTestServer(deps Deps) http.Handler {
	if deps.Health == nil {
		deps.Health = fakeHealth{report: healthuc.Report{Status: healthuc.Healthy}}
	}
	if deps.Search == nil {
		deps.Search = &fakeSearcher{}
	}
	if deps.Stats == nil {
		deps.Stats = fakeStats{}
	}
	return NewServer(deps, zap.NewNop()).Router()
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rr.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rr.Body.String())
	}
	return v
}

// --- Tests ---

func TestSearch_OK(t *testing.T) {
	s := &fakeSearcher{resp: searchuc.Response{
		Results: []result.Result{
			result.New("T-1", 0.5, "text", map[string]string{domtender.FieldOriginalTitle: "Supply of MRI"}).WithScore(100),
		},
		Count:   1,
		Intent:  intent.Intent{Domains: []string{"Healthcare"}},
		Latency: 42 * time.Millisecond,
	}}
	h := newTestServer(Deps{Search: s})

	rr := do(t, h, http.MethodPost, "/api/search", `{"query":"mri","limit":5,"include_corrigendum":true}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	if s.last.Query != "mri" || s.last.Limit != 5 || !s.last.IncludeCorrigendum {
		t.Errorf("request not forwarded: %+v", s.last)
	}

	resp := decode[searchResponse](t, rr)
	if resp.Count != 1 || len(resp.Results) != 1 {
		t.Fatalf("resp = %+v", resp)
	}
	if resp.Results[0].Title != "Supply of MRI" || resp.Results[0].Score != 100 {
		t.Errorf("item = %+v", resp.Results[0])
	}
	if resp.LatencyMS != 42 {
		t.Errorf("latency_ms = %d", resp.LatencyMS)
	}
	if len(resp.Intent.Domains) != 1 {
		t.Errorf("intent = %+v", resp.Intent)
	}
}

func TestSearch_Errors(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		err      error
		wantCode int
		wantErr  errorCode
	}{
		{"malformed body", `{"query":`, nil, http.StatusBadRequest, codeBadRequest},
		{"unknown field", `{"query":"x","mode":"hybrid"}`, nil, http.StatusBadRequest, codeBadRequest},
		{"invalid query", `{"query":""}`, domain.ErrInvalidQuery, http.StatusBadRequest, codeValidationFailed},
		{"provider", `{"query":"x"}`, domain.ErrEmbeddingProviderError, http.StatusBadGateway, codeEmbeddingProvider},
		{"internal", `{"query":"x"}`, errors.New("boom"), http.StatusInternalServerError, codeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestServer(Deps{Search: &fakeSearcher{err: tt.err}})
			rr := do(t, h, http.MethodPost, "/api/search", tt.body)

			if rr.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rr.Code, tt.wantCode)
			}
			if got := decode[errorResponse](t, rr); got.Code != tt.wantErr {
				t.Errorf("code = %s, want %s", got.Code, tt.wantErr)
			}
		})
	}
}

func TestInternalErrorHidesDetails(t *testing.T) {
	h := newTestServer(Deps{Stats: fakeStats{err: errors.New("dial tcp 10.0.0.7:6379: refused")}})
	rr := do(t, h, http.MethodGet, "/api/stats", "")

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rr.Code)
	}
	if got := decode[errorResponse](t, rr); got.Message != "internal error" {
		t.Errorf("message leaked: %q", got.Message)
	}
}

func TestStats(t *testing.T) {
	h := newTestServer(Deps{Stats: fakeStats{n: 85000}})
	rr := do(t, h, http.MethodGet, "/api/stats", "")

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if got := decode[statsResponse](t, rr); got.Documents != 85000 {
		t.Errorf("documents = %d", got.Documents)
	}
}

func TestHealth(t *testing.T) {
	tests := []struct {
		status healthuc.Status
		want   int
	}{
		{healthuc.Healthy, http.StatusOK},
		{healthuc.Degraded, http.StatusOK},
		{healthuc.Unhealthy, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			h := newTestServer(Deps{Health: fakeHealth{report: healthuc.Report{Status: tt.status}}})
			rr := do(t, h, http.MethodGet, "/health", "")
			if rr.Code != tt.want {
				t.Errorf("status = %d, want %d", rr.Code, tt.want)
			}
		})
	}
}

func TestIngest_Lifecycle(t *testing.T) {
	enr := &blockingEnricher{release: make(chan struct{})}
	runner := newRunner(t, enr)
	h := newTestServer(Deps{Ingest: runner})

	rr := do(t, h, http.MethodPost, "/api/ingest", "")
	if rr.Code != http.StatusAccepted {
		t.Fatalf("start status = %d, body %s", rr.Code, rr.Body.String())
	}
	jobID := decode[ingestStartResponse](t, rr).JobID
	if jobID == "" {
		t.Fatal("empty job id")
	}

	rr = do(t, h, http.MethodPost, "/api/ingest", `{"start_offset":0}`)
	if rr.Code != http.StatusConflict {
		t.Fatalf("second start status = %d, want 409", rr.Code)
	}
	if got := decode[errorResponse](t, rr); got.Code != codeIngestBusy {
		t.Errorf("code = %s", got.Code)
	}

	rr = do(t, h, http.MethodGet, "/api/ingest/"+jobID, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("get status = %d", rr.Code)
	}
	if got := decode[ingestJobResponse](t, rr); got.Finished || got.Summary != nil {
		t.Errorf("job reported finished too early: %+v", got)
	}

	close(enr.release)
	job, err := runner.Get(jobID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	<-job.Done()

	rr = do(t, h, http.MethodGet, "/api/ingest/"+jobID, "")
	got := decode[ingestJobResponse](t, rr)
	if !got.Finished || got.Summary == nil {
		t.Fatalf("job not finished: %+v", got)
	}
	if got.Summary.ChunksDone != 1 || got.Progress.Status != ingest.StatusCompleted {
		t.Errorf("summary = %+v progress = %+v", *got.Summary, got.Progress)
	}
}

func TestIngest_Validation(t *testing.T) {
	h := newTestServer(Deps{Ingest: newRunner(t, &blockingEnricher{release: make(chan struct{})})})

	rr := do(t, h, http.MethodPost, "/api/ingest", `{"start_offset":-1}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}

	rr = do(t, h, http.MethodGet, "/api/ingest/unknown", "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("unknown job status = %d, want 404", rr.Code)
	}
}

func TestIngest_DisabledWithoutRunner(t *testing.T) {
	h := newTestServer(Deps{})
	rr := do(t, h, http.MethodPost, "/api/ingest", "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rr.Code)
	}
}

func TestRouter_AuthAppliesToAPIOnly(t *testing.T) {
	h := newTestServer(Deps{APIKeys: []string{"secret"}, Stats: fakeStats{n: 1}})

	if rr := do(t, h, http.MethodGet, "/api/stats", ""); rr.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated stats: %d", rr.Code)
	}
	if rr := do(t, h, http.MethodGet, "/health", ""); rr.Code != http.StatusOK {
		t.Errorf("health: %d", rr.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/stats", http.NoBody)
	req.Header.Set("Authorization", "Bearer secret")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Errorf("authenticated stats: %d", rr.Code)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID")
	}
}
