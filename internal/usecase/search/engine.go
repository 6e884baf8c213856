// Package search answers free-text tender queries: intent filters, vector lookup,
// the corrigendum guardrail and score calibration.
package search

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/tenderdex/internal/domain"
	"github.com/kailas-cloud/tenderdex/internal/domain/search/calibration"
	"github.com/kailas-cloud/tenderdex/internal/domain/search/filter"
	"github.com/kailas-cloud/tenderdex/internal/domain/search/result"
	"github.com/kailas-cloud/tenderdex/internal/domain/tender"
	"github.com/kailas-cloud/tenderdex/internal/metrics"
	"github.com/kailas-cloud/tenderdex/internal/usecase/intent"
)

// Defaults for Options.
const (
	DefaultLimit           = 20
	DefaultMaxLimit        = 100
	DefaultOverfetchFactor = 2
)

// Request is one search.
type Request struct {
	Query              string
	Limit              int
	IncludeCorrigendum bool
}

// Response is the ranked answer. Results carry calibrated scores.
type Response struct {
	Results []result.Result
	Intent  intent.Intent
	Count   int
	Latency time.Duration
}

// Options tunes the engine.
type Options struct {
	DefaultLimit    int
	MaxLimit        int
	OverfetchFactor int
	Curve           *calibration.Curve // nil = default anchors
}

// Engine is safe for concurrent use.
type Engine struct {
	repo     Repository
	embedder Embedder
	intents  IntentAnalyzer
	opts     Options
	logger   *zap.Logger
}

// New creates a search engine.
func New(repo Repository, embedder Embedder, intents IntentAnalyzer, opts Options, logger *zap.Logger) *Engine {
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = DefaultLimit
	}
	if opts.MaxLimit <= 0 {
		opts.MaxLimit = DefaultMaxLimit
	}
	if opts.OverfetchFactor <= 0 {
		opts.OverfetchFactor = DefaultOverfetchFactor
	}
	if opts.Curve == nil {
		opts.Curve = calibration.MustDefault()
	}
	return &Engine{repo: repo, embedder: embedder, intents: intents, opts: opts, logger: logger}
}

// Search runs one query end to end.
func (e *Engine) Search(ctx context.Context, req Request) (Response, error) {
	start := time.Now()
	resp, err := e.search(ctx, req)
	elapsed := time.Since(start)

	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.SearchRequestsTotal.WithLabelValues(status).Inc()
	metrics.SearchDuration.Observe(elapsed.Seconds())

	if err != nil {
		return Response{}, err
	}
	resp.Latency = elapsed
	return resp, nil
}

func (e *Engine) search(ctx context.Context, req Request) (Response, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return Response{}, fmt.Errorf("%w: query is required", domain.ErrInvalidQuery)
	}
	k := req.Limit
	if k == 0 {
		k = e.opts.DefaultLimit
	}
	if k < 0 || k > e.opts.MaxLimit {
		return Response{}, fmt.Errorf("%w: limit must be between 1 and %d", domain.ErrInvalidQuery, e.opts.MaxLimit)
	}

	in := e.intents.Analyze(ctx, query)

	filters, err := buildFilters(in, req.IncludeCorrigendum)
	if err != nil {
		return Response{}, fmt.Errorf("%w: %w", domain.ErrInvalidQuery, err)
	}

	text := in.RefinedQuery
	if text == "" {
		text = query
	}
	emb, err := e.embedder.Embed(ctx, text)
	if err != nil {
		return Response{}, fmt.Errorf("vectorize query: %w", err)
	}

	fetch := k
	if !req.IncludeCorrigendum {
		fetch = k * e.opts.OverfetchFactor
	}

	hits, err := e.repo.SearchKNN(ctx, emb.Embedding, filters, fetch)
	if err != nil {
		return Response{}, fmt.Errorf("search knn: %w", err)
	}
	slices.SortStableFunc(hits, func(a, b result.Result) int {
		switch {
		case a.Distance() < b.Distance():
			return -1
		case a.Distance() > b.Distance():
			return 1
		}
		return 0
	})

	out := make([]result.Result, 0, min(k, len(hits)))
	dropped := 0
	for _, h := range hits {
		if len(out) == k {
			break
		}
		if !req.IncludeCorrigendum && tender.IsCorrigendum(h.Field(tender.FieldOriginalTitle)) {
			dropped++
			continue
		}
		out = append(out, h.WithScore(e.opts.Curve.Score(h.Distance())))
	}
	if dropped > 0 {
		metrics.SearchGuardrailDropsTotal.Add(float64(dropped))
	}

	e.logger.Debug("Search done",
		zap.String("query", query),
		zap.String("embedded_text", text),
		zap.Int("fetched", len(hits)),
		zap.Int("guardrail_dropped", dropped),
		zap.Int("returned", len(out)),
	)

	return Response{Results: out, Intent: in, Count: len(out)}, nil
}

// buildFilters ANDs the intent's domain and type conditions with the corrigendum exclusion.
func buildFilters(in intent.Intent, includeCorrigendum bool) (filter.Expression, error) {
	var must, mustNot []filter.Condition

	if len(in.Domains) > 0 {
		c, err := filter.NewIn(tender.FieldCoreDomain, in.Domains...)
		if err != nil {
			return filter.Expression{}, err
		}
		must = append(must, c)
	}
	if len(in.ProcurementTypes) > 0 {
		c, err := filter.NewIn(tender.FieldProcurementType, in.ProcurementTypes...)
		if err != nil {
			return filter.Expression{}, err
		}
		must = append(must, c)
	}
	if !includeCorrigendum {
		c, err := filter.NewMatch(tender.FieldIsCorrigendum, tender.JoinBool(true))
		if err != nil {
			return filter.Expression{}, err
		}
		mustNot = append(mustNot, c)
	}

	return filter.NewExpression(must, mustNot)
}
