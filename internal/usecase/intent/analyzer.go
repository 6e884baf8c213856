// Package intent turns a free-text search query into taxonomy filters and a refined
// semantic query.
package intent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/tenderdex/internal/domain"
	"github.com/kailas-cloud/tenderdex/internal/llmjson"
	"github.com/kailas-cloud/tenderdex/internal/metrics"
	"github.com/kailas-cloud/tenderdex/internal/taxonomy"
)

// DefaultTimeout bounds one analysis call.
const DefaultTimeout = 5 * time.Second

// Completer runs one structured-output completion.
type Completer interface {
	Complete(ctx context.Context, req domain.CompletionRequest) (domain.CompletionResult, error)
}

// TaxonomySource yields the taxonomy in effect.
type TaxonomySource interface {
	Get() *taxonomy.Taxonomy
}

// Intent is the structured reading of a query. The zero value means "no filters,
// search the original text".
type Intent struct {
	Domains          []string `json:"core_domains"`
	ProcurementTypes []string `json:"procurement_types"`
	RefinedQuery     string   `json:"refined_query"`
}

// IsEmpty reports whether the intent carries nothing usable.
func (i Intent) IsEmpty() bool {
	return len(i.Domains) == 0 && len(i.ProcurementTypes) == 0 && i.RefinedQuery == ""
}

// Options tunes the analyzer.
type Options struct {
	Timeout           time.Duration // default 5s
	RequestsPerSecond float64       // 0 = unlimited
	Burst             int           // default 1
}

// Analyzer calls the completion provider at temperature 0 and keeps only taxonomy values.
type Analyzer struct {
	completer Completer
	taxonomy  TaxonomySource
	limiter   *rate.Limiter
	timeout   time.Duration
	logger    *zap.Logger
}

// New creates an analyzer.
func New(c Completer, tax TaxonomySource, opts Options, logger *zap.Logger) *Analyzer {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), opts.Burst)
	}
	return &Analyzer{
		completer: c,
		taxonomy:  tax,
		limiter:   limiter,
		timeout:   opts.Timeout,
		logger:    logger,
	}
}

// Analyze never fails: any provider, timeout or decode problem yields the empty Intent
// so the search falls back to an unfiltered query.
func (a *Analyzer) Analyze(ctx context.Context, query string) Intent {
	query = strings.TrimSpace(query)
	if query == "" {
		metrics.IntentAnalysesTotal.WithLabelValues(metrics.OutcomeSkipped).Inc()
		return Intent{}
	}

	in, err := a.analyze(ctx, query)
	if err != nil {
		outcome := metrics.OutcomeError
		if errors.Is(err, llmjson.ErrDecode) {
			outcome = metrics.OutcomeDecode
		}
		metrics.IntentAnalysesTotal.WithLabelValues(outcome).Inc()
		a.logger.Warn("Intent analysis failed, searching without filters",
			zap.String("query", query), zap.String("outcome", outcome), zap.Error(err))
		return Intent{}
	}

	metrics.IntentAnalysesTotal.WithLabelValues(metrics.OutcomeOK).Inc()
	a.logger.Debug("Intent analyzed",
		zap.String("query", query),
		zap.Strings("domains", in.Domains),
		zap.Strings("procurement_types", in.ProcurementTypes),
		zap.String("refined_query", in.RefinedQuery),
	)
	return in
}

func (a *Analyzer) analyze(ctx context.Context, query string) (Intent, error) {
	if a.limiter != nil {
		if err := a.limiter.Wait(ctx); err != nil {
			return Intent{}, fmt.Errorf("rate limiter: %w", err)
		}
	}

	tax := a.taxonomy.Get()

	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	res, err := a.completer.Complete(callCtx, domain.CompletionRequest{
		System: Prompt(tax),
		User:   fmt.Sprintf("User Query: %q", query),
		JSON:   true,
	})
	if err != nil {
		return Intent{}, fmt.Errorf("complete: %w", err)
	}

	var raw Intent
	if err := llmjson.DecodeStrict(res.Text, &raw); err != nil {
		return Intent{}, err
	}

	return Intent{
		Domains:          tax.FilterDomains(raw.Domains),
		ProcurementTypes: tax.FilterTypes(raw.ProcurementTypes),
		RefinedQuery:     strings.TrimSpace(raw.RefinedQuery),
	}, nil
}

// Prompt renders the analyzer instructions for a taxonomy.
func Prompt(t *taxonomy.Taxonomy) string {
	var b strings.Builder
	b.WriteString("You are a Search Intent Analyzer for a tender database. ")
	b.WriteString("Interpret the user's search query and extract metadata filters for precision.\n\n")

	b.WriteString("## Rules\n")
	fmt.Fprintf(&b, "1. Industry domain: decide whether the query implies one or more broad domains from [%s].\n",
		strings.Join(t.Domains, ", "))
	b.WriteString("   Return none when the query does not clearly imply a domain.\n")

	fmt.Fprintf(&b, "2. Procurement type (optional), from [%s].\n", strings.Join(t.ProcurementTypes, ", "))
	for _, h := range t.IntentHints {
		quoted := make([]string, len(h.Phrases))
		for i, p := range h.Phrases {
			quoted[i] = fmt.Sprintf("%q", p)
		}
		fmt.Fprintf(&b, "   %s -> %s\n", strings.Join(quoted, ", "), h.Type)
	}

	b.WriteString("3. Refined query: strip domain and procurement words to leave the semantic core.\n\n")

	b.WriteString("## Output schema (JSON only, no other keys)\n")
	b.WriteString(`{
  "core_domains": ["String"],
  "procurement_types": ["String"],
  "refined_query": "String"
}`)
	b.WriteString("\n")
	return b.String()
}
