// Package classifier turns tender text into a taxonomy-bound Enrichment through a chat
// completion provider, behind a cost filter, a rate limiter and a per-call timeout.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/tenderdex/internal/domain"
	"github.com/kailas-cloud/tenderdex/internal/domain/tender"
	"github.com/kailas-cloud/tenderdex/internal/llmjson"
	"github.com/kailas-cloud/tenderdex/internal/metrics"
	"github.com/kailas-cloud/tenderdex/internal/taxonomy"
)

// SkipNote marks records rejected by the cost filter.
const SkipNote = "skipped: sparse input"

// Options tunes the gateway. Zero values take the defaults below.
type Options struct {
	MinTextLength     int           // default 15
	KeywordGateLength int           // default 60
	MaxTags           int           // default 3
	Temperature       float32       // default 0.1
	Timeout           time.Duration // default 30s
	RequestsPerSecond float64       // 0 = unlimited
	Burst             int           // default 1
	CacheContext      bool
	CacheTTL          time.Duration // default 1h
}

func (o Options) withDefaults() Options {
	if o.MinTextLength <= 0 {
		o.MinTextLength = 15
	}
	if o.KeywordGateLength <= 0 {
		o.KeywordGateLength = 60
	}
	if o.MaxTags <= 0 {
		o.MaxTags = 3
	}
	if o.Temperature <= 0 {
		o.Temperature = 0.1
	}
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Second
	}
	if o.Burst <= 0 {
		o.Burst = 1
	}
	if o.CacheTTL <= 0 {
		o.CacheTTL = time.Hour
	}
	return o
}

// Gateway classifies tenders. It is safe for concurrent use.
type Gateway struct {
	completer Completer
	taxonomy  TaxonomySource
	limiter   *rate.Limiter
	opts      Options
	logger    *zap.Logger

	cacheMu     sync.Mutex
	handle      string
	handleFor   *taxonomy.Taxonomy
	handleUntil time.Time
	retryAfter  time.Time // context caching is paused until then after a failure
	now         func() time.Time
}

// New creates a classifier gateway.
func New(c Completer, tax TaxonomySource, opts Options, logger *zap.Logger) *Gateway {
	opts = opts.withDefaults()
	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), opts.Burst)
	}
	return &Gateway{
		completer: c,
		taxonomy:  tax,
		limiter:   limiter,
		opts:      opts,
		logger:    logger,
		now:       time.Now,
	}
}

// ShouldEnrich is the pre-call cost filter. Very short text is rejected outright;
// short text must mention at least one taxonomy keyword.
func (g *Gateway) ShouldEnrich(title, description string) bool {
	if description == tender.NoDescription {
		description = ""
	}
	text := strings.TrimSpace(title + " " + description)
	n := utf8.RuneCountInString(text)
	if n < g.opts.MinTextLength {
		return false
	}
	if n < g.opts.KeywordGateLength && !g.taxonomy.Get().HasKeyword(text) {
		return false
	}
	return true
}

// Enrich classifies one record. It never fails: filtered records get the skip result
// and failed calls get the degraded result with the error message.
func (g *Gateway) Enrich(ctx context.Context, title, description string) tender.Enrichment {
	if !g.ShouldEnrich(title, description) {
		metrics.ClassifierCallsTotal.WithLabelValues(metrics.OutcomeSkipped).Inc()
		return tender.Skipped(title, SkipNote)
	}

	start := time.Now()
	enr, err := g.classify(ctx, title, description)
	metrics.ClassifierCallDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		outcome := metrics.OutcomeError
		if errors.Is(err, llmjson.ErrDecode) {
			outcome = metrics.OutcomeDecode
		}
		metrics.ClassifierCallsTotal.WithLabelValues(outcome).Inc()
		g.logger.Warn("Classification failed",
			zap.String("title", tender.Truncate(title, 120)),
			zap.String("outcome", outcome),
			zap.Error(err),
		)
		return tender.Degraded(title, err)
	}

	metrics.ClassifierCallsTotal.WithLabelValues(metrics.OutcomeOK).Inc()
	return enr
}

// classification is the answer schema requested from the model.
type classification struct {
	CoreDomain      string           `json:"core_domain"`
	ProjectTags     []string         `json:"project_tags"`
	ProcurementType string           `json:"procurement_type"`
	SearchKeywords  []string         `json:"search_keywords"`
	Entities        *tender.Entities `json:"entities"`
	SignalSummary   string           `json:"signal_summary"`
}

func (g *Gateway) classify(ctx context.Context, title, description string) (tender.Enrichment, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return tender.Enrichment{}, fmt.Errorf("rate limiter: %w", err)
		}
	}

	tax := g.taxonomy.Get()
	system := SystemContext(tax, g.opts.MaxTags)

	req := domain.CompletionRequest{
		User:        UserPrompt(title, description),
		Temperature: g.opts.Temperature,
		JSON:        true,
	}

	callCtx, cancel := context.WithTimeout(ctx, g.opts.Timeout)
	defer cancel()

	if handle := g.contextHandle(callCtx, tax, system); handle != "" {
		req.CachedContext = handle
	} else {
		req.System = system
	}

	res, err := g.completer.Complete(callCtx, req)
	if err != nil {
		return tender.Enrichment{}, fmt.Errorf("complete: %w", err)
	}

	var c classification
	if err := llmjson.DecodeStrict(res.Text, &c); err != nil {
		return tender.Enrichment{}, err
	}
	return canonicalize(tax, c, g.opts.MaxTags), nil
}

// contextHandle returns a cached-context handle for system, creating it on first use.
// It returns "" when the completer cannot cache. A failed attempt pauses caching for
// one CacheTTL; calls in between send the full context.
func (g *Gateway) contextHandle(ctx context.Context, tax *taxonomy.Taxonomy, system string) string {
	if !g.opts.CacheContext {
		return ""
	}
	cacher, ok := g.completer.(domain.ContextCacher)
	if !ok {
		return ""
	}

	g.cacheMu.Lock()
	defer g.cacheMu.Unlock()

	now := g.now()
	if now.Before(g.retryAfter) {
		return ""
	}
	// A reloaded taxonomy changes the system context, so the old handle no longer applies.
	if g.handle != "" && g.handleFor == tax && now.Before(g.handleUntil) {
		metrics.ClassifierContextCacheTotal.WithLabelValues("reused").Inc()
		return g.handle
	}

	handle, err := cacher.CacheContext(ctx, system, g.opts.CacheTTL)
	if err != nil || handle == "" {
		g.handle = ""
		g.retryAfter = now.Add(g.opts.CacheTTL)
		metrics.ClassifierContextCacheTotal.WithLabelValues("fallback").Inc()
		g.logger.Warn("Context cache unavailable, sending full context until retry",
			zap.Time("retry_after", g.retryAfter), zap.Error(err))
		return ""
	}

	// Refresh a little before the provider expires the handle.
	g.handle = handle
	g.handleFor = tax
	g.handleUntil = now.Add(g.opts.CacheTTL * 9 / 10)
	metrics.ClassifierContextCacheTotal.WithLabelValues("created").Inc()
	return handle
}

func canonicalize(tax *taxonomy.Taxonomy, c classification, maxTags int) tender.Enrichment {
	entities := tender.Entities{}
	if c.Entities != nil {
		entities = *c.Entities
	}
	return tender.Enrichment{
		CoreDomain:      tax.CanonicalDomain(c.CoreDomain),
		ProjectTags:     tax.CanonicalTags(c.ProjectTags, maxTags),
		ProcurementType: tax.CanonicalType(c.ProcurementType),
		SearchKeywords:  cleanList(c.SearchKeywords),
		Entities: tender.Entities{
			AuthorityName: orUnknown(entities.AuthorityName),
			LocationCity:  orUnknown(entities.LocationCity),
			LocationState: orUnknown(entities.LocationState),
		},
		SignalSummary: strings.TrimSpace(c.SignalSummary),
	}
}

func cleanList(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		key := strings.ToLower(v)
		if v == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	return out
}

func orUnknown(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return tender.EntityUnknown
	}
	return s
}
