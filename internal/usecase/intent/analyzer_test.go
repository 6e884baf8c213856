package intent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kailas-cloud/tenderdex/internal/domain"
	"github.com/kailas-cloud/tenderdex/internal/taxonomy"
)

type stubCompleter struct {
	text string
	err  error
	wait bool
	last domain.CompletionRequest
}

func (s *stubCompleter) Complete(ctx context.Context, req domain.CompletionRequest) (domain.CompletionResult, error) {
	s.last = req
	if s.wait {
		<-ctx.Done()
		return domain.CompletionResult{}, ctx.Err()
	}
	return domain.CompletionResult{Text: s.text}, s.err
}

func newAnalyzer(c Completer, opts Options) *Analyzer {
	return New(c, taxonomy.NewHolder(taxonomy.Default()), opts, zap.NewNop())
}

func TestAnalyze_FiltersToTaxonomy(t *testing.T) {
	c := &stubCompleter{text: "```json\n" + `{
		"core_domains": ["healthcare", "Infrastructure", "Space", "Healthcare"],
		"procurement_types": ["Works", "Barter"],
		"refined_query": "  hospital building  "
	}` + "\n```"}

	got := newAnalyzer(c, Options{}).Analyze(context.Background(), "hospital construction")

	assert.Equal(t, []string{"Healthcare", "Infrastructure"}, got.Domains)
	assert.Equal(t, []string{"Works"}, got.ProcurementTypes)
	assert.Equal(t, "hospital building", got.RefinedQuery)

	assert.Zero(t, c.last.Temperature)
	assert.True(t, c.last.JSON)
	assert.Contains(t, c.last.User, "hospital construction")
	assert.Contains(t, c.last.System, "Healthcare")
}

func TestAnalyze_FailuresYieldEmptyIntent(t *testing.T) {
	tests := []struct {
		name string
		c    *stubCompleter
	}{
		{"provider error", &stubCompleter{err: errors.New("503")}},
		{"not json", &stubCompleter{text: "Healthcare, probably"}},
		{"unknown key", &stubCompleter{text: `{"core_domains":["Energy"],"confidence":0.9}`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := newAnalyzer(tt.c, Options{}).Analyze(context.Background(), "solar pumps")
			assert.True(t, got.IsEmpty(), "got %+v", got)
		})
	}
}

func TestAnalyze_Timeout(t *testing.T) {
	c := &stubCompleter{wait: true}
	a := newAnalyzer(c, Options{Timeout: 20 * time.Millisecond})

	start := time.Now()
	got := a.Analyze(context.Background(), "ear tags")

	assert.True(t, got.IsEmpty())
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestAnalyze_EmptyQuerySkipsCall(t *testing.T) {
	c := &stubCompleter{err: errors.New("must not be called")}
	got := newAnalyzer(c, Options{}).Analyze(context.Background(), "   ")

	assert.True(t, got.IsEmpty())
	assert.Empty(t, c.last.User)
}

func TestPrompt_IncludesHints(t *testing.T) {
	tax, err := taxonomy.Parse([]byte(`
version: 1
domains: [Energy, Other]
procurement_types: [Works, Supply]
intent_hints:
  - phrases: [Construction, Building]
    type: Works
`))
	require.NoError(t, err)

	p := Prompt(tax)
	assert.Contains(t, p, "[Energy, Other]")
	assert.Contains(t, p, "[Works, Supply]")
	assert.Contains(t, p, `"Construction", "Building" -> Works`)
	assert.Contains(t, p, `"refined_query"`)
}
