package metrics

import "github.com/prometheus/client_golang/prometheus"

// Classifier outcomes.
const (
	OutcomeOK       = "ok"
	OutcomeSkipped  = "skipped"
	OutcomeError    = "error"
	OutcomeDecode   = "decode_error"
	OutcomeFallback = "fallback"
)

// Classifier, ingestion and search Prometheus metrics.
var (
	ClassifierCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classifier_calls_total",
			Help:      "Classifier gateway results by outcome",
		},
		[]string{"outcome"},
	)

	ClassifierCallDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "classifier_call_duration_seconds",
			Help:      "Completion call duration in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
		},
	)

	ClassifierContextCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classifier_context_cache_total",
			Help:      "Shared context cache usage: created, reused, fallback",
		},
		[]string{"result"},
	)

	IntentAnalysesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "intent_analyses_total",
			Help:      "Query intent analyses by outcome",
		},
		[]string{"outcome"},
	)

	IngestChunksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_chunks_total",
			Help:      "Ingestion chunks by final state",
		},
		[]string{"state"},
	)

	IngestRecordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_records_total",
			Help:      "Records processed by ingestion stage and result",
		},
		[]string{"stage", "result"},
	)

	IngestCurrentOffset = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ingest_current_offset",
			Help:      "Offset of the chunk being processed by the running ingestion",
		},
	)

	SearchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_requests_total",
			Help:      "Search requests by status",
		},
		[]string{"status"},
	)

	SearchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "End-to-end search latency including intent analysis",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8},
		},
	)

	SearchGuardrailDropsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_guardrail_drops_total",
			Help:      "Candidates dropped by the corrigendum title guardrail",
		},
	)
)

func pipelineCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		ClassifierCallsTotal,
		ClassifierCallDuration,
		ClassifierContextCacheTotal,
		IntentAnalysesTotal,
		IngestChunksTotal,
		IngestRecordsTotal,
		IngestCurrentOffset,
		SearchRequestsTotal,
		SearchDuration,
		SearchGuardrailDropsTotal,
	}
}
