package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collectors groups every Prometheus metric the service exposes
type Collectors struct {
	LLMRequests *prometheus.CounterVec
	LLMLatency  *prometheus.HistogramVec
	LLMTokens   *prometheus.CounterVec

	WikipediaLookups *prometheus.CounterVec
	CacheHits        *prometheus.CounterVec

	Checks        *prometheus.CounterVec
	CheckDuration prometheus.Histogram
	ClaimVerdicts *prometheus.CounterVec

	HTTPRequests *prometheus.CounterVec
	HTTPLatency  *prometheus.HistogramVec
}

// New registers all collectors with reg
func New(reg prometheus.Registerer) *Collectors {
	f := promauto.With(reg)

	return &Collectors{
		LLMRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "factcheck_llm_requests_total",
				Help: "Total number of LLM requests by provider, model and outcome.",
			},
			[]string{"provider", "model", "status"},
		),
		LLMLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "factcheck_llm_request_duration_seconds",
				Help:    "Latency of LLM requests.",
				Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 60},
			},
			[]string{"provider", "model"},
		),
		LLMTokens: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "factcheck_llm_tokens_total",
				Help: "Tokens consumed by LLM requests.",
			},
			[]string{"provider", "model", "token_type"},
		),
		WikipediaLookups: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "factcheck_wikipedia_lookups_total",
				Help: "Wikipedia page lookups by language and outcome.",
			},
			[]string{"language", "outcome"},
		),
		CacheHits: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "factcheck_cache_requests_total",
				Help: "Reference cache lookups by result.",
			},
			[]string{"result"},
		),
		Checks: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "factcheck_checks_total",
				Help: "Fact-check requests by outcome.",
			},
			[]string{"outcome"},
		),
		CheckDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "factcheck_check_duration_seconds",
				Help:    "End-to-end duration of fact-check requests.",
				Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
			},
		),
		ClaimVerdicts: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "factcheck_claim_verdicts_total",
				Help: "Claim verdicts by status.",
			},
			[]string{"status"},
		),
		HTTPRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "factcheck_http_requests_total",
				Help: "HTTP requests served by route and status code.",
			},
			[]string{"method", "route", "code"},
		),
		HTTPLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "factcheck_http_request_duration_seconds",
				Help:    "Latency of HTTP requests served.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}
}

// NewNop returns collectors registered with a private registry, for tests and tools
func NewNop() *Collectors {
	return New(prometheus.NewRegistry())
}
