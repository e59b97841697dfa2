// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TurnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_turns_total",
			Help: "Total number of user turns processed, by classified intent",
		},
		[]string{"intent"},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "assistant_stage_duration_seconds",
			Help: "Duration of each pipeline stage in seconds",
		},
		[]string{"stage"},
	)

	StoreQueries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_store_queries_total",
			Help: "Remote store queries issued, by table and outcome",
		},
		[]string{"table", "outcome"},
	)

	RemoteErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_remote_errors_total",
			Help: "Remote call failures absorbed by the pipeline",
		},
		[]string{"stage", "error_code"},
	)

	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_cache_hits_total",
			Help: "Query-result cache lookups, by outcome",
		},
		[]string{"outcome"},
	)

	LLMRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_llm_requests_total",
			Help: "LLM completion requests, by outcome",
		},
		[]string{"outcome"},
	)
)
