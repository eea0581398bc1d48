// Package metrics holds the prometheus collectors of the engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "aipatent"

var Registry = prometheus.NewRegistry()

var (
	ChunksPartitioned = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "chunks_partitioned_total",
		Help:      "Raw chunks produced by the partition service.",
	})

	ChunksReviewed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "chunks_reviewed_total",
		Help:      "Chunk reviews by verdict.",
	}, []string{"verdict"})

	RecordsStored = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "records_stored_total",
		Help:      "Records written to corpus tables.",
	})

	ExpansionFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "expansion_failures_total",
		Help:      "Query expansions that degraded to zero sub-queries.",
	})

	TracesDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "traces_dropped_total",
		Help:      "Trace records dropped because the dispatcher buffer was full or the sink failed.",
	})

	StageDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "stage_duration_seconds",
		Help:      "Duration of ingest and query stages.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
	}, []string{"stage"})

	HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by route and status code.",
	}, []string{"route", "code"})
)

// review verdict labels
const (
	VerdictRelevant   = "relevant"
	VerdictIrrelevant = "irrelevant"
	VerdictFailed     = "failed"
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		ChunksPartitioned,
		ChunksReviewed,
		RecordsStored,
		ExpansionFailures,
		TracesDropped,
		StageDuration,
		HTTPRequests,
	)
}

// Handler exposes Registry in the prometheus text format
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
