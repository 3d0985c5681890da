// Package metrics exposes pipeline counters on a private Prometheus registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "guideline_rag"

// Build outcomes used as the "result" label of index builds.
const (
	BuildOK               = "ok"
	BuildEmptyCorpus      = "empty_corpus"
	BuildEmbeddingFailure = "embedding_failure"
	BuildError            = "error"
)

// Metrics groups the collectors. A nil *Metrics records nothing, so callers
// never need to check whether metrics are enabled.
type Metrics struct {
	registry *prometheus.Registry

	IndexBuilds       *prometheus.CounterVec
	ChunksIndexed     prometheus.Counter
	DocumentsSkipped  prometheus.Counter
	Queries           prometheus.Counter
	QueryLatency      prometheus.Histogram
	ComposerFallbacks prometheus.Counter
}

// New registers every collector on a new registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		IndexBuilds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "index_builds_total",
			Help:      "Corpus index builds by result.",
		}, []string{"result"}),
		ChunksIndexed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_indexed_total",
			Help:      "Chunks embedded and added to an index.",
		}),
		DocumentsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_skipped_total",
			Help:      "Uploaded documents that could not be opened.",
		}),
		Queries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_total",
			Help:      "Answered queries.",
		}),
		QueryLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_latency_seconds",
			Help:      "Time from query to composed answer.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 14),
		}),
		ComposerFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "composer_fallbacks_total",
			Help:      "Answers that fell back to extraction after a language model error.",
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.IndexBuilds,
		m.ChunksIndexed,
		m.DocumentsSkipped,
		m.Queries,
		m.QueryLatency,
		m.ComposerFallbacks,
	)
	return m
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveBuild records one index build.
func (m *Metrics) ObserveBuild(result string, chunks, skipped int) {
	if m == nil {
		return
	}
	m.IndexBuilds.WithLabelValues(result).Inc()
	m.DocumentsSkipped.Add(float64(skipped))
	if result == BuildOK {
		m.ChunksIndexed.Add(float64(chunks))
	}
}

// ObserveQuery records one answered query.
func (m *Metrics) ObserveQuery(latency time.Duration, fellBack bool) {
	if m == nil {
		return
	}
	m.Queries.Inc()
	m.QueryLatency.Observe(latency.Seconds())
	if fellBack {
		m.ComposerFallbacks.Inc()
	}
}
