// Package metrics exposes Prometheus instruments for summaries, assistant
// intents, event recording and store queries.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Manager struct {
	namespace        string
	histogramBuckets []float64
	registry         *prometheus.Registry

	summariesRendered *prometheus.CounterVec
	summaryBuild      *prometheus.HistogramVec
	assistantIntents  *prometheus.CounterVec
	eventsRecorded    *prometheus.CounterVec
	storeQuery        *prometheus.HistogramVec
	storeErrors       *prometheus.CounterVec
}

type Option func(*Manager)

func WithNamespace(namespace string) Option {
	return func(m *Manager) {
		if namespace != "" {
			m.namespace = namespace
		}
	}
}

func WithHistogramBuckets(buckets []float64) Option {
	return func(m *Manager) {
		if len(buckets) > 0 {
			m.histogramBuckets = buckets
		}
	}
}

func WithRegistry(registry *prometheus.Registry) Option {
	return func(m *Manager) {
		if registry != nil {
			m.registry = registry
		}
	}
}

// NewManager registers every instrument on its own registry unless one is
// supplied.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "newbie",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(m)
	}

	auto := promauto.With(m.registry)
	m.summariesRendered = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "summaries_rendered_total",
		Help:      "Summaries rendered, by window.",
	}, []string{"window"})
	m.summaryBuild = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Name:      "summary_build_seconds",
		Help:      "Time to fetch and render a summary, by window.",
		Buckets:   m.histogramBuckets,
	}, []string{"window"})
	m.assistantIntents = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "assistant_intents_total",
		Help:      "Voice assistant intents dispatched, by intent.",
	}, []string{"intent"})
	m.eventsRecorded = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "events_recorded_total",
		Help:      "Caregiving events recorded, by type.",
	}, []string{"type"})
	m.storeQuery = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Name:      "store_query_seconds",
		Help:      "Event store query latency, by category.",
		Buckets:   m.histogramBuckets,
	}, []string{"category"})
	m.storeErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "store_errors_total",
		Help:      "Event store query failures, by category.",
	}, []string{"category"})
	return m
}

func (m *Manager) SummaryRendered(window string, elapsed time.Duration) {
	m.summariesRendered.WithLabelValues(window).Inc()
	m.summaryBuild.WithLabelValues(window).Observe(elapsed.Seconds())
}

func (m *Manager) AssistantIntent(intent string) {
	m.assistantIntents.WithLabelValues(intent).Inc()
}

func (m *Manager) EventRecorded(eventType string) {
	m.eventsRecorded.WithLabelValues(eventType).Inc()
}

func (m *Manager) StoreQuery(category string, elapsed time.Duration, err error) {
	m.storeQuery.WithLabelValues(category).Observe(elapsed.Seconds())
	if err != nil {
		m.storeErrors.WithLabelValues(category).Inc()
	}
}

func (m *Manager) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
