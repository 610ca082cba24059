// Package metrics provides Prometheus metrics for the review game service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Manager owns all Prometheus collectors for the service.
type Manager struct {
	namespace string
	registry  *prometheus.Registry

	// Game flow
	sessionsStarted      prometheus.Counter
	stepsSubmitted       prometheus.Counter
	stepsRejected        prometheus.Counter
	predictionsSubmitted prometheus.Counter

	// Deferred grading
	gradingsCompleted prometheus.Counter
	gradingRetries    prometheus.Counter
	gradingsFailed    prometheus.Counter
	gradingLatency    prometheus.Histogram

	// Live channel
	wsConnections     prometheus.Gauge
	wsMessagesSent    prometheus.Counter
	wsMessagesDropped prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// Option applies a configuration option to the Manager.
type Option func(*Manager)

// WithNamespace overrides the metric namespace.
func WithNamespace(ns string) Option {
	return func(m *Manager) {
		if ns != "" {
			m.namespace = ns
		}
	}
}

// WithRegistry overrides the Prometheus registry.
func WithRegistry(r *prometheus.Registry) Option {
	return func(m *Manager) {
		if r != nil {
			m.registry = r
		}
	}
}

// NewManager creates a metrics manager and registers all collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace: "fupan",
		registry:  prometheus.NewRegistry(),
	}

	for _, opt := range opts {
		opt(m)
	}

	factory := promauto.With(m.registry)

	m.sessionsStarted = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Name: "sessions_started_total",
		Help: "Number of review sessions started.",
	})
	m.stepsSubmitted = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Name: "steps_submitted_total",
		Help: "Number of step submissions accepted.",
	})
	m.stepsRejected = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Name: "steps_rejected_total",
		Help: "Number of step submissions rejected by validation.",
	})
	m.predictionsSubmitted = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Name: "predictions_submitted_total",
		Help: "Number of prediction bundles accepted.",
	})
	m.gradingsCompleted = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Name: "gradings_completed_total",
		Help: "Number of deferred gradings completed.",
	})
	m.gradingRetries = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Name: "grading_retries_total",
		Help: "Number of grading attempts rescheduled after failure.",
	})
	m.gradingsFailed = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Name: "gradings_failed_total",
		Help: "Number of sessions marked grading_failed.",
	})
	m.gradingLatency = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Name: "grading_duration_seconds",
		Help:    "Duration of one grading run.",
		Buckets: prometheus.DefBuckets,
	})
	m.wsConnections = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Name: "ws_connections",
		Help: "Currently open live-update connections.",
	})
	m.wsMessagesSent = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Name: "ws_messages_sent_total",
		Help: "Messages pushed over the live channel.",
	})
	m.wsMessagesDropped = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Name: "ws_messages_dropped_total",
		Help: "Messages dropped because a subscriber was slow or gone.",
	})
	m.httpRequests = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Name: "http_requests_total",
		Help: "HTTP requests by route and status.",
	}, []string{"route", "status"})
	m.httpRequestDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Name: "http_request_duration_seconds",
		Help:    "HTTP request latency by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})

	return m
}

// Global manager instance.
var globalManager = NewManager() //nolint:gochecknoglobals // singleton metrics manager

// Handler exposes the global registry for the /metrics route.
func Handler() http.Handler {
	return promhttp.HandlerFor(globalManager.registry, promhttp.HandlerOpts{})
}

// Recording helpers on the global manager.

func RecordSessionStarted()      { globalManager.sessionsStarted.Inc() }
func RecordStepSubmitted()       { globalManager.stepsSubmitted.Inc() }
func RecordStepRejected()        { globalManager.stepsRejected.Inc() }
func RecordPredictionSubmitted() { globalManager.predictionsSubmitted.Inc() }
func RecordGradingCompleted()    { globalManager.gradingsCompleted.Inc() }
func RecordGradingRetry()        { globalManager.gradingRetries.Inc() }
func RecordGradingFailed()       { globalManager.gradingsFailed.Inc() }

// ObserveGradingDuration records one grading run's duration in seconds.
func ObserveGradingDuration(seconds float64) { globalManager.gradingLatency.Observe(seconds) }

func IncWSConnections()       { globalManager.wsConnections.Inc() }
func DecWSConnections()       { globalManager.wsConnections.Dec() }
func RecordWSMessageSent()    { globalManager.wsMessagesSent.Inc() }
func RecordWSMessageDropped() { globalManager.wsMessagesDropped.Inc() }

// RecordHTTPRequest counts one request and observes its latency.
func RecordHTTPRequest(route, status string, seconds float64) {
	globalManager.httpRequests.WithLabelValues(route, status).Inc()
	globalManager.httpRequestDuration.WithLabelValues(route).Observe(seconds)
}
