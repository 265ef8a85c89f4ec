// Package metrics exposes Prometheus metrics for sessions, commands and the
// HTTP surface. It implements core.EventSink so it can sit on the event fan-out.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pkt.systems/nextvm/schema"
)

const namespace = "nextvm"

// Metrics holds all Prometheus collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Session metrics
	SessionsActive prometheus.Gauge
	SessionEvents  *prometheus.CounterVec

	// Output metrics
	OutputEntries *prometheus.CounterVec
	OutputResets  prometheus.Counter

	// Execute endpoint metrics
	ExecuteTotal *prometheus.CounterVec

	// Stream metrics
	StreamClients *prometheus.GaugeVec
}

// New creates the collectors and registers them with a fresh registry,
// together with the Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"method", "path"},
		),
		SessionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "sessions_active",
				Help:      "Number of open terminal sessions",
			},
		),
		SessionEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "session_events_total",
				Help:      "Total number of session events by type",
			},
			[]string{"type"},
		),
		OutputEntries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "output_entries_total",
				Help:      "Total number of output entries appended by kind",
			},
			[]string{"kind", "error_kind"},
		),
		OutputResets: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "output_resets_total",
				Help:      "Total number of cleared session logs",
			},
		),
		ExecuteTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "execute_requests_total",
				Help:      "Total number of execution endpoint requests by outcome",
			},
			[]string{"outcome"},
		),
		StreamClients: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "stream_clients",
				Help:      "Number of connected live stream clients",
			},
			[]string{"transport"},
		),
	}
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the scrape handler for the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveRequest records a completed HTTP request.
func (m *Metrics) ObserveRequest(method, path string, status int, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// ObserveExecute records an execution endpoint outcome ("ok", "error",
// "rejected" or "limited").
func (m *Metrics) ObserveExecute(outcome string) {
	m.ExecuteTotal.WithLabelValues(outcome).Inc()
}

// StreamConnected tracks a live stream client for transport.
func (m *Metrics) StreamConnected(transport string) {
	m.StreamClients.WithLabelValues(transport).Inc()
}

// StreamDisconnected releases a live stream client for transport.
func (m *Metrics) StreamDisconnected(transport string) {
	m.StreamClients.WithLabelValues(transport).Dec()
}

// SetSessions sets the open session gauge.
func (m *Metrics) SetSessions(n int) {
	m.SessionsActive.Set(float64(n))
}

// OnOutput implements core.EventSink.
func (m *Metrics) OnOutput(event schema.OutputEvent) {
	if event.Reset {
		m.OutputResets.Inc()
	}
	for _, entry := range event.Entries {
		m.OutputEntries.WithLabelValues(string(entry.Kind), string(entry.ErrorKind)).Inc()
	}
}

// OnSessionEvent implements core.EventSink.
func (m *Metrics) OnSessionEvent(event schema.SessionEvent) {
	m.SessionEvents.WithLabelValues(string(event.Type)).Inc()
	switch event.Type {
	case schema.SessionEventCreated:
		m.SessionsActive.Inc()
	case schema.SessionEventClosed:
		m.SessionsActive.Dec()
	}
}
