// Package metrics exposes Prometheus instruments for the meme bot.
//
// All recording methods are safe to call on a nil *Metrics so components can
// run without instrumentation in tests.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// ProviderBuckets covers latencies of the image source and renderer, 50ms to 30s.
var ProviderBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30}

// Metrics groups the collectors registered by New.
type Metrics struct {
	Registry *prometheus.Registry

	Transitions      *prometheus.CounterVec
	ProviderRequests *prometheus.CounterVec
	ProviderLatency  *prometheus.HistogramVec
	FavoritesOps     *prometheus.CounterVec
	BreakerState     *prometheus.GaugeVec
	ActiveSessions   prometheus.Gauge
}

// New creates the collectors and registers them, together with the Go and
// process collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "memebot_session_transitions_total",
				Help: "Conversation state transitions",
			},
			[]string{"from", "to"},
		),
		ProviderRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "memebot_provider_requests_total",
				Help: "Requests sent to external providers",
			},
			[]string{"provider", "op", "status"},
		),
		ProviderLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "memebot_provider_latency_seconds",
				Help:    "External provider latency",
				Buckets: ProviderBuckets,
			},
			[]string{"provider", "op"},
		),
		FavoritesOps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "memebot_favorites_operations_total",
				Help: "Favorites store operations",
			},
			[]string{"op", "status"},
		),
		BreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "memebot_breaker_state",
				Help: "Circuit breaker state (0 closed, 1 half-open, 2 open)",
			},
			[]string{"name"},
		),
		ActiveSessions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "memebot_active_sessions",
				Help: "Sessions with a dialog in progress",
			},
		),
	}
	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.Transitions,
		m.ProviderRequests,
		m.ProviderLatency,
		m.FavoritesOps,
		m.BreakerState,
		m.ActiveSessions,
	)
	return m
}

func statusLabel(err error) string {
	if err != nil {
		return "fail"
	}
	return "ok"
}

// ObserveTransition counts a state change. Self transitions are ignored.
func (m *Metrics) ObserveTransition(from, to string) {
	if m == nil || from == to {
		return
	}
	m.Transitions.WithLabelValues(from, to).Inc()
}

// ObserveProvider records one call to an external provider.
func (m *Metrics) ObserveProvider(provider, op string, took time.Duration, err error) {
	if m == nil {
		return
	}
	m.ProviderRequests.WithLabelValues(provider, op, statusLabel(err)).Inc()
	m.ProviderLatency.WithLabelValues(provider, op).Observe(took.Seconds())
}

// ObserveFavorites counts a favorites store operation.
func (m *Metrics) ObserveFavorites(op string, err error) {
	if m == nil {
		return
	}
	m.FavoritesOps.WithLabelValues(op, statusLabel(err)).Inc()
}

// SetBreakerState publishes a circuit breaker state value.
func (m *Metrics) SetBreakerState(name string, state int) {
	if m == nil {
		return
	}
	m.BreakerState.WithLabelValues(name).Set(float64(state))
}

// SetActiveSessions publishes the number of in-progress dialogs.
func (m *Metrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.ActiveSessions.Set(float64(n))
}
