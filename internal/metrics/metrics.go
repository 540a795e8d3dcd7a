// Package metrics exposes Prometheus collectors for the session layer.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "keepsession"

// Metrics groups every collector the client updates.
type Metrics struct {
	requestDuration *prometheus.HistogramVec
	refreshes       *prometheus.CounterVec
	retries         *prometheus.CounterVec
	transitions     *prometheus.CounterVec
	healthAverage   prometheus.Gauge
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "api_request_duration_seconds",
			Help:      "Latency of auth API calls.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25, 45},
		}, []string{"op", "outcome"}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_refreshes_total",
			Help:      "Token refresh network calls by outcome.",
		}, []string{"outcome"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retries_total",
			Help:      "Retry attempts scheduled by the retry executor.",
		}, []string{"op"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_transitions_total",
			Help:      "Session state transitions by target status.",
		}, []string{"status"}),
		healthAverage: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "server_avg_response_ms",
			Help:      "Moving average of API response time in milliseconds.",
		}),
	}

	reg.MustRegister(m.requestDuration, m.refreshes, m.retries, m.transitions, m.healthAverage)
	return m
}

// ObserveRequest records one API call.
func (m *Metrics) ObserveRequest(op, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.requestDuration.WithLabelValues(op, outcome).Observe(d.Seconds())
}

// Refresh counts a refresh network call.
func (m *Metrics) Refresh(outcome string) {
	if m == nil {
		return
	}
	m.refreshes.WithLabelValues(outcome).Inc()
}

// Retry counts a scheduled retry.
func (m *Metrics) Retry(op string) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(op).Inc()
}

// Transition counts a session state change.
func (m *Metrics) Transition(status string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(status).Inc()
}

// SetHealthAverage publishes the health monitor's running average.
func (m *Metrics) SetHealthAverage(ms float64) {
	if m == nil {
		return
	}
	m.healthAverage.Set(ms)
}

// Handler serves the collectors registered on g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
