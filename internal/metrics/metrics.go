// Package metrics exposes Prometheus collectors for the HTTP server, the
// derived view cache and the reminder dispatcher.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry so tests can create as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	viewRecompute *prometheus.CounterVec
	notifications *prometheus.GaugeVec
	reminders     *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "utility_tracker_http_requests_total",
			Help: "HTTP requests by route pattern, method and status code.",
		}, []string{"route", "method", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "utility_tracker_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		viewRecompute: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "utility_tracker_view_lookups_total",
			Help: "Derived view lookups by result (hit or recompute).",
		}, []string{"result"}),
		notifications: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "utility_tracker_notifications",
			Help: "Notifications in the most recent reminder sweep by type.",
		}, []string{"type"}),
		reminders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "utility_tracker_reminders_total",
			Help: "Reminder publish attempts by outcome.",
		}, []string{"outcome"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.httpDuration,
		m.viewRecompute,
		m.notifications,
		m.reminders,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveRequest records one finished HTTP request.
func (m *Metrics) ObserveRequest(route, method string, code int, elapsed time.Duration) {
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
	m.httpDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

// ViewHit counts a derived view served from cache.
func (m *Metrics) ViewHit() {
	m.viewRecompute.WithLabelValues("hit").Inc()
}

// ViewRecomputed counts a derived view rebuilt from a fresh snapshot.
func (m *Metrics) ViewRecomputed() {
	m.viewRecompute.WithLabelValues("recompute").Inc()
}

// SetNotificationCounts records the per-type totals of a reminder sweep.
func (m *Metrics) SetNotificationCounts(counts map[string]int) {
	m.notifications.Reset()
	for typ, n := range counts {
		m.notifications.WithLabelValues(typ).Set(float64(n))
	}
}

// Reminder counts a reminder publish outcome: sent, skipped or failed.
func (m *Metrics) Reminder(outcome string) {
	m.reminders.WithLabelValues(outcome).Inc()
}
