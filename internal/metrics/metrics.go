// Package metrics exposes Prometheus collectors for the placement workflow.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "placement"

// Metrics holds the workflow collectors and the registry they live in.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	transitions *prometheus.CounterVec
	bookings    *prometheus.CounterVec
	offers      *prometheus.CounterVec
	events      *prometheus.CounterVec
	lockWait    *prometheus.HistogramVec
}

// New creates a Metrics with its own registry, including Go runtime and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "application_transitions_total",
			Help:      "Application status change attempts by target status and result.",
		}, []string{"to", "result"}),
		bookings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "slot_bookings_total",
			Help:      "Slot booking and cancellation attempts by operation and result.",
		}, []string{"op", "result"}),
		offers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "offer_actions_total",
			Help:      "Offer lifecycle actions by action and result.",
		}, []string{"action", "result"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Workflow events by kind and delivery result.",
		}, []string{"kind", "result"}),
		lockWait: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "lock_wait_seconds",
			Help:      "Time spent waiting for entity locks.",
			Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 2, 5},
		}, []string{"kind"}),
	}
	m.registry.MustRegister(
		m.transitions,
		m.bookings,
		m.offers,
		m.events,
		m.lockWait,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry backing m.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Transition counts an application status change attempt.
func (m *Metrics) Transition(to, result string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(to, result).Inc()
}

// Booking counts a book or cancel attempt.
func (m *Metrics) Booking(op, result string) {
	if m == nil {
		return
	}
	m.bookings.WithLabelValues(op, result).Inc()
}

// Offer counts an offer lifecycle action.
func (m *Metrics) Offer(action, result string) {
	if m == nil {
		return
	}
	m.offers.WithLabelValues(action, result).Inc()
}

// Event counts a workflow event delivery outcome.
func (m *Metrics) Event(kind, result string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(kind, result).Inc()
}

// LockWait records how long acquiring the lock(s) for kind took.
func (m *Metrics) LockWait(kind string, d time.Duration) {
	if m == nil {
		return
	}
	m.lockWait.WithLabelValues(kind).Observe(d.Seconds())
}
