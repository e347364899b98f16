// Package metrics exposes the counters the engine and the notifier update.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "obralink"

type Metrics struct {
	Transitions   *prometheus.CounterVec
	Notifications *prometheus.CounterVec
	Dropped       prometheus.Counter

	gatherer prometheus.Gatherer
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "Workflow transitions by item kind, action and outcome.",
		}, []string{"kind", "action", "outcome"}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notification deliveries by sink and outcome.",
		}, []string{"sink", "outcome"}),
		Dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_dropped_total",
			Help:      "Notifications dropped because the delivery queue was full.",
		}),
		gatherer: reg,
	}
	reg.MustRegister(m.Transitions, m.Notifications, m.Dropped)
	return m
}

// Transition records the outcome of one workflow action. A nil receiver is a
// no-op so callers do not need to guard optional metrics.
func (m *Metrics) Transition(kind, action, outcome string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(kind, action, outcome).Inc()
}

func (m *Metrics) Notification(sink, outcome string) {
	if m == nil {
		return
	}
	m.Notifications.WithLabelValues(sink, outcome).Inc()
}

func (m *Metrics) Drop() {
	if m == nil {
		return
	}
	m.Dropped.Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
