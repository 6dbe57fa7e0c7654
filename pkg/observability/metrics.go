package observability

import (
	"context"
	"net/http"

	"github.com/aretw0/parley/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "parley"

// Metrics holds the dialogue counters.
// Labels are bounded: node types, termination reasons and graph names, never node ids.
type Metrics struct {
	registry *prometheus.Registry

	NodeVisits   *prometheus.CounterVec
	Suspensions  *prometheus.CounterVec
	Terminations *prometheus.CounterVec
	Assignments  prometheus.Counter
	Sessions     *prometheus.CounterVec
}

// NewMetrics creates the collectors on a private registry, together with the
// Go runtime and process collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		NodeVisits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "node_visits_total",
			Help:      "Total number of node visits, by node type.",
		}, []string{"type"}),
		Suspensions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "suspensions_total",
			Help:      "Total number of times a run handed control back to its caller, by node type.",
		}, []string{"type"}),
		Terminations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "terminations_total",
			Help:      "Total number of finished runs, by reason.",
		}, []string{"reason"}),
		Assignments: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "variable_assignments_total",
			Help:      "Total number of variable assignments.",
		}),
		Sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_started_total",
			Help:      "Total number of sessions started, by graph.",
		}, []string{"graph"}),
	}

	m.registry.MustRegister(
		m.NodeVisits, m.Suspensions, m.Terminations, m.Assignments, m.Sessions,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the registry, e.g. to add collectors or gather in tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Hooks returns lifecycle hooks that record into the counters.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnNodeVisit: func(_ context.Context, e *domain.NodeEvent) {
			m.NodeVisits.WithLabelValues(string(e.NodeType)).Inc()
		},
		OnSuspend: func(_ context.Context, e *domain.NodeEvent) {
			m.Suspensions.WithLabelValues(string(e.NodeType)).Inc()
		},
		OnTerminate: func(_ context.Context, e *domain.TerminateEvent) {
			m.Terminations.WithLabelValues(string(e.Reason)).Inc()
		},
		OnVariableSet: func(context.Context, *domain.VariableEvent) {
			m.Assignments.Inc()
		},
	}
}

// SessionStarted counts a new session under its graph name.
// Its signature matches session.StartListener.
func (m *Metrics) SessionStarted(_ context.Context, sess *domain.Session) {
	m.Sessions.WithLabelValues(sess.Graph).Inc()
}
