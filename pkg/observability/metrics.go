package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the editor collectors.
// A nil *Metrics is valid and records nothing, so components never need to check.
type Metrics struct {
	EventsApplied    *prometheus.CounterVec
	EventsDropped    *prometheus.CounterVec
	MutationsSent    *prometheus.CounterVec
	MutationsFailed  *prometheus.CounterVec
	Reconnects       *prometheus.CounterVec
	Resets           prometheus.Counter
	LogEntries       prometheus.Counter
	GraphNodes       prometheus.Gauge
	GraphEdges       prometheus.Gauge
	MutationLatency  *prometheus.HistogramVec
	GesturesRejected *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on reg (if not nil).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		EventsApplied: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tapestry_events_applied_total",
				Help: "Push events applied to the graph store",
			},
			[]string{"kind", "entity"},
		),
		EventsDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tapestry_events_dropped_total",
				Help: "Push events absorbed as no-ops (protocol inconsistencies)",
			},
			[]string{"kind", "reason"},
		),
		MutationsSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tapestry_mutations_sent_total",
				Help: "Mutation requests sent to the backend",
			},
			[]string{"kind"},
		),
		MutationsFailed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tapestry_mutations_failed_total",
				Help: "Mutation requests that failed in transport or were refused",
			},
			[]string{"kind"},
		),
		Reconnects: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tapestry_reconnects_total",
				Help: "Push channel reconnection attempts",
			},
			[]string{"channel", "result"},
		),
		Resets: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tapestry_store_resets_total",
			Help: "Full local resets caused by connection loss",
		}),
		LogEntries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tapestry_log_entries_total",
			Help: "Entries appended to the log panel",
		}),
		GraphNodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tapestry_graph_nodes",
			Help: "Blocks currently in the graph store",
		}),
		GraphEdges: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tapestry_graph_edges",
			Help: "Connections currently in the graph store",
		}),
		MutationLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tapestry_mutation_duration_seconds",
				Help:    "Round trip of mutation requests",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
		GesturesRejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tapestry_gestures_rejected_total",
				Help: "User gestures silently rejected by the interaction controller",
			},
			[]string{"reason"},
		),
	}
	if reg != nil {
		reg.MustRegister(
			m.EventsApplied, m.EventsDropped, m.MutationsSent, m.MutationsFailed,
			m.Reconnects, m.Resets, m.LogEntries, m.GraphNodes, m.GraphEdges,
			m.MutationLatency, m.GesturesRejected,
		)
	}
	return m
}

func (m *Metrics) Applied(kind, entity string) {
	if m == nil {
		return
	}
	m.EventsApplied.WithLabelValues(kind, entity).Inc()
}

func (m *Metrics) Dropped(kind, reason string) {
	if m == nil {
		return
	}
	m.EventsDropped.WithLabelValues(kind, reason).Inc()
}

func (m *Metrics) Sent(kind string) {
	if m == nil {
		return
	}
	m.MutationsSent.WithLabelValues(kind).Inc()
}

func (m *Metrics) Failed(kind string) {
	if m == nil {
		return
	}
	m.MutationsFailed.WithLabelValues(kind).Inc()
}

func (m *Metrics) ObserveMutation(kind string, seconds float64) {
	if m == nil {
		return
	}
	m.MutationLatency.WithLabelValues(kind).Observe(seconds)
}

func (m *Metrics) Reconnect(channel, result string) {
	if m == nil {
		return
	}
	m.Reconnects.WithLabelValues(channel, result).Inc()
}

func (m *Metrics) Reset() {
	if m == nil {
		return
	}
	m.Resets.Inc()
}

func (m *Metrics) Logged(n int) {
	if m == nil {
		return
	}
	m.LogEntries.Add(float64(n))
}

func (m *Metrics) GraphSize(nodes, edges int) {
	if m == nil {
		return
	}
	m.GraphNodes.Set(float64(nodes))
	m.GraphEdges.Set(float64(edges))
}

func (m *Metrics) Rejected(reason string) {
	if m == nil {
		return
	}
	m.GesturesRejected.WithLabelValues(reason).Inc()
}
