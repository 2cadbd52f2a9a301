package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OutboxMetrics tracks the relay of outbox rows to Pub/Sub.
type OutboxMetrics struct {
	relayed        *prometheus.CounterVec
	publishLatency prometheus.Histogram
	replayed       prometheus.Counter
}

// NewOutboxMetrics registers the relay metrics. A nil registerer yields a
// no-op recorder.
func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	m := &OutboxMetrics{
		relayed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "outbox_events_relayed_total",
			Help: "Outbox rows handled by the publisher, by event type and outcome.",
		}, []string{"event_type", "outcome"}),
		publishLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "outbox_publish_latency_seconds",
			Help:    "Time from outbox commit to Pub/Sub acknowledgement.",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 15, 60, 300},
		}),
		replayed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "outbox_dlq_replayed_total",
			Help: "Dead-lettered rows put back on the outbox.",
		}),
	}
	reg.MustRegister(m.relayed, m.publishLatency, m.replayed)
	return m
}

// Relayed counts one row. outcome is published, retry or dead_lettered.
func (m *OutboxMetrics) Relayed(eventType, outcome string) {
	if m == nil || m.relayed == nil {
		return
	}
	m.relayed.WithLabelValues(normalizeLabel(eventType), normalizeLabel(outcome)).Inc()
}

// Published records the commit to acknowledgement lag of a row.
func (m *OutboxMetrics) Published(createdAt, ackedAt time.Time) {
	if m == nil || m.publishLatency == nil || createdAt.IsZero() {
		return
	}
	lag := ackedAt.Sub(createdAt)
	if lag < 0 {
		lag = 0
	}
	m.publishLatency.Observe(lag.Seconds())
}

func (m *OutboxMetrics) Replayed(n int) {
	if m == nil || m.replayed == nil || n <= 0 {
		return
	}
	m.replayed.Add(float64(n))
}
