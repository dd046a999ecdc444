// Package metrics exposes Prometheus instruments for graph operations.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the planner's collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	Operations *prometheus.CounterVec
	Duration   *prometheus.HistogramVec
	Items      prometheus.Gauge
}

// New creates the collectors and registers them with reg. A nil reg skips registration.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "planner",
			Name:      "operations_total",
			Help:      "Graph operations by name and outcome (changed, noop, error).",
		}, []string{"op", "outcome"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "planner",
			Name:      "operation_duration_seconds",
			Help:      "Wall time of graph operations.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		}, []string{"op"}),
		Items: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "planner",
			Name:      "items",
			Help:      "Items currently held in the store.",
		}),
	}
	if reg != nil {
		for _, c := range []prometheus.Collector{m.Operations, m.Duration, m.Items} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

// Observe records one finished operation
func (m *Metrics) Observe(op, outcome string, started time.Time, items int) {
	if m == nil {
		return
	}
	m.Operations.WithLabelValues(op, outcome).Inc()
	m.Duration.WithLabelValues(op).Observe(time.Since(started).Seconds())
	m.Items.Set(float64(items))
}
