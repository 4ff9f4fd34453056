// Package metrics exports lifecycle counters to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"tombstone/internal/domain/lifecycle"
)

const namespace = "tombstone"

var _ lifecycle.Metrics = (*Collector)(nil)

// Collector implements lifecycle.Metrics.
type Collector struct {
	// transitions counts records moved by committed operations.
	// Labels: type, operation
	transitions *prometheus.CounterVec

	// cascadeSize is the number of records touched per committed operation.
	// Labels: operation
	cascadeSize *prometheus.HistogramVec

	// rollbacks counts operations that were rolled back.
	// Labels: operation
	rollbacks *prometheus.CounterVec
}

// New registers the collectors on reg. A nil reg uses the default registry.
func New(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Collector{
		transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "Records transitioned by committed lifecycle operations",
		}, []string{"type", "operation"}),
		cascadeSize: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cascade_size",
			Help:      "Records touched per committed lifecycle operation",
			Buckets:   []float64{1, 2, 5, 10, 25, 50, 100, 250, 1000},
		}, []string{"operation"}),
		rollbacks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rollbacks_total",
			Help:      "Lifecycle operations rolled back",
		}, []string{"operation"}),
	}
}

// ObserveTransition implements lifecycle.Metrics.
func (c *Collector) ObserveTransition(typeName string, op lifecycle.Operation) {
	c.transitions.WithLabelValues(typeName, string(op)).Inc()
}

// ObserveCascade implements lifecycle.Metrics.
func (c *Collector) ObserveCascade(op lifecycle.Operation, size int) {
	c.cascadeSize.WithLabelValues(string(op)).Observe(float64(size))
}

// ObserveRollback implements lifecycle.Metrics.
func (c *Collector) ObserveRollback(op lifecycle.Operation) {
	c.rollbacks.WithLabelValues(string(op)).Inc()
}
