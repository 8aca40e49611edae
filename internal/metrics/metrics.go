// Package metrics holds the Prometheus instruments for storage operations.
// StorageMetrics implements storage.Observer.
package metrics

import (
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

const namespace = "infrakit"

// StorageMetrics counts storage operations by outcome and records their
// latency.
type StorageMetrics struct {
	ops      *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewStorageMetrics creates the instruments and registers them with reg.
func NewStorageMetrics(reg prometheus.Registerer) (*StorageMetrics, error) {
	m := &StorageMetrics{
		ops: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "storage_operations_total",
				Help:      "Storage operations by operation and outcome.",
			}, []string{"op", "outcome"}),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "storage_operation_duration_seconds",
				Help:      "Storage operation latency.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"op"}),
	}

	for _, c := range []prometheus.Collector{m.ops, m.duration} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register storage metrics: %w", err)
		}
	}
	return m, nil
}

// ObserveOperation implements storage.Observer.
func (m *StorageMetrics) ObserveOperation(op, outcome string, elapsed time.Duration) {
	m.ops.WithLabelValues(op, outcome).Inc()
	m.duration.WithLabelValues(op).Observe(elapsed.Seconds())
}

// Dump writes everything g gathers in the Prometheus text exposition
// format.
func Dump(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}

	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("encode %s: %w", mf.GetName(), err)
		}
	}
	if c, ok := enc.(expfmt.Closer); ok {
		return c.Close()
	}
	return nil
}
