package objectstore

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/cvsync/metric"
)

// storeMetrics holds Prometheus metrics for object store operations.
type storeMetrics struct {
	ops     *prometheus.CounterVec
	latency *prometheus.HistogramVec
	errors  *prometheus.CounterVec
	bytes   *prometheus.CounterVec
}

// newStoreMetrics creates and registers the metrics of one bucket. A nil
// registry disables metrics.
func newStoreMetrics(registry *metric.MetricsRegistry, bucket string) (*storeMetrics, error) {
	if registry == nil {
		return nil, nil
	}

	labels := prometheus.Labels{"bucket": bucket}
	m := &storeMetrics{
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "cvsync",
			Subsystem:   "objectstore",
			Name:        "operations_total",
			Help:        "Object store operations by kind",
			ConstLabels: labels,
		}, []string{"operation"}),

		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   "cvsync",
			Subsystem:   "objectstore",
			Name:        "operation_duration_seconds",
			Help:        "Object store operation duration in seconds",
			ConstLabels: labels,
			Buckets:     []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 2.0},
		}, []string{"operation"}),

		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "cvsync",
			Subsystem:   "objectstore",
			Name:        "operation_errors_total",
			Help:        "Object store operation errors by kind",
			ConstLabels: labels,
		}, []string{"operation"}),

		bytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "cvsync",
			Subsystem:   "objectstore",
			Name:        "bytes_total",
			Help:        "Bytes written and read",
			ConstLabels: labels,
		}, []string{"direction"}),
	}

	prefix := "objectstore_" + bucket
	if err := registry.RegisterCounterVec(prefix, "ops", m.ops); err != nil {
		return nil, err
	}
	if err := registry.RegisterHistogramVec(prefix, "latency", m.latency); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec(prefix, "errors", m.errors); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec(prefix, "bytes", m.bytes); err != nil {
		return nil, err
	}
	return m, nil
}

// observe records one finished operation. Safe on a nil receiver.
func (m *storeMetrics) observe(operation string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.ops.WithLabelValues(operation).Inc()
	m.latency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	if err != nil {
		m.errors.WithLabelValues(operation).Inc()
	}
}

func (m *storeMetrics) recordBytes(direction string, n int) {
	if m != nil {
		m.bytes.WithLabelValues(direction).Add(float64(n))
	}
}
