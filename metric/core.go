package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains the reconciliation metrics
type Metrics struct {
	TermsProcessed *prometheus.CounterVec
	Changes        *prometheus.CounterVec
	UpdateErrors   *prometheus.CounterVec
	ObsoleteTerms  *prometheus.CounterVec
	RepointedRows  *prometheus.CounterVec
	RunDuration    *prometheus.HistogramVec
	LastRunSuccess prometheus.Gauge

	// NATS metrics
	NATSConnected  prometheus.Gauge
	NATSReconnects prometheus.Counter
}

// NewMetrics creates a new Metrics instance
func NewMetrics() *Metrics {
	return &Metrics{
		TermsProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "cvsync",
				Subsystem: "terms",
				Name:      "processed_total",
				Help:      "Terms visited by reconciliation, by outcome (created, updated, failed)",
			},
			[]string{"ontology", "outcome"},
		),

		Changes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "cvsync",
				Subsystem: "terms",
				Name:      "changes_total",
				Help:      "Attribute rows created, updated or deleted",
			},
			[]string{"ontology", "attribute", "op"},
		),

		UpdateErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "cvsync",
				Subsystem: "errors",
				Name:      "total",
				Help:      "Per-term update errors by kind",
			},
			[]string{"ontology", "kind"},
		),

		ObsoleteTerms: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "cvsync",
				Subsystem: "obsolete",
				Name:      "terms_total",
				Help:      "Obsolete terms by resolution (remapped, merged, impossible)",
			},
			[]string{"ontology", "resolution"},
		),

		RepointedRows: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "cvsync",
				Subsystem: "obsolete",
				Name:      "repointed_rows_total",
				Help:      "Foreign references repointed by term merges",
			},
			[]string{"ontology"},
		),

		RunDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "cvsync",
				Subsystem: "run",
				Name:      "duration_seconds",
				Help:      "Duration of one ontology reconciliation",
				Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
			},
			[]string{"ontology"},
		),

		LastRunSuccess: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "cvsync",
				Subsystem: "run",
				Name:      "last_success_timestamp_seconds",
				Help:      "Unix time of the last run that completed",
			},
		),

		NATSConnected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "cvsync",
				Subsystem: "nats",
				Name:      "connected",
				Help:      "NATS connection status (0=disconnected, 1=connected)",
			},
		),

		NATSReconnects: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "cvsync",
				Subsystem: "nats",
				Name:      "reconnects_total",
				Help:      "Total number of NATS reconnections",
			},
		),
	}
}

func (c *Metrics) mustRegister(reg *prometheus.Registry) {
	reg.MustRegister(
		c.TermsProcessed,
		c.Changes,
		c.UpdateErrors,
		c.ObsoleteTerms,
		c.RepointedRows,
		c.RunDuration,
		c.LastRunSuccess,
		c.NATSConnected,
		c.NATSReconnects,
	)
}

// RecordTerm increments the processed counter for one term outcome
func (c *Metrics) RecordTerm(ontology, outcome string) {
	c.TermsProcessed.WithLabelValues(ontology, outcome).Inc()
}

// RecordChanges adds n attribute changes
func (c *Metrics) RecordChanges(ontology, attribute, op string, n int) {
	if n > 0 {
		c.Changes.WithLabelValues(ontology, attribute, op).Add(float64(n))
	}
}

// RecordError increments the update error counter
func (c *Metrics) RecordError(ontology, kind string) {
	c.UpdateErrors.WithLabelValues(ontology, kind).Inc()
}

// RecordObsolete records one obsolete term resolution and its repointed rows
func (c *Metrics) RecordObsolete(ontology, resolution string, repointed int64) {
	c.ObsoleteTerms.WithLabelValues(ontology, resolution).Inc()
	if repointed > 0 {
		c.RepointedRows.WithLabelValues(ontology).Add(float64(repointed))
	}
}

// RecordRunDuration observes one ontology run
func (c *Metrics) RecordRunDuration(ontology string, d time.Duration) {
	c.RunDuration.WithLabelValues(ontology).Observe(d.Seconds())
}

// RecordRunSuccess stamps the last completed run
func (c *Metrics) RecordRunSuccess(at time.Time) {
	c.LastRunSuccess.Set(float64(at.Unix()))
}

// RecordNATSStatus updates NATS connection status
func (c *Metrics) RecordNATSStatus(connected bool) {
	value := 0.0
	if connected {
		value = 1.0
	}
	c.NATSConnected.Set(value)
}

// RecordNATSReconnect increments reconnection counter
func (c *Metrics) RecordNATSReconnect() {
	c.NATSReconnects.Inc()
}
