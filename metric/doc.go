// Package metric provides Prometheus-based metrics collection and an HTTP
// server exposing them.
//
// The registry owns a private prometheus.Registry preloaded with the core
// reconciliation metrics (Metrics) and the Go/process collectors. Components
// such as the ontology caches register their own collectors through the
// MetricsRegistrar methods; a metric name can only be registered once per
// service.
//
// # Basic Usage
//
//	registry := metric.NewMetricsRegistry()
//	server := metric.NewServer(9090, "/metrics", registry)
//
//	go func() {
//	    if err := server.Start(); err != nil {
//	        logger.Error("Metrics server error", "error", err)
//	    }
//	}()
//
//	sink := events.MultiSink{metric.NewSink(registry), events.NewLogSink(logger)}
//
// The server exposes Prometheus-formatted metrics at the configured path and a
// health check at /health.
//
// # Core Metrics
//
//   - cvsync_terms_processed_total{ontology,outcome}
//   - cvsync_terms_changes_total{ontology,attribute,op}
//   - cvsync_errors_total{ontology,kind}
//   - cvsync_obsolete_terms_total{ontology,resolution}
//   - cvsync_obsolete_repointed_rows_total{ontology}
//   - cvsync_run_duration_seconds{ontology}
//   - cvsync_run_last_success_timestamp_seconds
//   - cvsync_nats_connected, cvsync_nats_reconnects_total
package metric
