// Package health tracks the health of the term store, the NATS connection
// and the last reconciliation run of each ontology.
//
// A Status is healthy, degraded or unhealthy. Aggregate folds several
// statuses into one: any unhealthy sub-status makes the aggregate unhealthy,
// otherwise any degraded one makes it degraded.
//
//	monitor := health.NewMonitor()
//	monitor.Update("store", health.FromError("store", db.Ping(ctx), "reachable"))
//
//	// Record run outcomes from the event stream.
//	sink := events.MultiSink{health.NewRunTracker(monitor), other}
//
//	status := monitor.AggregateHealth("cvupdate")
//
// Error messages are sanitized before they are stored: URLs, file paths, IP
// addresses, ports and credentials are replaced with placeholders.
package health
