// Package objectstore archives run reports in a NATS JetStream object store.
//
// Store adapts a bucket to storage.Store and records per-operation metrics.
// ReportArchive writes each report.Report as <prefix><id>.json on any
// storage.Store, so the CLI can keep the history of runs next to the event
// stream:
//
//	st, err := objectstore.NewStore(ctx, client, objectstore.DefaultConfig(), registry)
//	if err != nil {
//	    return err
//	}
//	archive, _ := objectstore.NewReportArchive(st, "reports/", logger)
//	key, err := archive.Save(ctx, rep)
package objectstore
