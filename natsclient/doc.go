// Package natsclient manages the NATS connection used to publish
// reconciliation events and archive run reports.
//
// Client wraps one nats.Conn and its JetStream context. Connect retries with
// exponential backoff (pkg/retry); once connected the nats.go reconnect logic
// takes over and status changes are mirrored into the cvsync_nats_* metrics.
//
// EventPublisher is an events.Sink. Every event becomes a JSON envelope
// (events.Encode) published on <prefix>.<event type>, for example
// cv.events.term_updated. With durable publishing the messages go through
// JetStream and are captured by the stream built from EventStreamConfig.
//
//	client, err := natsclient.NewClient("nats://localhost:4222",
//	    natsclient.WithLogger(logger),
//	    natsclient.WithMetrics(registry),
//	)
//	if err != nil {
//	    return err
//	}
//	if err := client.Connect(ctx); err != nil {
//	    return err
//	}
//	defer client.Close(ctx)
//
//	if _, err := client.EnsureStream(ctx, natsclient.EventStreamConfig("CV_EVENTS", "", 0)); err != nil {
//	    return err
//	}
//	sink := natsclient.NewEventPublisher(client, "", true, logger)
//
// Publishing never fails a run: errors are logged and counted.
//
// TestClient starts a disposable NATS server with testcontainers for
// integration tests (build tag integration).
package natsclient
