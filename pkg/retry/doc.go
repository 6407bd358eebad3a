// Package retry provides exponential backoff for start-up dependencies.
//
// cvupdate retries opening the term store and the initial NATS connection.
// Per-term updates are never retried: a failed term becomes an error event
// and the run moves on.
//
// # Policies
//
//   - StoreOpen(): 10 attempts, 50ms-1s, transient errors only
//   - NATSConnect(): 30 attempts, 200ms-10s
//   - DefaultConfig(): 3 attempts, 100ms-5s
//
// Configured values are layered on a policy with Overlay:
//
//	policy := retry.StoreOpen().Overlay(cfg.MaxAttempts, cfg.InitialDelay, cfg.MaxDelay)
//	policy.OnRetry = func(attempt int, err error, wait time.Duration) {
//	    logger.Warn("Term store unreachable", "attempt", attempt, "retry_in", wait, "error", err)
//	}
//	db, err := retry.DoWithResult(ctx, policy, func() (*gormstore.Store, error) {
//	    return gormstore.Open(ctx, driver, dsn, logger)
//	})
//
// Wrapping an error with NonRetryable stops the loop at once. Do and
// DoWithResult return as soon as ctx is done, including during a wait.
package retry
