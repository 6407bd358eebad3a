// Package events defines the event stream produced by a reconciliation run
// and the sinks that consume it.
//
// The updater never writes reports itself. Every decision that a curator or an
// auditor may need to see is emitted as an Event: term changes, per-term update
// errors, obsolete remaps (with the number of repointed rows for merges),
// obsolete terms that could not be remapped, and duplicate terms.
//
// Sinks compose:
//
//	rec := events.NewRecorder()
//	sink := events.MultiSink{rec, events.NewLogSink(logger), metricsSink}
//
// Events raised inside a per-term transactional unit go to a Buffer first and
// are flushed only once the unit commits, so a rolled back unit leaves no
// TermUpdated or ObsoleteRemapped behind.
package events
