// Package errors provides standardized error handling patterns for cvsync.
//
// # Overview
//
// Two layers live here. The first is the three-class classification system
// inherited by every component: Transient (temporary, retryable), Invalid
// (bad input, non-retryable) and Fatal (unrecoverable, stop processing).
//
// The second is the per-term update error taxonomy used by the reconciliation
// engine. An UpdateError names the term that needs manual attention and the
// reason, and is always caught at the per-term unit boundary:
//
//   - non_existing_term: the accession or its remap target is unknown to the ontology
//   - ontology_database_no_found: remap target namespace has no registered database
//   - cv_impossible_merge: a referencing entity kind has no repoint rule
//   - parent_cycle: a parent edge would close a cycle
//   - duplicated_term: two local terms share one accession
//   - fatal: anything unexpected while updating a single term
//
// Only store connectivity failures (wrapped transient around ErrStorageUnavailable
// or ErrNoConnection) escape a unit and abort the run.
//
// # Error Wrapping Pattern
//
// All wrapping follows the format:
//
//	"component.method: action failed: %w"
//
//	errors.WrapTransient(err, "GormStore", "Atomic", "begin transaction")
//	errors.WrapInvalid(err, "Config", "Validate", "ontology id")
//	errors.WrapFatal(err, "Updater", "Run", "list terms")
//
// Use errors.KindOf to recover the update kind from any wrapped error.
package errors
