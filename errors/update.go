package errors

import (
	"errors"
	"fmt"
)

// UpdateErrorKind names why a single term could not be reconciled.
type UpdateErrorKind string

const (
	// KindNonExistingTerm: the accession (or its remap target) is absent from the ontology.
	KindNonExistingTerm UpdateErrorKind = "non_existing_term"
	// KindOntologyDatabaseNotFound: a remap target lives in a namespace with no registered database.
	KindOntologyDatabaseNotFound UpdateErrorKind = "ontology_database_no_found"
	// KindImpossibleMerge: a referencing kind of the duplicate has no repoint rule.
	KindImpossibleMerge UpdateErrorKind = "cv_impossible_merge"
	// KindParentCycle: adding a parent edge would close a cycle in the term DAG.
	KindParentCycle UpdateErrorKind = "parent_cycle"
	// KindDuplicatedTerm: two local terms carry the same identity accession.
	KindDuplicatedTerm UpdateErrorKind = "duplicated_term"
	// KindOntologyAccess: the ontology source failed while serving a term.
	KindOntologyAccess UpdateErrorKind = "ontology_access"
	// KindFatal: unexpected failure inside a single term update.
	KindFatal UpdateErrorKind = "fatal"
)

// UpdateError is a per-term reconciliation failure. It never aborts a run;
// the orchestrator turns it into an error event at the unit boundary.
type UpdateError struct {
	Kind      UpdateErrorKind
	Accession string
	TermID    int64
	Message   string
	Err       error
}

// NewUpdateError creates an UpdateError without an underlying cause.
func NewUpdateError(kind UpdateErrorKind, accession, message string) *UpdateError {
	return &UpdateError{Kind: kind, Accession: accession, Message: message}
}

// Error implements the error interface
func (e *UpdateError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Accession == "" {
		return fmt.Sprintf("%s: %s", e.Kind, msg)
	}
	return fmt.Sprintf("%s [%s]: %s", e.Kind, e.Accession, msg)
}

// Unwrap returns the underlying cause
func (e *UpdateError) Unwrap() error {
	return e.Err
}

// WithTerm returns a copy bound to the given local term id.
func (e *UpdateError) WithTerm(id int64) *UpdateError {
	cp := *e
	cp.TermID = id
	return &cp
}

// KindOf extracts the update error kind of err, defaulting to KindFatal.
func KindOf(err error) UpdateErrorKind {
	var ue *UpdateError
	if errors.As(err, &ue) {
		return ue.Kind
	}
	return KindFatal
}

// AsUpdateError converts any error into an UpdateError for the given accession.
// Errors that already carry a kind keep it; everything else becomes KindFatal.
func AsUpdateError(err error, accession string, termID int64) *UpdateError {
	var ue *UpdateError
	if errors.As(err, &ue) {
		cp := *ue
		if cp.Accession == "" {
			cp.Accession = accession
		}
		if cp.TermID == 0 {
			cp.TermID = termID
		}
		return &cp
	}
	return &UpdateError{
		Kind:      KindFatal,
		Accession: accession,
		TermID:    termID,
		Message:   err.Error(),
		Err:       err,
	}
}
