package events

import (
	"time"

	"github.com/c360/cvsync/cv"
	"github.com/c360/cvsync/errors"
)

// Type identifies an event kind. It is also the last token of the NATS subject
// events are published on.
type Type string

// Event types emitted during a reconciliation run.
const (
	TypeRunStarted                Type = "run_started"
	TypeRunFinished               Type = "run_finished"
	TypeTermUpdated               Type = "term_updated"
	TypeUpdateError               Type = "update_error"
	TypeObsoleteRemapped          Type = "obsolete_remapped"
	TypeObsoleteImpossibleToRemap Type = "obsolete_impossible_to_remap"
	TypeDuplicateTerms            Type = "duplicate_terms"
)

// Event is implemented by every value emitted to a Sink.
type Event interface {
	EventType() Type
}

// RunStarted opens the event stream of one ontology run.
type RunStarted struct {
	RunID    string    `json:"run_id"`
	Ontology string    `json:"ontology"`
	At       time.Time `json:"at"`
}

// EventType implements Event.
func (RunStarted) EventType() Type { return TypeRunStarted }

// RunFinished closes the event stream of one ontology run.
type RunFinished struct {
	RunID     string        `json:"run_id"`
	Ontology  string        `json:"ontology"`
	At        time.Time     `json:"at"`
	Duration  time.Duration `json:"duration"`
	Processed int           `json:"processed"`
	Aborted   bool          `json:"aborted,omitempty"`
}

// EventType implements Event.
func (RunFinished) EventType() Type { return TypeRunFinished }

// TermUpdated reports the changes applied to one term.
//
// Created is set when the term itself was inserted; Updated when any scalar
// field or sub-collection changed.
type TermUpdated struct {
	Ontology  string    `json:"ontology"`
	Accession string    `json:"accession"`
	TermID    cv.TermID `json:"term_id"`
	Created   bool      `json:"created,omitempty"`
	Updated   bool      `json:"updated,omitempty"`

	CreatedXrefs       []cv.Xref       `json:"created_xrefs,omitempty"`
	UpdatedXrefs       []cv.Xref       `json:"updated_xrefs,omitempty"`
	DeletedXrefs       []cv.Xref       `json:"deleted_xrefs,omitempty"`
	CreatedAliases     []cv.Alias      `json:"created_aliases,omitempty"`
	DeletedAliases     []cv.Alias      `json:"deleted_aliases,omitempty"`
	CreatedAnnotations []cv.Annotation `json:"created_annotations,omitempty"`
	UpdatedAnnotations []cv.Annotation `json:"updated_annotations,omitempty"`
	DeletedAnnotations []cv.Annotation `json:"deleted_annotations,omitempty"`
	CreatedParents     []string        `json:"created_parents,omitempty"`
	DeletedParents     []string        `json:"deleted_parents,omitempty"`
}

// EventType implements Event.
func (TermUpdated) EventType() Type { return TypeTermUpdated }

// HasChanges reports whether anything was written for the term.
func (e TermUpdated) HasChanges() bool {
	return e.Created || e.Updated || e.ChangeCount() > 0
}

// ChangeCount returns the number of sub-collection rows touched.
func (e TermUpdated) ChangeCount() int {
	return len(e.CreatedXrefs) + len(e.UpdatedXrefs) + len(e.DeletedXrefs) +
		len(e.CreatedAliases) + len(e.DeletedAliases) +
		len(e.CreatedAnnotations) + len(e.UpdatedAnnotations) + len(e.DeletedAnnotations) +
		len(e.CreatedParents) + len(e.DeletedParents)
}

// UpdateError names a term that needs manual attention.
type UpdateError struct {
	Ontology  string                 `json:"ontology"`
	Kind      errors.UpdateErrorKind `json:"kind"`
	Accession string                 `json:"accession,omitempty"`
	TermID    cv.TermID              `json:"term_id,omitempty"`
	Message   string                 `json:"message"`
}

// EventType implements Event.
func (UpdateError) EventType() Type { return TypeUpdateError }

// FromError builds an UpdateError event from any per-term failure.
func FromError(ontology string, err error, accession string, termID cv.TermID) UpdateError {
	ue := errors.AsUpdateError(err, accession, int64(termID))
	return UpdateError{
		Ontology:  ontology,
		Kind:      ue.Kind,
		Accession: ue.Accession,
		TermID:    cv.TermID(ue.TermID),
		Message:   ue.Error(),
	}
}

// ObsoleteRemapped reports an obsolete term moved onto its replacement.
//
// Merged is false when the term was repointed in place to the new accession;
// Affected is then zero. A merge carries the number of repointed reference rows.
type ObsoleteRemapped struct {
	Ontology      string    `json:"ontology"`
	FromAccession string    `json:"from_accession"`
	ToAccession   string    `json:"to_accession"`
	FromTermID    cv.TermID `json:"from_term_id"`
	ToTermID      cv.TermID `json:"to_term_id"`
	Merged        bool      `json:"merged"`
	Deleted       bool      `json:"deleted,omitempty"`
	Affected      int64     `json:"affected"`
}

// EventType implements Event.
func (ObsoleteRemapped) EventType() Type { return TypeObsoleteRemapped }

// ObsoleteImpossibleToRemap reports an obsolete term left in place for curators.
type ObsoleteImpossibleToRemap struct {
	Ontology   string    `json:"ontology"`
	Accession  string    `json:"accession"`
	TermID     cv.TermID `json:"term_id"`
	Candidates []string  `json:"candidates,omitempty"`
	Reason     string    `json:"reason,omitempty"`
}

// EventType implements Event.
func (ObsoleteImpossibleToRemap) EventType() Type { return TypeObsoleteImpossibleToRemap }

// DuplicateTerms reports several local terms bound to one accession.
type DuplicateTerms struct {
	Ontology  string      `json:"ontology"`
	Accession string      `json:"accession"`
	TermIDs   []cv.TermID `json:"term_ids"`
}

// EventType implements Event.
func (DuplicateTerms) EventType() Type { return TypeDuplicateTerms }
