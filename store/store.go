// Package store defines the persistence contract of the controlled vocabulary.
//
// Implementations live in sub-packages: memstore (arena-backed, in memory) and
// gormstore (relational, sqlite or postgres).
package store

import (
	"context"
	stderrors "errors"

	"github.com/c360/cvsync/cv"
	"github.com/c360/cvsync/errors"
)

// ErrTermNotFound is returned when a term id or label has no row.
var ErrTermNotFound = stderrors.New("term not found")

// Tx is the set of operations available inside and outside a transactional unit.
//
// Sub-collection operations are row level: removing an xref that is not
// present is a no-op, adding one that already exists adds a duplicate row.
type Tx interface {
	TermByID(ctx context.Context, id cv.TermID) (*cv.Term, error)
	// TermsByIdentity returns the terms whose identity xref for database has
	// the given primary id, ordered by id.
	TermsByIdentity(ctx context.Context, database, accession string) ([]*cv.Term, error)
	TermByShortLabel(ctx context.Context, label string) (*cv.Term, error)
	// TermsForDatabase returns every term with an identity xref for database, ordered by id.
	TermsForDatabase(ctx context.Context, database string) ([]*cv.Term, error)

	// CreateTerm persists the term with its xrefs, aliases, annotations and
	// parent edges and returns the new id.
	CreateTerm(ctx context.Context, term *cv.Term) (cv.TermID, error)
	// UpdateTerm writes the scalar fields of the term.
	UpdateTerm(ctx context.Context, term *cv.Term) error
	// DeleteTerm removes the term, its sub-collections and every edge touching it.
	DeleteTerm(ctx context.Context, id cv.TermID) error

	AddXref(ctx context.Context, id cv.TermID, x cv.Xref) error
	UpdateXref(ctx context.Context, id cv.TermID, old, updated cv.Xref) error
	RemoveXref(ctx context.Context, id cv.TermID, x cv.Xref) error
	AddAlias(ctx context.Context, id cv.TermID, a cv.Alias) error
	RemoveAlias(ctx context.Context, id cv.TermID, a cv.Alias) error
	AddAnnotation(ctx context.Context, id cv.TermID, a cv.Annotation) error
	UpdateAnnotation(ctx context.Context, id cv.TermID, old, updated cv.Annotation) error
	RemoveAnnotation(ctx context.Context, id cv.TermID, a cv.Annotation) error

	AddParent(ctx context.Context, child, parent cv.TermID) error
	RemoveParent(ctx context.Context, child, parent cv.TermID) error
	Children(ctx context.Context, id cv.TermID) ([]cv.TermID, error)
	// Ancestors returns the transitive parents of a term, ordered by id.
	Ancestors(ctx context.Context, id cv.TermID) ([]cv.TermID, error)

	AddReference(ctx context.Context, ref cv.Reference) error
	// ReferencingKinds returns the kinds with at least one row pointing at the term.
	ReferencingKinds(ctx context.Context, id cv.TermID) ([]cv.RefKind, error)
	// RepointReferences moves every reference of kind from one term to another
	// and returns the number of rows changed.
	RepointReferences(ctx context.Context, kind cv.RefKind, from, to cv.TermID) (int64, error)
	CountReferences(ctx context.Context, id cv.TermID) (int64, error)

	// DuplicateIdentities maps accessions bound to more than one term of
	// database to those term ids.
	DuplicateIdentities(ctx context.Context, database string) (map[string][]cv.TermID, error)
}

// TermStore is a Tx that can also open transactional units.
type TermStore interface {
	Tx
	// Atomic runs fn in one transactional unit. Every write made through tx is
	// rolled back when fn returns an error.
	Atomic(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// IsConnectivity reports whether err is a store connection failure. These are
// the only errors allowed to abort a reconciliation run.
func IsConnectivity(err error) bool {
	if err == nil {
		return false
	}
	return stderrors.Is(err, errors.ErrStorageUnavailable) ||
		stderrors.Is(err, errors.ErrNoConnection) ||
		stderrors.Is(err, errors.ErrConnectionLost) ||
		stderrors.Is(err, errors.ErrConnectionTimeout) ||
		stderrors.Is(err, context.Canceled) ||
		stderrors.Is(err, context.DeadlineExceeded)
}

// IsNotFound reports whether err means a missing term.
func IsNotFound(err error) bool {
	return stderrors.Is(err, ErrTermNotFound)
}
