package reconcile

import (
	"context"
	"slices"

	"github.com/c360/cvsync/cv"
	"github.com/c360/cvsync/errors"
	"github.com/c360/cvsync/events"
	"github.com/c360/cvsync/ontology"
	"github.com/c360/cvsync/store"
	"github.com/c360/cvsync/vocabulary"
)

// termUpdate is the reconciliation context of one term inside one
// transactional unit. It is built per term and dropped afterwards.
type termUpdate struct {
	tx   store.Tx
	src  ontology.Source
	db   vocabulary.Database
	term *cv.Term
	snap *ontology.TermSnapshot

	change events.TermUpdated
	out    *unitState
}

func newTermUpdate(tx store.Tx, src ontology.Source, db vocabulary.Database, term *cv.Term,
	snap *ontology.TermSnapshot, out *unitState) *termUpdate {
	return &termUpdate{
		tx:   tx,
		src:  src,
		db:   db,
		term: term,
		snap: snap,
		out:  out,
		change: events.TermUpdated{
			Ontology:  src.OntologyID(),
			Accession: snap.Accession,
			TermID:    term.ID,
		},
	}
}

// report records a problem that does not invalidate the rest of the unit.
func (tu *termUpdate) report(ctx context.Context, err *errors.UpdateError) {
	tu.out.Emit(ctx, events.FromError(tu.src.OntologyID(), err, tu.snap.Accession, tu.term.ID))
}

// refresh reloads the term so later synchronizers see earlier writes.
func (tu *termUpdate) refresh(ctx context.Context) error {
	t, err := tu.tx.TermByID(ctx, tu.term.ID)
	if err != nil {
		return err
	}
	tu.term = t
	return nil
}

// markHidden hides the term, writing only when the flag changes.
func (tu *termUpdate) markHidden(ctx context.Context) error {
	if tu.term.Hidden {
		return nil
	}
	tu.term.Hidden = true
	if err := tu.tx.UpdateTerm(ctx, tu.term); err != nil {
		return err
	}
	tu.change.Updated = true
	return nil
}

// updateLabels copies short label and full name from the snapshot.
func (tu *termUpdate) updateLabels(ctx context.Context) error {
	label := tu.snap.ShortLabel
	if label == "" {
		label = tu.term.ShortLabel
	}
	if tu.term.ShortLabel == label && tu.term.FullName == tu.snap.FullName &&
		tu.term.Identifier == tu.snap.Accession {
		return nil
	}
	tu.term.ShortLabel = label
	tu.term.FullName = tu.snap.FullName
	tu.term.Identifier = tu.snap.Accession
	if err := tu.tx.UpdateTerm(ctx, tu.term); err != nil {
		return err
	}
	tu.change.Updated = true
	return nil
}

// finish emits the TermUpdated event when anything changed.
func (tu *termUpdate) finish(ctx context.Context) {
	if tu.change.HasChanges() {
		tu.out.Emit(ctx, tu.change)
	}
}

// unitState collects what one unit hands back to its run: buffered events and
// missing parents. Committed events are delivered only when the unit commits;
// sticky ones are delivered either way.
type unitState struct {
	committed events.Buffer
	sticky    events.Buffer
	missing   []missingParent
}

// missingParent is a parent accession with no stored term yet.
type missingParent struct {
	database  string
	accession string
	dependent Dependent
}

// Emit implements events.Sink.
func (u *unitState) Emit(ctx context.Context, e events.Event) {
	u.committed.Emit(ctx, e)
}

// EmitSticky queues an event that survives a rollback.
func (u *unitState) EmitSticky(ctx context.Context, e events.Event) {
	u.sticky.Emit(ctx, e)
}

func (u *unitState) flush(ctx context.Context, sink events.Sink, committed bool) {
	u.sticky.Flush(ctx, sink)
	if committed {
		u.committed.Flush(ctx, sink)
	} else {
		u.committed.Discard()
	}
}

// identityAccession resolves the accession of a local term in one ontology:
// its identity xref first, then its identifier when it matches the ontology pattern.
func identityAccession(t *cv.Term, db vocabulary.Database) (string, bool) {
	if x, ok := t.IdentityFor(db.Name); ok {
		return x.PrimaryID, true
	}
	if db.Pattern != nil && db.Pattern.MatchString(t.Identifier) {
		return t.Identifier, true
	}
	return "", false
}

// sourceError tags an ontology source failure.
func sourceError(err error, accession string) *errors.UpdateError {
	return &errors.UpdateError{
		Kind:      errors.KindOntologyAccess,
		Accession: accession,
		Message:   err.Error(),
		Err:       err,
	}
}

// wouldCycle reports whether making parent a parent of child closes a cycle.
func wouldCycle(ctx context.Context, tx store.Tx, child, parent cv.TermID) (bool, error) {
	if child == parent {
		return true, nil
	}
	anc, err := tx.Ancestors(ctx, parent)
	if err != nil {
		return false, err
	}
	return slices.Contains(anc, child), nil
}
