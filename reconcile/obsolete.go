package reconcile

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/c360/cvsync/cv"
	"github.com/c360/cvsync/errors"
	"github.com/c360/cvsync/events"
	"github.com/c360/cvsync/ontology"
	"github.com/c360/cvsync/vocabulary"
)

// Outcome is the fate of one obsolete term.
type Outcome int

const (
	// OutcomeImpossible leaves the term in place, flagged for curators.
	OutcomeImpossible Outcome = iota
	// OutcomeRemapped moves the term's identity onto the replacement accession.
	OutcomeRemapped
	// OutcomeMerged folds the term into an existing replacement term.
	OutcomeMerged
	// OutcomeDeferred postpones a remap into another ontology.
	OutcomeDeferred
)

func (o Outcome) String() string {
	switch o {
	case OutcomeImpossible:
		return "impossible"
	case OutcomeRemapped:
		return "remapped"
	case OutcomeMerged:
		return "merged"
	case OutcomeDeferred:
		return "deferred"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// ObsoleteRemapper decides what happens to a term the ontology declares obsolete.
//
// Every obsolete term ends in exactly one of remapped, merged or impossible.
// An impossible outcome emits ObsoleteImpossibleToRemap even when the unit is
// rolled back afterwards. A missing remap target or a merge without repoint
// rules keeps the unit alive; an unknown target namespace rolls it back.
type ObsoleteRemapper struct {
	Vocabulary *vocabulary.Registry
	Repoint    *RepointRegistry
}

// remap handles an obsolete term inside its own ontology. Remaps into a
// different ontology return OutcomeDeferred. OutcomeRemapped leaves tu bound to
// the replacement snapshot so the attribute synchronizers run against it.
func (r ObsoleteRemapper) remap(ctx context.Context, tu *termUpdate) (Outcome, error) {
	target := tu.snap.RemappedTo
	if target == "" {
		r.impossible(ctx, tu, "no remap target")
		return OutcomeImpossible, nil
	}
	if r.sameOntology(tu, target) {
		return r.resolve(ctx, tu, tu.src, tu.db, target)
	}
	if _, ok := r.targetDatabase(target); !ok {
		r.impossible(ctx, tu, "unknown namespace of "+target)
		return OutcomeImpossible, errors.NewUpdateError(errors.KindOntologyDatabaseNotFound, tu.snap.Accession,
			fmt.Sprintf("no ontology database registered for namespace %q of %s", cv.Namespace(target), target))
	}
	return OutcomeDeferred, nil
}

// remapAcross resolves a deferred remap with the target ontology's source.
func (r ObsoleteRemapper) remapAcross(ctx context.Context, tu *termUpdate, sources *ontology.Registry) (Outcome, error) {
	target := tu.snap.RemappedTo
	db, ok := r.targetDatabase(target)
	if !ok {
		r.impossible(ctx, tu, "unknown namespace of "+target)
		return OutcomeImpossible, errors.NewUpdateError(errors.KindOntologyDatabaseNotFound, tu.snap.Accession,
			fmt.Sprintf("no ontology database registered for namespace %q of %s", cv.Namespace(target), target))
	}
	src, ok := sources.Get(db.OntologyID)
	if !ok {
		r.impossible(ctx, tu, "ontology "+db.OntologyID+" is not loaded")
		return OutcomeImpossible, errors.NewUpdateError(errors.KindOntologyAccess, tu.snap.Accession,
			fmt.Sprintf("ontology %s serving %s is not loaded", db.OntologyID, target))
	}
	return r.resolve(ctx, tu, src, db, target)
}

func (r ObsoleteRemapper) sameOntology(tu *termUpdate, target string) bool {
	if tu.db.Namespace != "" {
		return cv.Namespace(target) == tu.db.Namespace
	}
	re := tu.src.DatabaseRegexp()
	return re == nil || re.MatchString(target)
}

func (r ObsoleteRemapper) targetDatabase(target string) (vocabulary.Database, bool) {
	if r.Vocabulary == nil {
		return vocabulary.Database{}, false
	}
	return r.Vocabulary.DatabaseForAccession(target)
}

// resolve remaps in place when the target is not stored yet and merges
// otherwise.
func (r ObsoleteRemapper) resolve(ctx context.Context, tu *termUpdate, src ontology.Source,
	db vocabulary.Database, target string) (Outcome, error) {
	snap, err := src.TermForAccession(ctx, target)
	if err != nil {
		r.impossible(ctx, tu, "ontology failure on "+target)
		return OutcomeImpossible, sourceError(err, tu.snap.Accession)
	}
	if snap == nil {
		r.unresolved(ctx, tu, "remap target "+target+" does not exist",
			errors.NewUpdateError(errors.KindNonExistingTerm, tu.snap.Accession,
				fmt.Sprintf("remap target %s is absent from %s", target, src.OntologyID())))
		return OutcomeImpossible, nil
	}

	stored, err := tu.tx.TermsByIdentity(ctx, db.Name, target)
	if err != nil {
		return OutcomeImpossible, err
	}
	for _, t := range stored {
		if t.ID != tu.term.ID {
			return r.merge(ctx, tu, t, target)
		}
	}
	return OutcomeRemapped, r.remapInPlace(ctx, tu, src, db, snap)
}

// remapInPlace moves the identity of the term to the replacement accession and
// keeps the old one as a secondary accession.
func (r ObsoleteRemapper) remapInPlace(ctx context.Context, tu *termUpdate, src ontology.Source,
	db vocabulary.Database, target *ontology.TermSnapshot) error {
	from := tu.snap.Accession
	identity := cv.Xref{Database: db.Name, Qualifier: cv.QualifierIdentity, PrimaryID: target.Accession}
	if old, ok := tu.term.IdentityFor(tu.db.Name); ok {
		if err := tu.tx.UpdateXref(ctx, tu.term.ID, old, identity); err != nil {
			return err
		}
		tu.change.UpdatedXrefs = append(tu.change.UpdatedXrefs, identity)
	} else {
		if err := tu.tx.AddXref(ctx, tu.term.ID, identity); err != nil {
			return err
		}
		tu.change.CreatedXrefs = append(tu.change.CreatedXrefs, identity)
	}

	secondary := cv.Xref{Database: tu.db.Name, Qualifier: cv.QualifierSecondaryAC, PrimaryID: from}
	if !slices.Contains(tu.term.Xrefs, secondary) {
		if err := tu.tx.AddXref(ctx, tu.term.ID, secondary); err != nil {
			return err
		}
		tu.change.CreatedXrefs = append(tu.change.CreatedXrefs, secondary)
	}

	tu.out.Emit(ctx, events.ObsoleteRemapped{
		Ontology:      tu.src.OntologyID(),
		FromAccession: from,
		ToAccession:   target.Accession,
		FromTermID:    tu.term.ID,
		ToTermID:      tu.term.ID,
	})

	tu.src, tu.db, tu.snap = src, db, target
	tu.change.Accession = target.Accession
	return tu.refresh(ctx)
}

// merge repoints every reference of the duplicate onto the survivor. All
// referencing kinds are checked against the registry before anything is
// written, so an impossible merge leaves the duplicate and its references
// untouched and the term is reconciled as an unremapped obsolete term.
func (r ObsoleteRemapper) merge(ctx context.Context, tu *termUpdate, survivor *cv.Term, target string) (Outcome, error) {
	dup := tu.term
	kinds, err := tu.tx.ReferencingKinds(ctx, dup.ID)
	if err != nil {
		return OutcomeImpossible, err
	}
	repoint := r.Repoint
	if repoint == nil {
		repoint = NewRepointRegistry()
	}
	if missing := repoint.Unsupported(kinds); len(missing) > 0 {
		names := make([]string, len(missing))
		for i, k := range missing {
			names[i] = string(k)
		}
		r.unresolved(ctx, tu, "no repoint rule for "+strings.Join(names, ", "),
			errors.NewUpdateError(errors.KindImpossibleMerge, tu.snap.Accession,
				fmt.Sprintf("cannot merge into %s: no repoint rule for %s", target, strings.Join(names, ", "))))
		return OutcomeImpossible, nil
	}

	var affected int64
	for _, kind := range kinds {
		fn, _ := repoint.Lookup(kind)
		n, err := fn(ctx, tu.tx, dup.ID, survivor.ID)
		if err != nil {
			return OutcomeImpossible, err
		}
		affected += n
	}

	children, err := tu.tx.Children(ctx, dup.ID)
	if err != nil {
		return OutcomeImpossible, err
	}
	for _, child := range children {
		if err := tu.tx.RemoveParent(ctx, child, dup.ID); err != nil {
			return OutcomeImpossible, err
		}
		linked, err := linkParent(ctx, tu.tx, child, survivor.ID)
		if err != nil {
			return OutcomeImpossible, err
		}
		if !linked {
			tu.report(ctx, cycleError(fmt.Sprintf("term %d", child), target))
		}
	}

	secondary := cv.Xref{Database: tu.db.Name, Qualifier: cv.QualifierSecondaryAC, PrimaryID: tu.snap.Accession}
	if !slices.Contains(survivor.Xrefs, secondary) {
		if err := tu.tx.AddXref(ctx, survivor.ID, secondary); err != nil {
			return OutcomeImpossible, err
		}
	}

	remaining, err := tu.tx.CountReferences(ctx, dup.ID)
	if err != nil {
		return OutcomeImpossible, err
	}
	deleted := remaining == 0
	if deleted {
		if err := tu.tx.DeleteTerm(ctx, dup.ID); err != nil {
			return OutcomeImpossible, err
		}
	}

	tu.out.Emit(ctx, events.ObsoleteRemapped{
		Ontology:      tu.src.OntologyID(),
		FromAccession: tu.snap.Accession,
		ToAccession:   target,
		FromTermID:    dup.ID,
		ToTermID:      survivor.ID,
		Merged:        true,
		Deleted:       deleted,
		Affected:      affected,
	})
	return OutcomeMerged, nil
}

func (r ObsoleteRemapper) impossible(ctx context.Context, tu *termUpdate, reason string) {
	tu.out.EmitSticky(ctx, events.ObsoleteImpossibleToRemap{
		Ontology:   tu.src.OntologyID(),
		Accession:  tu.snap.Accession,
		TermID:     tu.term.ID,
		Candidates: slices.Clone(tu.snap.PossibleTerms),
		Reason:     reason,
	})
}

// unresolved marks the term impossible to remap and reports err without
// failing the unit, so the term still receives its obsolete attributes.
func (r ObsoleteRemapper) unresolved(ctx context.Context, tu *termUpdate, reason string, err *errors.UpdateError) {
	r.impossible(ctx, tu, reason)
	tu.out.EmitSticky(ctx, events.FromError(tu.src.OntologyID(), err, tu.snap.Accession, tu.term.ID))
}
