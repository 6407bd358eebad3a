package reconcile

import (
	"context"
	"fmt"
	"strings"

	"github.com/c360/cvsync/cv"
	"github.com/c360/cvsync/cv/diff"
	"github.com/c360/cvsync/errors"
	"github.com/c360/cvsync/store"
)

// ParentLink is one parent edge keyed by the parent's ontology accession.
// TermID is zero for parents that only exist in the ontology.
type ParentLink struct {
	Accession string
	TermID    cv.TermID
}

func compareLinks(a, b ParentLink) int {
	return strings.Compare(a.Accession, b.Accession)
}

// ParentSync reconciles the parent edges of a term.
//
// A local parent missing from the ontology parent set is kept when the
// ontology no longer knows its accession or when it is obsolete. A parent
// only the ontology lists is linked if stored, and queued for the missing
// parent resolver otherwise.
type ParentSync struct{}

// Diff computes the parent decisions. keep may be nil.
func (ParentSync) Diff(local []ParentLink, remote []string, keep func(ParentLink) bool) diff.Result[ParentLink] {
	links := make([]ParentLink, 0, len(remote))
	for _, acc := range remote {
		links = append(links, ParentLink{Accession: acc})
	}
	return diff.MergeJoin(local, links, compareLinks, keep)
}

// localLinks resolves the accession of every stored parent. Parents that
// belong to no known accession of this ontology are left out, and so never
// deleted.
func (s ParentSync) localLinks(ctx context.Context, tu *termUpdate) ([]ParentLink, error) {
	links := make([]ParentLink, 0, len(tu.term.Parents))
	for _, id := range tu.term.Parents {
		parent, err := tu.tx.TermByID(ctx, id)
		if store.IsNotFound(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		acc, ok := identityAccession(parent, tu.db)
		if !ok {
			continue
		}
		links = append(links, ParentLink{Accession: acc, TermID: id})
	}
	return links, nil
}

// preserved reports whether a stored parent survives even when the ontology
// no longer lists it.
func (s ParentSync) preserved(ctx context.Context, tu *termUpdate, link ParentLink) (bool, error) {
	snap, err := tu.src.TermForAccession(ctx, link.Accession)
	if err != nil {
		return false, sourceError(err, link.Accession)
	}
	if snap == nil || tu.src.IsObsolete(snap) {
		return true, nil
	}
	parent, err := tu.tx.TermByID(ctx, link.TermID)
	if err != nil {
		return false, err
	}
	return parent.IsObsolete(), nil
}

func (s ParentSync) sync(ctx context.Context, tu *termUpdate) error {
	local, err := s.localLinks(ctx, tu)
	if err != nil {
		return err
	}

	remote := make(map[string]bool, len(tu.snap.Parents))
	for _, acc := range tu.snap.Parents {
		remote[acc] = true
	}
	keep := make(map[string]bool)
	for _, link := range local {
		if remote[link.Accession] {
			continue
		}
		ok, err := s.preserved(ctx, tu, link)
		if err != nil {
			return err
		}
		keep[link.Accession] = ok
	}

	res := s.Diff(local, tu.snap.Parents, func(l ParentLink) bool { return keep[l.Accession] })
	for _, link := range res.Deleted {
		if err := tu.tx.RemoveParent(ctx, tu.term.ID, link.TermID); err != nil {
			return err
		}
		tu.change.DeletedParents = append(tu.change.DeletedParents, link.Accession)
	}
	for _, link := range res.Created {
		if err := s.attach(ctx, tu, link.Accession); err != nil {
			return err
		}
	}
	return nil
}

// attach links the term to the stored parent with the given accession, or
// records the accession as missing.
func (s ParentSync) attach(ctx context.Context, tu *termUpdate, accession string) error {
	parents, err := tu.tx.TermsByIdentity(ctx, tu.db.Name, accession)
	if err != nil {
		return err
	}
	if len(parents) == 0 {
		tu.out.missing = append(tu.out.missing, missingParent{
			database:  tu.db.Name,
			accession: accession,
			dependent: Dependent{TermID: tu.term.ID, Accession: tu.snap.Accession},
		})
		return nil
	}

	linked, err := linkParent(ctx, tu.tx, tu.term.ID, parents[0].ID)
	if err != nil {
		return err
	}
	if !linked {
		tu.report(ctx, cycleError(tu.snap.Accession, accession))
		return nil
	}
	tu.change.CreatedParents = append(tu.change.CreatedParents, accession)
	return nil
}

// linkParent adds the edge child -> parent unless it would close a cycle.
func linkParent(ctx context.Context, tx store.Tx, child, parent cv.TermID) (bool, error) {
	cycle, err := wouldCycle(ctx, tx, child, parent)
	if err != nil || cycle {
		return false, err
	}
	if err := tx.AddParent(ctx, child, parent); err != nil {
		return false, err
	}
	return true, nil
}

func cycleError(child, parent string) *errors.UpdateError {
	return errors.NewUpdateError(errors.KindParentCycle, child,
		fmt.Sprintf("parent %s would close a cycle", parent))
}
