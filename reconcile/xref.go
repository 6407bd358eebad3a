package reconcile

import (
	"context"

	"github.com/c360/cvsync/cv"
	"github.com/c360/cvsync/cv/diff"
	"github.com/c360/cvsync/ontology"
	"github.com/c360/cvsync/vocabulary"
)

// XrefSync reconciles the cross references of a term. The ontology's own
// identity xref is always part of the expected set; protected qualifiers
// (identity, secondary-ac) are never deleted.
type XrefSync struct {
	Vocabulary *vocabulary.Registry
}

// Expected returns the cross references the ontology asks for.
func (s XrefSync) Expected(snap *ontology.TermSnapshot, db vocabulary.Database) []cv.Xref {
	out := make([]cv.Xref, 0, len(snap.Xrefs)+1)
	out = append(out, cv.Xref{Database: db.Name, Qualifier: cv.QualifierIdentity, PrimaryID: snap.Accession})
	return append(out, snap.Xrefs...)
}

// Diff computes the xref decisions for a term.
func (s XrefSync) Diff(term *cv.Term, snap *ontology.TermSnapshot, db vocabulary.Database) diff.Result[cv.Xref] {
	return diff.MergeJoin(term.Xrefs, s.Expected(snap, db), cv.CompareXrefs, s.protected)
}

func (s XrefSync) protected(x cv.Xref) bool {
	if x.IsIdentity() {
		return true
	}
	return s.Vocabulary != nil && s.Vocabulary.IsProtected(x)
}

func (s XrefSync) sync(ctx context.Context, tu *termUpdate) error {
	res := s.Diff(tu.term, tu.snap, tu.db)
	for _, x := range res.Deleted {
		if err := tu.tx.RemoveXref(ctx, tu.term.ID, x); err != nil {
			return err
		}
	}
	for _, x := range res.Created {
		if err := tu.tx.AddXref(ctx, tu.term.ID, x); err != nil {
			return err
		}
	}
	tu.change.DeletedXrefs = append(tu.change.DeletedXrefs, res.Deleted...)
	tu.change.CreatedXrefs = append(tu.change.CreatedXrefs, res.Created...)
	return nil
}

// AliasSync reconciles the aliases of a term, ordered by name then type.
type AliasSync struct{}

// Diff computes the alias decisions for a term.
func (AliasSync) Diff(term *cv.Term, snap *ontology.TermSnapshot) diff.Result[cv.Alias] {
	return diff.MergeJoin(term.Aliases, snap.Aliases, cv.CompareAliases, nil)
}

func (s AliasSync) sync(ctx context.Context, tu *termUpdate) error {
	res := s.Diff(tu.term, tu.snap)
	for _, a := range res.Deleted {
		if err := tu.tx.RemoveAlias(ctx, tu.term.ID, a); err != nil {
			return err
		}
	}
	for _, a := range res.Created {
		if err := tu.tx.AddAlias(ctx, tu.term.ID, a); err != nil {
			return err
		}
	}
	tu.change.DeletedAliases = append(tu.change.DeletedAliases, res.Deleted...)
	tu.change.CreatedAliases = append(tu.change.CreatedAliases, res.Created...)
	return nil
}
