// Package memstore provides an arena-backed, in-memory store.TermStore.
//
// Terms live in an indexed table and parent edges are pairs of table indices.
// Atomic units run against a copy of the arena that replaces the live one only
// when the unit succeeds. Used by tests and dry runs.
package memstore

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/c360/cvsync/cv"
	"github.com/c360/cvsync/errors"
	"github.com/c360/cvsync/store"
)

// Fault lets tests fail individual operations. A non-nil return is passed to
// the caller unchanged.
type Fault func(op string) error

// Store is an in-memory TermStore. Safe for concurrent use; Atomic must not be
// called from inside another Atomic unit.
type Store struct {
	*txn
	mu    sync.Mutex
	a     *arena
	fault Fault
}

var _ store.TermStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	s := &Store{a: newArena()}
	s.txn = &txn{s: s}
	return s
}

// SetFault installs or clears the fault hook.
func (s *Store) SetFault(f Fault) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fault = f
}

// Atomic implements store.TermStore.
func (s *Store) Atomic(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return errors.WrapTransient(err, "memstore", "Atomic", "context done")
	}
	if s.fault != nil {
		if err := s.fault("Atomic"); err != nil {
			return err
		}
	}

	work := s.a.clone()
	if err := fn(ctx, &txn{s: s, a: work, held: true}); err != nil {
		return err
	}
	s.a = work
	return nil
}

// Len returns the number of live terms.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.a.slots)
}

// txn runs operations against either the live arena (taking the store lock)
// or the private arena of an Atomic unit.
type txn struct {
	s    *Store
	a    *arena
	held bool
}

func (t *txn) begin(ctx context.Context, op string) (*arena, func(), error) {
	unlock := func() {}
	if !t.held {
		t.s.mu.Lock()
		unlock = t.s.mu.Unlock
	}
	if err := ctx.Err(); err != nil {
		unlock()
		return nil, nil, errors.WrapTransient(err, "memstore", op, "context done")
	}
	if t.s.fault != nil {
		if err := t.s.fault(op); err != nil {
			unlock()
			return nil, nil, err
		}
	}
	a := t.a
	if a == nil {
		a = t.s.a
	}
	return a, unlock, nil
}

func notFound(op string, id cv.TermID) error {
	return fmt.Errorf("memstore.%s: term %d: %w", op, id, store.ErrTermNotFound)
}

func (t *txn) TermByID(ctx context.Context, id cv.TermID) (*cv.Term, error) {
	a, done, err := t.begin(ctx, "TermByID")
	if err != nil {
		return nil, err
	}
	defer done()

	s, ok := a.slot(id)
	if !ok {
		return nil, notFound("TermByID", id)
	}
	return a.view(s), nil
}

func (t *txn) TermsByIdentity(ctx context.Context, database, accession string) ([]*cv.Term, error) {
	a, done, err := t.begin(ctx, "TermsByIdentity")
	if err != nil {
		return nil, err
	}
	defer done()

	var out []*cv.Term
	for s, term := range a.terms {
		if term == nil {
			continue
		}
		if x, ok := term.IdentityFor(database); ok && x.PrimaryID == accession {
			out = append(out, a.view(s))
		}
	}
	return out, nil
}

func (t *txn) TermByShortLabel(ctx context.Context, label string) (*cv.Term, error) {
	a, done, err := t.begin(ctx, "TermByShortLabel")
	if err != nil {
		return nil, err
	}
	defer done()

	for s, term := range a.terms {
		if term != nil && term.ShortLabel == label {
			return a.view(s), nil
		}
	}
	return nil, fmt.Errorf("memstore.TermByShortLabel: %q: %w", label, store.ErrTermNotFound)
}

func (t *txn) TermsForDatabase(ctx context.Context, database string) ([]*cv.Term, error) {
	a, done, err := t.begin(ctx, "TermsForDatabase")
	if err != nil {
		return nil, err
	}
	defer done()

	var out []*cv.Term
	for s, term := range a.terms {
		if term == nil {
			continue
		}
		if _, ok := term.IdentityFor(database); ok {
			out = append(out, a.view(s))
		}
	}
	return out, nil
}

func (t *txn) CreateTerm(ctx context.Context, term *cv.Term) (cv.TermID, error) {
	a, done, err := t.begin(ctx, "CreateTerm")
	if err != nil {
		return 0, err
	}
	defer done()

	if term.ShortLabel == "" {
		return 0, errors.WrapInvalid(errors.ErrInvalidData, "memstore", "CreateTerm", "short label is required")
	}
	parents := make([]int, 0, len(term.Parents))
	for _, p := range term.Parents {
		ps, ok := a.slot(p)
		if !ok {
			return 0, notFound("CreateTerm", p)
		}
		parents = append(parents, ps)
	}

	id := a.insert(term)
	child := a.slots[id]
	for _, ps := range parents {
		if !a.hasEdge(child, ps) {
			a.edges = append(a.edges, edge{child: child, parent: ps})
		}
	}
	return id, nil
}

func (t *txn) UpdateTerm(ctx context.Context, term *cv.Term) error {
	return t.mutate(ctx, "UpdateTerm", term.ID, func(stored *cv.Term) error {
		stored.Kind = term.Kind
		stored.Identifier = term.Identifier
		stored.ShortLabel = term.ShortLabel
		stored.FullName = term.FullName
		stored.Hidden = term.Hidden
		return nil
	})
}

func (t *txn) DeleteTerm(ctx context.Context, id cv.TermID) error {
	a, done, err := t.begin(ctx, "DeleteTerm")
	if err != nil {
		return err
	}
	defer done()

	if _, ok := a.slot(id); !ok {
		return notFound("DeleteTerm", id)
	}
	a.remove(id)
	return nil
}

// mutate applies fn to the stored term in place.
func (t *txn) mutate(ctx context.Context, op string, id cv.TermID, fn func(*cv.Term) error) error {
	a, done, err := t.begin(ctx, op)
	if err != nil {
		return err
	}
	defer done()

	s, ok := a.slot(id)
	if !ok {
		return notFound(op, id)
	}
	return fn(a.terms[s])
}

func (t *txn) AddXref(ctx context.Context, id cv.TermID, x cv.Xref) error {
	return t.mutate(ctx, "AddXref", id, func(term *cv.Term) error {
		term.Xrefs = append(term.Xrefs, x)
		return nil
	})
}

func (t *txn) UpdateXref(ctx context.Context, id cv.TermID, old, updated cv.Xref) error {
	return t.mutate(ctx, "UpdateXref", id, func(term *cv.Term) error {
		i := slices.Index(term.Xrefs, old)
		if i < 0 {
			return errors.WrapInvalid(errors.ErrInvalidData, "memstore", "UpdateXref",
				fmt.Sprintf("term %d has no xref %s:%s", id, old.Database, old.PrimaryID))
		}
		term.Xrefs[i] = updated
		return nil
	})
}

func (t *txn) RemoveXref(ctx context.Context, id cv.TermID, x cv.Xref) error {
	return t.mutate(ctx, "RemoveXref", id, func(term *cv.Term) error {
		if i := slices.Index(term.Xrefs, x); i >= 0 {
			term.Xrefs = slices.Delete(term.Xrefs, i, i+1)
		}
		return nil
	})
}

func (t *txn) AddAlias(ctx context.Context, id cv.TermID, al cv.Alias) error {
	return t.mutate(ctx, "AddAlias", id, func(term *cv.Term) error {
		term.Aliases = append(term.Aliases, al)
		return nil
	})
}

func (t *txn) RemoveAlias(ctx context.Context, id cv.TermID, al cv.Alias) error {
	return t.mutate(ctx, "RemoveAlias", id, func(term *cv.Term) error {
		if i := slices.Index(term.Aliases, al); i >= 0 {
			term.Aliases = slices.Delete(term.Aliases, i, i+1)
		}
		return nil
	})
}

func (t *txn) AddAnnotation(ctx context.Context, id cv.TermID, an cv.Annotation) error {
	return t.mutate(ctx, "AddAnnotation", id, func(term *cv.Term) error {
		term.Annotations = append(term.Annotations, an)
		return nil
	})
}

func (t *txn) UpdateAnnotation(ctx context.Context, id cv.TermID, old, updated cv.Annotation) error {
	return t.mutate(ctx, "UpdateAnnotation", id, func(term *cv.Term) error {
		i := slices.Index(term.Annotations, old)
		if i < 0 {
			return errors.WrapInvalid(errors.ErrInvalidData, "memstore", "UpdateAnnotation",
				fmt.Sprintf("term %d has no %s annotation %q", id, old.Topic, old.Text))
		}
		term.Annotations[i] = updated
		return nil
	})
}

func (t *txn) RemoveAnnotation(ctx context.Context, id cv.TermID, an cv.Annotation) error {
	return t.mutate(ctx, "RemoveAnnotation", id, func(term *cv.Term) error {
		if i := slices.Index(term.Annotations, an); i >= 0 {
			term.Annotations = slices.Delete(term.Annotations, i, i+1)
		}
		return nil
	})
}

func (t *txn) AddParent(ctx context.Context, child, parent cv.TermID) error {
	a, done, err := t.begin(ctx, "AddParent")
	if err != nil {
		return err
	}
	defer done()

	cs, ok := a.slot(child)
	if !ok {
		return notFound("AddParent", child)
	}
	ps, ok := a.slot(parent)
	if !ok {
		return notFound("AddParent", parent)
	}
	if cs == ps {
		return errors.WrapInvalid(errors.ErrInvalidData, "memstore", "AddParent",
			fmt.Sprintf("term %d cannot be its own parent", child))
	}
	if !a.hasEdge(cs, ps) {
		a.edges = append(a.edges, edge{child: cs, parent: ps})
	}
	return nil
}

func (t *txn) RemoveParent(ctx context.Context, child, parent cv.TermID) error {
	a, done, err := t.begin(ctx, "RemoveParent")
	if err != nil {
		return err
	}
	defer done()

	cs, ok := a.slot(child)
	if !ok {
		return notFound("RemoveParent", child)
	}
	ps, ok := a.slot(parent)
	if !ok {
		return nil
	}
	a.edges = slices.DeleteFunc(a.edges, func(e edge) bool {
		return e.child == cs && e.parent == ps
	})
	return nil
}

func (t *txn) Children(ctx context.Context, id cv.TermID) ([]cv.TermID, error) {
	a, done, err := t.begin(ctx, "Children")
	if err != nil {
		return nil, err
	}
	defer done()

	s, ok := a.slot(id)
	if !ok {
		return nil, notFound("Children", id)
	}
	return a.children(s), nil
}

func (t *txn) Ancestors(ctx context.Context, id cv.TermID) ([]cv.TermID, error) {
	a, done, err := t.begin(ctx, "Ancestors")
	if err != nil {
		return nil, err
	}
	defer done()

	s, ok := a.slot(id)
	if !ok {
		return nil, notFound("Ancestors", id)
	}
	return a.ancestors(s), nil
}

func (t *txn) AddReference(ctx context.Context, ref cv.Reference) error {
	a, done, err := t.begin(ctx, "AddReference")
	if err != nil {
		return err
	}
	defer done()

	if _, ok := a.slot(ref.TermID); !ok {
		return notFound("AddReference", ref.TermID)
	}
	a.refs = append(a.refs, ref)
	return nil
}

func (t *txn) ReferencingKinds(ctx context.Context, id cv.TermID) ([]cv.RefKind, error) {
	a, done, err := t.begin(ctx, "ReferencingKinds")
	if err != nil {
		return nil, err
	}
	defer done()

	var kinds []cv.RefKind
	for _, r := range a.refs {
		if r.TermID == id {
			kinds = append(kinds, r.Kind)
		}
	}
	slices.Sort(kinds)
	return slices.Compact(kinds), nil
}

func (t *txn) RepointReferences(ctx context.Context, kind cv.RefKind, from, to cv.TermID) (int64, error) {
	a, done, err := t.begin(ctx, "RepointReferences")
	if err != nil {
		return 0, err
	}
	defer done()

	if _, ok := a.slot(to); !ok {
		return 0, notFound("RepointReferences", to)
	}
	var n int64
	for i := range a.refs {
		if a.refs[i].Kind == kind && a.refs[i].TermID == from {
			a.refs[i].TermID = to
			n++
		}
	}
	return n, nil
}

func (t *txn) CountReferences(ctx context.Context, id cv.TermID) (int64, error) {
	a, done, err := t.begin(ctx, "CountReferences")
	if err != nil {
		return 0, err
	}
	defer done()

	var n int64
	for _, r := range a.refs {
		if r.TermID == id {
			n++
		}
	}
	return n, nil
}

func (t *txn) DuplicateIdentities(ctx context.Context, database string) (map[string][]cv.TermID, error) {
	a, done, err := t.begin(ctx, "DuplicateIdentities")
	if err != nil {
		return nil, err
	}
	defer done()

	byAcc := make(map[string][]cv.TermID)
	for _, term := range a.terms {
		if term == nil {
			continue
		}
		if x, ok := term.IdentityFor(database); ok {
			byAcc[x.PrimaryID] = append(byAcc[x.PrimaryID], term.ID)
		}
	}
	for acc, ids := range byAcc {
		if len(ids) < 2 {
			delete(byAcc, acc)
		}
	}
	return byAcc, nil
}
