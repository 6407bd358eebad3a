package memstore

import (
	"slices"

	"github.com/c360/cvsync/cv"
)

// edge is a parent link between two arena slots.
type edge struct {
	child  int
	parent int
}

// arena holds terms in an indexed table. Parent edges and references are
// stored as slot indices; a deleted term leaves a nil slot behind.
type arena struct {
	terms  []*cv.Term
	slots  map[cv.TermID]int
	edges  []edge
	refs   []cv.Reference
	nextID cv.TermID
}

func newArena() *arena {
	return &arena{
		slots:  make(map[cv.TermID]int),
		nextID: 1,
	}
}

func (a *arena) clone() *arena {
	cp := &arena{
		terms:  make([]*cv.Term, len(a.terms)),
		slots:  make(map[cv.TermID]int, len(a.slots)),
		edges:  slices.Clone(a.edges),
		refs:   slices.Clone(a.refs),
		nextID: a.nextID,
	}
	for i, t := range a.terms {
		cp.terms[i] = t.Clone()
	}
	for id, slot := range a.slots {
		cp.slots[id] = slot
	}
	return cp
}

func (a *arena) slot(id cv.TermID) (int, bool) {
	s, ok := a.slots[id]
	return s, ok
}

func (a *arena) insert(t *cv.Term) cv.TermID {
	cp := t.Clone()
	cp.ID = a.nextID
	cp.Parents = nil
	a.nextID++
	a.slots[cp.ID] = len(a.terms)
	a.terms = append(a.terms, cp)
	return cp.ID
}

func (a *arena) remove(id cv.TermID) {
	s, ok := a.slots[id]
	if !ok {
		return
	}
	a.terms[s] = nil
	delete(a.slots, id)
	a.edges = slices.DeleteFunc(a.edges, func(e edge) bool {
		return e.child == s || e.parent == s
	})
	a.refs = slices.DeleteFunc(a.refs, func(r cv.Reference) bool {
		return r.TermID == id
	})
}

// view returns a detached copy of a term with its parents resolved from the edge list.
func (a *arena) view(s int) *cv.Term {
	t := a.terms[s].Clone()
	t.Parents = nil
	for _, e := range a.edges {
		if e.child == s {
			t.Parents = append(t.Parents, a.terms[e.parent].ID)
		}
	}
	slices.Sort(t.Parents)
	return t
}

func (a *arena) hasEdge(child, parent int) bool {
	return slices.Contains(a.edges, edge{child: child, parent: parent})
}

func (a *arena) children(s int) []cv.TermID {
	var out []cv.TermID
	for _, e := range a.edges {
		if e.parent == s {
			out = append(out, a.terms[e.child].ID)
		}
	}
	slices.Sort(out)
	return out
}

func (a *arena) ancestors(s int) []cv.TermID {
	seen := map[int]bool{}
	queue := []int{s}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, e := range a.edges {
			if e.child == cur && !seen[e.parent] {
				seen[e.parent] = true
				queue = append(queue, e.parent)
			}
		}
	}
	out := make([]cv.TermID, 0, len(seen))
	for p := range seen {
		out = append(out, a.terms[p].ID)
	}
	slices.Sort(out)
	return out
}
