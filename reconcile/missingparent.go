package reconcile

import (
	"slices"

	"github.com/c360/cvsync/cv"
)

// Dependent is a stored term waiting for one of its parents to be created.
type Dependent struct {
	TermID    cv.TermID
	Accession string
}

// MissingParentResolver collects parent accessions referenced during an update
// pass that have no stored term yet, together with the terms depending on them.
//
// Recording happens while terms are updated; draining happens once the pass is
// over. Creating a missing parent may record its own missing parents, which are
// drained in turn, so a chain of forward references resolves fully. Each
// accession is handed out at most once.
type MissingParentResolver struct {
	pending   map[string][]Dependent
	processed map[string]bool
}

// NewMissingParentResolver creates an empty resolver.
func NewMissingParentResolver() *MissingParentResolver {
	return &MissingParentResolver{
		pending:   make(map[string][]Dependent),
		processed: make(map[string]bool),
	}
}

// Record notes that dependent needs the parent with the given accession.
// Records for an accession that was already handed out are dropped.
func (m *MissingParentResolver) Record(accession string, dependent Dependent) {
	if m.processed[accession] {
		return
	}
	deps := m.pending[accession]
	for _, d := range deps {
		if d.TermID == dependent.TermID {
			return
		}
	}
	m.pending[accession] = append(deps, dependent)
}

// Len returns the number of accessions waiting to be resolved.
func (m *MissingParentResolver) Len() int {
	return len(m.pending)
}

// Pending returns the waiting accessions, sorted.
func (m *MissingParentResolver) Pending() []string {
	out := make([]string, 0, len(m.pending))
	for acc := range m.pending {
		out = append(out, acc)
	}
	slices.Sort(out)
	return out
}

// Dependents returns the terms waiting for an accession.
func (m *MissingParentResolver) Dependents(accession string) []Dependent {
	return slices.Clone(m.pending[accession])
}

// Next hands out the smallest pending accession and its dependents.
func (m *MissingParentResolver) Next() (string, []Dependent, bool) {
	if len(m.pending) == 0 {
		return "", nil, false
	}
	acc := slices.Min(m.Pending())
	deps := m.pending[acc]
	delete(m.pending, acc)
	m.processed[acc] = true
	return acc, deps, true
}
