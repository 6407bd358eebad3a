package ontology

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/c360/cvsync/errors"
)

// MemorySource is a Source over a fully loaded set of snapshots.
type MemorySource struct {
	id       string
	database string
	pattern  *regexp.Regexp
	terms    map[string]*TermSnapshot
	children map[string][]string
}

// NewMemorySource indexes terms by accession. Later duplicates replace earlier ones.
func NewMemorySource(id, database string, pattern *regexp.Regexp, terms []TermSnapshot) (*MemorySource, error) {
	if id == "" {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "MemorySource", "New", "ontology id is required")
	}
	if database == "" {
		database = id
	}
	if pattern == nil {
		pattern = regexp.MustCompile(".*")
	}

	s := &MemorySource{
		id:       id,
		database: database,
		pattern:  pattern,
		terms:    make(map[string]*TermSnapshot, len(terms)),
		children: make(map[string][]string),
	}
	for i := range terms {
		t := terms[i].Clone()
		if t.Accession == "" {
			return nil, errors.WrapInvalid(errors.ErrInvalidData, "MemorySource", "New",
				fmt.Sprintf("term #%d has no accession", i))
		}
		s.terms[t.Accession] = t
	}
	for acc, t := range s.terms {
		for _, p := range t.Parents {
			s.children[p] = append(s.children[p], acc)
		}
	}
	for p := range s.children {
		slices.Sort(s.children[p])
	}
	return s, nil
}

// OntologyID implements Source.
func (s *MemorySource) OntologyID() string { return s.id }

// DatabaseIdentifier implements Source.
func (s *MemorySource) DatabaseIdentifier() string { return s.database }

// DatabaseRegexp implements Source.
func (s *MemorySource) DatabaseRegexp() *regexp.Regexp { return s.pattern }

// Len returns the number of terms.
func (s *MemorySource) Len() int { return len(s.terms) }

// TermForAccession implements Source.
func (s *MemorySource) TermForAccession(_ context.Context, accession string) (*TermSnapshot, error) {
	return s.terms[strings.TrimSpace(accession)], nil
}

// DirectParents implements Source.
func (s *MemorySource) DirectParents(_ context.Context, term *TermSnapshot) ([]*TermSnapshot, error) {
	return s.lookup(term.Parents), nil
}

// AllParents implements Source. The result is the ancestor closure ordered by accession.
func (s *MemorySource) AllParents(_ context.Context, term *TermSnapshot) ([]*TermSnapshot, error) {
	seen := make(map[string]bool)
	queue := slices.Clone(term.Parents)
	for len(queue) > 0 {
		acc := queue[0]
		queue = queue[1:]
		if seen[acc] {
			continue
		}
		seen[acc] = true
		if p, ok := s.terms[acc]; ok {
			queue = append(queue, p.Parents...)
		}
	}
	accs := make([]string, 0, len(seen))
	for acc := range seen {
		accs = append(accs, acc)
	}
	slices.Sort(accs)
	return s.lookup(accs), nil
}

// Children implements Source.
func (s *MemorySource) Children(_ context.Context, term *TermSnapshot) ([]*TermSnapshot, error) {
	return s.lookup(s.children[term.Accession]), nil
}

// RootTerms implements Source. Roots are non-obsolete terms without parents.
func (s *MemorySource) RootTerms(_ context.Context) ([]*TermSnapshot, error) {
	var accs []string
	for acc, t := range s.terms {
		if len(t.Parents) == 0 && !t.Obsolete {
			accs = append(accs, acc)
		}
	}
	slices.Sort(accs)
	return s.lookup(accs), nil
}

// IsObsolete implements Source.
func (s *MemorySource) IsObsolete(term *TermSnapshot) bool {
	return term != nil && term.Obsolete
}

// lookup resolves accessions, skipping those unknown to the ontology.
func (s *MemorySource) lookup(accs []string) []*TermSnapshot {
	out := make([]*TermSnapshot, 0, len(accs))
	for _, acc := range accs {
		if t, ok := s.terms[acc]; ok {
			out = append(out, t)
		}
	}
	return out
}
