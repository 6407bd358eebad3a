package ontology

import (
	"context"
	"regexp"
	"slices"

	"github.com/c360/cvsync/cv"
)

// TermSnapshot is the ontology's canonical view of one term. Snapshots handed
// out by a Source are shared and must be treated as read-only.
type TermSnapshot struct {
	Accession       string          `json:"accession" yaml:"accession"`
	ShortLabel      string          `json:"short_label" yaml:"short_label"`
	FullName        string          `json:"full_name,omitempty" yaml:"full_name,omitempty"`
	Definition      string          `json:"definition,omitempty" yaml:"definition,omitempty"`
	URL             string          `json:"url,omitempty" yaml:"url,omitempty"`
	Obsolete        bool            `json:"obsolete,omitempty" yaml:"obsolete,omitempty"`
	ObsoleteMessage string          `json:"obsolete_message,omitempty" yaml:"obsolete_message,omitempty"`
	RemappedTo      string          `json:"remapped_to,omitempty" yaml:"remapped_to,omitempty"`
	PossibleTerms   []string        `json:"possible_terms,omitempty" yaml:"possible_terms,omitempty"`
	Parents         []string        `json:"parents,omitempty" yaml:"parents,omitempty"`
	Xrefs           []cv.Xref       `json:"xrefs,omitempty" yaml:"xrefs,omitempty"`
	Aliases         []cv.Alias      `json:"aliases,omitempty" yaml:"aliases,omitempty"`
	Annotations     []cv.Annotation `json:"annotations,omitempty" yaml:"annotations,omitempty"`
	Comments        []string        `json:"comments,omitempty" yaml:"comments,omitempty"`
}

// Clone returns a deep copy of the snapshot.
func (s *TermSnapshot) Clone() *TermSnapshot {
	if s == nil {
		return nil
	}
	cp := *s
	cp.PossibleTerms = slices.Clone(s.PossibleTerms)
	cp.Parents = slices.Clone(s.Parents)
	cp.Xrefs = slices.Clone(s.Xrefs)
	cp.Aliases = slices.Clone(s.Aliases)
	cp.Annotations = slices.Clone(s.Annotations)
	cp.Comments = slices.Clone(s.Comments)
	return &cp
}

// Source serves term snapshots of one ontology.
//
// TermForAccession returns (nil, nil) when the ontology has no such term; an
// error means the source itself failed.
type Source interface {
	// OntologyID identifies the ontology, e.g. "psi-mi".
	OntologyID() string
	// DatabaseIdentifier is the database short label written on identity xrefs.
	DatabaseIdentifier() string
	// DatabaseRegexp matches accessions of this ontology.
	DatabaseRegexp() *regexp.Regexp

	TermForAccession(ctx context.Context, accession string) (*TermSnapshot, error)
	DirectParents(ctx context.Context, term *TermSnapshot) ([]*TermSnapshot, error)
	AllParents(ctx context.Context, term *TermSnapshot) ([]*TermSnapshot, error)
	Children(ctx context.Context, term *TermSnapshot) ([]*TermSnapshot, error)
	RootTerms(ctx context.Context) ([]*TermSnapshot, error)
	IsObsolete(term *TermSnapshot) bool
}
