// Package cv holds the controlled vocabulary term model shared by the ontology
// sources, the term stores and the reconciliation engine.
package cv

import (
	"slices"
	"strings"
)

// TermID is the local primary key of a term. Zero means "not persisted yet".
type TermID int64

// Well-known cross reference qualifiers.
const (
	QualifierIdentity    = "identity"
	QualifierSecondaryAC = "secondary-ac"
	QualifierSeeAlso     = "see-also"
)

// Annotation topics with special handling during reconciliation.
const (
	TopicDefinition  = "definition"
	TopicURL         = "url"
	TopicObsolete    = "obsolete"
	TopicComment     = "comment"
	TopicUsedInClass = "used-in-class"
)

// DefaultObsoleteText is written when the ontology flags a term obsolete without a message.
const DefaultObsoleteText = "Obsolete term"

// Xref is a cross reference from a term to an external database record.
type Xref struct {
	Database    string `json:"database" yaml:"database"`
	Qualifier   string `json:"qualifier,omitempty" yaml:"qualifier,omitempty"`
	PrimaryID   string `json:"primary_id" yaml:"primary_id"`
	SecondaryID string `json:"secondary_id,omitempty" yaml:"secondary_id,omitempty"`
}

// IsIdentity reports whether the xref binds the term to its ontology accession.
func (x Xref) IsIdentity() bool {
	return x.Qualifier == QualifierIdentity
}

// Alias is an alternative name of a term.
type Alias struct {
	Type string `json:"type,omitempty" yaml:"type,omitempty"`
	Name string `json:"name" yaml:"name"`
}

// Annotation is free text attached to a term under a topic.
type Annotation struct {
	Topic string `json:"topic" yaml:"topic"`
	Text  string `json:"text,omitempty" yaml:"text,omitempty"`
}

// Term is a node of the controlled vocabulary DAG.
//
// Parents hold local ids rather than pointers; the store resolves them.
type Term struct {
	ID          TermID       `json:"id"`
	Kind        string       `json:"kind,omitempty"`
	Identifier  string       `json:"identifier"`
	ShortLabel  string       `json:"short_label"`
	FullName    string       `json:"full_name,omitempty"`
	Hidden      bool         `json:"hidden,omitempty"`
	Xrefs       []Xref       `json:"xrefs,omitempty"`
	Aliases     []Alias      `json:"aliases,omitempty"`
	Annotations []Annotation `json:"annotations,omitempty"`
	Parents     []TermID     `json:"parents,omitempty"`
}

// Clone returns a deep copy of the term.
func (t *Term) Clone() *Term {
	if t == nil {
		return nil
	}
	cp := *t
	cp.Xrefs = slices.Clone(t.Xrefs)
	cp.Aliases = slices.Clone(t.Aliases)
	cp.Annotations = slices.Clone(t.Annotations)
	cp.Parents = slices.Clone(t.Parents)
	return &cp
}

// IdentityFor returns the identity xref of the term for the given database.
func (t *Term) IdentityFor(database string) (Xref, bool) {
	for _, x := range t.Xrefs {
		if x.IsIdentity() && x.Database == database {
			return x, true
		}
	}
	return Xref{}, false
}

// Identities returns every identity xref of the term.
func (t *Term) Identities() []Xref {
	var out []Xref
	for _, x := range t.Xrefs {
		if x.IsIdentity() {
			out = append(out, x)
		}
	}
	return out
}

// AnnotationsWithTopic returns the annotations of one topic in stored order.
func (t *Term) AnnotationsWithTopic(topic string) []Annotation {
	var out []Annotation
	for _, a := range t.Annotations {
		if a.Topic == topic {
			out = append(out, a)
		}
	}
	return out
}

// IsObsolete reports whether the term carries an obsolete annotation.
func (t *Term) IsObsolete() bool {
	for _, a := range t.Annotations {
		if a.Topic == TopicObsolete {
			return true
		}
	}
	return false
}

// HasParent reports whether id is a direct parent of the term.
func (t *Term) HasParent(id TermID) bool {
	return slices.Contains(t.Parents, id)
}

// CompareXrefs orders cross references by database, qualifier, then primary id.
func CompareXrefs(a, b Xref) int {
	if c := strings.Compare(a.Database, b.Database); c != 0 {
		return c
	}
	if c := strings.Compare(a.Qualifier, b.Qualifier); c != 0 {
		return c
	}
	return strings.Compare(a.PrimaryID, b.PrimaryID)
}

// CompareAliases orders aliases lexically by name, then type.
func CompareAliases(a, b Alias) int {
	if c := strings.Compare(a.Name, b.Name); c != 0 {
		return c
	}
	return strings.Compare(a.Type, b.Type)
}

// CompareAnnotations orders annotations by topic, then text.
func CompareAnnotations(a, b Annotation) int {
	if c := strings.Compare(a.Topic, b.Topic); c != 0 {
		return c
	}
	return strings.Compare(a.Text, b.Text)
}

// Namespace returns the prefix of an accession such as "MI" for "MI:0001".
// Accessions without a separator have an empty namespace.
func Namespace(accession string) string {
	if i := strings.IndexByte(accession, ':'); i > 0 {
		return accession[:i]
	}
	return ""
}
