package cv

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTerm_IdentityFor(t *testing.T) {
	term := &Term{
		Identifier: "MI:0018",
		Xrefs: []Xref{
			{Database: "pubmed", Qualifier: "primary-reference", PrimaryID: "14755292"},
			{Database: "psi-mi", Qualifier: QualifierIdentity, PrimaryID: "MI:0018"},
		},
	}

	x, ok := term.IdentityFor("psi-mi")
	assert.True(t, ok)
	assert.Equal(t, "MI:0018", x.PrimaryID)

	_, ok = term.IdentityFor("psi-mod")
	assert.False(t, ok)
	assert.Len(t, term.Identities(), 1)
}

func TestTerm_CloneIsDeep(t *testing.T) {
	term := &Term{
		ShortLabel:  "two hybrid",
		Aliases:     []Alias{{Type: "synonym", Name: "2h"}},
		Annotations: []Annotation{{Topic: TopicDefinition, Text: "d"}},
		Parents:     []TermID{3},
	}

	cp := term.Clone()
	cp.Aliases[0].Name = "changed"
	cp.Parents[0] = 9
	cp.Annotations = append(cp.Annotations, Annotation{Topic: TopicObsolete})

	assert.Equal(t, "2h", term.Aliases[0].Name)
	assert.Equal(t, TermID(3), term.Parents[0])
	assert.False(t, term.IsObsolete())
	assert.True(t, cp.IsObsolete())
}

func TestComparators(t *testing.T) {
	assert.Negative(t, CompareXrefs(Xref{Database: "a"}, Xref{Database: "b"}))
	assert.Negative(t, CompareXrefs(
		Xref{Database: "a", Qualifier: "identity", PrimaryID: "z"},
		Xref{Database: "a", Qualifier: "see-also", PrimaryID: "a"}))
	assert.Zero(t, CompareXrefs(
		Xref{Database: "a", PrimaryID: "1", SecondaryID: "x"},
		Xref{Database: "a", PrimaryID: "1", SecondaryID: "y"}))

	assert.Negative(t, CompareAliases(Alias{Name: "alpha", Type: "z"}, Alias{Name: "beta", Type: "a"}))
	assert.Positive(t, CompareAnnotations(Annotation{Topic: "url"}, Annotation{Topic: "comment"}))
}

func TestNamespace(t *testing.T) {
	assert.Equal(t, "MI", Namespace("MI:0001"))
	assert.Equal(t, "MOD", Namespace("MOD:00001"))
	assert.Equal(t, "", Namespace(":0001"))
	assert.Equal(t, "", Namespace("plain"))
}
