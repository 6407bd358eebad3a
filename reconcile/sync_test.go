package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/cvsync/cv"
	"github.com/c360/cvsync/ontology"
	"github.com/c360/cvsync/vocabulary"
)

func TestXrefSync_SecondaryIsProtected(t *testing.T) {
	s := XrefSync{Vocabulary: vocabulary.Default()}
	db := vocabulary.Database{Name: "uniprot"}
	term := &cv.Term{Xrefs: []cv.Xref{
		{Database: "uniprot", Qualifier: cv.QualifierIdentity, PrimaryID: "P1"},
		{Database: "uniprot", Qualifier: "secondary", PrimaryID: "P2"},
	}}
	snap := &ontology.TermSnapshot{
		Accession: "P1",
		Xrefs: []cv.Xref{
			{Database: "uniprot", Qualifier: cv.QualifierIdentity, PrimaryID: "P1"},
			{Database: "interpro", PrimaryID: "IPR1"},
		},
	}

	res := s.Diff(term, snap, db)

	assert.Equal(t, []cv.Xref{{Database: "interpro", PrimaryID: "IPR1"}}, res.Created)
	assert.Empty(t, res.Deleted)
	assert.Equal(t, []cv.Xref{{Database: "uniprot", Qualifier: "secondary", PrimaryID: "P2"}}, res.Protected)
	assert.Len(t, res.Unchanged, 1)
}

func TestXrefSync_IdentityNeverDeleted(t *testing.T) {
	tests := []struct {
		name  string
		vocab *vocabulary.Registry
	}{
		{"default vocabulary", vocabulary.Default()},
		{"empty vocabulary", vocabulary.NewRegistry()},
		{"no vocabulary", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := XrefSync{Vocabulary: tt.vocab}
			stale := cv.Xref{Database: "psi-mi", Qualifier: cv.QualifierIdentity, PrimaryID: "MI:0001"}
			other := cv.Xref{Database: "go", Qualifier: cv.QualifierIdentity, PrimaryID: "GO:0000001"}
			term := &cv.Term{Xrefs: []cv.Xref{stale, other}}
			snap := &ontology.TermSnapshot{Accession: "MI:0002"}

			res := s.Diff(term, snap, vocabulary.Database{Name: "psi-mi"})

			assert.Empty(t, res.Deleted)
			assert.ElementsMatch(t, []cv.Xref{stale, other}, res.Protected)
			assert.Equal(t, []cv.Xref{{Database: "psi-mi", Qualifier: cv.QualifierIdentity, PrimaryID: "MI:0002"}},
				res.Created)
		})
	}
}

func TestXrefSync_UnprotectedStaleXrefDeleted(t *testing.T) {
	s := XrefSync{Vocabulary: vocabulary.Default()}
	stale := cv.Xref{Database: "pubmed", Qualifier: cv.QualifierSeeAlso, PrimaryID: "123"}
	term := &cv.Term{Xrefs: []cv.Xref{
		{Database: "psi-mi", Qualifier: cv.QualifierIdentity, PrimaryID: "MI:0001"},
		stale,
	}}

	res := s.Diff(term, &ontology.TermSnapshot{Accession: "MI:0001"}, vocabulary.Database{Name: "psi-mi"})

	assert.Equal(t, []cv.Xref{stale}, res.Deleted)
	assert.Empty(t, res.Created)
}

func TestAliasSync_Diff(t *testing.T) {
	term := &cv.Term{Aliases: []cv.Alias{{Type: "synonym", Name: "b"}, {Type: "synonym", Name: "a"}}}
	snap := &ontology.TermSnapshot{Aliases: []cv.Alias{{Type: "synonym", Name: "a"}, {Type: "exact", Name: "c"}}}

	res := AliasSync{}.Diff(term, snap)

	assert.Equal(t, []cv.Alias{{Type: "exact", Name: "c"}}, res.Created)
	assert.Equal(t, []cv.Alias{{Type: "synonym", Name: "b"}}, res.Deleted)
	assert.Equal(t, []cv.Alias{{Type: "synonym", Name: "a"}}, res.Unchanged)
}

func annotations(topic string, texts ...string) []cv.Annotation {
	out := make([]cv.Annotation, 0, len(texts))
	for _, text := range texts {
		out = append(out, cv.Annotation{Topic: topic, Text: text})
	}
	return out
}

func TestAnnotationSync_Singletons(t *testing.T) {
	tests := []struct {
		name   string
		local  []cv.Annotation
		text   string
		create []cv.Annotation
		update []AnnotationChange
		delete []cv.Annotation
	}{
		{
			name:   "created when missing",
			text:   "new",
			create: annotations(cv.TopicDefinition, "new"),
		},
		{
			name:  "updated in place",
			local: annotations(cv.TopicDefinition, "old"),
			text:  "new",
			update: []AnnotationChange{{
				Old: cv.Annotation{Topic: cv.TopicDefinition, Text: "old"},
				New: cv.Annotation{Topic: cv.TopicDefinition, Text: "new"},
			}},
		},
		{
			name:   "extra values deleted",
			local:  annotations(cv.TopicDefinition, "x", "new", "y"),
			text:   "new",
			delete: annotations(cv.TopicDefinition, "x", "y"),
		},
		{
			name:   "removed when the ontology has none",
			local:  annotations(cv.TopicDefinition, "old"),
			delete: annotations(cv.TopicDefinition, "old"),
		},
		{
			name:  "unchanged",
			local: annotations(cv.TopicDefinition, "same"),
			text:  "same",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := singleton(tt.local, cv.TopicDefinition, tt.text)
			assert.Equal(t, tt.create, plan.Create)
			assert.Equal(t, tt.update, plan.Update)
			assert.Equal(t, tt.delete, plan.Delete)
		})
	}
}

func TestAnnotationSync_CommentPool(t *testing.T) {
	local := annotations(cv.TopicComment, "y", "a", "x")
	plan := commentPool(local, []string{"b", "a"})

	assert.Empty(t, plan.Create)
	assert.Equal(t, []AnnotationChange{{
		Old: cv.Annotation{Topic: cv.TopicComment, Text: "x"},
		New: cv.Annotation{Topic: cv.TopicComment, Text: "b"},
	}}, plan.Update)
	assert.Equal(t, annotations(cv.TopicComment, "y"), plan.Delete)
}

func TestAnnotationSync_CommentPoolIsOrderIndependent(t *testing.T) {
	a := commentPool(annotations(cv.TopicComment, "q", "p"), []string{"s", "r"})
	b := commentPool(annotations(cv.TopicComment, "p", "q"), []string{"r", "s"})
	assert.Equal(t, a, b)
	require.Len(t, a.Update, 2)
	assert.Equal(t, "p", a.Update[0].Old.Text)
	assert.Equal(t, "r", a.Update[0].New.Text)
}

func TestAnnotationSync_CommentPoolDuplicates(t *testing.T) {
	plan := commentPool(annotations(cv.TopicComment, "a"), []string{"a", "a"})
	assert.Equal(t, annotations(cv.TopicComment, "a"), plan.Create)
	assert.Empty(t, plan.Update)
	assert.Empty(t, plan.Delete)
}

func TestAnnotationSync_Obsolete(t *testing.T) {
	plan := obsoleteAnnotation(nil, true, "")
	assert.Equal(t, annotations(cv.TopicObsolete, cv.DefaultObsoleteText), plan.Create)

	existing := annotations(cv.TopicObsolete, "curated text")
	assert.True(t, obsoleteAnnotation(existing, true, "other").Empty())

	assert.Equal(t, existing, obsoleteAnnotation(existing, false, "").Delete)
}

func TestAnnotationSync_UsedInClassIsUnion(t *testing.T) {
	local := annotations(cv.TopicUsedInClass, "feature-type")
	plan := usedInClass(local, []string{"interaction-type", "feature-type"})

	assert.Equal(t, []AnnotationChange{{
		Old: cv.Annotation{Topic: cv.TopicUsedInClass, Text: "feature-type"},
		New: cv.Annotation{Topic: cv.TopicUsedInClass, Text: "feature-type, interaction-type"},
	}}, plan.Update)

	merged := annotations(cv.TopicUsedInClass, "feature-type, interaction-type")
	assert.True(t, usedInClass(merged, []string{"interaction-type"}).Empty())
}

func TestAnnotationSync_GenericTopics(t *testing.T) {
	s := AnnotationSync{Vocabulary: vocabulary.Default()}
	term := &cv.Term{Annotations: []cv.Annotation{
		{Topic: "curator-note", Text: "keep me"},
		{Topic: "search-url", Text: "http://old"},
		{Topic: "validation-regexp", Text: "^x$"},
	}}
	snap := &ontology.TermSnapshot{Annotations: []cv.Annotation{
		{Topic: "validation-regexp", Text: "^x$"},
		{Topic: "search-url", Text: "http://new"},
	}}

	plan := s.Plan(term, snap, false, nil)

	assert.Equal(t, []cv.Annotation{{Topic: "search-url", Text: "http://new"}}, plan.Create)
	assert.Equal(t, []cv.Annotation{{Topic: "search-url", Text: "http://old"}}, plan.Delete)
	assert.Empty(t, plan.Update)
}

func TestParentSync_Diff(t *testing.T) {
	local := []ParentLink{
		{Accession: "MI:0003", TermID: 3},
		{Accession: "MI:0001", TermID: 1},
		{Accession: "MI:0009", TermID: 9},
	}
	keep := func(l ParentLink) bool { return l.Accession == "MI:0009" }

	res := ParentSync{}.Diff(local, []string{"MI:0001", "MI:0002"}, keep)

	assert.Equal(t, []ParentLink{{Accession: "MI:0002"}}, res.Created)
	assert.Equal(t, []ParentLink{{Accession: "MI:0003", TermID: 3}}, res.Deleted)
	assert.Equal(t, []ParentLink{{Accession: "MI:0009", TermID: 9}}, res.Protected)
}

func TestRepointRegistry(t *testing.T) {
	r := DefaultRepointRegistry()
	assert.Len(t, r.Kinds(), len(cv.KnownRefKinds))
	assert.Empty(t, r.Unsupported(cv.KnownRefKinds))

	empty := NewRepointRegistry()
	empty.Register(cv.RefFeatureType, ColumnRepoint(cv.RefFeatureType))
	assert.Equal(t, []cv.RefKind{cv.RefInteractionType},
		empty.Unsupported([]cv.RefKind{cv.RefFeatureType, cv.RefInteractionType}))
}

func TestMissingParentResolver(t *testing.T) {
	m := NewMissingParentResolver()
	m.Record("MI:0002", Dependent{TermID: 1, Accession: "MI:0001"})
	m.Record("MI:0002", Dependent{TermID: 1, Accession: "MI:0001"})
	m.Record("MI:0002", Dependent{TermID: 5, Accession: "MI:0005"})
	m.Record("MI:0000", Dependent{TermID: 2, Accession: "MI:0003"})

	assert.Equal(t, 2, m.Len())
	assert.Equal(t, []string{"MI:0000", "MI:0002"}, m.Pending())

	acc, deps, ok := m.Next()
	require.True(t, ok)
	assert.Equal(t, "MI:0000", acc)
	assert.Len(t, deps, 1)

	acc, deps, ok = m.Next()
	require.True(t, ok)
	assert.Equal(t, "MI:0002", acc)
	assert.Equal(t, []Dependent{{TermID: 1, Accession: "MI:0001"}, {TermID: 5, Accession: "MI:0005"}}, deps)

	m.Record("MI:0002", Dependent{TermID: 7})
	_, _, ok = m.Next()
	assert.False(t, ok, "handed out accessions are not queued again")
}

func TestOutcome_String(t *testing.T) {
	assert.Equal(t, "merged", OutcomeMerged.String())
	assert.Equal(t, "outcome(9)", Outcome(9).String())
}
