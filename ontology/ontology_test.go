package ontology

import (
	"context"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/cvsync/errors"
)

func accessions(terms []*TermSnapshot) []string {
	out := make([]string, len(terms))
	for i, t := range terms {
		out[i] = t.Accession
	}
	return out
}

func TestLoadFile(t *testing.T) {
	ctx := context.Background()
	src, err := LoadFile("testdata/mini.yaml")
	require.NoError(t, err)

	assert.Equal(t, "psi-mi", src.OntologyID())
	assert.Equal(t, "psi-mi", src.DatabaseIdentifier())
	assert.True(t, src.DatabaseRegexp().MatchString("MI:0001"))
	assert.Equal(t, 4, src.Len())

	term, err := src.TermForAccession(ctx, "MI:0001")
	require.NoError(t, err)
	require.NotNil(t, term)
	assert.Equal(t, "interaction detection method", term.FullName)
	require.Len(t, term.Xrefs, 1)
	assert.Equal(t, "14755292", term.Xrefs[0].PrimaryID)

	missing, err := src.TermForAccession(ctx, "MI:9999")
	require.NoError(t, err)
	assert.Nil(t, missing)

	obsolete, _ := src.TermForAccession(ctx, "MI:0002")
	assert.True(t, src.IsObsolete(obsolete))
	assert.Equal(t, "MI:0045", obsolete.RemappedTo)
}

func TestLoadFile_Errors(t *testing.T) {
	_, err := LoadFile("testdata/does-not-exist.yaml")
	assert.Error(t, err)

	_, err = Parse([]byte("ontology: x\npattern: '['\n"))
	assert.True(t, errors.IsInvalid(err))

	_, err = Parse([]byte("terms: [{accession: 'MI:0001'}]\n"))
	assert.True(t, errors.IsInvalid(err), "ontology id is required")
}

func TestParse_SchemaViolations(t *testing.T) {
	tests := []struct {
		name  string
		doc   string
		field string
	}{
		{"term without accession", "ontology: MI\nterms: [{short_label: x}]\n", "terms.0"},
		{"misspelt term field", "ontology: MI\nterms: [{accession: 'MI:0001', parent: ['MI:0000']}]\n", "terms.0"},
		{"obsolete not a flag", "ontology: MI\nterms: [{accession: 'MI:0001', obsolete: maybe}]\n", "terms.0.obsolete"},
		{"xref without database", "ontology: MI\nterms: [{accession: 'MI:0001', xrefs: [{primary_id: '1'}]}]\n", "terms.0.xrefs.0"},
		{"not a mapping", "- MI:0001\n", "(root)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)
			assert.True(t, errors.IsInvalid(err))
			assert.ErrorIs(t, err, errors.ErrInvalidData)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestParse_NumericXrefIdentifier(t *testing.T) {
	src, err := Parse([]byte("ontology: MI\nterms:\n  - accession: 'MI:0001'\n    xrefs: [{database: pubmed, primary_id: 14755292}]\n"))
	require.NoError(t, err)
	term, err := src.TermForAccession(context.Background(), "MI:0001")
	require.NoError(t, err)
	require.Len(t, term.Xrefs, 1)
	assert.Equal(t, "14755292", term.Xrefs[0].PrimaryID)
}

func TestLoadFileAs_Overrides(t *testing.T) {
	src, err := LoadFileAs("testdata/mini.yaml", File{Ontology: "MI", Database: "psi-mi-2"})
	require.NoError(t, err)
	assert.Equal(t, "MI", src.OntologyID())
	assert.Equal(t, "psi-mi-2", src.DatabaseIdentifier())
	assert.True(t, src.DatabaseRegexp().MatchString("MI:0001"), "pattern kept from file")

	_, err = LoadFileAs("testdata/mini.yaml", File{Pattern: "("})
	assert.True(t, errors.IsInvalid(err))
}

func TestMemorySource_Graph(t *testing.T) {
	ctx := context.Background()
	src, err := LoadFile("testdata/mini.yaml")
	require.NoError(t, err)

	leaf, _ := src.TermForAccession(ctx, "MI:0045")

	direct, err := src.DirectParents(ctx, leaf)
	require.NoError(t, err)
	assert.Equal(t, []string{"MI:0001"}, accessions(direct))

	all, err := src.AllParents(ctx, leaf)
	require.NoError(t, err)
	assert.Equal(t, []string{"MI:0000", "MI:0001"}, accessions(all))

	root, _ := src.TermForAccession(ctx, "MI:0000")
	children, err := src.Children(ctx, root)
	require.NoError(t, err)
	assert.Equal(t, []string{"MI:0001"}, accessions(children))

	roots, err := src.RootTerms(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"MI:0000"}, accessions(roots), "obsolete parentless terms are not roots")
}

func TestMemorySource_CyclicAncestorsTerminate(t *testing.T) {
	src, err := NewMemorySource("x", "", regexp.MustCompile(`^X:\d+$`), []TermSnapshot{
		{Accession: "X:1", Parents: []string{"X:2"}},
		{Accession: "X:2", Parents: []string{"X:1"}},
	})
	require.NoError(t, err)

	t1, _ := src.TermForAccession(context.Background(), "X:1")
	all, err := src.AllParents(context.Background(), t1)
	require.NoError(t, err)
	assert.Equal(t, []string{"X:1", "X:2"}, accessions(all))
}

func TestRegistry(t *testing.T) {
	a, _ := NewMemorySource("psi-mi", "", nil, nil)
	b, _ := NewMemorySource("go", "", nil, nil)

	r, err := NewRegistry(a, b)
	require.NoError(t, err)
	assert.Equal(t, []string{"go", "psi-mi"}, r.IDs())

	got, ok := r.Get("go")
	assert.True(t, ok)
	assert.Same(t, b, got)

	assert.Error(t, r.Register(a))
}

type countingSource struct {
	*MemorySource
	calls int
}

func (c *countingSource) TermForAccession(ctx context.Context, acc string) (*TermSnapshot, error) {
	c.calls++
	return c.MemorySource.TermForAccession(ctx, acc)
}

func TestCachedSource(t *testing.T) {
	ctx := context.Background()
	mem, err := LoadFile("testdata/mini.yaml")
	require.NoError(t, err)
	inner := &countingSource{MemorySource: mem}

	src, err := NewCachedSource(inner, 10)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		term, err := src.TermForAccession(ctx, "MI:0001")
		require.NoError(t, err)
		assert.Equal(t, "MI:0001", term.Accession)

		missing, err := src.TermForAccession(ctx, "MI:9999")
		require.NoError(t, err)
		assert.Nil(t, missing)
	}

	assert.Equal(t, 2, inner.calls)
	assert.Equal(t, int64(4), src.Stats().Hits())
	assert.Equal(t, "psi-mi", src.OntologyID())
}
