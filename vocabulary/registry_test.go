package vocabulary

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/cvsync/cv"
)

func TestDefault_Namespaces(t *testing.T) {
	r := Default()

	db, ok := r.DatabaseForAccession("MOD:00123")
	require.True(t, ok)
	assert.Equal(t, DatabasePSIMOD, db.Name)
	assert.Equal(t, "MI:0897", db.Accession)
	assert.True(t, db.Pattern.MatchString("MOD:00123"))
	assert.False(t, db.Pattern.MatchString("MI:0001"))

	_, ok = r.DatabaseForAccession("XYZ:0001")
	assert.False(t, ok, "unknown namespace must not resolve")

	byName, ok := r.DatabaseByName(DatabasePSIMI)
	require.True(t, ok)
	assert.Equal(t, "MI", byName.Namespace)

	assert.Equal(t, []string{"ECO", "GO", "MI", "MOD"}, r.Namespaces())
}

func TestRegisterNamespace_DefaultPattern(t *testing.T) {
	r := NewRegistry()
	r.RegisterNamespace("BTO", WithDatabase("bto", "MI:0000"))

	db, ok := r.DatabaseForNamespace("BTO")
	require.True(t, ok)
	assert.True(t, db.Pattern.MatchString("BTO:0000142"))
	assert.False(t, db.Pattern.MatchString("BTO:abc"))
}

func TestProtectedQualifiers(t *testing.T) {
	r := Default()

	assert.True(t, r.IsProtected(cv.Xref{Qualifier: cv.QualifierIdentity}))
	assert.True(t, r.IsProtected(cv.Xref{Qualifier: cv.QualifierSecondaryAC}))
	assert.False(t, r.IsProtected(cv.Xref{Qualifier: cv.QualifierSeeAlso}))
}

func TestUsages(t *testing.T) {
	r := NewRegistry()
	r.RegisterUsage("MI:0001", "b-kind")
	r.RegisterUsage("MI:0001", "a-kind", "b-kind")

	assert.Equal(t, []string{"a-kind", "b-kind"}, r.UsagesFor("MI:0001"))
	assert.Empty(t, r.UsagesFor("MI:9999"))

	usages := r.UsagesFor("MI:0001")
	usages[0] = "mutated"
	assert.Equal(t, "a-kind", r.UsagesFor("MI:0001")[0], "callers get a copy")
}

func TestManagedTopics(t *testing.T) {
	r := Default()
	assert.True(t, r.IsManagedTopic(cv.TopicDefinition))
	assert.True(t, r.IsManagedTopic("search-url"))
	assert.False(t, r.IsManagedTopic("curated-complex"))
}
