// Package storetest holds the behavioural test suite every store.TermStore
// implementation must pass.
package storetest

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/c360/cvsync/cv"
	"github.com/c360/cvsync/store"
)

// Factory returns a fresh, empty store.
type Factory func(t *testing.T) store.TermStore

// Identity builds an identity xref.
func Identity(database, accession string) cv.Xref {
	return cv.Xref{Database: database, Qualifier: cv.QualifierIdentity, PrimaryID: accession}
}

// NewTerm builds a term bound to accession in database.
func NewTerm(database, accession, label string, parents ...cv.TermID) *cv.Term {
	return &cv.Term{
		Identifier: accession,
		ShortLabel: label,
		Xrefs:      []cv.Xref{Identity(database, accession)},
		Parents:    parents,
	}
}

// Suite is the TermStore contract as a testify suite. Every test method gets
// a fresh store from NewStore.
type Suite struct {
	suite.Suite
	NewStore Factory

	store store.TermStore
}

// SetupTest builds the store of the next test method.
func (ts *Suite) SetupTest() {
	ts.store = ts.NewStore(ts.T())
}

// Run executes the suite against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	suite.Run(t, &Suite{NewStore: newStore})
}

func (ts *Suite) TestCreateAndLookup() {
	t, s := ts.T(), ts.store
	ctx := context.Background()

	term := NewTerm("psi-mi", "MI:0001", "interaction detect")
	term.FullName = "interaction detection method"
	term.Aliases = []cv.Alias{{Type: "synonym", Name: "idm"}}
	term.Annotations = []cv.Annotation{{Topic: cv.TopicDefinition, Text: "Method."}}

	id, err := s.CreateTerm(ctx, term)
	require.NoError(t, err)
	assert.NotZero(t, id)

	got, err := s.TermByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "interaction detection method", got.FullName)
	assert.Equal(t, term.Aliases, got.Aliases)
	assert.Equal(t, term.Annotations, got.Annotations)

	byAcc, err := s.TermsByIdentity(ctx, "psi-mi", "MI:0001")
	require.NoError(t, err)
	require.Len(t, byAcc, 1)
	assert.Equal(t, id, byAcc[0].ID)

	none, err := s.TermsByIdentity(ctx, "go", "MI:0001")
	require.NoError(t, err)
	assert.Empty(t, none)

	byLabel, err := s.TermByShortLabel(ctx, "interaction detect")
	require.NoError(t, err)
	assert.Equal(t, id, byLabel.ID)

	_, err = s.TermByShortLabel(ctx, "nope")
	assert.True(t, store.IsNotFound(err))

	_, err = s.TermByID(ctx, 9999)
	assert.True(t, store.IsNotFound(err))

	got.ShortLabel = "interaction method"
	got.Hidden = true
	require.NoError(t, s.UpdateTerm(ctx, got))
	again, err := s.TermByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "interaction method", again.ShortLabel)
	assert.True(t, again.Hidden)

	_, err = s.CreateTerm(ctx, &cv.Term{})
	assert.Error(t, err, "short label is required")

	all, err := s.TermsForDatabase(ctx, "psi-mi")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func (ts *Suite) TestSubCollections() {
	t, s := ts.T(), ts.store
	ctx := context.Background()
	id, err := s.CreateTerm(ctx, NewTerm("psi-mi", "MI:0001", "a"))
	require.NoError(t, err)

	ipr := cv.Xref{Database: "interpro", PrimaryID: "IPR1"}
	require.NoError(t, s.AddXref(ctx, id, ipr))
	require.NoError(t, s.AddAlias(ctx, id, cv.Alias{Name: "alpha"}))
	url := cv.Annotation{Topic: cv.TopicURL, Text: "http://a"}
	require.NoError(t, s.AddAnnotation(ctx, id, url))

	term, err := s.TermByID(ctx, id)
	require.NoError(t, err)
	assert.Len(t, term.Xrefs, 2)
	assert.Len(t, term.Aliases, 1)
	assert.Len(t, term.Annotations, 1)

	newURL := cv.Annotation{Topic: cv.TopicURL, Text: "http://b"}
	require.NoError(t, s.UpdateAnnotation(ctx, id, url, newURL))
	moved := Identity("psi-mi", "MI:0002")
	require.NoError(t, s.UpdateXref(ctx, id, Identity("psi-mi", "MI:0001"), moved))

	term, err = s.TermByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []cv.Annotation{newURL}, term.Annotations)
	x, ok := term.IdentityFor("psi-mi")
	require.True(t, ok)
	assert.Equal(t, "MI:0002", x.PrimaryID)

	require.NoError(t, s.RemoveXref(ctx, id, ipr))
	require.NoError(t, s.RemoveAlias(ctx, id, cv.Alias{Name: "alpha"}))
	require.NoError(t, s.RemoveAnnotation(ctx, id, newURL))
	require.NoError(t, s.RemoveAlias(ctx, id, cv.Alias{Name: "never there"}))

	term, err = s.TermByID(ctx, id)
	require.NoError(t, err)
	assert.Len(t, term.Xrefs, 1)
	assert.Empty(t, term.Aliases)
	assert.Empty(t, term.Annotations)

	assert.Error(t, s.UpdateAnnotation(ctx, id, url, newURL), "old annotation is gone")
	assert.True(t, store.IsNotFound(s.AddAlias(ctx, 9999, cv.Alias{Name: "x"})))
}

func (ts *Suite) TestParentEdges() {
	t, s := ts.T(), ts.store
	ctx := context.Background()
	root, err := s.CreateTerm(ctx, NewTerm("psi-mi", "MI:0000", "root"))
	require.NoError(t, err)
	mid, err := s.CreateTerm(ctx, NewTerm("psi-mi", "MI:0001", "mid", root))
	require.NoError(t, err)
	leaf, err := s.CreateTerm(ctx, NewTerm("psi-mi", "MI:0002", "leaf"))
	require.NoError(t, err)

	require.NoError(t, s.AddParent(ctx, leaf, mid))
	require.NoError(t, s.AddParent(ctx, leaf, mid), "adding an existing edge is a no-op")

	term, err := s.TermByID(ctx, leaf)
	require.NoError(t, err)
	assert.Equal(t, []cv.TermID{mid}, term.Parents)

	anc, err := s.Ancestors(ctx, leaf)
	require.NoError(t, err)
	assert.Equal(t, []cv.TermID{root, mid}, anc)

	children, err := s.Children(ctx, root)
	require.NoError(t, err)
	assert.Equal(t, []cv.TermID{mid}, children)

	assert.Error(t, s.AddParent(ctx, leaf, leaf))
	assert.True(t, store.IsNotFound(s.AddParent(ctx, leaf, 9999)))

	require.NoError(t, s.RemoveParent(ctx, leaf, mid))
	term, err = s.TermByID(ctx, leaf)
	require.NoError(t, err)
	assert.Empty(t, term.Parents)
}

func (ts *Suite) TestAtomicRollback() {
	t, s := ts.T(), ts.store
	ctx := context.Background()
	id, err := s.CreateTerm(ctx, NewTerm("psi-mi", "MI:0001", "a"))
	require.NoError(t, err)

	boom := stderrors.New("boom")
	err = s.Atomic(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := tx.AddAlias(ctx, id, cv.Alias{Name: "rolled back"}); err != nil {
			return err
		}
		if _, err := tx.CreateTerm(ctx, NewTerm("psi-mi", "MI:0002", "b")); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	term, err := s.TermByID(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, term.Aliases)
	all, err := s.TermsForDatabase(ctx, "psi-mi")
	require.NoError(t, err)
	assert.Len(t, all, 1)

	err = s.Atomic(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.AddAlias(ctx, id, cv.Alias{Name: "kept"})
	})
	require.NoError(t, err)
	term, err = s.TermByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []cv.Alias{{Name: "kept"}}, term.Aliases)
}

func (ts *Suite) TestReferences() {
	t, s := ts.T(), ts.store
	ctx := context.Background()
	dup, err := s.CreateTerm(ctx, NewTerm("psi-mi", "MI:0002", "dup"))
	require.NoError(t, err)
	target, err := s.CreateTerm(ctx, NewTerm("psi-mi", "MI:0003", "target"))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, s.AddReference(ctx, cv.Reference{Kind: cv.RefInteractionType, Owner: "EBI-1", TermID: dup}))
	}
	for i := 0; i < 2; i++ {
		require.NoError(t, s.AddReference(ctx, cv.Reference{Kind: cv.RefFeatureType, Owner: "EBI-2", TermID: dup}))
	}

	kinds, err := s.ReferencingKinds(ctx, dup)
	require.NoError(t, err)
	assert.ElementsMatch(t, []cv.RefKind{cv.RefInteractionType, cv.RefFeatureType}, kinds)

	n, err := s.RepointReferences(ctx, cv.RefInteractionType, dup, target)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	left, err := s.CountReferences(ctx, dup)
	require.NoError(t, err)
	assert.Equal(t, int64(2), left)

	moved, err := s.CountReferences(ctx, target)
	require.NoError(t, err)
	assert.Equal(t, int64(3), moved)

	n, err = s.RepointReferences(ctx, cv.RefAliasType, dup, target)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func (ts *Suite) TestDeleteTerm() {
	t, s := ts.T(), ts.store
	ctx := context.Background()
	parent, err := s.CreateTerm(ctx, NewTerm("psi-mi", "MI:0000", "p"))
	require.NoError(t, err)
	id, err := s.CreateTerm(ctx, NewTerm("psi-mi", "MI:0001", "a", parent))
	require.NoError(t, err)
	child, err := s.CreateTerm(ctx, NewTerm("psi-mi", "MI:0002", "c", id))
	require.NoError(t, err)

	require.NoError(t, s.DeleteTerm(ctx, id))

	_, err = s.TermByID(ctx, id)
	assert.True(t, store.IsNotFound(err))

	c, err := s.TermByID(ctx, child)
	require.NoError(t, err)
	assert.Empty(t, c.Parents, "edges to a deleted term are removed")

	children, err := s.Children(ctx, parent)
	require.NoError(t, err)
	assert.Empty(t, children)

	assert.True(t, store.IsNotFound(s.DeleteTerm(ctx, id)))
}

func (ts *Suite) TestDuplicateIdentities() {
	t, s := ts.T(), ts.store
	ctx := context.Background()
	a, err := s.CreateTerm(ctx, NewTerm("psi-mi", "MI:0001", "a"))
	require.NoError(t, err)
	b, err := s.CreateTerm(ctx, NewTerm("psi-mi", "MI:0001", "b"))
	require.NoError(t, err)
	_, err = s.CreateTerm(ctx, NewTerm("psi-mi", "MI:0002", "c"))
	require.NoError(t, err)

	dups, err := s.DuplicateIdentities(ctx, "psi-mi")
	require.NoError(t, err)
	assert.Equal(t, map[string][]cv.TermID{"MI:0001": {a, b}}, dups)
}
