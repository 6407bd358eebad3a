package diff

import (
	"math/rand"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/cvsync/cv"
)

func TestMergeJoin_Partitions(t *testing.T) {
	local := []string{"b", "d", "a", "f"}
	remote := []string{"c", "a", "d", "e"}

	res := MergeJoin(local, remote, strings.Compare, nil)

	assert.Equal(t, []string{"a", "d"}, res.Unchanged)
	assert.Equal(t, []string{"b", "f"}, res.Deleted)
	assert.Equal(t, []string{"c", "e"}, res.Created)
	assert.Empty(t, res.Protected)
	assert.Equal(t, []string{"b", "d", "a", "f"}, local, "input must not be reordered")
}

func TestMergeJoin_EmptySides(t *testing.T) {
	res := MergeJoin(nil, []string{"x", "y"}, strings.Compare, nil)
	assert.Equal(t, []string{"x", "y"}, res.Created)
	assert.Empty(t, res.Deleted)

	res = MergeJoin([]string{"x", "y"}, nil, strings.Compare, nil)
	assert.Equal(t, []string{"x", "y"}, res.Deleted)
	assert.Empty(t, res.Created)

	res = MergeJoin[string](nil, nil, strings.Compare, nil)
	assert.True(t, res.Empty())
}

func TestMergeJoin_Duplicates(t *testing.T) {
	res := MergeJoin([]string{"a", "a", "b"}, []string{"a", "c", "c"}, strings.Compare, nil)

	assert.Equal(t, []string{"a"}, res.Unchanged)
	assert.Equal(t, []string{"a", "b"}, res.Deleted)
	assert.Equal(t, []string{"c"}, res.Created)
}

func TestMergeJoin_ProtectedXrefs(t *testing.T) {
	local := []cv.Xref{
		{Database: "uniprotkb", Qualifier: cv.QualifierIdentity, PrimaryID: "P1"},
		{Database: "uniprotkb", Qualifier: cv.QualifierSecondaryAC, PrimaryID: "P2"},
	}
	remote := []cv.Xref{
		{Database: "uniprotkb", Qualifier: cv.QualifierIdentity, PrimaryID: "P1"},
		{Database: "interpro", PrimaryID: "IPR1"},
	}
	protect := func(x cv.Xref) bool {
		return x.Qualifier == cv.QualifierIdentity || x.Qualifier == cv.QualifierSecondaryAC
	}

	res := MergeJoin(local, remote, cv.CompareXrefs, protect)

	assert.Empty(t, res.Deleted)
	assert.Equal(t, []cv.Xref{{Database: "interpro", PrimaryID: "IPR1"}}, res.Created)
	assert.Len(t, res.Unchanged, 1)
	assert.Len(t, res.Protected, 1)
}

func TestMergeJoin_IdentityNeverDeleted(t *testing.T) {
	identity := cv.Xref{Database: "psi-mi", Qualifier: cv.QualifierIdentity, PrimaryID: "MI:0001"}
	protect := func(x cv.Xref) bool { return x.IsIdentity() }

	res := MergeJoin([]cv.Xref{identity, identity}, nil, cv.CompareXrefs, protect)
	assert.Empty(t, res.Deleted)
	assert.Len(t, res.Protected, 2)

	res = MergeJoin([]cv.Xref{identity, identity}, []cv.Xref{identity}, cv.CompareXrefs, protect)
	assert.Empty(t, res.Deleted)
}

// Every local key lands in exactly one of unchanged/deleted, every remote key
// in unchanged/created, and the sets match A∩B, A\B and B\A.
func TestMergeJoin_SetSemantics(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	alphabet := []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"}

	sample := func() []string {
		var out []string
		for _, s := range alphabet {
			if rng.Intn(2) == 0 {
				out = append(out, s)
			}
		}
		return out
	}

	for round := 0; round < 200; round++ {
		a, b := sample(), sample()
		res := MergeJoin(a, b, strings.Compare, nil)

		var inter, aOnly, bOnly []string
		for _, s := range alphabet {
			inA, inB := slices.Contains(a, s), slices.Contains(b, s)
			switch {
			case inA && inB:
				inter = append(inter, s)
			case inA:
				aOnly = append(aOnly, s)
			case inB:
				bOnly = append(bOnly, s)
			}
		}

		require.Equal(t, inter, res.Unchanged, "round %d", round)
		require.Equal(t, aOnly, res.Deleted, "round %d", round)
		require.Equal(t, bOnly, res.Created, "round %d", round)
	}
}
