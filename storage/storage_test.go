package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Put(ctx, "reports/b.json", []byte("b")))
	require.NoError(t, s.Put(ctx, "reports/a.json", []byte("a")))
	require.NoError(t, s.Put(ctx, "other/c.json", []byte("c")))

	data, err := s.Get(ctx, "reports/a.json")
	require.NoError(t, err)
	assert.Equal(t, []byte("a"), data)

	data[0] = 'x'
	again, _ := s.Get(ctx, "reports/a.json")
	assert.Equal(t, []byte("a"), again, "returned data is a copy")

	keys, err := s.List(ctx, "reports/")
	require.NoError(t, err)
	assert.Equal(t, []string{"reports/a.json", "reports/b.json"}, keys)

	require.NoError(t, s.Delete(ctx, "reports/a.json"))
	require.NoError(t, s.Delete(ctx, "reports/a.json"))
	_, err = s.Get(ctx, "reports/a.json")
	assert.ErrorIs(t, err, ErrKeyNotFound)

	empty, err := s.List(ctx, "none/")
	require.NoError(t, err)
	assert.Empty(t, empty)
}
