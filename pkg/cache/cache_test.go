package cache

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/cvsync/metric"
)

func TestLRU_GetSet(t *testing.T) {
	c, err := NewLRU[int](2)
	require.NoError(t, err)

	created, err := c.Set("a", 1)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = c.Set("a", 2)
	require.NoError(t, err)
	assert.False(t, created, "second set updates the entry")

	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 2, v)

	_, ok = c.Get("missing")
	assert.False(t, ok)

	assert.Equal(t, int64(1), c.Stats().Hits())
	assert.Equal(t, int64(1), c.Stats().Misses())
	assert.InDelta(t, 0.5, c.Stats().HitRatio(), 0.0001)
}

func TestLRU_EvictsLeastRecentlyUsed(t *testing.T) {
	c, err := NewLRU[string](2)
	require.NoError(t, err)

	_, _ = c.Set("a", "A")
	_, _ = c.Set("b", "B")
	_, _ = c.Get("a") // b becomes the oldest
	_, _ = c.Set("c", "C")

	_, ok := c.Get("b")
	assert.False(t, ok)
	_, ok = c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 2, c.Size())
	assert.Equal(t, int64(1), c.Stats().Evictions())
}

func TestLRU_DeleteAndClear(t *testing.T) {
	c, err := NewLRU[int](10)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, _ = c.Set(fmt.Sprintf("k%d", i), i)
	}

	deleted, err := c.Delete("k1")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = c.Delete("k1")
	require.NoError(t, err)
	assert.False(t, deleted)

	c.Clear()
	assert.Zero(t, c.Size())
}

func TestLRU_InvalidInput(t *testing.T) {
	_, err := NewLRU[int](0)
	assert.Error(t, err)

	c, err := NewLRU[int](1)
	require.NoError(t, err)
	_, err = c.Set("", 1)
	assert.Error(t, err)
}

func TestLRU_WithMetrics(t *testing.T) {
	registry := metric.NewMetricsRegistry()
	c, err := NewLRU[int](1, WithMetrics[int](registry, "ontology_psi_mi"))
	require.NoError(t, err)

	_, _ = c.Set("a", 1)
	_, _ = c.Get("a")

	_, err = NewLRU[int](1, WithMetrics[int](registry, "ontology_psi_mi"))
	assert.Error(t, err, "duplicate metric registration must fail")
}
