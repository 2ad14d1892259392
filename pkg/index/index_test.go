package index

import (
	"testing"

	"github.com/darianrosebrook/agent-agency/pkg/cafs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testIndex(t *testing.T) *Index {
	t.Helper()
	ix, err := Open("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ix.Close() })
	return ix
}

func TestSetGet(t *testing.T) {
	ix := testIndex(t)
	key := cafs.HashBytes([]byte("an object"))

	_, found, err := ix.Get(key)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, ix.Set(key, Location{}))
	loc, found, err := ix.Get(key)
	require.NoError(t, err)
	require.True(t, found)
	assert.Empty(t, loc.Pack)

	require.NoError(t, ix.Set(key, Location{Pack: "packs/p1.pack", Offset: 128, Length: 512}))
	loc, found, err = ix.Get(key)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, int64(128), loc.Offset)
}

func TestLocate(t *testing.T) {
	ix := testIndex(t)
	loose := cafs.HashBytes([]byte("loose"))
	packed := cafs.HashBytes([]byte("packed"))

	require.NoError(t, ix.Set(loose, Location{}))
	require.NoError(t, ix.Set(packed, Location{Pack: "packs/p1.pack", Offset: 7, Length: 42}))

	// loose objects are not the locator's business
	_, _, _, ok := ix.Locate(loose)
	assert.False(t, ok)

	pack, offset, length, ok := ix.Locate(packed)
	require.True(t, ok)
	assert.Equal(t, "packs/p1.pack", pack)
	assert.Equal(t, int64(7), offset)
	assert.Equal(t, int64(42), length)

	_, _, _, ok = ix.Locate(cafs.HashBytes([]byte("unknown")))
	assert.False(t, ok)
}

func TestDeleteAndDrop(t *testing.T) {
	ix := testIndex(t)
	key := cafs.HashBytes([]byte("victim"))

	require.NoError(t, ix.Set(key, Location{}))
	require.NoError(t, ix.Delete(key))
	has, err := ix.Has(key)
	require.NoError(t, err)
	assert.False(t, has)

	require.NoError(t, ix.Set(key, Location{}))
	require.NoError(t, ix.Drop())
	has, err = ix.Has(key)
	require.NoError(t, err)
	assert.False(t, has)
}

func TestMarkSet(t *testing.T) {
	m, err := NewMarkSet()
	require.NoError(t, err)
	defer func() { _ = m.Close() }()

	a := cafs.HashBytes([]byte("a"))
	b := cafs.HashBytes([]byte("b"))

	added, err := m.Mark(a)
	require.NoError(t, err)
	assert.True(t, added)

	added, err = m.Mark(a)
	require.NoError(t, err)
	assert.False(t, added)

	ok, err := m.Contains(a)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = m.Contains(b)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = m.Mark(b)
	require.NoError(t, err)
	n, err := m.Len()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
