package localfs

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/darianrosebrook/agent-agency/pkg/errors"
	"github.com/darianrosebrook/agent-agency/pkg/storage"
	"github.com/darianrosebrook/agent-agency/pkg/storage/status"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupStore(t *testing.T) storage.Store {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "sixteentons", []byte("this is the text"), 0600))
	require.NoError(t, afero.WriteFile(fs, "seventeentons", []byte("this is the text for another thing"), 0600))
	return New(fs)
}

func TestHas(t *testing.T) {
	bs := setupStore(t)

	has, err := bs.Has(context.Background(), "sixteentons")
	require.NoError(t, err)
	require.True(t, has)

	has, err = bs.Has(context.Background(), "seventeentons")
	require.NoError(t, err)
	require.True(t, has)

	has, err = bs.Has(context.Background(), "fifteentons")
	require.NoError(t, err)
	require.False(t, has)
}

func TestGet(t *testing.T) {
	bs := setupStore(t)

	rdr, err := bs.Get(context.Background(), "sixteentons")
	require.NoError(t, err)
	b, err := io.ReadAll(rdr)
	require.NoError(t, err)
	require.NoError(t, rdr.Close())
	assert.Equal(t, "this is the text", string(b))

	_, err = bs.Get(context.Background(), "fifteentons")
	require.Error(t, err)
	assert.True(t, errors.Is(err, status.ErrNotFound))
}

func TestPutExclusive(t *testing.T) {
	bs := setupStore(t)

	err := bs.Put(context.Background(), "sixteentons", bytes.NewBufferString("new content"), storage.NoOverWrite)
	require.Error(t, err)
	assert.True(t, errors.Is(err, status.ErrExists))

	require.NoError(t, bs.Put(context.Background(), "sixteentons", bytes.NewBufferString("new content"), storage.OverWrite))

	b, err := storage.ReadAllObject(context.Background(), bs, "sixteentons")
	require.NoError(t, err)
	assert.Equal(t, "new content", string(b))
}

func TestPutNested(t *testing.T) {
	bs := setupStore(t)

	require.NoError(t, bs.Put(context.Background(), "objects/ab/abcdef", bytes.NewBufferString("nested"), storage.NoOverWrite))

	has, err := bs.Has(context.Background(), "objects/ab/abcdef")
	require.NoError(t, err)
	assert.True(t, has)
}

func TestKeys(t *testing.T) {
	bs := setupStore(t)

	keys, err := bs.Keys(context.Background())
	require.NoError(t, err)
	require.Len(t, keys, 2)
}

func TestKeysPrefix(t *testing.T) {
	bs := setupStore(t)
	ctx := context.Background()

	require.NoError(t, bs.Put(ctx, "objects/aa/one", bytes.NewBufferString("1"), storage.NoOverWrite))
	require.NoError(t, bs.Put(ctx, "objects/ab/two", bytes.NewBufferString("2"), storage.NoOverWrite))
	require.NoError(t, bs.Put(ctx, "objects/ab/three", bytes.NewBufferString("3"), storage.NoOverWrite))

	keys, next, err := bs.KeysPrefix(ctx, "", "objects/", "", 2)
	require.NoError(t, err)
	require.Len(t, keys, 2)
	require.NotEmpty(t, next)

	more, last, err := bs.KeysPrefix(ctx, next, "objects/", "", 10)
	require.NoError(t, err)
	assert.Empty(t, last)
	assert.Len(t, append(keys, more...), 3)
}

func TestDelete(t *testing.T) {
	bs := setupStore(t)

	require.NoError(t, bs.Delete(context.Background(), "seventeentons"))
	k, _ := bs.Keys(context.Background())
	assert.Len(t, k, 1)

	err := bs.Delete(context.Background(), "seventeentons")
	require.Error(t, err)
	assert.True(t, errors.Is(err, status.ErrNotFound))
}
