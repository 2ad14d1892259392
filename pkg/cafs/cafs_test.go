package cafs

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/darianrosebrook/agent-agency/internal/rand"
	"github.com/darianrosebrook/agent-agency/pkg/cafs/status"
	"github.com/darianrosebrook/agent-agency/pkg/errors"
	"github.com/darianrosebrook/agent-agency/pkg/storage"
	"github.com/darianrosebrook/agent-agency/pkg/storage/localfs"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFs(t *testing.T, opts ...Option) (Fs, storage.Store) {
	t.Helper()
	backend := localfs.New(afero.NewMemMapFs())
	fs, err := New(backend, opts...)
	require.NoError(t, err)
	return fs, backend
}

func TestPutIdempotent(t *testing.T) {
	fs, _ := testFs(t)
	ctx := context.Background()
	data := rand.Bytes(1 << 20)

	res, err := fs.Put(ctx, bytes.NewReader(data))
	require.NoError(t, err)
	assert.False(t, res.Found)
	assert.Equal(t, int64(len(data)), res.Written)

	again, err := fs.Put(ctx, bytes.NewReader(data))
	require.NoError(t, err)
	assert.True(t, again.Found)
	assert.Equal(t, res.Key, again.Key)
	assert.Equal(t, res.Keys, again.Keys)
}

func TestPutGetRoundTrip(t *testing.T) {
	fs, _ := testFs(t)
	ctx := context.Background()

	for _, size := range []int{0, 1, 8192, 1 << 20, 10 << 20} {
		data := rand.Bytes(size)
		res, err := fs.Put(ctx, bytes.NewReader(data))
		require.NoError(t, err)

		rdr, err := fs.Get(ctx, res.Key)
		require.NoError(t, err)
		back, err := io.ReadAll(rdr)
		require.NoError(t, err)
		require.NoError(t, rdr.Close())
		require.True(t, bytes.Equal(data, back), "size %d", size)
	}
}

func TestPutMultiChunk(t *testing.T) {
	fs, _ := testFs(t)
	ctx := context.Background()
	data := rand.Bytes(10 << 20)

	res, err := fs.Put(ctx, bytes.NewReader(data))
	require.NoError(t, err)
	require.Greater(t, len(res.Keys), 1)

	// the root resolves to its chunks
	chunks, err := fs.ChunksFor(ctx, res.Key)
	require.NoError(t, err)
	assert.Equal(t, res.Keys, chunks)

	// each chunk is an object on its own
	for _, k := range res.Keys {
		has, err := fs.Has(ctx, k)
		require.NoError(t, err)
		assert.True(t, has)
	}
}

func TestSingleChunkHasNoListing(t *testing.T) {
	fs, _ := testFs(t)
	ctx := context.Background()
	data := rand.Bytes(4096)

	res, err := fs.Put(ctx, bytes.NewReader(data))
	require.NoError(t, err)
	require.Len(t, res.Keys, 1)
	assert.Equal(t, res.Keys[0], res.Key)

	chunks, err := fs.ChunksFor(ctx, res.Key)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestSingleChunkFirstWriteIsNotFound(t *testing.T) {
	// the lone chunk doubles as the stream object here, so Found must
	// come from the chunk flush and not from re-probing the backend
	fs, _ := testFs(t)
	ctx := context.Background()
	data := rand.Bytes(4096)

	res, err := fs.Put(ctx, bytes.NewReader(data))
	require.NoError(t, err)
	require.Len(t, res.Keys, 1)
	assert.False(t, res.Found)

	again, err := fs.Put(ctx, bytes.NewReader(data))
	require.NoError(t, err)
	assert.True(t, again.Found)
}

func TestGetNotFound(t *testing.T) {
	fs, _ := testFs(t)

	_, err := fs.Get(context.Background(), HashBytes([]byte("never stored")))
	require.Error(t, err)
	assert.True(t, errors.Is(err, status.ErrNotFound))
}

func TestGetDetectsCorruption(t *testing.T) {
	fs, backend := testFs(t)
	ctx := context.Background()
	data := rand.Bytes(4096)

	res, err := fs.Put(ctx, bytes.NewReader(data))
	require.NoError(t, err)

	// flip stored bytes behind the store's back
	pth := "blobs/" + res.Key.String()[:2] + "/" + res.Key.String()
	tampered := append([]byte(nil), data...)
	tampered[0] ^= 0xff
	require.NoError(t, backend.Put(ctx, pth, bytes.NewReader(tampered), storage.OverWrite))

	_, err = fs.Get(ctx, res.Key)
	require.Error(t, err)
	assert.True(t, errors.Is(err, status.ErrCorrupted))
}

func TestChunkReaderDetectsCorruption(t *testing.T) {
	fs, backend := testFs(t)
	ctx := context.Background()
	data := rand.Bytes(10 << 20)

	res, err := fs.Put(ctx, bytes.NewReader(data))
	require.NoError(t, err)
	require.Greater(t, len(res.Keys), 1)

	victim := res.Keys[0]
	pth := "blobs/" + victim.String()[:2] + "/" + victim.String()
	require.NoError(t, backend.Put(ctx, pth, bytes.NewReader([]byte("garbage")), storage.OverWrite))

	rdr, err := fs.Get(ctx, res.Key)
	require.NoError(t, err)
	_, err = io.ReadAll(rdr)
	require.Error(t, err)
	assert.True(t, errors.Is(err, status.ErrCorrupted))
}

func TestKeysAndDelete(t *testing.T) {
	fs, _ := testFs(t)
	ctx := context.Background()

	res, err := fs.Put(ctx, bytes.NewReader(rand.Bytes(4096)))
	require.NoError(t, err)

	keys, err := fs.Keys(ctx)
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Equal(t, res.Key, keys[0])

	require.NoError(t, fs.Delete(ctx, res.Key))
	keys, err = fs.Keys(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)

	err = fs.Delete(ctx, res.Key)
	require.Error(t, err)
	assert.True(t, errors.Is(err, status.ErrNotFound))
}

func TestIdenticalContentConverges(t *testing.T) {
	fs, _ := testFs(t)
	ctx := context.Background()
	data := rand.Bytes(16 << 10)

	// concurrent writers of the same bytes land on one object set
	errC := make(chan error, 2)
	keyC := make(chan Key, 2)
	for i := 0; i < 2; i++ {
		go func() {
			res, err := fs.Put(ctx, bytes.NewReader(data))
			errC <- err
			keyC <- res.Key
		}()
	}
	require.NoError(t, <-errC)
	require.NoError(t, <-errC)
	assert.Equal(t, <-keyC, <-keyC)

	keys, err := fs.Keys(ctx)
	require.NoError(t, err)
	assert.Len(t, keys, 1)
}
