package core

import (
	"context"
	"path"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darianrosebrook/agent-agency/pkg/cafs"
	"github.com/darianrosebrook/agent-agency/pkg/core/status"
	"github.com/darianrosebrook/agent-agency/pkg/errors"
	"github.com/darianrosebrook/agent-agency/pkg/model"
)

func testStore(t *testing.T) (*Store, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	s, err := Open(context.Background(), "", WithFilesystem(fs))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = s.Close()
	})
	return s, fs
}

func reopen(t *testing.T, s *Store, fs afero.Fs) *Store {
	t.Helper()
	require.NoError(t, s.Close())
	next, err := Open(context.Background(), "", WithFilesystem(fs))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = next.Close()
	})
	return next
}

func writeSource(t *testing.T, files map[string]string) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	for pth, content := range files {
		if dir := path.Dir(pth); dir != "." {
			require.NoError(t, fs.MkdirAll(dir, 0o755))
		}
		require.NoError(t, afero.WriteFile(fs, pth, []byte(content), 0o644))
	}
	return fs
}

func requireRestored(t *testing.T, target afero.Fs, files map[string]string) {
	t.Helper()
	for pth, want := range files {
		data, err := afero.ReadFile(target, pth)
		require.NoError(t, err, pth)
		assert.Equal(t, want, string(data), pth)
	}
}

// loosePath mirrors the loose object layout for test-side tampering
func loosePath(digest string) string {
	return model.BlobPrefix + digest[:2] + "/" + digest
}

func TestOpenWritesFormatDescriptor(t *testing.T) {
	_, fs := testStore(t)
	data, err := afero.ReadFile(fs, model.FormatPath)
	require.NoError(t, err)
	desc, err := model.UnmarshalFormat(data)
	require.NoError(t, err)
	assert.Equal(t, model.HashSchemeBlake2b256, desc.HashScheme)
	assert.EqualValues(t, cafs.DefaultPol, desc.Polynomial)
}

func TestOpenRejectsForeignFormat(t *testing.T) {
	s, fs := testStore(t)
	require.NoError(t, s.Close())

	params := cafs.DefaultChunkParams()
	params.MinSize = params.MinSize / 2
	_, err := Open(context.Background(), "", WithFilesystem(fs), WithChunkParams(params))
	require.Error(t, err)
	assert.True(t, errors.Is(err, status.ErrFormat))
}

func TestOpenIdempotent(t *testing.T) {
	s, fs := testStore(t)
	s = reopen(t, s, fs)
	s = reopen(t, s, fs)
	assert.NoError(t, s.isClosed())
}

func TestClosedHandleRefuses(t *testing.T) {
	s, _ := testStore(t)
	require.NoError(t, s.Close())

	_, err := s.Ingest(context.Background(), afero.NewMemMapFs(), "task-1")
	assert.True(t, errors.Is(err, status.ErrClosed))
	_, err = s.ListRefs(context.Background())
	assert.True(t, errors.Is(err, status.ErrClosed))
	assert.True(t, errors.Is(s.Close(), status.ErrClosed))
}

func TestResolveDigestPassthrough(t *testing.T) {
	s, _ := testStore(t)
	ctx := context.Background()

	snap, err := s.Ingest(ctx, writeSource(t, map[string]string{"a.txt": "hello"}), "task-1")
	require.NoError(t, err)

	got, err := s.Resolve(ctx, snap.Commit)
	require.NoError(t, err)
	assert.Equal(t, snap.Commit, got)

	got, err = s.Resolve(ctx, "task-1")
	require.NoError(t, err)
	assert.Equal(t, snap.Commit, got)

	_, err = s.Resolve(ctx, "no-such-ref")
	assert.True(t, errors.Is(err, status.ErrAmbiguousRef))
}

// A ref move whose journal entry landed but whose ref file never did must
// surface after replay as if the move had completed.
func TestReplayHealsTornRefWrite(t *testing.T) {
	s, fs := testStore(t)
	ctx := context.Background()

	snap, err := s.Ingest(ctx, writeSource(t, map[string]string{"a.txt": "hello"}), "task-1")
	require.NoError(t, err)

	_, err = s.jnl.Append(ctx, &model.JournalEntry{
		Op:  model.OpRefUpdate,
		Ref: "healed",
		New: snap.Commit,
	})
	require.NoError(t, err)

	s = reopen(t, s, fs)
	digest, err := s.Resolve(ctx, "healed")
	require.NoError(t, err)
	assert.Equal(t, snap.Commit, digest)
}

func TestReplayIsIdempotentAcrossReopens(t *testing.T) {
	s, fs := testStore(t)
	ctx := context.Background()

	files := map[string]string{"a.txt": "hello", "b/c.txt": "world"}
	snap, err := s.Ingest(ctx, writeSource(t, files), "task-1")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		s = reopen(t, s, fs)
	}
	digest, err := s.Resolve(ctx, "task-1")
	require.NoError(t, err)
	assert.Equal(t, snap.Commit, digest)

	target := afero.NewMemMapFs()
	require.NoError(t, s.Restore(ctx, "task-1", target))
	requireRestored(t, target, files)
}
