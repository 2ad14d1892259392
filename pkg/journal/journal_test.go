package journal

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/darianrosebrook/agent-agency/pkg/errors"
	"github.com/darianrosebrook/agent-agency/pkg/journal/status"
	"github.com/darianrosebrook/agent-agency/pkg/model"
	"github.com/darianrosebrook/agent-agency/pkg/storage"
	"github.com/darianrosebrook/agent-agency/pkg/storage/localfs"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testJournal(t *testing.T) (*Journal, storage.Store) {
	t.Helper()
	backend := localfs.New(afero.NewMemMapFs())
	return New(backend), backend
}

func TestAppendAndReplay(t *testing.T) {
	j, _ := testJournal(t)
	ctx := context.Background()

	tokens := make([]string, 0, 5)
	for i := 0; i < 5; i++ {
		token, err := j.Append(ctx, &model.JournalEntry{
			Op:     model.OpBlobPut,
			Digest: "digest-of-" + string(rune('a'+i)),
		})
		require.NoError(t, err)
		tokens = append(tokens, token)
	}

	// tokens are strictly increasing
	for i := 1; i < len(tokens); i++ {
		assert.Less(t, tokens[i-1], tokens[i])
	}

	var replayed []string
	n, err := j.Replay(ctx, func(_ context.Context, e *model.JournalEntry) error {
		replayed = append(replayed, e.Digest)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, []string{"digest-of-a", "digest-of-b", "digest-of-c", "digest-of-d", "digest-of-e"}, replayed)
}

func TestCheckpointCompacts(t *testing.T) {
	j, _ := testJournal(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := j.Append(ctx, &model.JournalEntry{Op: model.OpBlobPut, Digest: "d"})
		require.NoError(t, err)
	}
	token, err := j.Checkpoint(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	// nothing left to replay
	n, err := j.Replay(ctx, func(context.Context, *model.JournalEntry) error { return nil })
	require.NoError(t, err)
	assert.Zero(t, n)

	pending, err := j.Pending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	// new entries land after the checkpoint
	_, err = j.Append(ctx, &model.JournalEntry{Op: model.OpRefUpdate, Ref: "task-1", New: "abcd"})
	require.NoError(t, err)

	pending, err = j.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, model.OpRefUpdate, pending[0].Op)
}

func TestReplayDiscardsTornTail(t *testing.T) {
	j, backend := testJournal(t)
	ctx := context.Background()

	_, err := j.Append(ctx, &model.JournalEntry{Op: model.OpBlobPut, Digest: "keep"})
	require.NoError(t, err)
	tail, err := j.Append(ctx, &model.JournalEntry{Op: model.OpBlobPut, Digest: "torn"})
	require.NoError(t, err)

	// simulate a crash mid-write of the final entry
	pth := model.JournalSegmentPath(tail)
	full, err := storage.ReadAllObject(ctx, backend, pth)
	require.NoError(t, err)
	require.NoError(t, backend.Put(ctx, pth, bytes.NewReader(full[:len(full)/2]), storage.OverWrite))

	var replayed []string
	n, err := j.Replay(ctx, func(_ context.Context, e *model.JournalEntry) error {
		replayed = append(replayed, e.Digest)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"keep"}, replayed)

	// the torn entry is gone for good
	has, err := backend.Has(ctx, pth)
	require.NoError(t, err)
	assert.False(t, has)
}

func TestReplayInteriorCorruptionIsFatal(t *testing.T) {
	j, backend := testJournal(t)
	ctx := context.Background()

	first, err := j.Append(ctx, &model.JournalEntry{Op: model.OpBlobPut, Digest: "first"})
	require.NoError(t, err)
	_, err = j.Append(ctx, &model.JournalEntry{Op: model.OpBlobPut, Digest: "second"})
	require.NoError(t, err)

	pth := model.JournalSegmentPath(first)
	require.NoError(t, backend.Put(ctx, pth, strings.NewReader("{\"garbage\":true}"), storage.OverWrite))

	_, err = j.Replay(ctx, func(context.Context, *model.JournalEntry) error { return nil })
	require.Error(t, err)
	assert.True(t, errors.Is(err, status.ErrReplay))
}

func TestReplayIsIdempotentAcrossOpens(t *testing.T) {
	backend := localfs.New(afero.NewMemMapFs())
	ctx := context.Background()

	j1 := New(backend)
	_, err := j1.Append(ctx, &model.JournalEntry{Op: model.OpRefUpdate, Ref: "task-9", New: "abcd"})
	require.NoError(t, err)

	// two opens without an intervening checkpoint replay the same entry
	for i := 0; i < 2; i++ {
		j := New(backend)
		count := 0
		_, err := j.Replay(ctx, func(_ context.Context, e *model.JournalEntry) error {
			count++
			assert.Equal(t, "task-9", e.Ref)
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	}
}

func TestTamperedEntryChecksum(t *testing.T) {
	j, backend := testJournal(t)
	ctx := context.Background()

	token, err := j.Append(ctx, &model.JournalEntry{Op: model.OpRefUpdate, Ref: "task-1", New: "aa"})
	require.NoError(t, err)
	_, err = j.Append(ctx, &model.JournalEntry{Op: model.OpRefUpdate, Ref: "task-1", New: "bb"})
	require.NoError(t, err)

	// flip a value without recomputing the crc
	pth := model.JournalSegmentPath(token)
	b, err := storage.ReadAllObject(ctx, backend, pth)
	require.NoError(t, err)
	tampered := bytes.Replace(b, []byte(`"aa"`), []byte(`"zz"`), 1)
	require.NoError(t, backend.Put(ctx, pth, bytes.NewReader(tampered), storage.OverWrite))

	_, err = j.Replay(ctx, func(context.Context, *model.JournalEntry) error { return nil })
	require.Error(t, err)
	assert.True(t, errors.Is(err, status.ErrReplay))
}
