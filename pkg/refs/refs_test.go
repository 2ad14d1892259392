package refs

import (
	"context"
	"sync"
	"testing"

	"github.com/darianrosebrook/agent-agency/pkg/errors"
	"github.com/darianrosebrook/agent-agency/pkg/journal"
	"github.com/darianrosebrook/agent-agency/pkg/model"
	"github.com/darianrosebrook/agent-agency/pkg/refs/status"
	"github.com/darianrosebrook/agent-agency/pkg/storage"
	"github.com/darianrosebrook/agent-agency/pkg/storage/localfs"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRefs(t *testing.T) (*Store, *journal.Journal, storage.Store) {
	t.Helper()
	backend := localfs.New(afero.NewMemMapFs())
	jnl := journal.New(backend)
	return New(backend, jnl), jnl, backend
}

func TestReadMissing(t *testing.T) {
	r, _, _ := testRefs(t)

	_, err := r.Read(context.Background(), "task-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, status.ErrMissing))
}

func TestUpdateCreateAndAdvance(t *testing.T) {
	r, _, _ := testRefs(t)
	ctx := context.Background()

	require.NoError(t, r.Update(ctx, "task-1", "", "aaaa"))

	got, err := r.Read(ctx, "task-1")
	require.NoError(t, err)
	assert.Equal(t, "aaaa", got)

	require.NoError(t, r.Update(ctx, "task-1", "aaaa", "bbbb"))
	got, err = r.Read(ctx, "task-1")
	require.NoError(t, err)
	assert.Equal(t, "bbbb", got)
}

func TestUpdateConflicts(t *testing.T) {
	r, _, _ := testRefs(t)
	ctx := context.Background()

	require.NoError(t, r.Update(ctx, "task-1", "", "aaaa"))

	// stale expected value loses
	err := r.Update(ctx, "task-1", "", "cccc")
	require.Error(t, err)
	assert.True(t, errors.Is(err, status.ErrConflict))

	err = r.Update(ctx, "task-1", "zzzz", "cccc")
	require.Error(t, err)
	assert.True(t, errors.Is(err, status.ErrConflict))

	// value unchanged by failed CAS
	got, err := r.Read(ctx, "task-1")
	require.NoError(t, err)
	assert.Equal(t, "aaaa", got)
}

func TestConcurrentCASExactlyOneWins(t *testing.T) {
	r, _, _ := testRefs(t)
	ctx := context.Background()
	require.NoError(t, r.Update(ctx, "task-7", "", "old0"))

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i, next := range []string{"new-a", "new-b"} {
		wg.Add(1)
		go func(slot int, next string) {
			defer wg.Done()
			results[slot] = r.Update(ctx, "task-7", "old0", next)
		}(i, next)
	}
	wg.Wait()

	winners := 0
	for _, err := range results {
		if err == nil {
			winners++
		} else {
			assert.True(t, errors.Is(err, status.ErrConflict))
		}
	}
	assert.Equal(t, 1, winners)

	final, err := r.Read(ctx, "task-7")
	require.NoError(t, err)
	assert.Contains(t, []string{"new-a", "new-b"}, final)
}

func TestDelete(t *testing.T) {
	r, _, _ := testRefs(t)
	ctx := context.Background()

	require.NoError(t, r.Update(ctx, "task-1", "", "aaaa"))
	require.NoError(t, r.Delete(ctx, "task-1"))

	_, err := r.Read(ctx, "task-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, status.ErrMissing))

	err = r.Delete(ctx, "task-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, status.ErrMissing))
}

func TestList(t *testing.T) {
	r, _, _ := testRefs(t)
	ctx := context.Background()

	require.NoError(t, r.Update(ctx, "task-1", "", "aaaa"))
	require.NoError(t, r.Update(ctx, "task-2", "", "bbbb"))
	require.NoError(t, r.Update(ctx, "nested/task-3", "", "cccc"))

	all, err := r.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)

	byName := map[string]string{}
	for _, ref := range all {
		byName[ref.Name] = ref.Digest
	}
	assert.Equal(t, "aaaa", byName["task-1"])
	assert.Equal(t, "cccc", byName["nested/task-3"])
}

func TestUpdatesAreJournaled(t *testing.T) {
	r, jnl, _ := testRefs(t)
	ctx := context.Background()

	require.NoError(t, r.Update(ctx, "task-1", "", "aaaa"))

	pending, err := jnl.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, model.OpRefUpdate, pending[0].Op)
	assert.Equal(t, "task-1", pending[0].Ref)
	assert.Equal(t, "aaaa", pending[0].New)
}

func TestApplyReplaysMutations(t *testing.T) {
	r, _, _ := testRefs(t)
	ctx := context.Background()

	require.NoError(t, r.Apply(ctx, &model.JournalEntry{Op: model.OpRefUpdate, Ref: "task-1", New: "aaaa"}))
	got, err := r.Read(ctx, "task-1")
	require.NoError(t, err)
	assert.Equal(t, "aaaa", got)

	// idempotent re-apply
	require.NoError(t, r.Apply(ctx, &model.JournalEntry{Op: model.OpRefUpdate, Ref: "task-1", New: "aaaa"}))

	require.NoError(t, r.Apply(ctx, &model.JournalEntry{Op: model.OpRefDelete, Ref: "task-1"}))
	_, err = r.Read(ctx, "task-1")
	assert.True(t, errors.Is(err, status.ErrMissing))

	// deleting twice is fine during replay
	require.NoError(t, r.Apply(ctx, &model.JournalEntry{Op: model.OpRefDelete, Ref: "task-1"}))
}
