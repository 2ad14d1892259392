// Package journal provides the write-ahead log of the recovery store.
//
// Each entry is a single durable object under journal/, named by a
// k-sortable token, fsynced before the operation it records takes effect.
// Replay walks entries newer than the last checkpoint in token order. A
// torn tail entry is discarded; a torn interior entry is fatal.
package journal

import (
	"bytes"
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/segmentio/ksuid"
	"go.uber.org/zap"

	"github.com/darianrosebrook/agent-agency/pkg/dlogger"
	"github.com/darianrosebrook/agent-agency/pkg/errors"
	"github.com/darianrosebrook/agent-agency/pkg/journal/status"
	"github.com/darianrosebrook/agent-agency/pkg/model"
	"github.com/darianrosebrook/agent-agency/pkg/storage"
	storagestatus "github.com/darianrosebrook/agent-agency/pkg/storage/status"
)

const listBatchSize = 1024

// ApplyFunc is called for every entry replayed, in durability order.
// It must be idempotent: a crash between apply and checkpoint means the
// same entry is applied again on the next open.
type ApplyFunc func(context.Context, *model.JournalEntry) error

// Journal is an append-only, fsynced operation log over a backend store
type Journal struct {
	store storage.Store
	l     *zap.Logger

	mu   sync.Mutex // serializes the append stream per storage root
	last ksuid.KSUID
}

// Option configures a Journal
type Option func(*Journal)

// Logger sets a logger for this journal
func Logger(l *zap.Logger) Option {
	return func(j *Journal) {
		if l != nil {
			j.l = l
		}
	}
}

// New builds a journal writing under journal/ on the given backend
func New(store storage.Store, opts ...Option) *Journal {
	j := &Journal{
		store: store,
		l:     dlogger.MustGetLogger(dlogger.LogLevelNone),
	}
	for _, apply := range opts {
		apply(j)
	}
	return j
}

// Append makes one entry durable and returns its token. The effect the
// entry records must not be externally visible before Append returns.
func (j *Journal) Append(ctx context.Context, e *model.JournalEntry) (string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	token := ksuid.New()
	// tokens within one second carry random payloads: force monotonicity
	// so replay order matches append order
	if ksuid.Compare(token, j.last) <= 0 {
		token = j.last.Next()
	}
	j.last = token

	e.Token = token.String()
	e.Version = model.CurrentJournalVersion
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	if err := e.Seal(); err != nil {
		return "", status.ErrAppend.Wrap(err)
	}
	b, err := json.Marshal(e)
	if err != nil {
		return "", status.ErrAppend.Wrap(err)
	}
	b = append(b, '\n')

	pth := model.JournalSegmentPath(e.Token)
	if err := j.store.Put(ctx, pth, bytes.NewReader(b), storage.NoOverWrite); err != nil {
		return "", status.ErrAppend.WrapWithLog(j.l, err, zap.String("token", e.Token))
	}
	j.l.Debug("journal append", zap.String("token", e.Token), zap.String("op", string(e.Op)))
	return e.Token, nil
}

// LastCheckpoint returns the token of the last checkpoint, or empty
func (j *Journal) LastCheckpoint(ctx context.Context) (string, error) {
	b, err := storage.ReadAllObject(ctx, j.store, model.CheckpointPath)
	if err != nil {
		if errors.Is(err, storagestatus.ErrNotFound) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

// tokens lists all entry tokens in replay order
func (j *Journal) tokens(ctx context.Context) ([]string, error) {
	var out []string
	next := ""
	for {
		batch, token, err := j.store.KeysPrefix(ctx, next, model.JournalPrefix, "", listBatchSize)
		if err != nil {
			return nil, err
		}
		for _, pth := range batch {
			if !strings.HasSuffix(pth, ".log") {
				continue // the CHECKPOINT marker lives here too
			}
			out = append(out, model.TokenFromSegmentPath(pth))
		}
		if token == "" {
			break
		}
		next = token
	}
	sort.Strings(out)
	return out, nil
}

// read fetches and verifies one entry
func (j *Journal) read(ctx context.Context, token string) (*model.JournalEntry, error) {
	b, err := storage.ReadAllObject(ctx, j.store, model.JournalSegmentPath(token))
	if err != nil {
		return nil, err
	}
	var e model.JournalEntry
	if err := json.Unmarshal(bytes.TrimSpace(b), &e); err != nil {
		return nil, err
	}
	if !e.Verify() || e.Token != token {
		return nil, status.ErrReplay.WrapMessage("entry checksum mismatch at " + token)
	}
	if e.Version == 0 || e.Version > model.CurrentJournalVersion {
		return nil, model.ErrVersionMismatch
	}
	return &e, nil
}

// Replay applies every entry newer than the last checkpoint, in order.
// A corrupt entry at the very tail is discarded as a torn final write;
// corruption anywhere else returns ErrReplay.
func (j *Journal) Replay(ctx context.Context, apply ApplyFunc) (int, error) {
	checkpoint, err := j.LastCheckpoint(ctx)
	if err != nil {
		return 0, err
	}
	all, err := j.tokens(ctx)
	if err != nil {
		return 0, err
	}

	pending := make([]string, 0, len(all))
	for _, token := range all {
		if token > checkpoint {
			pending = append(pending, token)
		}
	}

	applied := 0
	for i, token := range pending {
		e, err := j.read(ctx, token)
		if err != nil {
			if i == len(pending)-1 {
				// torn tail write: the operation never took effect
				j.l.Warn("discarding torn journal tail", zap.String("token", token), zap.Error(err))
				_ = j.store.Delete(ctx, model.JournalSegmentPath(token))
				return applied, nil
			}
			return applied, status.ErrReplay.WrapWithLog(j.l, err, zap.String("token", token))
		}
		if e.Op == model.OpCheckpoint {
			continue
		}
		if err := apply(ctx, e); err != nil {
			return applied, err
		}
		applied++
	}
	return applied, nil
}

// Pending returns the entries newer than the last checkpoint. The garbage
// collector protects every digest these entries name.
func (j *Journal) Pending(ctx context.Context) ([]*model.JournalEntry, error) {
	checkpoint, err := j.LastCheckpoint(ctx)
	if err != nil {
		return nil, err
	}
	all, err := j.tokens(ctx)
	if err != nil {
		return nil, err
	}
	var out []*model.JournalEntry
	for _, token := range all {
		if token <= checkpoint {
			continue
		}
		e, err := j.read(ctx, token)
		if err != nil {
			// replay semantics decide what to do with torn entries;
			// for protection purposes an unreadable entry guards nothing
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// Checkpoint records that all entries so far are applied, then prunes
// them to bound replay time.
func (j *Journal) Checkpoint(ctx context.Context) (string, error) {
	token, err := j.Append(ctx, &model.JournalEntry{Op: model.OpCheckpoint})
	if err != nil {
		return "", status.ErrCheckpoint.Wrap(err)
	}
	if err := j.store.Put(ctx, model.CheckpointPath, strings.NewReader(token+"\n"), storage.OverWrite); err != nil {
		return "", status.ErrCheckpoint.WrapWithLog(j.l, err, zap.String("token", token))
	}

	// compact: everything up to and including the checkpoint entry is covered
	all, err := j.tokens(ctx)
	if err != nil {
		return token, nil // compaction is best effort
	}
	for _, t := range all {
		if t <= token {
			_ = j.store.Delete(ctx, model.JournalSegmentPath(t))
		}
	}
	j.l.Debug("journal checkpoint", zap.String("token", token), zap.Int("pruned", len(all)))
	return token, nil
}
