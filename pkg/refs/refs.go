// Package refs maintains named, mutable pointers into commit history.
//
// A ref is the unit of "current state" for a task. Updates are optimistic
// compare-and-swap: exactly one of two racing writers wins, the loser gets
// ErrConflict and retries against a fresh read. Every mutation passes
// through the journal before the ref table changes, so a crash between the
// two is healed by replay.
package refs

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/darianrosebrook/agent-agency/pkg/dlogger"
	"github.com/darianrosebrook/agent-agency/pkg/errors"
	"github.com/darianrosebrook/agent-agency/pkg/journal"
	"github.com/darianrosebrook/agent-agency/pkg/model"
	"github.com/darianrosebrook/agent-agency/pkg/refs/status"
	"github.com/darianrosebrook/agent-agency/pkg/storage"
	storagestatus "github.com/darianrosebrook/agent-agency/pkg/storage/status"
)

// Ref pairs a name with the commit digest it points at
type Ref struct {
	Name   string `json:"name" yaml:"name"`
	Digest string `json:"digest" yaml:"digest"`
}

// Store is the ref table over a backend store
type Store struct {
	backend storage.Store
	jnl     *journal.Journal
	l       *zap.Logger

	mu sync.Mutex // serializes CAS windows; readers take it too, so no one observes a half-written ref
}

// Option configures a ref store
type Option func(*Store)

// Logger sets a logger for this ref store
func Logger(l *zap.Logger) Option {
	return func(r *Store) {
		if l != nil {
			r.l = l
		}
	}
}

// New builds a ref table writing under refs/ on the given backend
func New(backend storage.Store, jnl *journal.Journal, opts ...Option) *Store {
	r := &Store{
		backend: backend,
		jnl:     jnl,
		l:       dlogger.MustGetLogger(dlogger.LogLevelNone),
	}
	for _, apply := range opts {
		apply(r)
	}
	return r
}

// Read returns the commit digest a ref points at
func (r *Store) Read(ctx context.Context, name string) (string, error) {
	if err := model.ValidateRefName(name); err != nil {
		return "", err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.read(ctx, name)
}

func (r *Store) read(ctx context.Context, name string) (string, error) {
	b, err := storage.ReadAllObject(ctx, r.backend, model.RefPath(name))
	if err != nil {
		if errors.Is(err, storagestatus.ErrNotFound) {
			return "", status.ErrMissing.WrapMessage(name)
		}
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

// Update moves a ref by compare-and-swap. An empty expectedOld requires
// the ref not to exist yet. On a lost race the caller re-reads and retries.
func (r *Store) Update(ctx context.Context, name, expectedOld, next string) error {
	if err := model.ValidateRefName(name); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	current, err := r.read(ctx, name)
	if err != nil && !errors.Is(err, status.ErrMissing) {
		return err
	}
	if current != expectedOld {
		r.l.Debug("ref CAS lost",
			zap.String("ref", name),
			zap.String("expected", expectedOld),
			zap.String("current", current),
		)
		return status.ErrConflict.WrapMessage(name)
	}

	// journal first: the ref table change must be recoverable
	if _, err := r.jnl.Append(ctx, &model.JournalEntry{
		Op:  model.OpRefUpdate,
		Ref: name,
		Old: expectedOld,
		New: next,
	}); err != nil {
		return err
	}
	return r.write(ctx, name, next)
}

// Delete removes a ref at retention end. Objects it kept reachable become
// eligible for the next garbage collection.
func (r *Store) Delete(ctx context.Context, name string) error {
	if err := model.ValidateRefName(name); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	current, err := r.read(ctx, name)
	if err != nil {
		return err
	}
	if _, err := r.jnl.Append(ctx, &model.JournalEntry{
		Op:  model.OpRefDelete,
		Ref: name,
		Old: current,
	}); err != nil {
		return err
	}
	return r.backend.Delete(ctx, model.RefPath(name))
}

// List returns all refs, sorted by name
func (r *Store) List(ctx context.Context) ([]Ref, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Ref
	next := ""
	for {
		batch, token, err := r.backend.KeysPrefix(ctx, next, model.RefPrefix, "", 1024)
		if err != nil {
			return nil, err
		}
		for _, pth := range batch {
			name := model.RefNameFromPath(pth)
			digest, err := r.read(ctx, name)
			if err != nil {
				if errors.Is(err, status.ErrMissing) {
					continue // deleted while listing
				}
				return nil, err
			}
			out = append(out, Ref{Name: name, Digest: digest})
		}
		if token == "" {
			return out, nil
		}
		next = token
	}
}

// Apply re-applies a journaled ref mutation during replay. Unlike Update
// it does not CAS: the journal already arbitrated the race.
func (r *Store) Apply(ctx context.Context, e *model.JournalEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch e.Op {
	case model.OpRefUpdate:
		return r.write(ctx, e.Ref, e.New)
	case model.OpRefDelete:
		err := r.backend.Delete(ctx, model.RefPath(e.Ref))
		if errors.Is(err, storagestatus.ErrNotFound) {
			return nil // already applied
		}
		return err
	default:
		return nil
	}
}

func (r *Store) write(ctx context.Context, name, digest string) error {
	return r.backend.Put(ctx, model.RefPath(name), strings.NewReader(digest+"\n"), storage.OverWrite)
}
