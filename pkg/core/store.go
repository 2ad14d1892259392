package core

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"sync"

	"github.com/restic/chunker"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/darianrosebrook/agent-agency/pkg/cafs"
	cafsstatus "github.com/darianrosebrook/agent-agency/pkg/cafs/status"
	"github.com/darianrosebrook/agent-agency/pkg/core/status"
	"github.com/darianrosebrook/agent-agency/pkg/dlogger"
	"github.com/darianrosebrook/agent-agency/pkg/errors"
	"github.com/darianrosebrook/agent-agency/pkg/index"
	"github.com/darianrosebrook/agent-agency/pkg/journal"
	"github.com/darianrosebrook/agent-agency/pkg/model"
	"github.com/darianrosebrook/agent-agency/pkg/policy"
	"github.com/darianrosebrook/agent-agency/pkg/refs"
	"github.com/darianrosebrook/agent-agency/pkg/storage"
	"github.com/darianrosebrook/agent-agency/pkg/storage/localfs"
	storagestatus "github.com/darianrosebrook/agent-agency/pkg/storage/status"
)

// Store is a handle on one snapshot store root. It is safe for concurrent
// use: snapshot and read operations take the governor shared, maintenance
// operations take it exclusively.
type Store struct {
	root      string
	fs        afero.Fs
	backend   storage.Store
	objects   cafs.Fs
	jnl       *journal.Journal
	refTable  *refs.Store
	ix        *index.Index
	gate      *policy.Gate
	l         *zap.Logger
	params    cafs.ChunkParams
	indexPath string

	gateRules  []policy.Rule
	extraRules []policy.Rule

	// governor: snapshot writers and readers share, gc and reindex exclude
	gov sync.RWMutex

	mu     sync.Mutex
	closed bool
}

func defaultsForStore(root string) *Store {
	return &Store{
		root:      root,
		params:    cafs.DefaultChunkParams(),
		indexPath: filepath.Join(root, model.IndexDir),
		l:         dlogger.MustGetLogger(dlogger.LogLevelNone),
	}
}

// Open a store rooted at root, creating it when empty. Unapplied journal
// entries from a previous crash are replayed before the handle is returned.
func Open(ctx context.Context, root string, opts ...Option) (*Store, error) {
	s := defaultsForStore(root)
	for _, apply := range opts {
		apply(s)
	}
	if s.backend == nil {
		if s.fs == nil {
			s.fs = afero.NewBasePathFs(afero.NewOsFs(), root)
		}
		s.backend = localfs.New(s.fs)
	}

	if err := s.checkFormat(ctx); err != nil {
		return nil, err
	}

	var err error
	s.ix, err = index.Open(s.indexPath, index.Logger(s.l))
	if err != nil {
		return nil, err
	}

	s.objects, err = cafs.New(s.backend,
		cafs.WithChunkParams(s.params),
		cafs.WithLocator(s.ix),
		cafs.Logger(s.l),
	)
	if err != nil {
		_ = s.ix.Close()
		return nil, err
	}

	s.jnl = journal.New(s.backend, journal.Logger(s.l))
	s.refTable = refs.New(s.backend, s.jnl, refs.Logger(s.l))

	gateOpts := []policy.Option{policy.Logger(s.l)}
	if s.gateRules != nil {
		gateOpts = append(gateOpts, policy.WithRules(s.gateRules))
	}
	gateOpts = append(gateOpts, policy.ExtraRules(s.extraRules...))
	s.gate, err = policy.New(gateOpts...)
	if err != nil {
		_ = s.ix.Close()
		return nil, err
	}

	if err = s.recover(ctx); err != nil {
		_ = s.ix.Close()
		return nil, err
	}
	if err = s.syncPacks(ctx); err != nil {
		_ = s.ix.Close()
		return nil, err
	}
	return s, nil
}

// checkFormat reads the format descriptor at the store root, writing a fresh
// one for an empty root. A descriptor that disagrees with the configured
// hashing or chunking parameters makes every digest uninterpretable, so the
// open is refused.
func (s *Store) checkFormat(ctx context.Context) error {
	data, err := storage.ReadAllObject(ctx, s.backend, model.FormatPath)
	if err != nil {
		if !errors.Is(err, storagestatus.ErrNotFound) {
			return err
		}
		return s.writeFormat(ctx)
	}
	desc, err := model.UnmarshalFormat(data)
	if err != nil {
		return status.ErrFormat.Wrap(err)
	}
	if desc.HashScheme != model.HashSchemeBlake2b256 ||
		chunker.Pol(desc.Polynomial) != s.params.Pol ||
		desc.MinChunk != s.params.MinSize ||
		desc.MaxChunk != s.params.MaxSize {
		return status.ErrFormat.WrapMessage(s.root)
	}
	return nil
}

func (s *Store) writeFormat(ctx context.Context) error {
	desc := model.FormatDescriptor{
		Version:    model.CurrentStoreVersion,
		HashScheme: model.HashSchemeBlake2b256,
		Polynomial: uint64(s.params.Pol),
		MinChunk:   s.params.MinSize,
		MaxChunk:   s.params.MaxSize,
	}
	data, err := desc.Serialize()
	if err != nil {
		return err
	}
	return s.backend.Put(ctx, model.FormatPath, bytes.NewReader(data), storage.NoOverWrite)
}

// recover replays journal entries left unapplied by a crash, then bounds
// future replays with a checkpoint.
func (s *Store) recover(ctx context.Context) error {
	applied, err := s.jnl.Replay(ctx, s.applyEntry)
	if err != nil {
		return err
	}
	if applied == 0 {
		return nil
	}
	s.l.Info("journal replayed", zap.Int("entries", applied))
	_, err = s.jnl.Checkpoint(ctx)
	return err
}

func (s *Store) applyEntry(ctx context.Context, e *model.JournalEntry) error {
	switch e.Op {
	case model.OpRefUpdate, model.OpRefDelete:
		return s.refTable.Apply(ctx, e)
	case model.OpBlobPut:
		// the payload was durable before the entry was written; a missing
		// object here is an orphaned entry from a torn sequence and is
		// surfaced by fsck rather than failed on
		key, err := cafs.KeyFromString(e.Digest)
		if err != nil {
			return err
		}
		ok, err := s.objects.Has(ctx, key)
		if err != nil {
			return err
		}
		if !ok {
			s.l.Warn("journaled object missing on replay", zap.String("digest", e.Digest))
		}
		return nil
	case model.OpPackCommit:
		return s.applyPackCommit(ctx, e)
	case model.OpCheckpoint:
		return nil
	default:
		s.l.Warn("skipping unknown journal op", zap.String("op", string(e.Op)))
		return nil
	}
}

// Close releases the location index. The handle must not be used afterwards.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return status.ErrClosed
	}
	s.closed = true
	return s.ix.Close()
}

func (s *Store) isClosed() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return status.ErrClosed
	}
	return nil
}

// Root returns the path this store was opened on
func (s *Store) Root() string {
	return s.root
}

// Resolve maps a ref name or a hex digest to a commit digest
func (s *Store) Resolve(ctx context.Context, refOrDigest string) (string, error) {
	if err := s.isClosed(); err != nil {
		return "", err
	}
	if _, err := cafs.KeyFromString(refOrDigest); err == nil {
		return refOrDigest, nil
	}
	digest, err := s.refTable.Read(ctx, refOrDigest)
	if err != nil {
		return "", status.ErrAmbiguousRef.Wrap(err)
	}
	return digest, nil
}

// putObject writes data as one content-addressed object and journals the
// write. Deduplicated writes are not re-journaled.
func (s *Store) putObject(ctx context.Context, data []byte) (cafs.Key, error) {
	res, err := s.objects.Put(ctx, bytes.NewReader(data))
	if err != nil {
		return cafs.Key{}, err
	}
	if res.Found {
		return res.Key, nil
	}
	chunks := make([]string, 0, len(res.Keys))
	for _, k := range res.Keys {
		chunks = append(chunks, k.String())
	}
	_, err = s.jnl.Append(ctx, &model.JournalEntry{
		Op:     model.OpBlobPut,
		Digest: res.Key.String(),
		Chunks: chunks,
	})
	if err != nil {
		return cafs.Key{}, err
	}
	return res.Key, nil
}

func (s *Store) readObject(ctx context.Context, key cafs.Key) ([]byte, error) {
	rdr, err := s.objects.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rdr.Close()
	}()
	return io.ReadAll(rdr)
}

func (s *Store) readCommit(ctx context.Context, digest string) (*model.Commit, error) {
	key, err := cafs.KeyFromString(digest)
	if err != nil {
		return nil, status.ErrCorruptCommit.WrapMessage(digest)
	}
	data, err := s.readObject(ctx, key)
	if err != nil {
		if errors.Is(err, cafsstatus.ErrNotFound) {
			return nil, status.ErrNotFound.WrapMessage(digest)
		}
		return nil, err
	}
	commit, err := model.UnmarshalCommit(data)
	if err != nil {
		return nil, status.ErrCorruptCommit.Wrap(err)
	}
	return commit, nil
}

func (s *Store) readTree(ctx context.Context, digest string) (*model.Tree, error) {
	key, err := cafs.KeyFromString(digest)
	if err != nil {
		return nil, status.ErrCorruptTree.WrapMessage(digest)
	}
	data, err := s.readObject(ctx, key)
	if err != nil {
		if errors.Is(err, cafsstatus.ErrNotFound) {
			return nil, status.ErrNotFound.WrapMessage(digest)
		}
		return nil, err
	}
	tree, err := model.UnmarshalTree(data)
	if err != nil {
		return nil, status.ErrCorruptTree.Wrap(err)
	}
	return tree, nil
}
