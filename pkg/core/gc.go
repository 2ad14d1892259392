package core

import (
	"bytes"
	"context"
	"sort"
	"time"

	"github.com/segmentio/ksuid"
	"go.uber.org/zap"

	"github.com/darianrosebrook/agent-agency/pkg/cafs"
	cafsstatus "github.com/darianrosebrook/agent-agency/pkg/cafs/status"
	"github.com/darianrosebrook/agent-agency/pkg/core/status"
	"github.com/darianrosebrook/agent-agency/pkg/errors"
	"github.com/darianrosebrook/agent-agency/pkg/index"
	"github.com/darianrosebrook/agent-agency/pkg/model"
	"github.com/darianrosebrook/agent-agency/pkg/storage"
)

// GCMode selects how far a gc run goes
type GCMode string

const (
	// GCMark computes reachability only and reports it
	GCMark GCMode = "mark"
	// GCSweep deletes unreachable loose objects and dead packs
	GCSweep GCMode = "sweep"
	// GCRepack sweeps, then consolidates every live object into one pack
	GCRepack GCMode = "repack"
)

const (
	defaultGCTimeout   = time.Hour
	defaultGCBatchSize = 256
)

// GCResult reports what a gc run did
type GCResult struct {
	Marked       int `json:"marked" yaml:"marked"`
	Swept        int `json:"swept" yaml:"swept"`
	PacksBuilt   int `json:"packsBuilt" yaml:"packsBuilt"`
	PacksDeleted int `json:"packsDeleted" yaml:"packsDeleted"`
}

// GC reclaims unreachable objects. Reachability roots are the ref table
// plus every digest named by journal entries newer than the last
// checkpoint, so payloads whose ref link is still in flight survive.
//
// GC holds the governor exclusively: no snapshot or restore runs while it
// does. Cancellation is honored at consistency checkpoints between phases
// and between deletion batches; an interrupted run leaves the store valid
// and merely under-collected.
func (s *Store) GC(ctx context.Context, mode GCMode, opts ...GCOption) (*GCResult, error) {
	if err := s.isClosed(); err != nil {
		return nil, err
	}
	switch mode {
	case GCMark, GCSweep, GCRepack:
	default:
		return nil, errors.New("unknown gc mode: " + string(mode))
	}
	settings := gcSettings{timeout: defaultGCTimeout, batchSize: defaultGCBatchSize}
	for _, apply := range opts {
		apply(&settings)
	}

	s.gov.Lock()
	defer s.gov.Unlock()

	ctx, cancel := context.WithTimeout(ctx, settings.timeout)
	defer cancel()

	marker, err := newMarker(s)
	if err != nil {
		return nil, err
	}
	defer marker.close()

	result := &GCResult{}
	if err = marker.markRoots(ctx); err != nil {
		return nil, err
	}
	result.Marked = len(marker.order)
	s.l.Info("gc mark complete", zap.Int("reachable", result.Marked))
	if mode == GCMark {
		return result, nil
	}

	if ctx.Err() != nil {
		return result, status.ErrInterrupted.Wrap(ctx.Err())
	}
	if err = s.sweep(ctx, marker, settings.batchSize, result); err != nil {
		return result, err
	}

	if mode == GCRepack {
		if ctx.Err() != nil {
			return result, status.ErrInterrupted.Wrap(ctx.Err())
		}
		if err = s.repack(ctx, marker, result); err != nil {
			return result, err
		}
	}

	// the swept state is fully applied, bound future replays here
	if _, err = s.jnl.Checkpoint(ctx); err != nil {
		return result, err
	}
	return result, nil
}

// marker accumulates the reachable object set. The set lives in a badger
// in-memory mark set; order keeps deterministic iteration for repacking.
type marker struct {
	s     *Store
	set   *index.MarkSet
	order []cafs.Key
}

func newMarker(s *Store) (*marker, error) {
	set, err := index.NewMarkSet()
	if err != nil {
		return nil, err
	}
	return &marker{s: s, set: set}, nil
}

func (m *marker) close() {
	_ = m.set.Close()
}

func (m *marker) markRoots(ctx context.Context) error {
	live, err := m.s.refTable.List(ctx)
	if err != nil {
		return err
	}
	for _, ref := range live {
		if err = m.markCommit(ctx, ref.Digest); err != nil {
			return err
		}
	}

	// in-flight writes: journaled but not yet linked to any ref
	pending, err := m.s.jnl.Pending(ctx)
	if err != nil {
		return err
	}
	for _, e := range pending {
		for _, digest := range e.Digests() {
			key, keyErr := cafs.KeyFromString(digest)
			if keyErr != nil {
				continue
			}
			if err = m.markKey(key); err != nil {
				return err
			}
		}
	}
	return nil
}

// markKey adds one key without following references
func (m *marker) markKey(key cafs.Key) error {
	added, err := m.set.Mark(key)
	if err != nil {
		return err
	}
	if added {
		m.order = append(m.order, key)
	}
	return nil
}

// markObject adds a key plus the chunks behind its root listing
func (m *marker) markObject(ctx context.Context, digest string) (cafs.Key, bool, error) {
	key, err := cafs.KeyFromString(digest)
	if err != nil {
		return key, false, nil
	}
	seen, err := m.set.Contains(key)
	if err != nil || seen {
		return key, false, err
	}
	if err = m.markKey(key); err != nil {
		return key, false, err
	}
	chunks, err := m.s.objects.ChunksFor(ctx, key)
	if err != nil {
		// unresolvable objects stay marked so gc never deletes what
		// fsck still needs to report on
		m.s.l.Warn("reachable object unresolvable during mark", zap.String("digest", digest))
		return key, true, nil
	}
	for _, chunk := range chunks {
		if err = m.markKey(chunk); err != nil {
			return key, false, err
		}
	}
	return key, true, nil
}

func (m *marker) markCommit(ctx context.Context, digest string) error {
	for digest != "" {
		_, fresh, err := m.markObject(ctx, digest)
		if err != nil {
			return err
		}
		if !fresh {
			return nil
		}
		commit, err := m.s.readCommit(ctx, digest)
		if err != nil {
			m.s.l.Warn("unreadable commit during mark", zap.String("digest", digest))
			return nil
		}
		if err = m.markTree(ctx, commit.Tree); err != nil {
			return err
		}
		digest = commit.Parent
	}
	return nil
}

func (m *marker) markTree(ctx context.Context, digest string) error {
	_, fresh, err := m.markObject(ctx, digest)
	if err != nil {
		return err
	}
	if !fresh {
		return nil
	}
	tree, err := m.s.readTree(ctx, digest)
	if err != nil {
		m.s.l.Warn("unreadable tree during mark", zap.String("digest", digest))
		return nil
	}
	for _, entry := range tree.Entries {
		switch entry.Kind {
		case model.KindDir:
			if err = m.markTree(ctx, entry.Digest); err != nil {
				return err
			}
		case model.KindFile:
			if _, _, err = m.markObject(ctx, entry.Digest); err != nil {
				return err
			}
		}
	}
	return nil
}

// sweep deletes unmarked loose objects, then packs holding no marked object
func (s *Store) sweep(ctx context.Context, m *marker, batchSize int, result *GCResult) error {
	keys, err := s.objects.Keys(ctx)
	if err != nil {
		return err
	}
	for i, key := range keys {
		if i > 0 && i%batchSize == 0 && ctx.Err() != nil {
			return status.ErrInterrupted.Wrap(ctx.Err())
		}
		marked, err := m.set.Contains(key)
		if err != nil {
			return err
		}
		if marked {
			continue
		}
		if err = s.objects.Delete(ctx, key); err != nil {
			return err
		}
		if err = s.ix.Delete(key); err != nil {
			return err
		}
		result.Swept++
	}

	packs, err := s.listPacks(ctx)
	if err != nil {
		return err
	}
	for _, pack := range packs {
		if ctx.Err() != nil {
			return status.ErrInterrupted.Wrap(ctx.Err())
		}
		dead, err := s.sweepPack(ctx, m, pack)
		if err != nil {
			return err
		}
		if dead {
			result.PacksDeleted++
		}
	}
	if result.Swept > 0 || result.PacksDeleted > 0 {
		s.l.Info("gc sweep complete",
			zap.Int("objects", result.Swept),
			zap.Int("packs", result.PacksDeleted),
		)
	}
	return nil
}

// sweepPack drops a pack once nothing in it is reachable
func (s *Store) sweepPack(ctx context.Context, m *marker, pack string) (bool, error) {
	locations, err := readPackLocations(ctx, s.backend, pack)
	if err != nil {
		s.l.Warn("unreadable pack header during sweep", zap.String("pack", pack), zap.Error(err))
		return false, nil
	}
	anyMarked := false
	for key := range locations {
		marked, e := m.set.Contains(key)
		if e != nil {
			return false, e
		}
		if marked {
			anyMarked = true
			break
		}
	}
	if anyMarked {
		return false, nil
	}
	for key := range locations {
		if err = s.ix.Delete(key); err != nil {
			return false, err
		}
	}
	return true, s.backend.Delete(ctx, pack)
}

// repack rewrites every live object into one fresh pack, journals the pack
// commit, reindexes, then drops the loose copies and the older packs. A
// crash anywhere in that sequence leaves all objects readable: the loose
// and prior pack copies stay authoritative until the commit entry lands.
func (s *Store) repack(ctx context.Context, m *marker, result *GCResult) error {
	if len(m.order) == 0 {
		return nil
	}
	before, err := s.listPacks(ctx)
	if err != nil {
		return err
	}

	live := make([]cafs.Key, len(m.order))
	copy(live, m.order)
	sort.Slice(live, func(i, j int) bool {
		return bytes.Compare(live[i][:], live[j][:]) < 0
	})

	objects := make([]packObject, 0, len(live))
	digests := make([]string, 0, len(live))
	for _, key := range live {
		data, e := s.objects.Raw(ctx, key)
		if e != nil {
			if errors.Is(e, cafsstatus.ErrNotFound) {
				// marked from a pending journal entry whose payload
				// never landed; nothing to carry over
				continue
			}
			return e
		}
		objects = append(objects, packObject{key: key, data: data})
		digests = append(digests, key.String())
	}
	if len(objects) == 0 {
		return nil
	}

	packPath := model.PackPath(ksuid.New().String())
	body, locations, err := buildPack(objects)
	if err != nil {
		return err
	}
	if err = s.backend.Put(ctx, packPath, bytes.NewReader(body), storage.NoOverWrite); err != nil {
		return err
	}

	_, err = s.jnl.Append(ctx, &model.JournalEntry{
		Op:     model.OpPackCommit,
		Pack:   packPath,
		Chunks: digests,
	})
	if err != nil {
		return err
	}

	for key, loc := range locations {
		loc.Pack = packPath
		if err = s.ix.Set(key, loc); err != nil {
			return err
		}
	}

	// from here on the pack is authoritative, duplicates can go
	for _, obj := range objects {
		err = s.objects.Delete(ctx, obj.key)
		if err != nil && !errors.Is(err, cafsstatus.ErrNotFound) {
			return err
		}
	}
	for _, pack := range before {
		if err = s.backend.Delete(ctx, pack); err != nil {
			return err
		}
	}
	result.PacksBuilt++
	result.PacksDeleted += len(before)
	s.l.Info("repack complete",
		zap.String("pack", packPath),
		zap.Int("objects", len(objects)),
	)
	return nil
}
