package core

import (
	"context"
	"os"
	"path"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/darianrosebrook/agent-agency/pkg/cafs"
	"github.com/darianrosebrook/agent-agency/pkg/core/status"
	"github.com/darianrosebrook/agent-agency/pkg/errors"
	"github.com/darianrosebrook/agent-agency/pkg/model"
	"github.com/darianrosebrook/agent-agency/pkg/policy"
	refsstatus "github.com/darianrosebrook/agent-agency/pkg/refs/status"
)

// refUpdateRetries bounds the compare-and-set loop when concurrent ingests
// race on the same ref. Each loser rebuilds its commit on the new parent.
const refUpdateRetries = 10

// Snapshot identifies a recorded snapshot
type Snapshot struct {
	Ref    string `json:"ref" yaml:"ref"`
	Commit string `json:"commit" yaml:"commit"`
	Tree   string `json:"tree" yaml:"tree"`
}

// Ingest records the contents of source as a snapshot for taskID and links
// it to the task's ref. Identical content across snapshots deduplicates to
// the same objects; ingesting an unchanged source advances the ref to a new
// commit over the same tree.
//
// Content that trips a blocking admission rule fails the whole ingest:
// nothing is linked to the ref.
func (s *Store) Ingest(ctx context.Context, source afero.Fs, taskID string, opts ...IngestOption) (*Snapshot, error) {
	if err := s.isClosed(); err != nil {
		return nil, err
	}
	settings := ingestSettings{ref: taskID, at: time.Now()}
	for _, apply := range opts {
		apply(&settings)
	}
	if err := model.ValidateRefName(settings.ref); err != nil {
		return nil, err
	}

	s.gov.RLock()
	defer s.gov.RUnlock()

	treeKey, err := s.ingestDir(ctx, source, ".")
	if err != nil {
		return nil, status.ErrIngest.Wrap(err)
	}
	return s.link(ctx, settings, taskID, treeKey.String())
}

// IngestPath is Ingest over a directory on the host filesystem
func (s *Store) IngestPath(ctx context.Context, sourcePath, taskID string, opts ...IngestOption) (*Snapshot, error) {
	return s.Ingest(ctx, afero.NewBasePathFs(afero.NewOsFs(), sourcePath), taskID, opts...)
}

// IngestBytes records a single named payload as a one-file snapshot
func (s *Store) IngestBytes(ctx context.Context, name string, data []byte, taskID string, opts ...IngestOption) (*Snapshot, error) {
	if err := s.isClosed(); err != nil {
		return nil, err
	}
	settings := ingestSettings{ref: taskID, at: time.Now()}
	for _, apply := range opts {
		apply(&settings)
	}
	if err := model.ValidateRefName(settings.ref); err != nil {
		return nil, err
	}

	s.gov.RLock()
	defer s.gov.RUnlock()

	entry, err := s.ingestFile(ctx, name, name, 0o644, data)
	if err != nil {
		return nil, status.ErrIngest.Wrap(err)
	}
	tree, err := model.NewTree([]model.TreeEntry{entry})
	if err != nil {
		return nil, err
	}
	treeKey, err := s.putTree(ctx, tree)
	if err != nil {
		return nil, status.ErrIngest.Wrap(err)
	}
	return s.link(ctx, settings, taskID, treeKey.String())
}

// link builds a commit over tree and moves the ref to it, retrying on
// compare-and-set conflicts with the losing commit rebuilt on the winner.
func (s *Store) link(ctx context.Context, settings ingestSettings, taskID, tree string) (*Snapshot, error) {
	for attempt := 0; attempt < refUpdateRetries; attempt++ {
		parent, err := s.refTable.Read(ctx, settings.ref)
		if err != nil && !errors.Is(err, refsstatus.ErrMissing) {
			return nil, err
		}

		commit := model.NewCommit(tree, parent, taskID, settings.author, settings.message, settings.at)
		data, err := commit.Serialize()
		if err != nil {
			return nil, err
		}
		commitKey, err := s.putObject(ctx, data)
		if err != nil {
			return nil, status.ErrIngest.Wrap(err)
		}

		err = s.refTable.Update(ctx, settings.ref, parent, commitKey.String())
		if err == nil {
			s.l.Info("snapshot recorded",
				zap.String("ref", settings.ref),
				zap.String("commit", commitKey.String()),
				zap.String("tree", tree),
			)
			return &Snapshot{Ref: settings.ref, Commit: commitKey.String(), Tree: tree}, nil
		}
		if !errors.Is(err, refsstatus.ErrConflict) {
			return nil, err
		}
		s.l.Debug("ref moved underneath us, rebasing commit",
			zap.String("ref", settings.ref),
			zap.Int("attempt", attempt),
		)
		time.Sleep(time.Duration(attempt+1) * 5 * time.Millisecond)
	}
	return nil, refsstatus.ErrConflict.WrapMessage(settings.ref)
}

// ingestDir snapshots one directory bottom-up and returns its tree digest
func (s *Store) ingestDir(ctx context.Context, source afero.Fs, dir string) (key cafs.Key, err error) {
	infos, err := afero.ReadDir(source, dir)
	if err != nil {
		return key, err
	}

	entries := make([]model.TreeEntry, 0, len(infos))
	for _, fi := range infos {
		full := path.Join(dir, fi.Name())
		mode := uint32(fi.Mode().Perm())

		switch {
		case fi.IsDir():
			sub, e := s.ingestDir(ctx, source, full)
			if e != nil {
				return key, e
			}
			entries = append(entries, model.TreeEntry{
				Name:   fi.Name(),
				Kind:   model.KindDir,
				Mode:   mode,
				Digest: sub.String(),
			})

		case isSymlink(source, full, fi):
			target, e := readLink(source, full)
			if e != nil {
				return key, e
			}
			entries = append(entries, model.TreeEntry{
				Name:   fi.Name(),
				Kind:   model.KindSymlink,
				Target: target,
			})

		case fi.Mode().IsRegular():
			data, e := afero.ReadFile(source, full)
			if e != nil {
				return key, e
			}
			entry, e := s.ingestFile(ctx, full, fi.Name(), mode, data)
			if e != nil {
				return key, e
			}
			entries = append(entries, entry)

		default:
			s.l.Debug("skipping special file", zap.String("path", full))
		}
	}

	tree, err := model.NewTree(entries)
	if err != nil {
		return key, err
	}
	return s.putTree(ctx, tree)
}

// ingestFile screens one payload through the admission gate and stores
// whatever the gate admits, which may be a redacted variant.
func (s *Store) ingestFile(ctx context.Context, pth, name string, mode uint32, data []byte) (model.TreeEntry, error) {
	decision, err := s.gate.Admit(pth, data)
	if err != nil {
		return model.TreeEntry{}, err
	}
	if decision.Verdict == policy.Redacted {
		s.l.Info("content redacted on ingest",
			zap.String("path", pth),
			zap.Strings("rules", decision.Rules),
		)
	}
	key, err := s.putObject(ctx, decision.Bytes)
	if err != nil {
		return model.TreeEntry{}, err
	}
	return model.TreeEntry{
		Name:   name,
		Kind:   model.KindFile,
		Mode:   mode,
		Digest: key.String(),
		Size:   int64(len(decision.Bytes)),
	}, nil
}

func (s *Store) putTree(ctx context.Context, tree *model.Tree) (cafs.Key, error) {
	data, err := tree.Serialize()
	if err != nil {
		return cafs.Key{}, err
	}
	return s.putObject(ctx, data)
}

func isSymlink(fs afero.Fs, pth string, fi os.FileInfo) bool {
	if fi.Mode()&os.ModeSymlink != 0 {
		return true
	}
	// BasePathFs wraps the lstat result away from ReadDir on some backends
	if lr, ok := fs.(afero.Lstater); ok {
		if st, lstatted, err := lr.LstatIfPossible(pth); err == nil && lstatted {
			return st.Mode()&os.ModeSymlink != 0
		}
	}
	return false
}

func readLink(fs afero.Fs, pth string) (string, error) {
	lr, ok := fs.(afero.LinkReader)
	if !ok {
		return "", status.ErrIngest.WrapMessage("filesystem cannot read symlinks: " + pth)
	}
	return lr.ReadlinkIfPossible(pth)
}
