package core

import (
	"context"
	"io"
	"path"

	"go.uber.org/zap"

	"github.com/darianrosebrook/agent-agency/pkg/cafs"
	"github.com/darianrosebrook/agent-agency/pkg/errors"
	"github.com/darianrosebrook/agent-agency/pkg/index"
	"github.com/darianrosebrook/agent-agency/pkg/model"
	"github.com/darianrosebrook/agent-agency/pkg/refs"
)

// Fsck walks the object graph from the ref table, re-verifying every
// reachable object against its digest, and reports what it finds. It never
// mutates the store: repairing is the operator's call, armed with the
// report. Unreachable objects are reported as warnings, they are gc fodder,
// not damage.
//
// Fsck shares the governor with snapshot operations, so it can run while
// ingests proceed.
func (s *Store) Fsck(ctx context.Context, opts ...FsckOption) (*model.FsckReport, error) {
	if err := s.isClosed(); err != nil {
		return nil, err
	}
	settings := fsckSettings{}
	for _, apply := range opts {
		apply(&settings)
	}

	s.gov.RLock()
	defer s.gov.RUnlock()

	checker, err := newChecker(s)
	if err != nil {
		return nil, err
	}
	defer checker.close()

	live, err := s.fsckRefs(ctx, settings)
	if err != nil {
		return nil, err
	}

	for _, ref := range live {
		checker.report.RefsChecked++
		checker.checkRef(ctx, ref)
	}

	if !settings.skipOrphans {
		if err = checker.scanOrphans(ctx); err != nil {
			return nil, err
		}
	}

	s.l.Info("fsck finished",
		zap.String("status", string(checker.report.Status)),
		zap.Int("objects", checker.report.ObjectsChecked),
		zap.Int("corrupted", checker.report.ObjectsCorrupted),
	)
	return checker.report, nil
}

func (s *Store) fsckRefs(ctx context.Context, settings fsckSettings) ([]refs.Ref, error) {
	if len(settings.refs) == 0 {
		return s.refTable.List(ctx)
	}
	live := make([]refs.Ref, 0, len(settings.refs))
	for _, name := range settings.refs {
		digest, err := s.refTable.Read(ctx, name)
		if err != nil {
			return nil, err
		}
		live = append(live, refs.Ref{Name: name, Digest: digest})
	}
	return live, nil
}

type checker struct {
	s       *Store
	report  *model.FsckReport
	reached *index.MarkSet
	// commits already verified on a previous ref's ancestry
	commitsSeen map[string]bool
	treesSeen   map[string]bool
	// per-digest verification outcomes, dedupes shared subtrees and
	// breaks recursion should a forged digest ever produce a cycle
	verified map[string]bool
}

func newChecker(s *Store) (*checker, error) {
	reached, err := index.NewMarkSet()
	if err != nil {
		return nil, err
	}
	return &checker{
		s:           s,
		report:      &model.FsckReport{Status: model.FsckOk},
		reached:     reached,
		commitsSeen: make(map[string]bool),
		treesSeen:   make(map[string]bool),
		verified:    make(map[string]bool),
	}, nil
}

func (c *checker) close() {
	_ = c.reached.Close()
}

func (c *checker) reach(ctx context.Context, digest string) {
	if key, err := cafs.KeyFromString(digest); err == nil {
		_, _ = c.reached.Mark(key)
		if chunks, e := c.s.objects.ChunksFor(ctx, key); e == nil {
			for _, chunk := range chunks {
				_, _ = c.reached.Mark(chunk)
			}
		}
	}
}

func (c *checker) checkRef(ctx context.Context, ref refs.Ref) {
	if err := c.checkCommitChain(ctx, ref.Name, ref.Digest); err != nil {
		c.report.RefsDangling++
	}
}

// checkCommitChain verifies a commit and its whole ancestry. The returned
// error reflects only the head commit: a broken ancestor corrupts the
// report but does not dangle the ref.
func (c *checker) checkCommitChain(ctx context.Context, refName, digest string) error {
	head := true
	for digest != "" {
		if c.commitsSeen[digest] {
			return nil
		}
		c.reach(ctx, digest)
		commit, err := c.verifyCommit(ctx, refName, digest)
		if err != nil {
			if head {
				return err
			}
			return nil
		}
		c.commitsSeen[digest] = true
		c.checkTree(ctx, refName, commit.Tree, ".")
		head = false
		digest = commit.Parent
	}
	return nil
}

func (c *checker) verifyCommit(ctx context.Context, refName, digest string) (*model.Commit, error) {
	if !c.verifyObject(ctx, refName, digest, "") {
		return nil, errors.New("unreadable commit")
	}
	commit, err := c.s.readCommit(ctx, digest)
	if err != nil {
		c.report.AddIssue(model.FsckIssue{
			Severity: "corrupt",
			Ref:      refName,
			Digest:   digest,
			Reason:   "commit does not decode: " + err.Error(),
		})
		return nil, err
	}
	return commit, nil
}

func (c *checker) checkTree(ctx context.Context, refName, digest, dir string) {
	if c.treesSeen[digest] {
		return
	}
	c.treesSeen[digest] = true
	c.reach(ctx, digest)
	if !c.verifyObject(ctx, refName, digest, dir) {
		return
	}
	tree, err := c.s.readTree(ctx, digest)
	if err != nil {
		c.report.AddIssue(model.FsckIssue{
			Severity: "corrupt",
			Ref:      refName,
			Digest:   digest,
			Path:     dir,
			Reason:   "tree does not decode: " + err.Error(),
		})
		return
	}
	for _, entry := range tree.Entries {
		full := path.Join(dir, entry.Name)
		switch entry.Kind {
		case model.KindDir:
			c.checkTree(ctx, refName, entry.Digest, full)
		case model.KindFile:
			c.reach(ctx, entry.Digest)
			c.verifyObject(ctx, refName, entry.Digest, full)
		}
	}
}

// verifyObject streams an object end to end, which re-hashes the payload
// against its digest. Returns false when the object is missing or damaged.
func (c *checker) verifyObject(ctx context.Context, refName, digest, pth string) bool {
	key, err := cafs.KeyFromString(digest)
	if err != nil {
		c.report.AddIssue(model.FsckIssue{
			Severity: "corrupt",
			Ref:      refName,
			Digest:   digest,
			Path:     pth,
			Reason:   "malformed digest",
		})
		return false
	}
	if ok, done := c.verified[digest]; done {
		return ok
	}

	c.report.ObjectsChecked++
	rdr, err := c.s.objects.Get(ctx, key)
	if err == nil {
		_, err = io.Copy(io.Discard, rdr)
		_ = rdr.Close()
	}
	if err != nil {
		c.report.AddIssue(model.FsckIssue{
			Severity: "corrupt",
			Ref:      refName,
			Digest:   digest,
			Path:     pth,
			Reason:   err.Error(),
		})
		c.verified[digest] = false
		return false
	}
	c.verified[digest] = true
	return true
}

// scanOrphans flags loose objects no ref reaches; they await gc
func (c *checker) scanOrphans(ctx context.Context) error {
	keys, err := c.s.objects.Keys(ctx)
	if err != nil {
		return err
	}
	for _, key := range keys {
		reached, err := c.reached.Contains(key)
		if err != nil {
			return err
		}
		if !reached {
			c.report.AddIssue(model.FsckIssue{
				Severity: "warning",
				Digest:   key.String(),
				Reason:   "orphan object, unreachable from any ref",
			})
		}
	}
	return nil
}

// Reindex drops the location index and rebuilds it from pack headers. The
// index is a cache: everything in it is recomputable from the store layout.
func (s *Store) Reindex(ctx context.Context) error {
	if err := s.isClosed(); err != nil {
		return err
	}
	s.gov.Lock()
	defer s.gov.Unlock()

	if err := s.ix.Drop(); err != nil {
		return err
	}
	packs, err := s.listPacks(ctx)
	if err != nil {
		return err
	}
	for _, pack := range packs {
		locations, err := readPackLocations(ctx, s.backend, pack)
		if err != nil {
			s.l.Warn("skipping unreadable pack during reindex",
				zap.String("pack", pack), zap.Error(err))
			continue
		}
		for key, loc := range locations {
			if err = s.ix.Set(key, loc); err != nil {
				return err
			}
		}
	}
	s.l.Info("index rebuilt", zap.Int("packs", len(packs)))
	return nil
}
