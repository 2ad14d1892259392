package core

import (
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/darianrosebrook/agent-agency/pkg/cafs"
	"github.com/darianrosebrook/agent-agency/pkg/policy"
	"github.com/darianrosebrook/agent-agency/pkg/storage"
)

// Option configures a Store at Open time
type Option func(*Store)

// Logger sets a logger for this store
func Logger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.l = l
		}
	}
}

// WithFilesystem overrides the filesystem backing the store root. The
// location index moves in-memory, since badger needs a real directory.
func WithFilesystem(fs afero.Fs) Option {
	return func(s *Store) {
		s.fs = fs
		s.indexPath = ""
	}
}

// WithBackend overrides the object storage backend entirely
func WithBackend(backend storage.Store) Option {
	return func(s *Store) {
		s.backend = backend
		s.indexPath = ""
	}
}

// WithChunkParams sets the content-defined chunking configuration used when
// initializing a fresh store. Opening an existing store with parameters that
// disagree with its format descriptor fails.
func WithChunkParams(p cafs.ChunkParams) Option {
	return func(s *Store) {
		s.params = p
	}
}

// WithGateRules replaces the default admission rule set
func WithGateRules(rules []policy.Rule) Option {
	return func(s *Store) {
		s.gateRules = rules
	}
}

// ExtraGateRules appends admission rules after the default set
func ExtraGateRules(rules ...policy.Rule) Option {
	return func(s *Store) {
		s.extraRules = append(s.extraRules, rules...)
	}
}

// InMemoryIndex keeps the location index off disk
func InMemoryIndex() Option {
	return func(s *Store) {
		s.indexPath = ""
	}
}

// IngestOption configures a single ingest operation
type IngestOption func(*ingestSettings)

type ingestSettings struct {
	ref     string
	author  string
	message string
	at      time.Time
}

// IngestRef overrides the ref the resulting commit is linked to. The
// default ref is the task id.
func IngestRef(name string) IngestOption {
	return func(o *ingestSettings) {
		o.ref = name
	}
}

// IngestAuthor records the author on the resulting commit
func IngestAuthor(author string) IngestOption {
	return func(o *ingestSettings) {
		o.author = author
	}
}

// IngestMessage records a message on the resulting commit
func IngestMessage(message string) IngestOption {
	return func(o *ingestSettings) {
		o.message = message
	}
}

// IngestTimestamp overrides the commit timestamp
func IngestTimestamp(at time.Time) IngestOption {
	return func(o *ingestSettings) {
		o.at = at
	}
}

// GCOption configures a single gc run
type GCOption func(*gcSettings)

type gcSettings struct {
	timeout   time.Duration
	batchSize int
}

// GCTimeout bounds the wall-clock time of a gc run. The run stops with
// ErrInterrupted at the next consistency checkpoint after the deadline.
func GCTimeout(d time.Duration) GCOption {
	return func(o *gcSettings) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// GCBatchSize sets the number of deletions between cancellation checks
func GCBatchSize(n int) GCOption {
	return func(o *gcSettings) {
		if n > 0 {
			o.batchSize = n
		}
	}
}

// FsckOption configures a single fsck run
type FsckOption func(*fsckSettings)

type fsckSettings struct {
	refs        []string
	skipOrphans bool
}

// FsckRefs restricts the check to the given refs instead of all of them.
// Orphan detection is skipped, since reachability is partial.
func FsckRefs(names ...string) FsckOption {
	return func(o *fsckSettings) {
		o.refs = append(o.refs, names...)
		o.skipOrphans = true
	}
}

// FsckSkipOrphans disables the orphan object scan
func FsckSkipOrphans() FsckOption {
	return func(o *fsckSettings) {
		o.skipOrphans = true
	}
}
