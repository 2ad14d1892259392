// Package index keeps a disposable digest location cache in a badger KV
// store. Losing it is harmless: fsck reindex rebuilds it by re-walking
// the object graph from the refs.
//
// The cache answers two questions fast: does a digest exist at all, and
// where does a repacked digest live inside a pack file.
package index

import (
	"encoding/json"

	"github.com/dgraph-io/badger/v3"
	"go.uber.org/zap"

	"github.com/darianrosebrook/agent-agency/pkg/cafs"
	"github.com/darianrosebrook/agent-agency/pkg/dlogger"
)

// Location places an object either loose (empty Pack) or inside a pack
type Location struct {
	Pack   string `json:"pack,omitempty"`
	Offset int64  `json:"offset,omitempty"`
	Length int64  `json:"length,omitempty"`
}

// Index is the badger-backed location cache
type Index struct {
	db *badger.DB
	l  *zap.Logger
}

// Option configures an Index
type Option func(*Index)

// Logger sets a logger for this index
func Logger(l *zap.Logger) Option {
	return func(ix *Index) {
		if l != nil {
			ix.l = l
		}
	}
}

// Open the location cache at path. An empty path opens a transient
// in-memory instance (tests, mark sets).
func Open(pth string, opts ...Option) (*Index, error) {
	ix := &Index{
		l: dlogger.MustGetLogger(dlogger.LogLevelNone),
	}
	for _, apply := range opts {
		apply(ix)
	}

	var badgerOpts badger.Options
	if pth == "" {
		badgerOpts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		badgerOpts = badger.LSMOnlyOptions(pth)
	}
	db, err := badger.Open(badgerOpts.WithLoggingLevel(badger.WARNING))
	if err != nil {
		return nil, err
	}
	ix.db = db
	return ix, nil
}

// Close the underlying KV store
func (ix *Index) Close() error {
	return ix.db.Close()
}

// Set records the location of a digest
func (ix *Index) Set(key cafs.Key, loc Location) error {
	v, err := json.Marshal(loc)
	if err != nil {
		return err
	}
	return ix.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key.String()), v)
	})
}

// Get returns the recorded location of a digest
func (ix *Index) Get(key cafs.Key) (Location, bool, error) {
	var loc Location
	found := false
	err := ix.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key.String()))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return nil
			}
			return err
		}
		v, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		found = true
		return json.Unmarshal(v, &loc)
	})
	return loc, found, err
}

// Has reports whether a digest is indexed at all
func (ix *Index) Has(key cafs.Key) (bool, error) {
	_, found, err := ix.Get(key)
	return found, err
}

// Delete drops one digest from the cache
func (ix *Index) Delete(key cafs.Key) error {
	return ix.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key.String()))
	})
}

// Drop scratches the whole cache, ahead of a rebuild
func (ix *Index) Drop() error {
	ix.l.Debug("dropping location cache")
	return ix.db.DropAll()
}

// Locate implements the cafs pack locator over indexed locations.
// Loose objects answer not-ok: the loose area is authoritative for them.
func (ix *Index) Locate(key cafs.Key) (string, int64, int64, bool) {
	loc, found, err := ix.Get(key)
	if err != nil || !found || loc.Pack == "" {
		return "", 0, 0, false
	}
	return loc.Pack, loc.Offset, loc.Length, true
}

var _ cafs.Locator = &Index{}
