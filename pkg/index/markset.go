package index

import (
	"github.com/dgraph-io/badger/v3"

	"github.com/darianrosebrook/agent-agency/pkg/cafs"
)

// MarkSet is a transient set of digests, used as the reachability set
// during garbage collection. It rides a throwaway in-memory badger
// instance so that marking very large stores does not balloon the heap
// unpredictably.
type MarkSet struct {
	db *badger.DB
}

// NewMarkSet opens a transient mark set
func NewMarkSet() (*MarkSet, error) {
	db, err := badger.Open(
		badger.DefaultOptions("").
			WithInMemory(true).
			WithLoggingLevel(badger.WARNING),
	)
	if err != nil {
		return nil, err
	}
	return &MarkSet{db: db}, nil
}

// Mark adds a digest to the set, reporting whether it was new
func (m *MarkSet) Mark(key cafs.Key) (bool, error) {
	added := false
	err := m.db.Update(func(txn *badger.Txn) error {
		k := key[:]
		_, err := txn.Get(k)
		if err == nil {
			return nil
		}
		if err != badger.ErrKeyNotFound {
			return err
		}
		added = true
		return txn.Set(k, nil)
	})
	return added, err
}

// Contains reports set membership
func (m *MarkSet) Contains(key cafs.Key) (bool, error) {
	found := false
	err := m.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(key[:])
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err == nil {
			found = true
		}
		return err
	})
	return found, err
}

// Len counts marked digests
func (m *MarkSet) Len() (int, error) {
	count := 0
	err := m.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

// Close discards the set
func (m *MarkSet) Close() error {
	return m.db.Close()
}
