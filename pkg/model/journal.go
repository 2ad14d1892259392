package model

import (
	"encoding/json"
	"hash/crc32"
	"time"
)

// JournalOp enumerates journaled operations
type JournalOp string

const (
	// OpBlobPut records a durably written blob (root digest plus chunk digests)
	OpBlobPut JournalOp = "blob-put"
	// OpRefUpdate records a ref move, ahead of the ref table change
	OpRefUpdate JournalOp = "ref-update"
	// OpRefDelete records a ref removal
	OpRefDelete JournalOp = "ref-delete"
	// OpPackCommit records that a pack file became authoritative for its objects
	OpPackCommit JournalOp = "pack-commit"
	// OpCheckpoint records that all prior entries have been applied
	OpCheckpoint JournalOp = "checkpoint"
)

// JournalEntry is one durable record in the write-ahead log. An entry is
// applied before its effect is externally visible.
type JournalEntry struct {
	Token   string    `json:"token"` // k-sortable unique id
	Version uint64    `json:"version"`
	Op      JournalOp `json:"op"`
	At      time.Time `json:"at"`

	// blob-put and pack-commit
	Digest string   `json:"digest,omitempty"`
	Chunks []string `json:"chunks,omitempty"`
	Pack   string   `json:"pack,omitempty"`

	// ref-update / ref-delete
	Ref string `json:"ref,omitempty"`
	Old string `json:"old,omitempty"`
	New string `json:"new,omitempty"`

	// CRC is the IEEE crc32 of the entry serialized with CRC zeroed
	CRC uint32 `json:"crc"`
	_   struct{}
}

// Seal computes the entry checksum over its serialized form
func (e *JournalEntry) Seal() error {
	e.CRC = 0
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	e.CRC = crc32.ChecksumIEEE(b)
	return nil
}

// Verify checks the entry against its embedded checksum
func (e *JournalEntry) Verify() bool {
	crc := e.CRC
	e.CRC = 0
	b, err := json.Marshal(e)
	e.CRC = crc
	if err != nil {
		return false
	}
	return crc32.ChecksumIEEE(b) == crc
}

// Digests returns every digest this entry makes durable. The garbage
// collector protects these for entries newer than the last checkpoint.
func (e *JournalEntry) Digests() []string {
	out := make([]string, 0, len(e.Chunks)+2)
	if e.Digest != "" {
		out = append(out, e.Digest)
	}
	out = append(out, e.Chunks...)
	if e.New != "" {
		out = append(out, e.New)
	}
	return out
}
