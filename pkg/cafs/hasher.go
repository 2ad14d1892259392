package cafs

import (
	"bytes"
	"hash"

	blake2b "github.com/minio/blake2b-simd"

	"github.com/darianrosebrook/agent-agency/pkg/cafs/status"
)

// Hasher computes a streaming blake2b-256 digest.
//
// The zero value is not usable: construct with NewHasher.
type Hasher struct {
	h hash.Hash
}

// NewHasher returns a streaming hasher
func NewHasher() *Hasher {
	return &Hasher{h: blake2b.New256()}
}

func (h *Hasher) Write(p []byte) (int, error) {
	return h.h.Write(p)
}

// Key returns the digest of all bytes written so far
func (h *Hasher) Key() Key {
	return MustNewKey(h.h.Sum(nil))
}

// HashBytes is the one-shot form of Hasher
func HashBytes(data []byte) Key {
	sum := blake2b.Sum256(data)
	return Key(sum)
}

// BuildRootListing serializes the ordered chunk keys of an object, trailed
// by the root key itself. The trailing key doubles as an integrity check
// and as the discriminator telling listings apart from raw payloads.
func BuildRootListing(root Key, chunks []Key) []byte {
	buffer := make([]byte, 0, (len(chunks)+1)*KeySize)
	for _, k := range chunks {
		buffer = append(buffer, k[:]...)
	}
	buffer = append(buffer, root[:]...)
	return buffer
}

// IsRootListing reports whether an object body stored at key holds a chunk
// key listing rather than a raw payload. A raw payload would have to end
// with its own digest to be mistaken for a listing, which content
// addressing rules out.
func IsRootListing(key Key, data []byte) bool {
	if len(data) < 2*KeySize || len(data)%KeySize != 0 {
		return false
	}
	return bytes.Equal(data[len(data)-KeySize:], key[:])
}

// ParseRootListing extracts the ordered chunk keys from a root listing,
// verifying the trailing root key.
func ParseRootListing(root Key, data []byte) ([]Key, error) {
	if !IsRootListing(root, data) {
		return nil, status.ErrNotRootListing
	}
	body := data[:len(data)-KeySize]
	keys := make([]Key, 0, len(body)/KeySize)
	for i := 0; i < len(body); i += KeySize {
		keys = append(keys, MustNewKey(body[i:i+KeySize]))
	}
	return keys, nil
}
