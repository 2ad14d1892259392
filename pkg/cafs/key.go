package cafs

import (
	"encoding/hex"
	"fmt"
)

const (
	// KeySize for the blake2b-256 algo
	KeySize = 32

	// KeySizeHex for the hex representation of a key
	KeySizeHex = 2 * KeySize
)

// NewKey creates a new key from data
func NewKey(data []byte) (Key, error) {
	var k Key
	n := copy(k[:], data)
	if n != KeySize || len(data) != KeySize {
		return Key{}, &BadKeySize{Key: data}
	}
	return k, nil
}

// MustNewKey creates a new key from data but panics if there is an error
func MustNewKey(data []byte) Key {
	k, e := NewKey(data)
	if e != nil {
		panic(e.Error())
	}
	return k
}

// KeyFromString parses a key from its hex representation
func KeyFromString(s string) (Key, error) {
	if len(s) != KeySizeHex {
		return Key{}, &BadKeySize{Key: []byte(s)}
	}
	data, err := hex.DecodeString(s)
	if err != nil {
		return Key{}, err
	}
	return NewKey(data)
}

// Key type for CAFS keys
type Key [KeySize]byte

func (k Key) String() string {
	return hex.EncodeToString(k[:])
}

// StringWithPrefix renders a hex key with some path prefix
func (k Key) StringWithPrefix(prefix string) string {
	return prefix + k.String()
}

// IsZero indicates an unset key
func (k Key) IsZero() bool {
	return k == Key{}
}

// BadKeySize is an error that's returned when the key to create has an invalid size.
type BadKeySize struct {
	Key []byte
}

func (b *BadKeySize) Error() string {
	return fmt.Sprintf("%x has invalid size of %d, expected %d", b.Key, len(b.Key), KeySize)
}
