package cafs

import (
	"testing"

	"github.com/darianrosebrook/agent-agency/internal/rand"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewKey(t *testing.T) {
	data := rand.Bytes(KeySize)
	k, err := NewKey(data)
	require.NoError(t, err)
	assert.Equal(t, data, k[:])

	_, err = NewKey(data[:KeySize-1])
	require.Error(t, err)
	var bad *BadKeySize
	require.ErrorAs(t, err, &bad)
}

func TestKeyFromString(t *testing.T) {
	k := HashBytes([]byte("some content"))
	parsed, err := KeyFromString(k.String())
	require.NoError(t, err)
	assert.Equal(t, k, parsed)

	_, err = KeyFromString("abcdef")
	require.Error(t, err)

	_, err = KeyFromString("zz" + k.String()[2:])
	require.Error(t, err)
}

func TestKeyFromPath(t *testing.T) {
	k := HashBytes([]byte("pathed"))
	parsed, err := keyFromPath("blobs/" + k.String()[:2] + "/" + k.String())
	require.NoError(t, err)
	assert.Equal(t, k, parsed)

	_, err = keyFromPath("blobs/short")
	require.Error(t, err)
}
