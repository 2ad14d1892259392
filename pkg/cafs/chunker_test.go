package cafs

import (
	"bytes"
	"io"
	"testing"

	"github.com/darianrosebrook/agent-agency/internal/rand"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chunkAll(t *testing.T, data []byte, params ChunkParams) []Chunk {
	t.Helper()
	cnk, err := NewChunker(bytes.NewReader(data), params)
	require.NoError(t, err)
	var chunks []Chunk
	for {
		c, err := cnk.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		// copy out: Data aliases the chunker buffer
		cp := c
		cp.Data = append([]byte(nil), c.Data...)
		chunks = append(chunks, cp)
	}
	return chunks
}

func TestChunkerDeterministic(t *testing.T) {
	data := rand.Bytes(10 << 20)
	params := DefaultChunkParams()

	first := chunkAll(t, data, params)
	second := chunkAll(t, data, params)

	require.Equal(t, len(first), len(second))
	require.Greater(t, len(first), 1)
	for i := range first {
		assert.Equal(t, first[i].Key, second[i].Key)
		assert.Equal(t, first[i].Start, second[i].Start)
		assert.Equal(t, first[i].Length, second[i].Length)
	}
}

func TestChunkerBounds(t *testing.T) {
	data := rand.Bytes(10 << 20)
	params := DefaultChunkParams()

	chunks := chunkAll(t, data, params)
	var total uint64
	for i, c := range chunks {
		if i < len(chunks)-1 {
			assert.GreaterOrEqual(t, c.Length, params.MinSize)
		}
		assert.LessOrEqual(t, c.Length, params.MaxSize)
		assert.Equal(t, total, c.Start)
		total += uint64(c.Length)
	}
	assert.Equal(t, uint64(len(data)), total)
}

func TestChunkerReassembly(t *testing.T) {
	data := rand.Bytes(6 << 20)
	var rebuilt []byte
	for _, c := range chunkAll(t, data, DefaultChunkParams()) {
		assert.Equal(t, HashBytes(c.Data), c.Key)
		rebuilt = append(rebuilt, c.Data...)
	}
	require.True(t, bytes.Equal(data, rebuilt))
}

func TestChunkerLocalEdit(t *testing.T) {
	data := rand.Bytes(10 << 20)
	edited := append([]byte(nil), data...)
	edited[5<<20] ^= 0xff

	before := chunkAll(t, data, DefaultChunkParams())
	after := chunkAll(t, edited, DefaultChunkParams())

	changed := map[Key]bool{}
	for _, c := range after {
		changed[c.Key] = true
	}
	shared := 0
	for _, c := range before {
		if changed[c.Key] {
			shared++
		}
	}
	// a one-byte edit leaves most chunks intact
	assert.Greater(t, shared, len(before)/2)
}

func TestChunkParamsValidate(t *testing.T) {
	require.NoError(t, DefaultChunkParams().Validate())

	bad := DefaultChunkParams()
	bad.Pol = 0
	require.Error(t, bad.Validate())

	bad = DefaultChunkParams()
	bad.MaxSize = bad.MinSize - 1
	require.Error(t, bad.Validate())
}
