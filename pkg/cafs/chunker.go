package cafs

import (
	"io"

	"github.com/docker/go-units"
	"github.com/restic/chunker"

	"github.com/darianrosebrook/agent-agency/pkg/cafs/status"
)

const (
	// DefaultPol is the irreducible polynomial driving the rolling hash.
	// It is part of the store format: changing it changes every chunk
	// boundary, hence every multi-chunk digest.
	DefaultPol = chunker.Pol(0x3DA3358B4DC173)

	// DefaultMinChunkSize bounds chunks from below
	DefaultMinChunkSize = 512 * units.KiB

	// DefaultMaxChunkSize bounds chunks from above
	DefaultMaxChunkSize = 4 * units.MiB
)

// ChunkParams fixes the content-defined chunking configuration of a store
type ChunkParams struct {
	Pol     chunker.Pol `json:"polynomial" yaml:"polynomial"`
	MinSize uint        `json:"min_size" yaml:"minSize"`
	MaxSize uint        `json:"max_size" yaml:"maxSize"`
}

// DefaultChunkParams returns the store default chunking configuration
func DefaultChunkParams() ChunkParams {
	return ChunkParams{
		Pol:     DefaultPol,
		MinSize: DefaultMinChunkSize,
		MaxSize: DefaultMaxChunkSize,
	}
}

// Validate the chunking parameters
func (p ChunkParams) Validate() error {
	if p.Pol == 0 || p.MinSize == 0 || p.MaxSize < p.MinSize {
		return status.ErrChunkParams
	}
	return nil
}

// Chunk is a contiguous byte range cut out of a stream at a content-defined
// boundary, with its own digest.
type Chunk struct {
	Start  uint64
	Length uint
	Key    Key
	Data   []byte
}

// Chunker splits a stream into content-defined chunks. Local edits to a
// large stream only invalidate the chunks they touch.
//
// A Chunker is single-use and not safe for concurrent use.
type Chunker struct {
	cdc *chunker.Chunker
	buf []byte
}

// NewChunker returns a chunker over a stream, with the given parameters
func NewChunker(rd io.Reader, params ChunkParams) (*Chunker, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Chunker{
		cdc: chunker.NewWithBoundaries(rd, params.Pol, params.MinSize, params.MaxSize),
		buf: make([]byte, params.MaxSize),
	}, nil
}

// Next returns the next chunk, hashed, or io.EOF when the stream is done.
// The returned Data aliases an internal buffer and is only valid until the
// next call.
func (c *Chunker) Next() (Chunk, error) {
	chk, err := c.cdc.Next(c.buf)
	if err != nil {
		return Chunk{}, err
	}
	return Chunk{
		Start:  uint64(chk.Start),
		Length: chk.Length,
		Key:    HashBytes(chk.Data),
		Data:   chk.Data,
	}, nil
}
