// Package status declares error constants returned by the journal package.
package status

import "github.com/darianrosebrook/agent-agency/pkg/errors"

var (
	// ErrAppend indicates a failure making a journal entry durable
	ErrAppend = errors.New("failed to append journal entry")

	// ErrReplay indicates an unexpected gap or interior corruption found on
	// replay. This is fatal: run fsck before using the store again.
	ErrReplay = errors.New("journal replay found interior corruption")

	// ErrCheckpoint indicates a failure writing the checkpoint marker
	ErrCheckpoint = errors.New("failed to checkpoint journal")
)
