// Package status declares error constants returned by the refs package.
package status

import "github.com/darianrosebrook/agent-agency/pkg/errors"

var (
	// ErrMissing indicates the named ref does not exist
	ErrMissing = errors.New("ref not found")

	// ErrConflict indicates a compare-and-swap lost a race: re-read and retry
	ErrConflict = errors.New("ref update conflict")
)
