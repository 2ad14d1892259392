// Package status declares error constants returned by the policy package.
package status

import "github.com/darianrosebrook/agent-agency/pkg/errors"

var (
	// ErrRejected indicates content hit a hard-block rule and nothing was persisted
	ErrRejected = errors.New("content rejected by policy")

	// ErrBadRule indicates a rule definition that does not compile
	ErrBadRule = errors.New("invalid policy rule")
)
