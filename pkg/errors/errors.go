// Package errors augments the standard errors
// provided by fmt (https://golang.org/src/fmt/errors.go)
// with a Wrap() method to wrap errors without resorting
// to fmt.Errorf("%w", err).
package errors

import (
	stderr "errors"

	"go.uber.org/zap"
)

var _ error = New("")

// New Error
func New(msg string) *Error {
	return &Error{msg: msg}
}

// Error augments the standard error interface with a Wrap method.
//
// The main difference with github.com/pkg/errors is that we are wrapping
// errors from errors, not from text.
type Error struct {
	msg string
	err error
}

// Error message
func (e *Error) Error() string {
	if e.err != nil {
		return e.msg + ": " + e.err.Error()
	}
	return e.msg
}

// Unwrap nested error
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.err
}

// Wrap a nested error
func (e *Error) Wrap(err error) *Error {
	return &Error{msg: e.msg, err: err}
}

// WrapMessage wraps a nested error built from a message
func (e *Error) WrapMessage(msg string) *Error {
	return &Error{msg: e.msg, err: New(msg)}
}

// WrapWithLog wraps a nested error and logs it along with the given fields
func (e *Error) WrapWithLog(logger *zap.Logger, err error, fields ...zap.Field) *Error {
	wrapped := e.Wrap(err)
	if logger != nil {
		logger.Error(e.msg, append(fields, zap.Error(err))...)
	}
	return wrapped
}

// Is of some error type?
func (e *Error) Is(target error) bool {
	if e == target {
		return true
	}
	if o, ok := target.(*Error); ok && o.msg == e.msg {
		return true
	}
	return stderr.Is(e.err, target)
}

// As finds the first error in err's chain that matches target, and if so, sets target to that error value and returns true.
// (a shortcut to standard lib errors.As)
func As(err error, target interface{}) bool {
	return stderr.As(err, target)
}

// Is reports whether any error in err's chain matches target
// (a shortcut to standard lib errors.Is)
func Is(err, target error) bool {
	return stderr.Is(err, target)
}
