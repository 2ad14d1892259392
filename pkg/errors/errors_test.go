package errors

import (
	stderr "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrap(t *testing.T) {
	base := New("base failure")
	inner := stderr.New("inner cause")

	wrapped := base.Wrap(inner)
	require.Error(t, wrapped)
	assert.True(t, Is(wrapped, base))
	assert.True(t, Is(wrapped, inner))
	assert.Contains(t, wrapped.Error(), "base failure")
	assert.Contains(t, wrapped.Error(), "inner cause")
}

func TestWrapDoesNotMutate(t *testing.T) {
	base := New("base failure")
	_ = base.Wrap(stderr.New("once"))
	_ = base.Wrap(stderr.New("twice"))

	// the original sentinel remains unwrapped
	assert.NoError(t, base.Unwrap())
}

func TestAs(t *testing.T) {
	base := New("typed failure")
	wrapped := base.Wrap(New("cause"))

	var target *Error
	require.True(t, As(wrapped, &target))
	assert.Equal(t, "typed failure: cause", target.Error())
}
