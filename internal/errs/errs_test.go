package errs

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewAndIs(t *testing.T) {
	err := New(AllocExhausted, "peer 2 next_free", io.EOF)
	require.True(t, Is(err, AllocExhausted))
	require.False(t, Is(err, IoError))
	require.Contains(t, err.Error(), "AllocExhausted")
	require.Contains(t, err.Error(), "peer 2 next_free")
}

func TestNewWithoutCause(t *testing.T) {
	err := New(InvariantViolation, "backward allocation", nil)
	require.Equal(t, "InvariantViolation: backward allocation", err.Error())
	require.Nil(t, err.Unwrap())
}
