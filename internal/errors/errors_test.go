package errors_test

import (
	"fmt"
	"io"
	"testing"

	"codeberg.org/mutker/sensorctl/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapKeepsCodeAndCause(t *testing.T) {
	err := errors.New().Wrap(errors.ErrOperationFailed, io.ErrUnexpectedEOF)

	assert.Equal(t, errors.ErrOperationFailed, err.Code())
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Contains(t, err.Error(), "operation_failed")
	assert.Equal(t, err.Error(), err.Error(), "Error must be stable across calls")
}

func TestHasCodeWalksChain(t *testing.T) {
	inner := errors.New().New(errors.ErrTimeout)
	outer := fmt.Errorf("step: %w", errors.New().Wrap(errors.ErrEnterCapture, inner))

	assert.True(t, errors.HasCode(outer, errors.ErrTimeout))
	assert.True(t, errors.HasCode(outer, errors.ErrEnterCapture))
	assert.False(t, errors.HasCode(outer, errors.ErrInternal))
	assert.False(t, errors.HasCode(nil, errors.ErrInternal))
}

func TestWithData(t *testing.T) {
	err := errors.New().WithData(errors.ErrInvalidArgument, "gain out of range")

	require.Equal(t, "gain out of range", err.GetData())
	assert.Equal(t, "Invalid argument provided (invalid_argument): gain out of range", err.Error())

	msg := err.WithMessage("bad gain")
	assert.Equal(t, "bad gain (invalid_argument): gain out of range", msg.Error())
}
