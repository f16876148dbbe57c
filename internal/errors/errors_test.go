package errors_test

import (
	stderrors "errors"
	"testing"

	"codeberg.org/mutker/thermals/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorMessages(t *testing.T) {
	errFactory := errors.New()

	err := errFactory.New(errors.ErrInvalidInterval)
	assert.Equal(t, "Invalid interval value", err.Error())
	assert.Equal(t, errors.ErrInvalidInterval, err.Code())

	err = errFactory.WithData(errors.ErrInvalidLogLevel, "loud")
	assert.Equal(t, "invalid_log_level: loud", err.Error())
	assert.Equal(t, "loud", err.GetData())

	err = errFactory.WithMessage(errors.ErrInternal, "boom")
	assert.Equal(t, "boom", err.Error())
}

func TestWrapAndHasCode(t *testing.T) {
	errFactory := errors.New()
	cause := stderrors.New("disk on fire")

	inner := errFactory.Wrap(errors.ErrReadConfig, cause)
	outer := errFactory.Wrap(errors.ErrInitApp, inner)

	require.ErrorIs(t, outer, cause)
	assert.True(t, errors.HasCode(outer, errors.ErrInitApp))
	assert.True(t, errors.HasCode(outer, errors.ErrReadConfig))
	assert.False(t, errors.HasCode(outer, errors.ErrTimeout))
	assert.False(t, errors.HasCode(cause, errors.ErrReadConfig))
	assert.False(t, errors.HasCode(nil, errors.ErrReadConfig))
	assert.Contains(t, outer.Error(), "disk on fire")
}
