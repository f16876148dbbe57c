package pid_test

import (
	"os"
	"strconv"
	"testing"

	"codeberg.org/mutker/thermals/internal/errors"
	"codeberg.org/mutker/thermals/internal/pid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteAndRemove(t *testing.T) {
	dir := t.TempDir()

	require.NoError(t, pid.Write(dir))
	b, err := os.ReadFile(pid.Path(dir))
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid()), string(b))

	err = pid.Write(dir)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrAlreadyRunning))

	require.NoError(t, pid.Remove(dir))
	_, err = os.Stat(pid.Path(dir))
	assert.True(t, os.IsNotExist(err))

	require.NoError(t, pid.Remove(dir), "removing a missing file is not an error")
}

func TestWriteReplacesStaleFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(pid.Path(dir), []byte("2147483646\n"), 0o600))

	require.NoError(t, pid.Write(dir))
	b, err := os.ReadFile(pid.Path(dir))
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid()), string(b))
}
