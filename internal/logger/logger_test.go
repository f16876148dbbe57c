package logger_test

import (
	"bytes"
	"testing"

	"codeberg.org/mutker/thermals/internal/errors"
	"codeberg.org/mutker/thermals/internal/logger"
	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	lvl, ok := logger.ParseLevel("debug")
	assert.True(t, ok)
	assert.Equal(t, logger.DebugLevel, lvl)

	lvl, ok = logger.ParseLevel("warning")
	assert.True(t, ok)
	assert.Equal(t, logger.WarnLevel, lvl)

	_, ok = logger.ParseLevel("chatty")
	assert.False(t, ok)
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger.InitWithWriter(&buf, "warning", true)
	t.Cleanup(func() { logger.SetLogLevel(logger.InfoLevel) })

	logger.Info().Msg("hidden")
	logger.Warn().Msg("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestErrorWithCode(t *testing.T) {
	var buf bytes.Buffer
	logger.InitWithWriter(&buf, "debug", true)
	t.Cleanup(func() { logger.SetLogLevel(logger.InfoLevel) })

	err := errors.New().New(errors.ErrNoSensors)
	logger.Default().ErrorWithCode(err).Msg("startup")

	assert.Contains(t, buf.String(), "no_sensors_found")
	assert.Contains(t, buf.String(), "startup")
}
