package server

import "codeberg.org/mutker/thermals/internal/errors"

const (
	ErrBadRequest  = errors.ErrorCode("server_bad_request")
	ErrUnknownPlot = errors.ErrorCode("server_unknown_plot")
	ErrListen      = errors.ErrServerFailed
)
