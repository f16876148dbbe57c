package metrics

import "codeberg.org/mutker/thermals/internal/errors"

const (
	ErrRegisterFailed = errors.ErrorCode("metrics_register_failed")
)
