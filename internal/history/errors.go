package history

import "codeberg.org/mutker/thermals/internal/errors"

const (
	ErrInvalidConfig      = errors.ErrInvalidConfig
	ErrUnknownResolution  = errors.ErrorCode("history_unknown_resolution")
	ErrNonMonotonicSample = errors.ErrorCode("history_non_monotonic_sample")
	ErrNonFiniteSample    = errors.ErrorCode("history_non_finite_sample")
)
