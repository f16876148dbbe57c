package sensor

import "codeberg.org/mutker/thermals/internal/errors"

const (
	ErrReadFailed      = errors.ErrorCode("sensor_read_failed")
	ErrParseFailed     = errors.ErrorCode("sensor_parse_failed")
	ErrDiscoveryFailed = errors.ErrorCode("sensor_discovery_failed")
)
