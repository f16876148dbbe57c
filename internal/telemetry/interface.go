package telemetry

import (
	"context"

	"codeberg.org/mutker/thermals/internal/sensor"
)

// Recorder appends sensor readings to the sample log.
type Recorder interface {
	Record(ctx context.Context, readings []sensor.Reading) error
	Close() error
}

// Repository defines the interface for sample storage
type Repository interface {
	Record(readings []sensor.Reading) error
	Close() error
}
