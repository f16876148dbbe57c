package sensor

import "time"

// ID identifies a sensor across ticks, e.g. "hwmon2:k10temp:temp1".
type ID string

// Sensor is a single readable value. Implementations are resolved once at
// discovery time.
type Sensor interface {
	ID() ID
	Name() string
	Unit() Unit
	Value() (float64, error)
}

// Reading is one sample of one sensor, taken at Time seconds on the
// monotonic clock.
type Reading struct {
	Sensor ID
	Unit   Unit
	Value  float64
	Time   int64
}

// Descriptor carries the display attributes of a sensor.
type Descriptor struct {
	ID    ID     `json:"id"`
	Name  string `json:"name"`
	Unit  Unit   `json:"-"`
	Color string `json:"color"`
	Plot  bool   `json:"plot"`
}

// Clock returns whole seconds on a monotonic clock.
type Clock interface {
	Now() int64
}

// MonotonicClock counts seconds since it was created. It never goes
// backwards when the wall clock is adjusted.
type MonotonicClock struct {
	start time.Time
}

func NewMonotonicClock() *MonotonicClock {
	return &MonotonicClock{start: time.Now()}
}

func (c *MonotonicClock) Now() int64 {
	return int64(time.Since(c.start) / time.Second)
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() int64

func (f ClockFunc) Now() int64 {
	return f()
}
