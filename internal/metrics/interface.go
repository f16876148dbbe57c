package metrics

import (
	"net/http"
	"time"

	"codeberg.org/mutker/thermals/internal/sensor"
)

// Collector instruments polling and rendering.
type Collector interface {
	// ObserveTick records one polling tick: the readings taken, the number
	// of sensors that failed to read, the samples the store rejected and
	// how long the tick took.
	ObserveTick(readings []sensor.Reading, failed, dropped int, took time.Duration)
	ObserveRender(plot string, took time.Duration)
	Handler() http.Handler
}
