// Package locator finds the plotted sample under a cursor.
package locator

import (
	"math"

	"codeberg.org/mutker/thermals/internal/history"
	"codeberg.org/mutker/thermals/internal/sensor"
	"codeberg.org/mutker/thermals/internal/viewport"
)

const DefaultTolerance = 10

// Source is the history lookup used to resolve a cursor position.
type Source interface {
	FirstAtOrAfter(id sensor.ID, resolution int, t int64) (history.Measurement, bool)
}

// Hit is the sample nearest to a cursor.
type Hit struct {
	Sensor sensor.ID `json:"sensor"`
	Time   int64     `json:"time"`
	Value  float64   `json:"value"`
}

type Locator struct {
	src       Source
	tolerance float64
}

// New returns a Locator that ignores samples more than tolerance seconds
// away from the cursor's time. A non-positive tolerance means
// DefaultTolerance.
func New(src Source, tolerance int64) *Locator {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}

	return &Locator{src: src, tolerance: float64(tolerance)}
}

// Locate maps the cursor at (x, y) back to a time and value through m. For
// every sensor it takes the first measurement at or after that time and
// returns the one whose value is closest to the cursor's value. Earlier
// sensors win ties.
func (l *Locator) Locate(m viewport.Mapping, resolution int, sensors []sensor.ID, x, y float64) (Hit, bool) {
	if !m.Valid() {
		return Hit{}, false
	}

	t := m.Time(x)
	v := m.Value(y)

	var best Hit
	bestDist := math.Inf(1)
	found := false
	for _, id := range sensors {
		ms, ok := l.src.FirstAtOrAfter(id, resolution, int64(math.Ceil(t)))
		if !ok {
			continue
		}
		if math.Abs(float64(ms.Time)-t) > l.tolerance {
			continue
		}
		if d := math.Abs(v - ms.Value); d < bestDist {
			best = Hit{Sensor: id, Time: ms.Time, Value: ms.Value}
			bestDist = d
			found = true
		}
	}

	return best, found
}
