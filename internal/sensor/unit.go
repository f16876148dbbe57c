package sensor

import (
	"fmt"
	"math"
	"strconv"
)

// Unit is the physical quantity a sensor reports. Plots group sensors by unit.
type Unit int

const (
	Celsius Unit = iota
	RPM
	PWM
	Watt
	Percent
)

var units = []Unit{Celsius, RPM, PWM, Watt, Percent}

// Units returns every known unit in display order.
func Units() []Unit {
	out := make([]Unit, len(units))
	copy(out, units)

	return out
}

// ParseUnit resolves a unit from its key as returned by Key.
func ParseUnit(key string) (Unit, bool) {
	for _, u := range units {
		if u.Key() == key {
			return u, true
		}
	}

	return 0, false
}

func (u Unit) String() string {
	switch u {
	case Celsius:
		return "°C"
	case RPM:
		return "RPM"
	case PWM:
		return ""
	case Watt:
		return "W"
	case Percent:
		return "%"
	default:
		return "?"
	}
}

// Key is a stable lower-case identifier, used in URLs and metric labels.
func (u Unit) Key() string {
	switch u {
	case Celsius:
		return "celsius"
	case RPM:
		return "rpm"
	case PWM:
		return "pwm"
	case Watt:
		return "watt"
	case Percent:
		return "percent"
	default:
		return "unknown"
	}
}

// Title is the heading of a plot of this unit.
func (u Unit) Title() string {
	switch u {
	case Celsius:
		return "Celsius"
	case RPM:
		return "RPM"
	case PWM:
		return "PWM"
	case Watt:
		return "Watt"
	case Percent:
		return "Percent"
	default:
		return "Unknown"
	}
}

// PlotLines is the spacing between horizontal grid lines.
func (u Unit) PlotLines() float64 {
	if u == RPM {
		return 250
	}

	return 10
}

// NonNegative reports whether values of this unit can never drop below zero,
// in which case a plot's floor is pinned to 0 instead of scanned.
func (u Unit) NonNegative() bool {
	return u == RPM
}

// Round rounds a value to the precision it is displayed with.
func (u Unit) Round(value float64) float64 {
	switch u {
	case Celsius:
		return roundTo(value, 1)
	case Watt:
		if value < 100 {
			return roundTo(value, 1)
		}
		return math.Round(value)
	default:
		return math.Round(value)
	}
}

// Format renders a value with its unit.
func (u Unit) Format(value float64) string {
	switch u {
	case PWM:
		return fmt.Sprintf("%s%%", formatFloat(math.Round(value/2.55)))
	case Celsius, Percent:
		return formatFloat(u.Round(value)) + u.String()
	default:
		return formatFloat(u.Round(value)) + " " + u.String()
	}
}

func roundTo(value float64, places int) float64 {
	p := math.Pow(10, float64(places))

	return math.Round(value*p) / p
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
