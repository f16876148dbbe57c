package viewport

import "math"

// PaddedRange grows the envelope by margin of its height on both sides.
func PaddedRange(env Envelope, margin float64) (float64, float64) {
	pad := (env.Max - env.Min) * margin

	return env.Min - pad, env.Max + pad
}

// Mapping converts between data and pixel coordinates of one plot surface.
// Pixel y grows downwards.
type Mapping struct {
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	TimeMin  float64 `json:"time_min"`
	TimeMax  float64 `json:"time_max"`
	ValueMin float64 `json:"value_min"`
	ValueMax float64 `json:"value_max"`
}

func NewMapping(width, height float64, plan Plan, env Envelope, margin float64) Mapping {
	m := Mapping{
		Width:   width,
		Height:  height,
		TimeMin: float64(plan.TimeMin),
		TimeMax: float64(plan.TimeMax),
	}
	if env.Valid {
		m.ValueMin, m.ValueMax = PaddedRange(env, margin)
	}

	return m
}

// Valid is false when there is nothing to draw: an empty surface, a
// zero-width time or value range, or a non-finite bound.
func (m Mapping) Valid() bool {
	for _, f := range []float64{m.Width, m.Height, m.TimeMin, m.TimeMax, m.ValueMin, m.ValueMax} {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}

	return m.Width > 0 && m.Height > 0 && m.TimeMax != m.TimeMin && m.ValueMax != m.ValueMin
}

func (m Mapping) X(t float64) float64 {
	return m.Width * (t - m.TimeMin) / (m.TimeMax - m.TimeMin)
}

func (m Mapping) Y(v float64) float64 {
	return m.Height * (1 - (v-m.ValueMin)/(m.ValueMax-m.ValueMin))
}

// Time is the inverse of X.
func (m Mapping) Time(x float64) float64 {
	return m.TimeMin + (x/m.Width)*(m.TimeMax-m.TimeMin)
}

// Value is the inverse of Y.
func (m Mapping) Value(y float64) float64 {
	return m.ValueMax - (y/m.Height)*(m.ValueMax-m.ValueMin)
}
