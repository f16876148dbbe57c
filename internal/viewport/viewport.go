// Package viewport chooses the level of detail for a plot, frames its value
// range and maps between (time, value) and pixel coordinates.
package viewport

import (
	"codeberg.org/mutker/thermals/internal/history"
	"codeberg.org/mutker/thermals/internal/sensor"
)

const (
	DefaultMinPxPerBucket = 1.5
	DefaultMargin         = 0.025
)

// Source is the read side of the history store used to frame a plot.
type Source interface {
	Query(id sensor.ID, resolution int, since int64, order history.Order) ([]history.Measurement, error)
	Newest(id sensor.ID, resolution int, since int64) (history.Measurement, bool)
}

type Config struct {
	// Resolutions in seconds, ascending.
	Resolutions []int
	// MinPxPerBucket is the horizontal room a bucket needs before a finer
	// resolution is preferred.
	MinPxPerBucket float64
	// Margin is the fraction of the value range added above and below.
	Margin float64
}

// Plan is the outcome of planning one render.
type Plan struct {
	Resolution int   `json:"resolution"`
	TimeMin    int64 `json:"time_min"`
	TimeMax    int64 `json:"time_max"`
}

// Envelope is the running value range of a plot. It only widens until it is
// cleared.
type Envelope struct {
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Valid bool    `json:"valid"`
}

// State is a snapshot of a viewport.
type State struct {
	TimeMin    int64   `json:"time_min"`
	TimeMax    int64   `json:"time_max"`
	ValueMin   float64 `json:"value_min"`
	ValueMax   float64 `json:"value_max"`
	Margin     float64 `json:"margin"`
	Resolution int     `json:"resolution"`
	Valid      bool    `json:"valid"`
}

// SelectResolution returns the first resolution that leaves at least minPx
// pixels per bucket over span seconds, or the coarsest one when none does.
func SelectResolution(resolutions []int, widthPx float64, span int64, minPx float64) int {
	if len(resolutions) == 0 {
		return 0
	}
	if span <= 0 {
		return resolutions[0]
	}

	for _, r := range resolutions {
		if widthPx/(float64(span)/float64(r)) >= minPx {
			return r
		}
	}

	return resolutions[len(resolutions)-1]
}

// Viewport holds the state of one plot between renders. It is not safe for
// concurrent use.
type Viewport struct {
	cfg Config

	resolution int
	resValid   bool
	width      int
	span       int64

	plan    Plan
	planned bool

	env Envelope
}

func New(cfg Config) *Viewport {
	if cfg.MinPxPerBucket <= 0 {
		cfg.MinPxPerBucket = DefaultMinPxPerBucket
	}
	if cfg.Margin < 0 {
		cfg.Margin = DefaultMargin
	}
	res := make([]int, len(cfg.Resolutions))
	copy(res, cfg.Resolutions)
	cfg.Resolutions = res

	return &Viewport{cfg: cfg}
}

// Plan sets the time window [now-span, now] and picks a resolution. The
// resolution is cached until the width or span changes or
// InvalidateResolution is called. A new span also clears the envelope.
func (v *Viewport) Plan(widthPx int, span int64, now int64) Plan {
	if span != v.span {
		v.span = span
		v.resValid = false
		v.ClearEnvelope()
	}
	if widthPx != v.width {
		v.width = widthPx
		v.resValid = false
	}
	if !v.resValid {
		v.resolution = SelectResolution(v.cfg.Resolutions, float64(widthPx), span, v.cfg.MinPxPerBucket)
		v.resValid = true
	}

	v.plan = Plan{Resolution: v.resolution, TimeMin: now - span, TimeMax: now}
	v.planned = true

	return v.plan
}

// LastPlan returns the most recent plan, if any.
func (v *Viewport) LastPlan() (Plan, bool) {
	return v.plan, v.planned
}

// InvalidateResolution forces the next Plan to select a resolution again.
func (v *Viewport) InvalidateResolution() {
	v.resValid = false
}

// ClearEnvelope forgets the value range; the next update rescans it.
func (v *Viewport) ClearEnvelope() {
	v.env = Envelope{}
}

func (v *Viewport) Envelope() Envelope {
	return v.env
}

// UpdateEnvelope scans the visible history of sensors when the envelope is
// unset. Otherwise only the newest visible measurement of each sensor may
// widen it; the range is never narrowed here.
func (v *Viewport) UpdateEnvelope(src Source, sensors []sensor.ID, nonNegative bool) Envelope {
	if !v.planned {
		return v.env
	}
	if !v.env.Valid {
		return v.Scan(src, sensors, nonNegative)
	}

	for _, id := range sensors {
		m, ok := src.Newest(id, v.plan.Resolution, v.plan.TimeMin)
		if !ok {
			continue
		}
		if m.Value < v.env.Min {
			v.env.Min = m.Value
		}
		if m.Value > v.env.Max {
			v.env.Max = m.Value
		}
	}

	return v.env
}

// Scan recomputes the envelope from every visible measurement of sensors at
// the planned resolution. A non-negative unit has its floor pinned at 0. A
// flat range is widened by one unit.
func (v *Viewport) Scan(src Source, sensors []sensor.ID, nonNegative bool) Envelope {
	v.env = Envelope{}
	if !v.planned {
		return v.env
	}

	var lo, hi float64
	seen := false
	for _, id := range sensors {
		ms, err := src.Query(id, v.plan.Resolution, v.plan.TimeMin, history.NewestFirst)
		if err != nil {
			continue
		}
		for _, m := range ms {
			if !seen {
				lo, hi = m.Value, m.Value
				seen = true
				continue
			}
			lo = min(lo, m.Value)
			hi = max(hi, m.Value)
		}
	}
	if !seen {
		return v.env
	}

	if nonNegative {
		lo = 0
	}
	if lo >= hi {
		hi = lo + 1
	}
	v.env = Envelope{Min: lo, Max: hi, Valid: true}

	return v.env
}

// Mapping returns the coordinate mapping of the last plan for a surface of
// the given size.
func (v *Viewport) Mapping(width, height float64) Mapping {
	return NewMapping(width, height, v.plan, v.env, v.cfg.Margin)
}

func (v *Viewport) State() State {
	lo, hi := PaddedRange(v.env, v.cfg.Margin)

	return State{
		TimeMin:    v.plan.TimeMin,
		TimeMax:    v.plan.TimeMax,
		ValueMin:   lo,
		ValueMax:   hi,
		Margin:     v.cfg.Margin,
		Resolution: v.plan.Resolution,
		Valid:      v.planned && v.env.Valid,
	}
}
