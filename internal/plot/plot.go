// Package plot turns the history of a group of sensors sharing a unit into
// drawable frames and resolves cursor positions back to samples.
package plot

import (
	"fmt"
	"strings"
	"sync"

	"codeberg.org/mutker/thermals/internal/errors"
	"codeberg.org/mutker/thermals/internal/history"
	"codeberg.org/mutker/thermals/internal/locator"
	"codeberg.org/mutker/thermals/internal/sensor"
	"codeberg.org/mutker/thermals/internal/viewport"
)

// Store is the read side of the history a plot draws from.
type Store interface {
	viewport.Source
	locator.Source
}

type Config struct {
	Resolutions      []int
	MinPxPerBucket   float64
	Margin           float64
	GridMinSpacing   float64
	PointerTolerance int64
}

// Point is a vertex of a polyline in both pixel and data coordinates.
type Point struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Time  int64   `json:"time"`
	Value float64 `json:"value"`
}

// Polyline is the drawable history of one sensor.
type Polyline struct {
	Sensor sensor.ID `json:"sensor"`
	Name   string    `json:"name"`
	Color  string    `json:"color"`
	Points []Point   `json:"points"`
}

// GridLine is a labelled background line.
type GridLine struct {
	viewport.GridLine
	Label string `json:"label"`
}

// Frame holds everything needed to draw a plot once.
type Frame struct {
	Unit      string            `json:"unit"`
	Title     string            `json:"title"`
	Width     int               `json:"width"`
	Height    int               `json:"height"`
	Span      int64             `json:"span"`
	State     viewport.State    `json:"state"`
	Envelope  viewport.Envelope `json:"envelope"`
	GridLines []GridLine        `json:"grid_lines"`
	Series    []Polyline        `json:"series"`
}

// Selection is the sample under a cursor, ready for a tooltip.
type Selection struct {
	locator.Hit
	Name      string `json:"name"`
	Formatted string `json:"formatted"`
}

// Plot is the viewport of one unit group. Its methods are safe for
// concurrent use.
type Plot struct {
	unit    sensor.Unit
	sensors []sensor.Descriptor
	ids     []sensor.ID
	store   Store
	clock   sensor.Clock
	cfg     Config

	mu         sync.Mutex
	vp         *viewport.Viewport
	loc        *locator.Locator
	lastWidth  int
	lastHeight int
	lastSpan   int64
}

func New(unit sensor.Unit, sensors []sensor.Descriptor, store Store, clock sensor.Clock, cfg Config) *Plot {
	if cfg.GridMinSpacing <= 0 {
		cfg.GridMinSpacing = viewport.DefaultGridMinSpacing
	}

	p := &Plot{
		unit:    unit,
		sensors: append([]sensor.Descriptor(nil), sensors...),
		store:   store,
		clock:   clock,
		cfg:     cfg,
		vp: viewport.New(viewport.Config{
			Resolutions:    cfg.Resolutions,
			MinPxPerBucket: cfg.MinPxPerBucket,
			Margin:         cfg.Margin,
		}),
		loc: locator.New(store, cfg.PointerTolerance),
	}
	for _, s := range sensors {
		p.ids = append(p.ids, s.ID)
	}

	return p
}

func (p *Plot) Unit() sensor.Unit {
	return p.unit
}

// Key identifies the plot, see sensor.Unit.Key.
func (p *Plot) Key() string {
	return p.unit.Key()
}

func (p *Plot) Sensors() []sensor.Descriptor {
	return append([]sensor.Descriptor(nil), p.sensors...)
}

// Render plans the viewport for a width x height surface showing the last
// span seconds and builds the frame.
func (p *Plot) Render(width, height int, span int64) (Frame, error) {
	if err := validateSurface(width, height); err != nil {
		return Frame{}, err
	}
	if span <= 0 {
		return Frame{}, errors.New().WithData(ErrInvalidSpan, span)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	plan := p.vp.Plan(width, span, p.clock.Now())
	env := p.vp.UpdateEnvelope(p.store, p.ids, p.unit.NonNegative())
	p.lastWidth, p.lastHeight, p.lastSpan = width, height, span

	frame := Frame{
		Unit:     p.unit.Key(),
		Title:    p.title(env),
		Width:    width,
		Height:   height,
		Span:     span,
		State:    p.vp.State(),
		Envelope: env,
	}

	m := p.vp.Mapping(float64(width), float64(height))
	if !m.Valid() {
		return frame, nil
	}

	for _, gl := range viewport.GridLines(m, p.unit.PlotLines(), p.cfg.GridMinSpacing) {
		frame.GridLines = append(frame.GridLines, GridLine{
			GridLine: gl,
			Label:    strings.TrimSpace(fmt.Sprintf("%g %s", gl.Value, p.unit)),
		})
	}

	for _, s := range p.sensors {
		ms, err := p.store.Query(s.ID, plan.Resolution, plan.TimeMin, history.OldestFirst)
		if err != nil {
			return Frame{}, errors.New().Wrap(ErrRenderFailed, err)
		}
		if len(ms) == 0 {
			continue
		}
		line := Polyline{Sensor: s.ID, Name: s.Name, Color: s.Color, Points: make([]Point, len(ms))}
		for i, meas := range ms {
			line.Points[i] = Point{
				X:     m.X(float64(meas.Time)),
				Y:     m.Y(meas.Value),
				Time:  meas.Time,
				Value: meas.Value,
			}
		}
		frame.Series = append(frame.Series, line)
	}

	return frame, nil
}

// Locate resolves a cursor in plot-local pixels against the last rendered
// frame. It reports false when nothing was rendered yet or no sample is
// close enough.
func (p *Plot) Locate(x, y float64, width, height int) (Selection, bool) {
	if validateSurface(width, height) != nil {
		return Selection{}, false
	}

	p.mu.Lock()
	plan, ok := p.vp.LastPlan()
	m := p.vp.Mapping(float64(width), float64(height))
	p.mu.Unlock()
	if !ok {
		return Selection{}, false
	}

	hit, ok := p.loc.Locate(m, plan.Resolution, p.ids, x, y)
	if !ok {
		return Selection{}, false
	}

	sel := Selection{Hit: hit, Name: string(hit.Sensor), Formatted: p.unit.Format(hit.Value)}
	for _, s := range p.sensors {
		if s.ID == hit.Sensor {
			sel.Name = s.Name
			break
		}
	}

	return sel, true
}

// ClearMinMax forgets the value envelope; the next render rescans it.
func (p *Plot) ClearMinMax() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.vp.ClearEnvelope()
}

// Rescan clears the envelope and scans it again over the last rendered span
// ending now.
func (p *Plot) Rescan() viewport.Envelope {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.vp.ClearEnvelope()
	if p.lastSpan <= 0 {
		return p.vp.Envelope()
	}
	p.vp.Plan(p.lastWidth, p.lastSpan, p.clock.Now())

	return p.vp.Scan(p.store, p.ids, p.unit.NonNegative())
}

// InvalidateResolution makes the next render select its resolution again.
func (p *Plot) InvalidateResolution() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.vp.InvalidateResolution()
}

// Title is the plot heading with the current envelope, if any.
func (p *Plot) Title() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.title(p.vp.Envelope())
}

func (p *Plot) title(env viewport.Envelope) string {
	if !env.Valid {
		return p.unit.Title()
	}

	return fmt.Sprintf("%s  Min: %s Max: %s", p.unit.Title(), p.unit.Format(env.Min), p.unit.Format(env.Max))
}

func validateSurface(width, height int) error {
	if width <= 0 || height <= 0 {
		return errors.New().WithData(ErrInvalidSurface, struct {
			Width  int
			Height int
		}{
			Width:  width,
			Height: height,
		})
	}

	return nil
}
