package plot

import (
	"sort"

	"codeberg.org/mutker/thermals/internal/sensor"
)

// Board holds one plot per unit among the plotted sensors.
type Board struct {
	plots []*Plot
	byKey map[string]*Plot
}

// NewBoard groups the plotted sensors by unit. Plots follow the unit order
// and sensors keep their discovery order within a plot.
func NewBoard(sensors []sensor.Descriptor, store Store, clock sensor.Clock, cfg Config) *Board {
	groups := make(map[sensor.Unit][]sensor.Descriptor)
	for _, s := range sensors {
		if !s.Plot {
			continue
		}
		groups[s.Unit] = append(groups[s.Unit], s)
	}

	unitsInUse := make([]sensor.Unit, 0, len(groups))
	for u := range groups {
		unitsInUse = append(unitsInUse, u)
	}
	sort.Slice(unitsInUse, func(i, j int) bool { return unitsInUse[i] < unitsInUse[j] })

	b := &Board{byKey: make(map[string]*Plot, len(groups))}
	for _, u := range unitsInUse {
		p := New(u, groups[u], store, clock, cfg)
		b.plots = append(b.plots, p)
		b.byKey[p.Key()] = p
	}

	return b
}

func (b *Board) Plots() []*Plot {
	return append([]*Plot(nil), b.plots...)
}

func (b *Board) Plot(key string) (*Plot, bool) {
	p, ok := b.byKey[key]
	return p, ok
}

// Rescan rescans the envelope of every plot.
func (b *Board) Rescan() {
	for _, p := range b.plots {
		p.Rescan()
	}
}
