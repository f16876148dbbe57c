package viewport

import "math"

const DefaultGridMinSpacing = 40

// GridLine is a horizontal background line.
type GridLine struct {
	Value float64 `json:"value"`
	Y     float64 `json:"y"`
}

// GridLines returns the multiples of spacing, counting up from 0, that fall
// inside the mapping's value range. While lines would be closer than
// minSpacing pixels every other one is dropped, keeping at least two.
func GridLines(m Mapping, spacing, minSpacing float64) []GridLine {
	if !m.Valid() || spacing <= 0 {
		return nil
	}

	k := math.Max(0, math.Ceil(m.ValueMin/spacing))
	if k*spacing > m.ValueMax {
		return nil
	}

	// Each thinning pass keeps every other line, doubling the stride.
	stride := 1.0
	count := func() float64 { return math.Floor((m.ValueMax/spacing-k)/stride) + 1 }
	for n := count(); n > 2 && m.Height/n < minSpacing; n = count() {
		stride *= 2
	}

	n := int(count())
	lines := make([]GridLine, n)
	for i := range lines {
		v := (k + float64(i)*stride) * spacing
		lines[i] = GridLine{Value: v, Y: m.Y(v)}
	}

	return lines
}
