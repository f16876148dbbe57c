package viewport_test

import (
	"math"
	"testing"

	"codeberg.org/mutker/thermals/internal/viewport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMapping() viewport.Mapping {
	return viewport.NewMapping(300, 200,
		viewport.Plan{Resolution: 1, TimeMin: 820, TimeMax: 1000},
		viewport.Envelope{Min: 10, Max: 40, Valid: true},
		0.025)
}

func TestMappingEndpoints(t *testing.T) {
	m := testMapping()
	assert.True(t, m.Valid())

	assert.InDelta(t, 0, m.X(820), 1e-9)
	assert.InDelta(t, 300, m.X(1000), 1e-9)
	assert.InDelta(t, 200, m.Y(9.25), 1e-9)
	assert.InDelta(t, 0, m.Y(40.75), 1e-9)
}

func TestMappingRoundTrip(t *testing.T) {
	m := testMapping()

	for ts := 820.0; ts <= 1000; ts += 0.5 {
		x := m.X(ts)
		assert.GreaterOrEqual(t, x, 0.0)
		assert.LessOrEqual(t, x, 300.0)
		assert.InDelta(t, ts, m.Time(x), 1e-9)
	}
	for v := 9.25; v <= 40.75; v += 0.25 {
		assert.InDelta(t, v, m.Value(m.Y(v)), 1e-9)
	}
}

func TestMappingDegenerate(t *testing.T) {
	m := viewport.NewMapping(300, 200, viewport.Plan{TimeMin: 5, TimeMax: 5}, viewport.Envelope{Min: 1, Max: 2, Valid: true}, 0)
	assert.False(t, m.Valid())

	m = viewport.NewMapping(300, 200, viewport.Plan{TimeMin: 0, TimeMax: 5}, viewport.Envelope{}, 0.025)
	assert.False(t, m.Valid())

	m = viewport.NewMapping(0, 200, viewport.Plan{TimeMin: 0, TimeMax: 5}, viewport.Envelope{Min: 1, Max: 2, Valid: true}, 0)
	assert.False(t, m.Valid())
}

func TestGridLines(t *testing.T) {
	m := viewport.NewMapping(300, 400, viewport.Plan{TimeMin: 0, TimeMax: 10}, viewport.Envelope{Min: 25, Max: 75, Valid: true}, 0)

	lines := viewport.GridLines(m, 10, 40)
	values := make([]float64, len(lines))
	for i, l := range lines {
		values[i] = l.Value
		assert.InDelta(t, m.Y(l.Value), l.Y, 1e-9)
	}
	assert.Equal(t, []float64{30, 40, 50, 60, 70}, values)
}

func TestGridLinesThinning(t *testing.T) {
	m := viewport.NewMapping(300, 100, viewport.Plan{TimeMin: 0, TimeMax: 10}, viewport.Envelope{Min: 0, Max: 100, Valid: true}, 0)

	// 11 lines in 100px: halve to 6 (16px), 3 (33px), then 2 (50px).
	lines := viewport.GridLines(m, 10, 40)
	values := make([]float64, len(lines))
	for i, l := range lines {
		values[i] = l.Value
	}
	assert.Equal(t, []float64{0, 80}, values)
}

func TestGridLinesStartAtZero(t *testing.T) {
	m := viewport.NewMapping(300, 400, viewport.Plan{TimeMin: 0, TimeMax: 10}, viewport.Envelope{Min: -35, Max: 15, Valid: true}, 0)

	lines := viewport.GridLines(m, 10, 40)
	values := make([]float64, len(lines))
	for i, l := range lines {
		values[i] = l.Value
	}
	assert.Equal(t, []float64{0, 10}, values)

	assert.Nil(t, viewport.GridLines(viewport.Mapping{}, 10, 40))
}

func TestMappingNonFiniteIsInvalid(t *testing.T) {
	m := viewport.NewMapping(300, 200, viewport.Plan{TimeMin: 0, TimeMax: 180}, viewport.Envelope{Min: 40, Max: math.Inf(1), Valid: true}, 0.025)
	assert.False(t, m.Valid())
	assert.Nil(t, viewport.GridLines(m, 10, 40))

	m = viewport.NewMapping(300, 200, viewport.Plan{TimeMin: 0, TimeMax: 180}, viewport.Envelope{Min: math.NaN(), Max: 50, Valid: true}, 0.025)
	assert.False(t, m.Valid())
}

func TestGridLinesHugeRange(t *testing.T) {
	m := viewport.NewMapping(300, 200, viewport.Plan{TimeMin: 0, TimeMax: 180}, viewport.Envelope{Min: 0, Max: 1e300, Valid: true}, 0)

	lines := viewport.GridLines(m, 10, 40)
	require.NotEmpty(t, lines)
	assert.LessOrEqual(t, len(lines), 5)
	assert.Equal(t, 0.0, lines[0].Value)
}
