package plot

import (
	"io"
	"regexp"
	"strings"

	"codeberg.org/mutker/thermals/internal/errors"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

var hexColorRe = regexp.MustCompile(`^#?[0-9a-fA-F]{6}$`)

// RenderPNG draws a frame as a PNG chart. The x axis is in seconds relative
// to the end of the frame.
func RenderPNG(w io.Writer, f Frame) error {
	errFactory := errors.New()

	var series []chart.Series
	for _, line := range f.Series {
		if len(line.Points) < 2 {
			continue
		}
		xs := make([]float64, len(line.Points))
		ys := make([]float64, len(line.Points))
		for i, pt := range line.Points {
			xs[i] = float64(pt.Time - f.State.TimeMax)
			ys[i] = pt.Value
		}
		series = append(series, chart.ContinuousSeries{
			Name:    line.Name,
			XValues: xs,
			YValues: ys,
			Style: chart.Style{
				StrokeColor: parseColor(line.Color),
				StrokeWidth: 2,
			},
		})
	}
	if len(series) == 0 || !f.State.Valid {
		return errFactory.New(ErrNoData)
	}

	var ticks []chart.Tick
	if len(f.GridLines) >= 2 {
		for _, gl := range f.GridLines {
			ticks = append(ticks, chart.Tick{Value: gl.Value, Label: gl.Label})
		}
	}

	ch := chart.Chart{
		Title:      f.Title,
		Width:      f.Width,
		Height:     f.Height,
		Background: chart.Style{Padding: chart.Box{Top: 14, Left: 16, Right: 12, Bottom: 28}},
		XAxis: chart.XAxis{
			Name:  "seconds",
			Range: &chart.ContinuousRange{Min: float64(f.State.TimeMin - f.State.TimeMax), Max: 0},
		},
		YAxis: chart.YAxis{
			Name:  f.Unit,
			Range: &chart.ContinuousRange{Min: f.State.ValueMin, Max: f.State.ValueMax},
			Ticks: ticks,
		},
		Series: series,
	}
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}

	if err := ch.Render(chart.PNG, w); err != nil {
		return errFactory.Wrap(ErrRenderFailed, err)
	}

	return nil
}

func parseColor(c string) drawing.Color {
	if !hexColorRe.MatchString(c) {
		return drawing.ColorFromHex("7f7f7f")
	}

	return drawing.ColorFromHex(strings.TrimPrefix(c, "#"))
}
