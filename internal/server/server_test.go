package server_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"codeberg.org/mutker/thermals/internal/config"
	"codeberg.org/mutker/thermals/internal/history"
	"codeberg.org/mutker/thermals/internal/metrics"
	"codeberg.org/mutker/thermals/internal/plot"
	"codeberg.org/mutker/thermals/internal/sensor"
	"codeberg.org/mutker/thermals/internal/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type latest map[sensor.ID]sensor.Reading

func (l latest) Latest(id sensor.ID) (sensor.Reading, bool) {
	r, ok := l[id]
	return r, ok
}

var descriptors = []sensor.Descriptor{
	{ID: "cpu", Name: "CPU", Unit: sensor.Celsius, Color: "#ff0000", Plot: true},
	{ID: "fan1", Name: "Fan 1", Unit: sensor.RPM, Color: "#00ff00", Plot: true},
}

func newHandler(t *testing.T) http.Handler {
	t.Helper()

	store, err := history.NewStore(history.Config{Resolutions: []int{1, 3, 10, 30}, Capacity: 1000})
	require.NoError(t, err)
	for i := int64(0); i <= 100; i++ {
		require.NoError(t, store.Ingest("cpu", history.Sample{Time: i, Value: 40 + float64(i%2)*10}))
		require.NoError(t, store.Ingest("fan1", history.Sample{Time: i, Value: 900}))
	}

	clock := sensor.ClockFunc(func() int64 { return 100 })
	board := plot.NewBoard(descriptors, store, clock, plot.Config{
		Resolutions:      []int{1, 3, 10, 30},
		MinPxPerBucket:   1.5,
		Margin:           0.025,
		GridMinSpacing:   40,
		PointerTolerance: 10,
	})

	m, err := metrics.NewService(metrics.DefaultConfig())
	require.NoError(t, err)

	srv := server.New(server.Config{DefaultSpan: 60, Spans: config.DefaultSpans}, board, descriptors,
		latest{"cpu": {Sensor: "cpu", Unit: sensor.Celsius, Value: 40, Time: 100}}, m)

	return srv.Handler()
}

func do(t *testing.T, h http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))

	return rec
}

func TestHealthz(t *testing.T) {
	rec := do(t, newHandler(t), http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSensors(t *testing.T) {
	rec := do(t, newHandler(t), http.MethodGet, "/api/sensors")
	require.Equal(t, http.StatusOK, rec.Code)

	var got []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "cpu", got[0]["id"])
	assert.Equal(t, "celsius", got[0]["unit"])
	assert.Equal(t, 40.0, got[0]["value"])
	assert.Equal(t, "40°C", got[0]["formatted"])
	assert.NotContains(t, got[1], "value")
}

func TestPlots(t *testing.T) {
	rec := do(t, newHandler(t), http.MethodGet, "/api/plots")
	require.Equal(t, http.StatusOK, rec.Code)

	var got []struct {
		Key     string   `json:"key"`
		Sensors []string `json:"sensors"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "celsius", got[0].Key)
	assert.Equal(t, []string{"cpu"}, got[0].Sensors)
	assert.Equal(t, "rpm", got[1].Key)
}

func TestFrame(t *testing.T) {
	rec := do(t, newHandler(t), http.MethodGet, "/api/plots/celsius/frame?width=300&height=100")
	require.Equal(t, http.StatusOK, rec.Code)

	var frame plot.Frame
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &frame))
	assert.Equal(t, int64(60), frame.Span)
	assert.Equal(t, 1, frame.State.Resolution)
	require.Len(t, frame.Series, 1)
	assert.Len(t, frame.Series[0].Points, 61)
}

func TestFrameBadRequest(t *testing.T) {
	h := newHandler(t)
	for _, target := range []string{
		"/api/plots/celsius/frame",
		"/api/plots/celsius/frame?width=abc&height=100",
		"/api/plots/celsius/frame?width=300&height=0",
		"/api/plots/celsius/frame?width=300&height=100&span=-5",
		"/api/plots/celsius/frame?width=100000&height=100",
	} {
		rec := do(t, h, http.MethodGet, target)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestUnknownPlot(t *testing.T) {
	rec := do(t, newHandler(t), http.MethodGet, "/api/plots/watt/frame?width=300&height=100")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "server_unknown_plot")
}

func TestPNG(t *testing.T) {
	rec := do(t, newHandler(t), http.MethodGet, "/api/plots/celsius/png?width=640&height=320&span=60")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")))
}

func TestLocate(t *testing.T) {
	h := newHandler(t)

	rec := do(t, h, http.MethodGet, "/api/plots/celsius/locate?x=300&y=50&width=300&height=100")
	assert.Equal(t, http.StatusNoContent, rec.Code, "nothing rendered yet")

	rec = do(t, h, http.MethodGet, "/api/plots/celsius/frame?width=300&height=100&span=60")
	require.Equal(t, http.StatusOK, rec.Code)
	var frame plot.Frame
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &frame))
	last := frame.Series[0].Points[len(frame.Series[0].Points)-1]

	target := "/api/plots/celsius/locate?width=300&height=100" +
		"&x=" + jsonNumber(last.X) + "&y=" + jsonNumber(last.Y)
	rec = do(t, h, http.MethodGet, target)
	require.Equal(t, http.StatusOK, rec.Code)

	var sel plot.Selection
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sel))
	assert.Equal(t, sensor.ID("cpu"), sel.Sensor)
	assert.Equal(t, "CPU", sel.Name)
	assert.Equal(t, int64(100), sel.Time)

	rec = do(t, h, http.MethodGet, "/api/plots/celsius/locate?x=a&y=1&width=300&height=100")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestClearAndInvalidate(t *testing.T) {
	h := newHandler(t)
	require.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/api/plots/rpm/frame?width=300&height=100").Code)

	rec := do(t, h, http.MethodPost, "/api/plots/rpm/clear")
	require.Equal(t, http.StatusOK, rec.Code)
	var env struct {
		Min   float64 `json:"min"`
		Max   float64 `json:"max"`
		Valid bool    `json:"valid"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.True(t, env.Valid)
	assert.Equal(t, 0.0, env.Min, "RPM floor is pinned at zero")
	assert.Equal(t, 900.0, env.Max)

	rec = do(t, h, http.MethodPost, "/api/plots/rpm/invalidate")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/plots/rpm/clear")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	h := newHandler(t)
	do(t, h, http.MethodGet, "/api/plots/celsius/frame?width=300&height=100")

	rec := do(t, h, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `thermals_render_duration_seconds_count{plot="celsius"} 1`)
}

func jsonNumber(f float64) string {
	b, _ := json.Marshal(f)
	return string(b)
}
