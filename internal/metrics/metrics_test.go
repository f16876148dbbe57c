package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"codeberg.org/mutker/thermals/internal/sensor"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveTick(t *testing.T) {
	c, err := NewService(DefaultConfig())
	require.NoError(t, err)
	s := c.(*service)

	c.ObserveTick([]sensor.Reading{
		{Sensor: "cpu", Unit: sensor.Celsius, Value: 41.5},
		{Sensor: "fan1", Unit: sensor.RPM, Value: 900},
	}, 1, 2, 3*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(s.readings))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.readFailures))
	assert.Equal(t, 2.0, testutil.ToFloat64(s.dropped))
	assert.Equal(t, 3.0, testutil.ToFloat64(s.sensors))
	assert.Equal(t, 41.5, testutil.ToFloat64(s.values.WithLabelValues("cpu", "celsius")))
	assert.Equal(t, 900.0, testutil.ToFloat64(s.values.WithLabelValues("fan1", "rpm")))
	assert.Equal(t, 1, testutil.CollectAndCount(s.tickLatency))
}

func TestObserveRender(t *testing.T) {
	c, err := NewService(DefaultConfig())
	require.NoError(t, err)
	s := c.(*service)

	c.ObserveRender("celsius", time.Millisecond)
	c.ObserveRender("rpm", time.Millisecond)
	assert.Equal(t, 2, testutil.CollectAndCount(s.renderTime))
}

func TestHandler(t *testing.T) {
	c, err := NewService(DefaultConfig())
	require.NoError(t, err)
	c.ObserveTick([]sensor.Reading{{Sensor: "cpu", Unit: sensor.Celsius, Value: 40}}, 0, 0, time.Millisecond)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `thermals_sensor_value{sensor="cpu",unit="celsius"} 40`), body)
	assert.Contains(t, body, "thermals_readings_total 1")
}

func TestDisabled(t *testing.T) {
	c, err := NewService(Config{})
	require.NoError(t, err)
	c.ObserveTick(nil, 0, 0, 0)
	c.ObserveRender("celsius", 0)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
