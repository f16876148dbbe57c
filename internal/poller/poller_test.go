package poller_test

import (
	"context"
	"errors"
	"math"
	"net/http"
	"testing"
	"time"

	"codeberg.org/mutker/thermals/internal/history"
	"codeberg.org/mutker/thermals/internal/poller"
	"codeberg.org/mutker/thermals/internal/sensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSensor struct {
	id    sensor.ID
	unit  sensor.Unit
	value float64
	err   error
}

func (s *fakeSensor) ID() sensor.ID           { return s.id }
func (s *fakeSensor) Name() string            { return string(s.id) }
func (s *fakeSensor) Unit() sensor.Unit       { return s.unit }
func (s *fakeSensor) Value() (float64, error) { return s.value, s.err }

type recorder struct {
	batches [][]sensor.Reading
	err     error
}

func (r *recorder) Record(_ context.Context, readings []sensor.Reading) error {
	r.batches = append(r.batches, readings)
	return r.err
}

func (r *recorder) Close() error { return nil }

type fakeCollector struct {
	readings, failed, dropped int
}

func (c *fakeCollector) ObserveTick(readings []sensor.Reading, failed, dropped int, _ time.Duration) {
	c.readings += len(readings)
	c.failed += failed
	c.dropped += dropped
}

func (c *fakeCollector) ObserveRender(string, time.Duration) {}

func (c *fakeCollector) Handler() http.Handler { return http.NotFoundHandler() }

func newStore(t *testing.T) *history.Store {
	t.Helper()
	store, err := history.NewStore(history.Config{Resolutions: []int{1, 3}, Capacity: 100})
	require.NoError(t, err)

	return store
}

func TestPollSkipsFailedReads(t *testing.T) {
	now := int64(7)
	p := poller.New([]sensor.Sensor{
		&fakeSensor{id: "cpu", unit: sensor.Celsius, value: 42},
		&fakeSensor{id: "broken", unit: sensor.Celsius, err: errors.New("read error")},
		&fakeSensor{id: "fan1", unit: sensor.RPM, value: 1200},
	}, newStore(t), sensor.ClockFunc(func() int64 { return now }))

	readings, failed := p.Poll()
	assert.Equal(t, 1, failed)
	assert.Equal(t, []sensor.Reading{
		{Sensor: "cpu", Unit: sensor.Celsius, Value: 42, Time: 7},
		{Sensor: "fan1", Unit: sensor.RPM, Value: 1200, Time: 7},
	}, readings)
}

func TestPollSkipsNonFiniteValues(t *testing.T) {
	store := newStore(t)
	rec := &recorder{}
	p := poller.New([]sensor.Sensor{
		&fakeSensor{id: "cpu", unit: sensor.Celsius, value: 42},
		&fakeSensor{id: "inf", unit: sensor.Celsius, value: math.Inf(1)},
		&fakeSensor{id: "nan", unit: sensor.Watt, value: math.NaN()},
	}, store, sensor.ClockFunc(func() int64 { return 0 }), poller.WithRecorder(rec))

	readings, failed := p.Poll()
	assert.Equal(t, 2, failed)
	assert.Equal(t, []sensor.Reading{{Sensor: "cpu", Unit: sensor.Celsius, Value: 42, Time: 0}}, readings)

	require.NoError(t, p.Tick(context.Background()))
	require.Len(t, rec.batches, 1)
	assert.Len(t, rec.batches[0], 1)
	assert.Zero(t, store.Len("inf", 1))
	_, ok := p.Latest("inf")
	assert.False(t, ok)
}

func TestTickIngests(t *testing.T) {
	store := newStore(t)
	now := int64(0)
	cpu := &fakeSensor{id: "cpu", unit: sensor.Celsius, value: 40}
	rec := &recorder{}
	p := poller.New([]sensor.Sensor{cpu}, store, sensor.ClockFunc(func() int64 { return now }),
		poller.WithRecorder(rec))

	for i := 0; i < 5; i++ {
		now = int64(i)
		cpu.value = 40 + float64(i)
		require.NoError(t, p.Tick(context.Background()))
	}

	assert.Equal(t, 5, store.Len("cpu", 1))
	assert.Len(t, rec.batches, 5)

	latest, ok := p.Latest("cpu")
	require.True(t, ok)
	assert.Equal(t, 44.0, latest.Value)

	_, ok = p.Latest("missing")
	assert.False(t, ok)
}

func TestTickCountsDroppedSamples(t *testing.T) {
	store := newStore(t)
	now := int64(10)
	c := &fakeCollector{}
	p := poller.New([]sensor.Sensor{&fakeSensor{id: "cpu", unit: sensor.Celsius, value: 40}}, store,
		sensor.ClockFunc(func() int64 { return now }), poller.WithMetrics(c))

	require.NoError(t, p.Tick(context.Background()))
	now = 5
	require.NoError(t, p.Tick(context.Background()), "a rejected sample does not fail the tick")

	assert.Equal(t, 2, c.readings)
	assert.Equal(t, 1, c.dropped)
	assert.Equal(t, 1, store.Len("cpu", 1))
}

func TestTickRecorderError(t *testing.T) {
	p := poller.New([]sensor.Sensor{&fakeSensor{id: "cpu", unit: sensor.Celsius, value: 40}}, newStore(t),
		sensor.ClockFunc(func() int64 { return 0 }), poller.WithRecorder(&recorder{err: errors.New("disk full")}))

	require.Error(t, p.Tick(context.Background()))
}

func TestRunStopsOnCancel(t *testing.T) {
	store := newStore(t)
	var now int64
	p := poller.New([]sensor.Sensor{&fakeSensor{id: "cpu", unit: sensor.Celsius, value: 40}}, store,
		sensor.ClockFunc(func() int64 { now++; return now }))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx, 5*time.Millisecond) }()

	require.Eventually(t, func() bool { return store.Len("cpu", 1) >= 3 }, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunInvalidInterval(t *testing.T) {
	p := poller.New(nil, newStore(t), sensor.ClockFunc(func() int64 { return 0 }))
	require.Error(t, p.Run(context.Background(), 0))
}
