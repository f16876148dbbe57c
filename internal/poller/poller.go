// Package poller reads every sensor once per tick and historizes the
// snapshot.
package poller

import (
	"context"
	"math"
	"sync"
	"time"

	"codeberg.org/mutker/thermals/internal/errors"
	"codeberg.org/mutker/thermals/internal/history"
	"codeberg.org/mutker/thermals/internal/logger"
	"codeberg.org/mutker/thermals/internal/metrics"
	"codeberg.org/mutker/thermals/internal/sensor"
	"codeberg.org/mutker/thermals/internal/telemetry"
)

// Store is the write side of the history.
type Store interface {
	Ingest(id sensor.ID, sample history.Sample) error
}

type Option func(*Poller)

func WithMetrics(c metrics.Collector) Option {
	return func(p *Poller) { p.metrics = c }
}

func WithRecorder(r telemetry.Recorder) Option {
	return func(p *Poller) { p.recorder = r }
}

func WithLogger(l logger.Logger) Option {
	return func(p *Poller) { p.log = l }
}

type Poller struct {
	sensors  []sensor.Sensor
	store    Store
	clock    sensor.Clock
	metrics  metrics.Collector
	recorder telemetry.Recorder
	log      logger.Logger

	mu     sync.RWMutex
	latest map[sensor.ID]sensor.Reading
}

func New(sensors []sensor.Sensor, store Store, clock sensor.Clock, opts ...Option) *Poller {
	p := &Poller{
		sensors: append([]sensor.Sensor(nil), sensors...),
		store:   store,
		clock:   clock,
		log:     logger.Default(),
		latest:  make(map[sensor.ID]sensor.Reading, len(sensors)),
	}
	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Poll reads every sensor once, stamping all readings with the same time.
// Sensors that fail to read or report a non-finite value are skipped and
// counted.
func (p *Poller) Poll() ([]sensor.Reading, int) {
	now := p.clock.Now()
	readings := make([]sensor.Reading, 0, len(p.sensors))
	failed := 0

	for _, s := range p.sensors {
		v, err := s.Value()
		if err != nil {
			failed++
			p.log.Debug().Err(err).Str("sensor", string(s.ID())).Msg("Failed to read sensor")
			continue
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			failed++
			p.log.Debug().Str("sensor", string(s.ID())).Float64("value", v).Msg("Sensor reported a non-finite value")
			continue
		}
		readings = append(readings, sensor.Reading{Sensor: s.ID(), Unit: s.Unit(), Value: v, Time: now})
	}

	return readings, failed
}

// Tick polls all sensors and ingests the snapshot into the store.
// Readings rejected by the store are counted but do not fail the tick.
func (p *Poller) Tick(ctx context.Context) error {
	start := time.Now()
	readings, failed := p.Poll()

	dropped := 0
	for _, r := range readings {
		if err := p.store.Ingest(r.Sensor, history.Sample{Time: r.Time, Value: r.Value}); err != nil {
			dropped++
			p.log.Debug().Err(err).Str("sensor", string(r.Sensor)).Msg("Sample rejected")
		}
	}

	p.mu.Lock()
	for _, r := range readings {
		p.latest[r.Sensor] = r
	}
	p.mu.Unlock()

	if p.metrics != nil {
		p.metrics.ObserveTick(readings, failed, dropped, time.Since(start))
	}

	if p.recorder != nil {
		if err := p.recorder.Record(ctx, readings); err != nil {
			return errors.New().Wrap(errors.ErrRecordSamples, err)
		}
	}

	return nil
}

// Run ticks once immediately and then every interval until ctx is done.
// Tick errors are logged, never fatal.
func (p *Poller) Run(ctx context.Context, interval time.Duration) error {
	errFactory := errors.New()
	if interval <= 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, interval.String())
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := p.Tick(ctx); err != nil {
			p.log.Warn().Err(err).Msg("Tick failed")
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Latest returns the most recent successful reading of a sensor.
func (p *Poller) Latest(id sensor.ID) (sensor.Reading, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	r, ok := p.latest[id]
	return r, ok
}
