// Package history keeps a bounded, multi-resolution record of sensor
// readings. Every sensor is tracked at each configured resolution in its own
// fixed-capacity ring; samples that arrive close together are collapsed into
// a running average so that a ring at resolution r holds buckets roughly r
// seconds wide.
package history

import (
	"math"
	"sort"
	"strconv"
	"sync"

	"codeberg.org/mutker/thermals/internal/errors"
	"codeberg.org/mutker/thermals/internal/sensor"
)

// Sample is a raw reading of one sensor.
type Sample struct {
	Time  int64
	Value float64
}

// Measurement is either a raw sample (Count 1) or the mean of Count samples
// merged into one bucket. Time is the time of the first sample in the bucket.
type Measurement struct {
	Time  int64   `json:"time"`
	Value float64 `json:"value"`
	Count int     `json:"count"`
}

// Order selects the direction of a Query.
type Order int

const (
	OldestFirst Order = iota
	NewestFirst
)

type Config struct {
	Resolutions []int
	Capacity    int
}

func (c Config) Validate() error {
	errFactory := errors.New()

	if c.Capacity <= 0 {
		return errFactory.WithData(ErrInvalidConfig, struct {
			Field string
			Value int
		}{
			Field: "capacity",
			Value: c.Capacity,
		})
	}
	if len(c.Resolutions) == 0 {
		return errFactory.WithMessage(ErrInvalidConfig, "no resolutions configured")
	}
	for i, r := range c.Resolutions {
		if r <= 0 || (i > 0 && r <= c.Resolutions[i-1]) {
			return errFactory.WithData(ErrInvalidConfig, struct {
				Field string
				Value []int
			}{
				Field: "resolutions",
				Value: c.Resolutions,
			})
		}
	}

	return nil
}

// buffer is the ring of one sensor at one resolution. A single ingesting
// goroutine writes it; readers take the read lock.
type buffer struct {
	mu         sync.RWMutex
	resolution int64
	ring       *ring
}

// add merges the sample into the newest bucket when it lies within the
// resolution of the second newest one, otherwise it opens a new bucket.
func (b *buffer) add(s Sample) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := b.ring.Len()
	if n < 2 {
		b.ring.Push(Measurement{Time: s.Time, Value: s.Value, Count: 1})
		return
	}

	prev2 := b.ring.At(n - 2)
	if s.Time-prev2.Time <= b.resolution {
		last := b.ring.Last()
		last.Value = (last.Value*float64(last.Count) + s.Value) / float64(last.Count+1)
		last.Count++
		return
	}

	b.ring.Push(Measurement{Time: s.Time, Value: s.Value, Count: 1})
}

type series struct {
	mu       sync.Mutex
	lastTime int64
	started  bool
	buffers  []*buffer
}

// Store owns the history of every sensor. Memory is bounded by
// sensors × resolutions × capacity for the lifetime of the process.
type Store struct {
	resolutions []int
	capacity    int

	mu     sync.RWMutex
	series map[sensor.ID]*series
}

func NewStore(cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	res := make([]int, len(cfg.Resolutions))
	copy(res, cfg.Resolutions)

	return &Store{
		resolutions: res,
		capacity:    cfg.Capacity,
		series:      make(map[sensor.ID]*series),
	}, nil
}

// Resolutions returns the configured bucket widths, finest first.
func (s *Store) Resolutions() []int {
	out := make([]int, len(s.resolutions))
	copy(out, s.resolutions)

	return out
}

func (s *Store) Capacity() int {
	return s.capacity
}

// Sensors lists every sensor that has been ingested at least once.
func (s *Store) Sensors() []sensor.ID {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]sensor.ID, 0, len(s.series))
	for id := range s.series {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	return ids
}

// Ingest adds a sample to every resolution of the sensor. Samples must arrive
// in non-decreasing time order per sensor; an older sample is dropped and
// reported with ErrNonMonotonicSample, leaving the buffers untouched. NaN and
// infinite values are dropped the same way with ErrNonFiniteSample.
func (s *Store) Ingest(id sensor.ID, sample Sample) error {
	if math.IsNaN(sample.Value) || math.IsInf(sample.Value, 0) {
		return errors.New().WithData(ErrNonFiniteSample, struct {
			Sensor sensor.ID
			Time   int64
			Value  string
		}{
			Sensor: id,
			Time:   sample.Time,
			Value:  strconv.FormatFloat(sample.Value, 'g', -1, 64),
		})
	}

	ser := s.seriesFor(id)

	ser.mu.Lock()
	defer ser.mu.Unlock()

	if ser.started && sample.Time < ser.lastTime {
		return errors.New().WithData(ErrNonMonotonicSample, struct {
			Sensor   sensor.ID
			Time     int64
			LastTime int64
		}{
			Sensor:   id,
			Time:     sample.Time,
			LastTime: ser.lastTime,
		})
	}
	ser.lastTime = sample.Time
	ser.started = true

	for _, b := range ser.buffers {
		b.add(sample)
	}

	return nil
}

func (s *Store) seriesFor(id sensor.ID) *series {
	s.mu.RLock()
	ser, ok := s.series[id]
	s.mu.RUnlock()
	if ok {
		return ser
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if ser, ok = s.series[id]; ok {
		return ser
	}

	ser = &series{buffers: make([]*buffer, len(s.resolutions))}
	for i, r := range s.resolutions {
		ser.buffers[i] = &buffer{resolution: int64(r), ring: newRing(s.capacity)}
	}
	s.series[id] = ser

	return ser
}

func (s *Store) buffer(id sensor.ID, resolution int) (*buffer, error) {
	idx := -1
	for i, r := range s.resolutions {
		if r == resolution {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, errors.New().WithData(ErrUnknownResolution, resolution)
	}

	s.mu.RLock()
	ser, ok := s.series[id]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	return ser.buffers[idx], nil
}

// Query returns a copy of the measurements of a sensor at a resolution whose
// time is at or after since. An unknown sensor yields no measurements.
func (s *Store) Query(id sensor.ID, resolution int, since int64, order Order) ([]Measurement, error) {
	b, err := s.buffer(id, resolution)
	if err != nil || b == nil {
		return nil, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	start := b.ring.Search(since)
	n := b.ring.Len() - start
	if n <= 0 {
		return nil, nil
	}

	out := make([]Measurement, n)
	for i := 0; i < n; i++ {
		if order == NewestFirst {
			out[i] = *b.ring.At(b.ring.Len() - 1 - i)
		} else {
			out[i] = *b.ring.At(start + i)
		}
	}

	return out, nil
}

// Newest returns the most recent measurement if its time is at or after since.
func (s *Store) Newest(id sensor.ID, resolution int, since int64) (Measurement, bool) {
	b, err := s.buffer(id, resolution)
	if err != nil || b == nil {
		return Measurement{}, false
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.ring.Len() == 0 {
		return Measurement{}, false
	}
	last := *b.ring.Last()
	if last.Time < since {
		return Measurement{}, false
	}

	return last, true
}

// FirstAtOrAfter returns the oldest measurement whose time is >= t.
func (s *Store) FirstAtOrAfter(id sensor.ID, resolution int, t int64) (Measurement, bool) {
	b, err := s.buffer(id, resolution)
	if err != nil || b == nil {
		return Measurement{}, false
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	i := b.ring.Search(t)
	if i >= b.ring.Len() {
		return Measurement{}, false
	}

	return *b.ring.At(i), true
}

// Len returns the number of buckets held for a sensor at a resolution.
func (s *Store) Len(id sensor.ID, resolution int) int {
	b, err := s.buffer(id, resolution)
	if err != nil || b == nil {
		return 0
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.ring.Len()
}
