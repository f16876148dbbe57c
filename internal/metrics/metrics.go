// Package metrics exposes the daemon's Prometheus instrumentation.
package metrics

import (
	"net/http"
	"time"

	"codeberg.org/mutker/thermals/internal/errors"
	"codeberg.org/mutker/thermals/internal/logger"
	"codeberg.org/mutker/thermals/internal/sensor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type service struct {
	registry     *prometheus.Registry
	readings     prometheus.Counter
	readFailures prometheus.Counter
	dropped      prometheus.Counter
	sensors      prometheus.Gauge
	values       *prometheus.GaugeVec
	tickLatency  prometheus.Histogram
	renderTime   *prometheus.HistogramVec
}

// No-op implementation
type noopCollector struct{}

func NewService(cfg Config) (Collector, error) {
	if !cfg.Enabled {
		logger.Debug().Msg("Metrics disabled, using no-op collector")
		return &noopCollector{}, nil
	}
	if cfg.Namespace == "" {
		cfg.Namespace = defaultNamespace
	}

	s := &service{
		registry: prometheus.NewRegistry(),
		readings: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "readings_total",
			Help:      "Sensor readings taken.",
		}),
		readFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "read_failures_total",
			Help:      "Sensor reads that failed and were skipped.",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "samples_dropped_total",
			Help:      "Samples rejected by the history store.",
		}),
		sensors: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Name:      "sensors",
			Help:      "Sensors polled on the last tick.",
		}),
		values: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Name:      "sensor_value",
			Help:      "Latest reading of each sensor.",
		}, []string{"sensor", "unit"}),
		tickLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Name:      "tick_duration_seconds",
			Help:      "Time spent polling and historizing one tick.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		}),
		renderTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Name:      "render_duration_seconds",
			Help:      "Time spent building a plot frame.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 14),
		}, []string{"plot"}),
	}

	for _, c := range []prometheus.Collector{
		s.readings, s.readFailures, s.dropped, s.sensors, s.values, s.tickLatency, s.renderTime,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		if err := s.registry.Register(c); err != nil {
			return nil, errors.New().Wrap(ErrRegisterFailed, err)
		}
	}

	logger.Debug().Str("namespace", cfg.Namespace).Msg("Metrics service initialized successfully")

	return s, nil
}

func (s *service) ObserveTick(readings []sensor.Reading, failed, dropped int, took time.Duration) {
	s.readings.Add(float64(len(readings)))
	s.readFailures.Add(float64(failed))
	s.dropped.Add(float64(dropped))
	s.sensors.Set(float64(len(readings) + failed))
	for _, r := range readings {
		s.values.WithLabelValues(string(r.Sensor), r.Unit.Key()).Set(r.Value)
	}
	s.tickLatency.Observe(took.Seconds())
}

func (s *service) ObserveRender(plot string, took time.Duration) {
	s.renderTime.WithLabelValues(plot).Observe(took.Seconds())
}

func (s *service) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{Registry: s.registry})
}

func (*noopCollector) ObserveTick(_ []sensor.Reading, _, _ int, _ time.Duration) {}

func (*noopCollector) ObserveRender(_ string, _ time.Duration) {}

func (*noopCollector) Handler() http.Handler {
	return http.NotFoundHandler()
}
