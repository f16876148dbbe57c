package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"codeberg.org/mutker/thermals/internal/config"
	"codeberg.org/mutker/thermals/internal/errors"
	"codeberg.org/mutker/thermals/internal/gpu"
	"codeberg.org/mutker/thermals/internal/history"
	"codeberg.org/mutker/thermals/internal/logger"
	"codeberg.org/mutker/thermals/internal/metrics"
	"codeberg.org/mutker/thermals/internal/pid"
	"codeberg.org/mutker/thermals/internal/plot"
	"codeberg.org/mutker/thermals/internal/poller"
	"codeberg.org/mutker/thermals/internal/sensor"
	"codeberg.org/mutker/thermals/internal/server"
	"codeberg.org/mutker/thermals/internal/telemetry"
	"github.com/spf13/afero"
)

const shutdownTimeout = 5 * time.Second

type app struct {
	gpu      *gpu.Source
	poller   *poller.Poller
	server   *server.Server
	recorder telemetry.Recorder
}

var cfg *config.Config

func init() {
	var err error
	cfg, err = config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.LogLevel, logger.IsService())
	logger.Debug().Msg("Config loaded")
}

func main() {
	if err := pid.Write(os.TempDir()); err != nil {
		logger.Fatal().Err(err).Msg("failed to write pid file")
	}

	a, err := initApp()
	if err != nil {
		if removeErr := pid.Remove(os.TempDir()); removeErr != nil {
			logger.Error().Err(removeErr).Msg("failed to remove pid file")
		}
		var appErr errors.Error
		if errors.As(err, &appErr) {
			logger.FatalWithCode(appErr).Msg("failed to initialize")
		}
		logger.Fatal().Err(err).Msg("failed to initialize")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(cancel)

	go func() {
		if err := a.server.ListenAndServe(); err != nil {
			logger.Error().Err(err).Msg("HTTP server stopped")
			cancel()
		}
	}()

	interval := time.Duration(cfg.Interval) * time.Second
	if err := a.poller.Run(ctx, interval); err != nil {
		logger.Error().Err(errors.New().Wrap(errors.ErrMainLoop, err)).Msg("error in main loop")
	}

	a.cleanup()
}

func initApp() (*app, error) {
	errFactory := errors.New()
	a := &app{}

	sensors, err := discoverSensors(a)
	if err != nil {
		return nil, err
	}

	store, err := history.NewStore(history.Config{Resolutions: cfg.Resolutions, Capacity: cfg.Capacity})
	if err != nil {
		return nil, errFactory.Wrap(errors.ErrInitApp, err)
	}

	collector, err := metrics.NewService(metrics.Config{Enabled: cfg.Metrics})
	if err != nil {
		return nil, errFactory.Wrap(errors.ErrInitApp, err)
	}

	telemetryCfg := telemetry.DefaultConfig()
	telemetryCfg.Enabled = cfg.Telemetry
	telemetryCfg.DBPath = cfg.TelemetryDB
	a.recorder, err = telemetry.NewService(telemetryCfg, logger.Default())
	if err != nil {
		return nil, errFactory.Wrap(errors.ErrInitApp, err)
	}

	descriptors := make([]sensor.Descriptor, 0, len(sensors))
	for _, s := range sensors {
		descriptors = append(descriptors, sensor.Descriptor{
			ID:    s.ID(),
			Name:  s.Name(),
			Unit:  s.Unit(),
			Color: cfg.SensorColor(string(s.ID())),
			Plot:  cfg.SensorPlotted(string(s.ID())),
		})
	}

	clock := sensor.NewMonotonicClock()
	board := plot.NewBoard(descriptors, store, clock, plot.Config{
		Resolutions:      cfg.Resolutions,
		MinPxPerBucket:   cfg.MinPxPerBucket,
		Margin:           cfg.Margin,
		GridMinSpacing:   cfg.GridMinSpacing,
		PointerTolerance: int64(cfg.PointerTolerance),
	})

	a.poller = poller.New(sensors, store, clock,
		poller.WithMetrics(collector),
		poller.WithRecorder(a.recorder),
		poller.WithLogger(logger.Default()))

	a.server = server.New(server.Config{
		Listen:      cfg.Listen,
		DefaultSpan: int64(cfg.Span),
		Spans:       cfg.Spans,
	}, board, descriptors, a.poller, collector)

	logger.Info().
		Int("sensors", len(sensors)).
		Int("plots", len(board.Plots())).
		Ints("resolutions", cfg.Resolutions).
		Int("capacity", cfg.Capacity).
		Msg("Thermals initialized")

	return a, nil
}

func discoverSensors(a *app) ([]sensor.Sensor, error) {
	var sensors []sensor.Sensor

	devices, err := sensor.Discover(afero.NewOsFs(), cfg.HwmonRoot)
	if err != nil {
		logger.Warn().Err(err).Str("root", cfg.HwmonRoot).Msg("hwmon discovery failed")
	}
	for _, dev := range devices {
		logger.Debug().Str("device", dev.Name).Int("sensors", len(dev.Sensors)).Msg("Found hwmon device")
		sensors = append(sensors, dev.Sensors...)
	}

	if cfg.GPU {
		src, err := gpu.Open()
		if err != nil {
			logger.Warn().Err(err).Msg("GPU sensors unavailable")
		} else {
			a.gpu = src
			sensors = append(sensors, src.Sensors()...)
		}
	}

	if len(sensors) == 0 {
		return nil, errors.New().New(errors.ErrNoSensors)
	}

	return sensors, nil
}

func handleSignals(cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	logger.Info().Msg("Received termination signal.")
	cancel()
}

func (a *app) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("failed to shut down HTTP server")
	}
	if err := a.recorder.Close(); err != nil {
		logger.Error().Err(err).Msg("failed to close telemetry")
	}
	if a.gpu != nil {
		if err := a.gpu.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to shut down NVML")
		}
	}
	if err := pid.Remove(os.TempDir()); err != nil {
		logger.Error().Err(err).Msg("failed to remove pid file")
	}
	logger.Info().Msg("Exiting...")
}
