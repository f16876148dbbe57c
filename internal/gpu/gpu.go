// Package gpu exposes NVIDIA GPUs as sensors through NVML.
package gpu

import (
	"fmt"
	"sync"

	"codeberg.org/mutker/thermals/internal/errors"
	"codeberg.org/mutker/thermals/internal/logger"
	"codeberg.org/mutker/thermals/internal/sensor"
	"github.com/NVIDIA/go-nvml/pkg/nvml"
)

const milliWattsToWatts = 1000

// Source owns the NVML session and the sensors of every GPU found.
type Source struct {
	ctrl    nvmlController
	sensors []sensor.Sensor
	mu      sync.Mutex
	closed  bool
}

// Open initializes NVML and enumerates the sensors of every GPU. Devices
// that cannot be queried are skipped.
func Open() (*Source, error) {
	return open(&nvmlWrapper{})
}

func open(ctrl nvmlController) (*Source, error) {
	errFactory := errors.New()

	if err := ctrl.Initialize(); err != nil {
		return nil, err
	}

	count, err := ctrl.GetDeviceCount()
	if err != nil {
		if shutdownErr := ctrl.Shutdown(); shutdownErr != nil {
			logger.Warn().Err(shutdownErr).Msg("Failed to shut down NVML")
		}
		return nil, errFactory.Wrap(ErrInitFailed, err)
	}

	s := &Source{ctrl: ctrl}
	for i := 0; i < count; i++ {
		device, err := ctrl.GetDevice(i)
		if err != nil {
			logger.Warn().Err(err).Msgf("Skipping GPU %d", i)
			continue
		}
		s.sensors = append(s.sensors, deviceSensors(i, device)...)
	}

	logger.Debug().Msgf("Detected GPU sensors: %d", len(s.sensors))

	return s, nil
}

func (s *Source) Sensors() []sensor.Sensor {
	return append([]sensor.Sensor(nil), s.sensors...)
}

// Close shuts NVML down. Sensors must not be read afterwards.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	return s.ctrl.Shutdown()
}

func deviceSensors(index int, device Device) []sensor.Sensor {
	name, ret := device.GetName()
	if isSuccess(ret) {
		logger.Info().Msgf("Detected GPU: %v", name)
	} else {
		logger.Warn().Msgf("Failed to get GPU name: %v", nvml.ErrorString(ret))
		name = fmt.Sprintf("GPU %d", index)
	}

	prefix := fmt.Sprintf("nvml%d", index)
	sensors := []sensor.Sensor{
		&nvmlSensor{
			id:   sensor.ID(prefix + ":temp"),
			name: name + " Temp",
			unit: sensor.Celsius,
			read: func() (float64, error) {
				temp, ret := device.GetTemperature(nvml.TEMPERATURE_GPU)
				if !isSuccess(ret) {
					return 0, errors.New().Wrap(ErrTemperatureReadFailed, newNVMLError(ret))
				}
				return float64(temp), nil
			},
		},
	}

	fans, ret := device.GetNumFans()
	if isSuccess(ret) {
		logger.Debug().Msgf("Detected fans: %d", fans)
		for i := 0; i < fans; i++ {
			fanIndex := i
			sensors = append(sensors, &nvmlSensor{
				id:   sensor.ID(fmt.Sprintf("%s:fan%d", prefix, fanIndex+1)),
				name: fmt.Sprintf("%s Fan %d", name, fanIndex+1),
				unit: sensor.Percent,
				read: func() (float64, error) {
					speed, ret := device.GetFanSpeed_v2(fanIndex)
					if !isSuccess(ret) {
						return 0, errors.New().Wrap(ErrGetFanSpeedFailed, newNVMLError(ret))
					}
					return float64(speed), nil
				},
			})
		}
	} else {
		logger.Debug().Msgf("Failed to get fan count of %s: %s", name, nvml.ErrorString(ret))
	}

	if _, ret := device.GetPowerUsage(); isSuccess(ret) {
		sensors = append(sensors, &nvmlSensor{
			id:   sensor.ID(prefix + ":power"),
			name: name + " Power",
			unit: sensor.Watt,
			read: func() (float64, error) {
				usage, ret := device.GetPowerUsage()
				if !isSuccess(ret) {
					return 0, errors.New().Wrap(ErrPowerReadFailed, newNVMLError(ret))
				}
				return float64(usage) / milliWattsToWatts, nil
			},
		})
	} else {
		logger.Debug().Msgf("Power usage of %s not available: %s", name, nvml.ErrorString(ret))
	}

	return sensors
}

type nvmlSensor struct {
	id   sensor.ID
	name string
	unit sensor.Unit
	read func() (float64, error)
}

func (s *nvmlSensor) ID() sensor.ID     { return s.id }
func (s *nvmlSensor) Name() string      { return s.name }
func (s *nvmlSensor) Unit() sensor.Unit { return s.unit }

func (s *nvmlSensor) Value() (float64, error) {
	return s.read()
}
