package gpu

import "github.com/NVIDIA/go-nvml/pkg/nvml"

// Device is the part of nvml.Device the sensors read from.
type Device interface {
	GetName() (string, nvml.Return)
	GetUUID() (string, nvml.Return)
	GetTemperature(nvml.TemperatureSensors) (uint32, nvml.Return)
	GetNumFans() (int, nvml.Return)
	GetFanSpeed_v2(int) (uint32, nvml.Return)
	GetPowerUsage() (uint32, nvml.Return)
}

// nvmlController abstracts NVML operations for testing
type nvmlController interface {
	Initialize() error
	Shutdown() error
	GetDeviceCount() (int, error)
	GetDevice(index int) (Device, error)
}
