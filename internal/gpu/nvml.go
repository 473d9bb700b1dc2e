package gpu

import (
	"context"

	"codeberg.org/mutker/nvidiapl/internal/errors"
	"github.com/NVIDIA/go-nvml/pkg/nvml"
)

const (
	milliWattsToWatts = 1000
	bytesPerMB        = 1024 * 1024
)

// nvmlDevice is the part of nvml.Device the reader uses
type nvmlDevice interface {
	GetName() (string, nvml.Return)
	GetPowerManagementLimitConstraints() (uint32, uint32, nvml.Return)
	GetPowerManagementDefaultLimit() (uint32, nvml.Return)
	GetPowerManagementLimit() (uint32, nvml.Return)
	GetTemperature(nvml.TemperatureSensors) (uint32, nvml.Return)
	GetUtilizationRates() (nvml.Utilization, nvml.Return)
	GetPowerUsage() (uint32, nvml.Return)
	GetMemoryInfo() (nvml.Memory, nvml.Return)
}

// NVMLReader reads GPU values through the NVML library. It only reads;
// limits are still set through the vendor tool.
type NVMLReader struct {
	device   nvmlDevice
	shutdown func() nvml.Return
}

// NewNVMLReader initializes NVML and opens the GPU at index. A negative
// index selects the first GPU.
func NewNVMLReader(index int) (*NVMLReader, error) {
	errFactory := errors.New()

	if ret := nvml.Init(); !IsNVMLSuccess(ret) {
		return nil, errFactory.Wrap(ErrNVMLFailed, newNVMLError(ret))
	}

	if index < 0 {
		index = 0
	}

	device, ret := nvml.DeviceGetHandleByIndex(index)
	if !IsNVMLSuccess(ret) {
		nvml.Shutdown()
		return nil, errFactory.Wrap(ErrNVMLFailed, newNVMLError(ret))
	}

	return &NVMLReader{device: device, shutdown: nvml.Shutdown}, nil
}

func newNVMLReaderFromDevice(device nvmlDevice) *NVMLReader {
	return &NVMLReader{device: device}
}

// Close shuts NVML down
func (r *NVMLReader) Close() error {
	if r.shutdown == nil {
		return nil
	}

	if ret := r.shutdown(); !IsNVMLSuccess(ret) {
		return errors.New().Wrap(ErrNVMLFailed, newNVMLError(ret))
	}
	r.shutdown = nil

	return nil
}

func (r *NVMLReader) Name(_ context.Context) (string, error) {
	name, ret := r.device.GetName()
	if !IsNVMLSuccess(ret) {
		return "", errors.New().Wrap(ErrNVMLFailed, newNVMLError(ret))
	}

	return name, nil
}

func (r *NVMLReader) PowerLimits(_ context.Context) (PowerLimits, error) {
	errFactory := errors.New()

	minLimit, maxLimit, ret := r.device.GetPowerManagementLimitConstraints()
	if !IsNVMLSuccess(ret) {
		return PowerLimits{}, errFactory.Wrap(ErrPowerLimitsFailed, newNVMLError(ret))
	}

	limits := PowerLimits{
		Min: milliWatts(minLimit),
		Max: milliWatts(maxLimit),
	}
	if limits.Min > limits.Max {
		return PowerLimits{}, errFactory.New(ErrPowerLimitsFailed)
	}
	limits.Default = limits.Max
	limits.Current = limits.Max

	if def, ret := r.device.GetPowerManagementDefaultLimit(); IsNVMLSuccess(ret) {
		limits.Default = clampFloat(milliWatts(def), limits.Min, limits.Max)
	}
	if cur, ret := r.device.GetPowerManagementLimit(); IsNVMLSuccess(ret) {
		limits.Current = clampFloat(milliWatts(cur), limits.Min, limits.Max)
	}

	return limits, nil
}

func (r *NVMLReader) Stats(_ context.Context) (Stats, error) {
	errFactory := errors.New()

	temp, ret := r.device.GetTemperature(nvml.TEMPERATURE_GPU)
	if !IsNVMLSuccess(ret) {
		return Stats{}, errFactory.Wrap(ErrNVMLFailed, newNVMLError(ret))
	}

	util, ret := r.device.GetUtilizationRates()
	if !IsNVMLSuccess(ret) {
		return Stats{}, errFactory.Wrap(ErrNVMLFailed, newNVMLError(ret))
	}

	mem, ret := r.device.GetMemoryInfo()
	if !IsNVMLSuccess(ret) {
		return Stats{}, errFactory.Wrap(ErrNVMLFailed, newNVMLError(ret))
	}

	// Power usage is unsupported on some boards; report zero like the tool's N/A
	var draw float64
	if usage, ret := r.device.GetPowerUsage(); IsNVMLSuccess(ret) {
		draw = milliWatts(usage)
	}

	return validateStats(Stats{
		TemperatureC:   int(temp),
		UtilizationPct: int(util.Gpu),
		PowerDrawW:     draw,
		VRAMTotalMB:    int(mem.Total / bytesPerMB),
		VRAMUsedMB:     int(mem.Used / bytesPerMB),
	})
}

func milliWatts(mw uint32) float64 {
	return float64(mw) / milliWattsToWatts
}
