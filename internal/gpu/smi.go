package gpu

import (
	"context"
	"fmt"

	"codeberg.org/mutker/nvidiapl/internal/errors"
	"codeberg.org/mutker/nvidiapl/internal/smi"
)

// Report labels, in lookup order where several can carry the same setting.
// Newer drivers report "Current Power Limit"; older ones only the enforced
// and plain "Power Limit".
const (
	labelMinLimit     = "Min Power Limit"
	labelMaxLimit     = "Max Power Limit"
	labelDefaultLimit = "Default Power Limit"
)

var currentLimitLabels = []string{
	"Current Power Limit",
	"Enforced Power Limit",
	"Power Limit",
}

// SMIReader reads GPU values through the vendor tool
type SMIReader struct {
	tool *smi.Tool
}

// NewSMIReader returns a Reader backed by tool
func NewSMIReader(tool *smi.Tool) *SMIReader {
	return &SMIReader{tool: tool}
}

func (r *SMIReader) Name(ctx context.Context) (string, error) {
	return r.tool.Name(ctx)
}

func (r *SMIReader) PowerLimits(ctx context.Context) (PowerLimits, error) {
	report, err := r.tool.Report(ctx)
	if err != nil {
		return PowerLimits{}, err
	}

	return LimitsFromReport(report)
}

func (r *SMIReader) Stats(ctx context.Context) (Stats, error) {
	rec, err := r.tool.Stats(ctx)
	if err != nil {
		return Stats{}, err
	}

	return validateStats(Stats{
		TemperatureC:   rec.Temperature,
		UtilizationPct: rec.Utilization,
		PowerDrawW:     rec.PowerDraw,
		VRAMTotalMB:    rec.MemoryTotal,
		VRAMUsedMB:     rec.MemoryUsed,
	})
}

// LimitsFromReport extracts power-limit bounds from a text report. Min and
// Max are required. Default falls back to Max, as does Current once every
// current-limit label is missing. Default and Current are clamped to the
// bounds.
func LimitsFromReport(report *smi.Report) (PowerLimits, error) {
	errFactory := errors.New()

	minLimit, okMin := report.Watts(labelMinLimit)
	maxLimit, okMax := report.Watts(labelMaxLimit)
	if !okMin || !okMax {
		return PowerLimits{}, errFactory.New(ErrPowerLimitsFailed)
	}
	if minLimit > maxLimit {
		return PowerLimits{}, errFactory.WithData(ErrPowerLimitsFailed,
			fmt.Sprintf("min %.2fW above max %.2fW", minLimit, maxLimit))
	}

	limits := PowerLimits{Min: minLimit, Max: maxLimit, Default: maxLimit, Current: maxLimit}

	if def, ok := report.Watts(labelDefaultLimit); ok {
		limits.Default = clampFloat(def, minLimit, maxLimit)
	}

	for _, label := range currentLimitLabels {
		if cur, ok := report.Watts(label); ok {
			limits.Current = clampFloat(cur, minLimit, maxLimit)
			break
		}
	}

	return limits, nil
}

func validateStats(s Stats) (Stats, error) {
	errFactory := errors.New()

	switch {
	case s.VRAMTotalMB < 0 || s.VRAMUsedMB < 0:
		return Stats{}, errFactory.WithData(ErrInvalidStats, "negative memory reading")
	case s.VRAMUsedMB > s.VRAMTotalMB:
		return Stats{}, errFactory.WithData(ErrInvalidStats,
			fmt.Sprintf("memory used %dMB exceeds total %dMB", s.VRAMUsedMB, s.VRAMTotalMB))
	case s.UtilizationPct < 0 || s.UtilizationPct > 100:
		return Stats{}, errFactory.WithData(ErrInvalidStats,
			fmt.Sprintf("utilization %d%% out of range", s.UtilizationPct))
	}

	return s, nil
}

func clampFloat(value, minValue, maxValue float64) float64 {
	if value < minValue {
		return minValue
	}
	if value > maxValue {
		return maxValue
	}

	return value
}
