package gpu

import (
	"context"
	"fmt"
	"math"
)

// Reader queries a GPU
type Reader interface {
	// Name returns the product name
	Name(ctx context.Context) (string, error)

	// PowerLimits returns the power-limit bounds and the limit in effect
	PowerLimits(ctx context.Context) (PowerLimits, error)

	// Stats returns live telemetry
	Stats(ctx context.Context) (Stats, error)
}

// PowerLimits are the board power-limit bounds and settings in watts.
// Min <= Default <= Max and Min <= Current <= Max.
type PowerLimits struct {
	Min, Max, Default, Current float64
}

// Contains reports whether watts lies within [Min, Max]
func (l PowerLimits) Contains(watts float64) bool {
	return watts >= l.Min && watts <= l.Max
}

// Selectable reports whether at least one whole watt lies within the bounds
func (l PowerLimits) Selectable() bool {
	return math.Ceil(l.Min) <= math.Floor(l.Max)
}

// Clamp constrains a whole-watt selection to the bounds. When no whole watt
// fits, it returns the watt nearest Min and callers must not apply it.
func (l PowerLimits) Clamp(watts int) int {
	if !l.Selectable() {
		return int(math.Round(l.Min))
	}

	lo := int(math.Ceil(l.Min))
	hi := int(math.Floor(l.Max))

	if watts > hi {
		watts = hi
	}
	if watts < lo {
		watts = lo
	}

	return watts
}

// Percent expresses watts as a whole percentage of Max
func (l PowerLimits) Percent(watts float64) int {
	if l.Max <= 0 {
		return 0
	}

	return int(watts / l.Max * 100)
}

func (l PowerLimits) String() string {
	return fmt.Sprintf("%.0f-%.0fW", l.Min, l.Max)
}

// Stats is one live telemetry reading
type Stats struct {
	TemperatureC   int
	UtilizationPct int
	PowerDrawW     float64
	VRAMTotalMB    int
	VRAMUsedMB     int
}

// VRAMPercent returns used memory as a whole percentage of total, rounded down
func (s Stats) VRAMPercent() int {
	if s.VRAMTotalMB <= 0 {
		return 0
	}

	return s.VRAMUsedMB * 100 / s.VRAMTotalMB
}

// Snapshot is the cached view of a single GPU
type Snapshot struct {
	Name   string
	Limits PowerLimits
	Stats  Stats

	// HasStats is set once a stats reading has been applied
	HasStats bool
}

const (
	placeholderName  = "Unknown GPU"
	placeholderMin   = 100
	placeholderMax   = 200
	placeholderValue = 200
)

// Placeholder is the snapshot used when detection fails
func Placeholder() Snapshot {
	return Snapshot{
		Name: placeholderName,
		Limits: PowerLimits{
			Min:     placeholderMin,
			Max:     placeholderMax,
			Default: placeholderValue,
			Current: placeholderValue,
		},
	}
}

// ApplyStats replaces the stats block
func (s *Snapshot) ApplyStats(stats Stats) {
	s.Stats = stats
	s.HasStats = true
}

// SetCurrentLimit records a power limit that was applied successfully
func (s *Snapshot) SetCurrentLimit(watts float64) {
	s.Limits.Current = watts
}
