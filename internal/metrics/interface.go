package metrics

import (
	"context"
	"time"
)

// Collector records stats samples for one run of the program
type Collector interface {
	Record(ctx context.Context, sample *Sample) error
	Close() error

	// RunID identifies the samples written by this collector
	RunID() string
}

// Repository stores samples
type Repository interface {
	Record(sample *Sample) error
	Close() error
}

// Sample is one stats reading with the power limit in effect at the time
type Sample struct {
	Timestamp time.Time
	RunID     string
	GPU       string

	TemperatureC   int
	UtilizationPct int
	PowerDrawW     float64
	PowerLimitW    float64
	VRAMUsedMB     int
	VRAMTotalMB    int
}
