package smi

import (
	"fmt"
	"strconv"
	"strings"

	"codeberg.org/mutker/nvidiapl/internal/errors"
)

const statsFields = 5

// StatsRecord is one line of the live stats query, in query order
type StatsRecord struct {
	Temperature int
	Utilization int
	PowerDraw   float64
	MemoryTotal int
	MemoryUsed  int
}

// ParseName returns the first reported product name
func ParseName(output string) (string, error) {
	line, ok := firstLine(output)
	if !ok {
		return "", errors.New().WithMessage(ErrParseFailed, "empty name output")
	}

	return line, nil
}

// ParseStats parses the first GPU line of the stats query. Placeholder
// values read as zero.
func ParseStats(output string) (StatsRecord, error) {
	errFactory := errors.New()

	line, ok := firstLine(output)
	if !ok {
		return StatsRecord{}, errFactory.WithMessage(ErrParseFailed, "empty stats output")
	}

	fields := strings.Split(line, ",")
	if len(fields) != statsFields {
		return StatsRecord{}, errFactory.WithData(ErrParseFailed,
			fmt.Sprintf("expected %d fields, got %d in %q", statsFields, len(fields), line))
	}

	var (
		rec StatsRecord
		err error
	)
	if rec.Temperature, err = parseInt(fields[0]); err != nil {
		return StatsRecord{}, errFactory.Wrap(ErrParseFailed, fmt.Errorf("temperature.gpu: %w", err))
	}
	if rec.Utilization, err = parseInt(fields[1]); err != nil {
		return StatsRecord{}, errFactory.Wrap(ErrParseFailed, fmt.Errorf("utilization.gpu: %w", err))
	}
	if rec.PowerDraw, err = parseFloat(fields[2]); err != nil {
		return StatsRecord{}, errFactory.Wrap(ErrParseFailed, fmt.Errorf("power.draw: %w", err))
	}
	if rec.MemoryTotal, err = parseInt(fields[3]); err != nil {
		return StatsRecord{}, errFactory.Wrap(ErrParseFailed, fmt.Errorf("memory.total: %w", err))
	}
	if rec.MemoryUsed, err = parseInt(fields[4]); err != nil {
		return StatsRecord{}, errFactory.Wrap(ErrParseFailed, fmt.Errorf("memory.used: %w", err))
	}

	return rec, nil
}

func firstLine(output string) (string, bool) {
	for _, line := range strings.Split(output, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line, true
		}
	}

	return "", false
}

func parseInt(field string) (int, error) {
	field = strings.TrimSpace(field)
	if IsNotAvailable(field) {
		return 0, nil
	}

	return strconv.Atoi(field)
}

func parseFloat(field string) (float64, error) {
	field = strings.TrimSpace(field)
	if IsNotAvailable(field) {
		return 0, nil
	}

	return strconv.ParseFloat(field, 64)
}
