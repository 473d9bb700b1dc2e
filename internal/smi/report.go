package smi

import (
	"strconv"
	"strings"

	"codeberg.org/mutker/nvidiapl/internal/errors"
)

const labelSeparator = " : "

// Report holds the "label : value" lines of a text report. A label can
// appear in several sections; values keep report order.
type Report struct {
	fields map[string][]string
}

// ParseReport splits a text report into labelled values. Section headings
// and banner lines carry no separator and are skipped.
func ParseReport(text string) (*Report, error) {
	r := &Report{fields: make(map[string][]string)}

	for _, line := range strings.Split(text, "\n") {
		label, value, ok := splitField(line)
		if !ok {
			continue
		}
		r.fields[label] = append(r.fields[label], value)
	}

	if len(r.fields) == 0 {
		return nil, errors.New().WithMessage(ErrParseFailed, "report contains no fields")
	}

	return r, nil
}

func splitField(line string) (label, value string, ok bool) {
	line = strings.TrimRight(line, " \t\r")
	label, value, found := strings.Cut(line, labelSeparator)
	if !found {
		trimmed, hasColon := strings.CutSuffix(line, " :")
		if !hasColon {
			return "", "", false
		}
		label, value = trimmed, ""
	}

	label = strings.TrimSpace(label)
	if label == "" {
		return "", "", false
	}

	return label, strings.TrimSpace(value), true
}

// Values returns every value recorded for label
func (r *Report) Values(label string) []string {
	return r.fields[label]
}

// Lookup returns the first reported value for label
func (r *Report) Lookup(label string) (string, bool) {
	for _, v := range r.fields[label] {
		if !IsNotAvailable(v) {
			return v, true
		}
	}

	return "", false
}

// Watts returns the first value for label that parses as a wattage
func (r *Report) Watts(label string) (float64, bool) {
	for _, v := range r.fields[label] {
		if w, err := ParseWatts(v); err == nil {
			return w, true
		}
	}

	return 0, false
}

// ParseWatts parses values like "250.00 W"
func ParseWatts(value string) (float64, error) {
	value = strings.TrimSpace(value)
	value = strings.TrimSpace(strings.TrimSuffix(value, "W"))

	w, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, errors.New().Wrap(ErrParseFailed, err)
	}

	return w, nil
}

// IsNotAvailable reports whether a value is one of the tool's placeholders
// for unsupported or missing readings.
func IsNotAvailable(value string) bool {
	switch strings.Trim(strings.TrimSpace(value), "[]") {
	case "", "N/A", "Not Supported", "Unknown Error", "Requested functionality has been deprecated":
		return true
	default:
		return false
	}
}
