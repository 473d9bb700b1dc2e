package smi_test

import (
	"os"
	"path/filepath"
	"testing"

	"codeberg.org/mutker/nvidiapl/internal/errors"
	"codeberg.org/mutker/nvidiapl/internal/smi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readTestdata(t *testing.T, name string) string {
	t.Helper()

	b, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)

	return string(b)
}

func TestParseReportOlderLayout(t *testing.T) {
	r, err := smi.ParseReport(readTestdata(t, "report_r470.txt"))
	require.NoError(t, err)

	name, ok := r.Lookup("Product Name")
	require.True(t, ok)
	assert.Equal(t, "NVIDIA GeForce RTX 2070", name)

	tests := map[string]float64{
		"Min Power Limit":      125,
		"Max Power Limit":      200,
		"Default Power Limit":  175,
		"Enforced Power Limit": 175,
		"Power Limit":          175,
	}
	for label, want := range tests {
		got, ok := r.Watts(label)
		require.True(t, ok, label)
		assert.InDelta(t, want, got, 0.001, label)
	}

	_, ok = r.Watts("Current Power Limit")
	assert.False(t, ok, "older drivers do not report Current Power Limit")
}

func TestParseReportSkipsUnavailableSections(t *testing.T) {
	r, err := smi.ParseReport(readTestdata(t, "report_r550.txt"))
	require.NoError(t, err)

	assert.Len(t, r.Values("Max Power Limit"), 2)

	maxLimit, ok := r.Watts("Max Power Limit")
	require.True(t, ok)
	assert.InDelta(t, 600.0, maxLimit, 0.001)

	current, ok := r.Watts("Current Power Limit")
	require.True(t, ok)
	assert.InDelta(t, 380.0, current, 0.001)

	draw, ok := r.Lookup("Power Draw")
	require.True(t, ok)
	assert.Equal(t, "31.70 W", draw)
}

func TestParseReportKeepsColonsInValues(t *testing.T) {
	r, err := smi.ParseReport("    Bus Id                            : 00000000:01:00.0\n")
	require.NoError(t, err)

	v, ok := r.Lookup("Bus Id")
	require.True(t, ok)
	assert.Equal(t, "00000000:01:00.0", v)
}

func TestParseReportEmpty(t *testing.T) {
	_, err := smi.ParseReport("\n==============NVSMI LOG==============\n")
	require.Error(t, err)
	assert.Equal(t, smi.ErrParseFailed, errors.CodeOf(err))
}

func TestParseWatts(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"250.00 W", 250, false},
		{"  99.5 W ", 99.5, false},
		{"300", 300, false},
		{"N/A", 0, true},
		{"W", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := smi.ParseWatts(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 0.001)
		})
	}
}

func TestIsNotAvailable(t *testing.T) {
	for _, v := range []string{"N/A", "[N/A]", "", " [Not Supported] ", "Unknown Error"} {
		assert.True(t, smi.IsNotAvailable(v), v)
	}
	for _, v := range []string{"0", "175.00 W", "Enabled"} {
		assert.False(t, smi.IsNotAvailable(v), v)
	}
}
