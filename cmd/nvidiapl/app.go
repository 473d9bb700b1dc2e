package main

import (
	"io"
	"os"
	"time"

	"codeberg.org/mutker/nvidiapl/internal/config"
	"codeberg.org/mutker/nvidiapl/internal/errors"
	"codeberg.org/mutker/nvidiapl/internal/gpu"
	"codeberg.org/mutker/nvidiapl/internal/logger"
	"codeberg.org/mutker/nvidiapl/internal/metrics"
	"codeberg.org/mutker/nvidiapl/internal/smi"
	"github.com/spf13/cobra"
)

const logFilePerm = 0o644

// app is the wiring shared by every command
type app struct {
	cfg    *config.Config
	tool   *smi.Tool
	runner smi.Runner
	reader gpu.Reader

	closers []func() error
}

// newApp loads configuration and sets up logging and the read backend.
// Logs go to log_file when set, otherwise to logOut.
func newApp(cmd *cobra.Command, d deps, logOut io.Writer) (*app, error) {
	cfg, err := config.Load(cmd.Flags(), d.configOpts...)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, runner: d.runner}
	if a.runner == nil {
		a.runner = smi.ExecRunner{}
	}

	if d.logOutput != nil && logOut != io.Discard {
		logOut = d.logOutput
	}
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePerm)
		if err != nil {
			return nil, errors.New().Wrap(errors.ErrInvalidConfig, err)
		}
		a.closers = append(a.closers, f.Close)
		logOut = f
	}

	logger.Init(logger.Options{
		Level:     cfg.LogLevel,
		Output:    logOut,
		IsService: logger.IsService(),
	})

	logger.Debug().
		Str("tool", cfg.Tool).
		Str("helper", cfg.Helper).
		Int("device", cfg.Device).
		Str("backend", cfg.Backend).
		Msg("Config loaded")

	a.tool = smi.NewTool(cfg.Tool, cfg.Device, cfg.QueryTimeout(), a.runner)
	a.reader = a.newReader()

	return a, nil
}

// newReader picks the read backend. NVML falls back to the tool when the
// library cannot be loaded.
func (a *app) newReader() gpu.Reader {
	if config.Backend(a.cfg.Backend) == config.BackendNVML {
		r, err := gpu.NewNVMLReader(a.cfg.Device)
		if err == nil {
			a.closers = append(a.closers, r.Close)
			return r
		}
		logger.Warn().Err(err).Msg("NVML unavailable, reading through the vendor tool")
	}

	return gpu.NewSMIReader(a.tool)
}

func (a *app) setter() *gpu.PowerSetter {
	return gpu.NewPowerSetter(a.tool, a.cfg.Helper, a.runner, logger.Default())
}

func (a *app) detect(cmd *cobra.Command) (gpu.Snapshot, error) {
	return gpu.NewDetector(a.reader, logger.Default()).Detect(cmd.Context())
}

func (a *app) collector() (metrics.Collector, error) {
	cfg := metrics.DefaultConfig()
	cfg.Enabled = a.cfg.Metrics
	cfg.DBPath = a.cfg.MetricsDB

	c, err := metrics.NewService(cfg, logger.Default())
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, c.Close)

	return c, nil
}

// Close releases resources in reverse order of acquisition
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logger.Debug().Err(err).Msg("Cleanup failed")
		}
	}
	a.closers = nil
}

func sampleOf(snap gpu.Snapshot, at time.Time) *metrics.Sample {
	return &metrics.Sample{
		Timestamp:      at,
		GPU:            snap.Name,
		TemperatureC:   snap.Stats.TemperatureC,
		UtilizationPct: snap.Stats.UtilizationPct,
		PowerDrawW:     snap.Stats.PowerDrawW,
		PowerLimitW:    snap.Limits.Current,
		VRAMUsedMB:     snap.Stats.VRAMUsedMB,
		VRAMTotalMB:    snap.Stats.VRAMTotalMB,
	}
}

func warnDetect(cmd *cobra.Command, err error) {
	logger.Debug().Err(err).Msg("GPU detection failed")
	cmd.PrintErrln("warning: GPU detection failed, showing placeholder limits:", err)
}
