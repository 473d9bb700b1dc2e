package main

import (
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"codeberg.org/mutker/nvidiapl/internal/errors"
	"codeberg.org/mutker/nvidiapl/internal/gpu"
	"codeberg.org/mutker/nvidiapl/internal/logger"
	"codeberg.org/mutker/nvidiapl/internal/pid"
	"github.com/spf13/cobra"
)

const stateDirPerm = 0o755

func newWatchCmd(d deps) *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Log stats on every poll until interrupted",
		Long: `watch polls the GPU on the configured interval and logs each reading.
With metrics enabled every reading is also recorded to the metrics database,
and only one watch may record at a time.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWatch(cmd, d, count)
		},
	}

	cmd.Flags().IntVar(&count, "count", 0, "Stop after this many readings (0 runs until interrupted)")

	return cmd
}

func runWatch(cmd *cobra.Command, d deps, count int) error {
	a, err := newApp(cmd, d, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer a.Close()

	if a.cfg.Metrics {
		dir := filepath.Dir(a.cfg.MetricsDB)
		if err := os.MkdirAll(dir, stateDirPerm); err != nil {
			return errors.New().Wrap(errors.ErrInternal, err)
		}
		lock := pid.New(dir)
		if err := lock.Write(); err != nil {
			return err
		}
		a.closers = append(a.closers, lock.Remove)
	}

	collector, err := a.collector()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	snap, detectErr := a.detect(cmd)
	if detectErr != nil {
		logger.Warn().Err(detectErr).Msg("GPU detection failed, using placeholder limits")
	}

	logger.Info().
		Str("gpu", snap.Name).
		Stringer("range", snap.Limits).
		Float64("limit", snap.Limits.Current).
		Dur("interval", a.cfg.PollInterval()).
		Msg("Watching GPU")

	poller := gpu.NewPoller(a.reader, a.cfg.PollInterval(), logger.Default())
	go poller.Run(ctx)

	seen := 0
	for stats := range poller.Samples() {
		snap.ApplyStats(stats)
		logStats(snap)

		if err := collector.Record(ctx, sampleOf(snap, time.Now())); err != nil {
			logger.Warn().Err(err).Msg("Failed to record sample")
		}

		seen++
		if count > 0 && seen >= count {
			cancel()
			break
		}
	}

	logger.Info().Int("readings", seen).Msg("Stopped watching")

	return nil
}

func logStats(snap gpu.Snapshot) {
	s := snap.Stats
	logger.Info().
		Int("temp_c", s.TemperatureC).
		Int("util_pct", s.UtilizationPct).
		Float64("power_w", s.PowerDrawW).
		Float64("limit_w", snap.Limits.Current).
		Int("vram_used_mb", s.VRAMUsedMB).
		Int("vram_total_mb", s.VRAMTotalMB).
		Int("vram_pct", s.VRAMPercent()).
		Msg("GPU stats")
}
