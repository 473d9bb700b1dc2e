package main

import (
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"codeberg.org/mutker/nvidiapl/internal/errors"
	"codeberg.org/mutker/nvidiapl/internal/gpu"
	"codeberg.org/mutker/nvidiapl/internal/logger"
	"codeberg.org/mutker/nvidiapl/internal/ui"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

func newUICmd(d deps) *cobra.Command {
	return &cobra.Command{
		Use:   "ui",
		Short: "Start the terminal dashboard (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runUI(cmd, d)
		},
	}
}

func runUI(cmd *cobra.Command, d deps) error {
	// The dashboard owns the screen, so logs only go to log_file
	a, err := newApp(cmd, d, io.Discard)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	collector, err := a.collector()
	if err != nil {
		return err
	}

	snap, detectErr := a.detect(cmd)
	if detectErr != nil {
		logger.Warn().Err(detectErr).Msg("GPU detection failed, using placeholder limits")
	}

	poller := gpu.NewPoller(a.reader, a.cfg.PollInterval(), logger.Default())
	go poller.Run(ctx)

	model := ui.New(ui.Options{
		Context:   ctx,
		Snapshot:  snap,
		DetectErr: detectErr,
		Setter:    a.setter(),
		Samples:   poller.Samples(),
		Step:      a.cfg.Step,
		OnSample: func(s gpu.Snapshot) {
			// Hooks still running after shutdown drop their sample
			if ctx.Err() != nil {
				return
			}
			if err := collector.Record(ctx, sampleOf(s, time.Now())); err != nil {
				logger.Debug().Err(err).Msg("Failed to record sample")
			}
		},
	})

	program := tea.NewProgram(model, tea.WithContext(ctx), tea.WithAltScreen())

	_, err = program.Run()
	cancel()

	// A signal cancels ctx, which also stops the program
	if err != nil && ctx.Err() == nil {
		return errors.New().Wrap(errors.ErrOperationFailed, err)
	}

	return nil
}
