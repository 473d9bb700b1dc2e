package main

import (
	"io"

	"codeberg.org/mutker/nvidiapl/internal/config"
	"codeberg.org/mutker/nvidiapl/internal/smi"
	"github.com/spf13/cobra"
)

// deps are the seams tests replace
type deps struct {
	runner     smi.Runner
	configOpts []config.Option

	// logOutput overrides where non-dashboard commands log
	logOutput io.Writer
}

func newRootCmd(d deps) *cobra.Command {
	root := &cobra.Command{
		Use:   "nvidiapl",
		Short: "NVIDIA GPU power-limit controller",
		Long: `nvidiapl shows live stats for an NVIDIA GPU and sets its board power limit.

Limits are applied with "nvidia-smi -pl" through a privilege-escalation helper
(pkexec by default). Without a subcommand the terminal dashboard starts.`,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runUI(cmd, d)
		},
	}

	config.RegisterFlags(root.PersistentFlags())

	root.AddCommand(
		newUICmd(d),
		newStatusCmd(d),
		newWatchCmd(d),
		newSetCmd(d),
		newResetCmd(d),
		newVersionCmd(),
	)

	return root
}
