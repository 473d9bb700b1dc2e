package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"codeberg.org/mutker/nvidiapl/internal/errors"
	"codeberg.org/mutker/nvidiapl/internal/gpu"
	"github.com/spf13/cobra"
)

func newSetCmd(d deps) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "set <watts>",
		Short: "Set the power limit in whole watts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			watts, err := strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(args[0]), "W"))
			if err != nil {
				return errors.New().WithData(errors.ErrInvalidArgument, fmt.Sprintf("%q is not a whole number of watts", args[0]))
			}

			return runSet(cmd, d, yes, func(gpu.PowerLimits) int { return watts })
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Apply without asking for confirmation")

	return cmd
}

func newResetCmd(d deps) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Restore the default power limit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSet(cmd, d, yes, func(l gpu.PowerLimits) int { return l.Clamp(int(l.Default)) })
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Apply without asking for confirmation")

	return cmd
}

// runSet applies the limit chosen from the detected bounds
func runSet(cmd *cobra.Command, d deps, yes bool, choose func(gpu.PowerLimits) int) error {
	a, err := newApp(cmd, d, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()

	snap, detectErr := a.detect(cmd)
	if detectErr != nil {
		warnDetect(cmd, detectErr)
	}

	watts := choose(snap.Limits)
	if !snap.Limits.Contains(float64(watts)) {
		return errors.New().WithData(errors.ErrInvalidArgument,
			fmt.Sprintf("%dW is outside the supported range %s", watts, snap.Limits))
	}

	in := bufio.NewReader(cmd.InOrStdin())
	if !yes {
		prompt := fmt.Sprintf("Set the power limit of %s from %.0fW to %dW?", snap.Name, snap.Limits.Current, watts)
		if !confirm(in, cmd.OutOrStdout(), prompt) {
			fmt.Fprintln(cmd.OutOrStdout(), "Cancelled")
			return nil
		}
	}

	setter := a.setter()
	if err := setter.Apply(cmd.Context(), snap.Limits, watts,
		gpu.WithTerminal(in, cmd.OutOrStdout(), cmd.ErrOrStderr())); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Power limit set to %dW\n", watts)

	return nil
}

// confirm asks a yes/no question, defaulting to no
func confirm(in *bufio.Reader, out io.Writer, prompt string) bool {
	fmt.Fprintf(out, "%s [y/N] ", prompt)

	answer, err := in.ReadString('\n')
	if err != nil && answer == "" {
		fmt.Fprintln(out)
		return false
	}

	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}
