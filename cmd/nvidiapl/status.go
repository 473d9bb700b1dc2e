package main

import (
	"fmt"
	"io"

	"codeberg.org/mutker/nvidiapl/internal/gpu"
	"codeberg.org/mutker/nvidiapl/internal/ui"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

func newStatusCmd(d deps) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the GPU name, power limits and current stats",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd, d, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			snap, detectErr := a.detect(cmd)
			if detectErr != nil {
				warnDetect(cmd, detectErr)
			}

			renderStatus(cmd.OutOrStdout(), snap)

			return nil
		},
	}
}

func renderStatus(w io.Writer, snap gpu.Snapshot) {
	table := tablewriter.NewWriter(w)
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.SetColumnSeparator("")
	table.SetAlignment(tablewriter.ALIGN_LEFT)

	l := snap.Limits
	table.Append([]string{"GPU", snap.Name})
	table.Append([]string{"Power limit", fmt.Sprintf("%.0f W", l.Current)})
	table.Append([]string{"Default limit", fmt.Sprintf("%.0f W", l.Default)})
	table.Append([]string{"Range", fmt.Sprintf("%.0f - %.0f W", l.Min, l.Max)})

	if snap.HasStats {
		s := snap.Stats
		table.Append([]string{"Temperature", fmt.Sprintf("%d °C", s.TemperatureC)})
		table.Append([]string{"Utilization", fmt.Sprintf("%d %%", s.UtilizationPct)})
		table.Append([]string{"Power draw", fmt.Sprintf("%.2f W", s.PowerDrawW)})
		table.Append([]string{"VRAM", fmt.Sprintf("%s / %s (%d %%)",
			ui.FormatMB(s.VRAMUsedMB), ui.FormatMB(s.VRAMTotalMB), s.VRAMPercent())})
	} else {
		table.Append([]string{"Stats", "unavailable"})
	}

	table.Render()
}
