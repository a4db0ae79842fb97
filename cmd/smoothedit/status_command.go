package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jguynes74-create/Smooth-Edit/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon and system status",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)
			cfg := ctx.configValue()

			for _, line := range renderSectionHeader("System Checks", colorize) {
				fmt.Fprintln(stdout, line)
			}
			for _, result := range preflight.RunAll(cmd.Context(), cfg) {
				kind := statusOK
				if !result.Passed {
					kind = statusError
				}
				fmt.Fprintln(stdout, renderStatusLine(result.Name, kind, result.Detail, colorize))
			}
			fmt.Fprintln(stdout)

			for _, line := range renderSectionHeader("Daemon", colorize) {
				fmt.Fprintln(stdout, line)
			}

			client, err := ctx.client()
			if err != nil {
				fmt.Fprintln(stdout, renderStatusLine("Daemon", statusWarn, err.Error(), colorize))
				return nil
			}
			status, err := client.Status(cmd.Context())
			if err != nil {
				fmt.Fprintln(stdout, renderStatusLine("Daemon", statusWarn, "not reachable", colorize))
				return nil
			}

			fmt.Fprintln(stdout, renderStatusLine("Daemon", statusOK, fmt.Sprintf("running (pid %d)", status.PID), colorize))
			fmt.Fprintln(stdout, renderStatusLine("Database", statusInfo, status.DatabasePath, colorize))
			fmt.Fprintln(stdout, renderStatusLine("Jobs in flight", statusInfo, strconv.Itoa(status.InFlight), colorize))
			fmt.Fprintln(stdout, renderStatusLine("Stream sessions", statusInfo, strconv.Itoa(status.Sessions), colorize))
			fmt.Fprintln(stdout)

			for _, line := range renderSectionHeader("Job Totals", colorize) {
				fmt.Fprintln(stdout, line)
			}
			rows := [][]string{
				{"pending", strconv.Itoa(status.Jobs.Pending)},
				{"processing", strconv.Itoa(status.Jobs.Processing)},
				{"completed", strconv.Itoa(status.Jobs.Completed)},
				{"failed", strconv.Itoa(status.Jobs.Failed)},
				{"total", strconv.Itoa(status.Jobs.Total)},
			}
			fmt.Fprintln(stdout, renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
			return nil
		},
	}
}
