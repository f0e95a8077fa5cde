package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/maauso/reframe-api/internal/job"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status JOB_ID",
		Short: "Show the current state of a reframe job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			report, err := client.Status(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("fetch status: %w", err)
			}
			if ctx.jsonOutput {
				return writeJSON(cmd, report)
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderReport(report))
			return nil
		},
	}
}

func renderReport(r job.StatusReport) string {
	progress := ""
	if r.Progress != nil {
		progress = strconv.Itoa(int(*r.Progress*100)) + "%"
	}
	return renderFields([][2]string{
		{"Job ID", r.JobID},
		{"Status", string(r.Status)},
		{"Progress", progress},
		{"Result", r.ResultURL},
		{"Error", r.ErrorMessage},
		{"Created", r.CreatedAt},
		{"Completed", r.CompletedAt},
	})
}
