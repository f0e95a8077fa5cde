package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var errUnhealthy = errors.New("one or more components are unhealthy")

func newHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check the backend and the vendors behind it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			components := client.Health(cmd.Context())

			healthy := true
			rows := make([][]string, 0, len(components))
			for _, c := range components {
				mark := "ok"
				if !c.OK {
					mark = "FAIL"
					healthy = false
				}
				rows = append(rows, []string{c.Name, c.Status, mark})
			}

			if ctx.jsonOutput {
				if err := writeJSON(cmd, components); err != nil {
					return err
				}
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Component", "Status", "Check"}, rows))
			}
			if !healthy {
				return errUnhealthy
			}
			return nil
		},
	}
}
