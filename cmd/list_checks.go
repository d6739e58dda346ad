/*
Copyright © 2025 3 Leaps <info@3leaps.net>
*/
package cmd

import (
	"fmt"

	"github.com/fulmenhq/repopolicy/internal/checks"
	"github.com/fulmenhq/repopolicy/pkg/ascii"
	"github.com/spf13/cobra"
)

func newListChecksCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list-checks",
		Short: "List the checks run by check-dev-files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			plain, _ := cmd.Flags().GetBool("plain")
			out := cmd.OutOrStdout()
			if plain {
				for _, ch := range checks.Registry {
					_, _ = fmt.Fprintln(out, ch.Name)
				}
				return nil
			}
			rows := make([][]string, 0, len(checks.Registry))
			for _, ch := range checks.Registry {
				rows = append(rows, []string{ch.Name, ch.Description})
			}
			_, _ = fmt.Fprint(out, ascii.Table([]string{"CHECK", "DESCRIPTION"}, rows))
			return nil
		},
	}
	cmd.Flags().Bool("plain", false, "Print only the check names, one per line")
	return cmd
}
