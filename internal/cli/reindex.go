package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newReindexCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the search index from stored concepts",
		RunE: func(cmd *cobra.Command, args []string) error {
			stats, err := a.client().Reindex(cmd.Context())
			if err != nil {
				return err
			}
			if format := a.settings().Output; format != OutputTable {
				return writeStructured(cmd.OutOrStdout(), format, stats)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "indexed %d concepts (%d failed) in %s\n",
				stats.Indexed, stats.Failed, stats.Duration)
			return err
		},
	}
}
