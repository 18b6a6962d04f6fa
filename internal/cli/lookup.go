package cli

import (
	"github.com/spf13/cobra"
)

func newLookupCmd(a *app) *cobra.Command {
	var withRelationships bool

	cmd := &cobra.Command{
		Use:   "lookup <iri>",
		Short: "Show the object an IRI names",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := a.client()
			format := a.settings().Output

			kind, doc, err := client.Lookup(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := renderDocument(cmd.OutOrStdout(), format, kind, doc); err != nil {
				return err
			}
			if !withRelationships || kind != "concept" {
				return nil
			}
			rels, err := client.Relationships(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return renderRelationships(cmd.OutOrStdout(), format, rels)
		},
	}
	cmd.Flags().BoolVar(&withRelationships, "relationships", false, "also list the concept's relationships")
	return cmd
}
