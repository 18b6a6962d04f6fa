package cli

import (
	"github.com/spf13/cobra"
)

func newImportCmd(a *app) *cobra.Command {
	var continueOnError bool

	cmd := &cobra.Command{
		Use:   "import <bundle.yaml>",
		Short: "Import a YAML bundle of JSON-LD documents",
		Long: `Import posts every document of the bundle to the server in dependency order:
concept_schemes, concepts, relationships, correspondences, associations, made_of.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bundle, err := LoadBundle(args[0])
			if err != nil {
				return err
			}
			im := &Importer{client: a.client(), continueOnError: continueOnError, log: cmd.ErrOrStderr()}
			results, importErr := im.Import(cmd.Context(), bundle)
			if err := renderImport(cmd.OutOrStdout(), a.settings().Output, results); err != nil {
				return err
			}
			return importErr
		},
	}
	cmd.Flags().BoolVar(&continueOnError, "continue-on-error", false, "keep importing after a document is rejected")
	return cmd
}
