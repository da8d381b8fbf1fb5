package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewGrammarCommand creates the grammar command.
func NewGrammarCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "grammar",
		Short: "Print the grammar artifact",
		Long: `Print the Lark-style grammar artifact derived from the registered schema.
This is the exact artifact handed to the generation service as its fence.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := loadGrammar(rootOpts)
			if err != nil {
				return err
			}
			if rootOpts.Format == "json" {
				formatter := &OutputFormatter{Format: "json", Writer: cmd.OutOrStdout()}
				return formatter.Success(map[string]string{
					"start":   g.Start(),
					"grammar": g.ExportLark(),
				})
			}
			fmt.Fprint(cmd.OutOrStdout(), g.ExportLark())
			return nil
		},
	}
}
