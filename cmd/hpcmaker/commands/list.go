package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/hpcmaker/cmd/hpcmaker/handlers"
)

// List returns the command listing active entities.
func List(g *handlers.Globals) *cobra.Command {
	var tier string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List active clusters and jumphosts",
		Long: `List every cluster and jumphost with a serial record.

Example:
  hpcmaker list --prod_level dev`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.List(cmd.Context(), *g, tier)
		},
	}

	cmd.Flags().StringVar(&tier, "prod_level", "", "Only list entities of this tier (default: all tiers)")

	return cmd
}
