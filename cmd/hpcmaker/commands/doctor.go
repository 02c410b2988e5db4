package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/hpcmaker/cmd/hpcmaker/handlers"
)

// Doctor returns the command for checking the local toolchain and state.
func Doctor(g *handlers.Globals) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check external tools, settings and the state tree",
		Long: `Diagnose the hpcmaker environment.

  - Loads and validates the settings file
  - Checks ansible, ansible-playbook, terraform, pcluster, python3 and ssh
  - Opens the registry and counts active entities

Exits non-zero when a required tool is missing.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Doctor(cmd.Context(), *g)
		},
	}
}
