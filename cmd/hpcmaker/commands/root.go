// Package commands defines the CLI command structure and flag bindings.
//
// This package contains cobra command definitions that handle argument parsing,
// flag binding, and validation. Command execution is delegated to handler
// functions in the handlers package.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/hpcmaker/cmd/hpcmaker/handlers"
)

// Root returns the root command for the hpcmaker CLI.
//
// The root command carries the global --config and --state_dir flags and
// organizes the command hierarchy.
func Root() *cobra.Command {
	var globals handlers.Globals

	cmd := &cobra.Command{
		Use:           "hpcmaker",
		Short:         "Create and destroy HPC clusters and jumphosts on AWS",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&globals.ConfigPath, "config", "", "Path to settings file (default: hpcmaker.yaml if present)")
	cmd.PersistentFlags().StringVar(&globals.StateDir, "state_dir", "", "Root of the state tree (overrides state_dir in the settings file)")

	// Entity commands
	cmd.AddCommand(Jumphost(&globals))
	cmd.AddCommand(Cluster(&globals))

	// Utility commands
	cmd.AddCommand(List(&globals))
	cmd.AddCommand(Doctor(&globals))
	cmd.AddCommand(Version())
	cmd.AddCommand(Completion())

	return cmd
}
