package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/imamik/hpcmaker/cmd/hpcmaker/handlers"
	"github.com/imamik/hpcmaker/internal/config"
)

// Access returns the access command for kind.
//
// Clusters are reached through the access script their build wrote;
// jumphosts through ssh with the entity's private key.
func Access(g *handlers.Globals, kind config.Kind) *cobra.Command {
	opts := handlers.AccessOptions{Kind: kind}

	cmd := &cobra.Command{
		Use:   "access",
		Short: fmt.Sprintf("Log in to a %s", kind),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Access(cmd.Context(), *g, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Name, "name", "N", "", fmt.Sprintf("Name of the %s (required)", kind))
	cmd.Flags().StringVarP(&opts.Owner, "owner", "O", "", fmt.Sprintf("Username of the %s owner (required)", kind))
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("owner")
	tierFlag(cmd, &opts.Tier)

	if kind == config.KindJumphost {
		cmd.Flags().StringVar(&opts.Host, "host", "", "Public address of the jumphost (default: jumphost_public_ip from the vars file)")
	}

	return cmd
}
