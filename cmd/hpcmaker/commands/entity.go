package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/imamik/hpcmaker/cmd/hpcmaker/handlers"
	"github.com/imamik/hpcmaker/internal/config"
)

// Jumphost returns the jumphost command group.
func Jumphost(g *handlers.Globals) *cobra.Command {
	return entityCommand(g, config.KindJumphost, "Manage pcluster jumphost bastion instances")
}

// Cluster returns the cluster command group.
func Cluster(g *handlers.Globals) *cobra.Command {
	return entityCommand(g, config.KindCluster, "Manage HPC clusters")
}

func entityCommand(g *handlers.Globals, kind config.Kind, short string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   string(kind),
		Short: short,
	}

	cmd.AddCommand(Create(g, kind))
	cmd.AddCommand(Destroy(g, kind))
	cmd.AddCommand(Access(g, kind))

	return cmd
}

// tierFlag binds --prod_level with shell completion of the tiers.
func tierFlag(cmd *cobra.Command, p *string) {
	cmd.Flags().StringVar(p, "prod_level", config.DefaultTier, fmt.Sprintf("Operating tier, one of %v", config.Tiers))
	_ = cmd.RegisterFlagCompletionFunc("prod_level", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return config.Tiers, cobra.ShellCompDirectiveNoFileComp
	})
}

// identityFlags binds -A, -N and -O.
func identityFlags(cmd *cobra.Command, zone, name, owner *string, kind config.Kind) {
	cmd.Flags().StringVarP(zone, "az", "A", "", "AWS availability zone, e.g. us-east-1a (required)")
	cmd.Flags().StringVarP(name, "name", "N", "", fmt.Sprintf("Name of the %s (required)", kind))
	cmd.Flags().StringVarP(owner, "owner", "O", "", fmt.Sprintf("Username of the %s owner (required)", kind))
	_ = cmd.MarkFlagRequired("az")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("owner")
}
