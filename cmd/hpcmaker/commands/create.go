package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/imamik/hpcmaker/cmd/hpcmaker/handlers"
	"github.com/imamik/hpcmaker/internal/config"
)

// Create returns the create command for kind.
//
// Required flags:
//
//	--az, -A:    availability zone; the region is derived from it
//	--name, -N:  birth name of the entity
//	--owner, -O: owner username
//	--email, -E: owner e-mail, subscribed to the entity's topic
func Create(g *handlers.Globals, kind config.Kind) *cobra.Command {
	opts := handlers.CreateOptions{Kind: kind}
	var confirmDelay time.Duration

	cmd := &cobra.Command{
		Use:   "create",
		Short: fmt.Sprintf("Create a %s", kind),
		Long: fmt.Sprintf(`Create a %[1]s and its dependent AWS resources.

The create runs these phases in order:
  - validation:   identifiers, availability zone, existing records, tools
  - registration: serial number allocation and record
  - resources:    security group, key pair, IAM role and profile, topic
  - configure:    vars file, rendered templates, templates playbook
  - build:        confirm window, then the %[1]s build

A failed create keeps its records, so rerunning the same command reuses
the serial number and every resource name.

Example:
  hpcmaker %[1]s create -A us-east-1a -N test01 -O alice -E alice@example.com`, kind),
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts.ConfirmDelay = -1
			if cmd.Flags().Changed("confirm_delay") {
				opts.ConfirmDelay = confirmDelay
			}
			opts.Argv = os.Args
			return handlers.Create(cmd.Context(), *g, opts)
		},
	}

	identityFlags(cmd, &opts.Zone, &opts.Name, &opts.Owner, kind)
	cmd.Flags().StringVarP(&opts.Email, "email", "E", "", "E-mail address of the owner (required)")
	_ = cmd.MarkFlagRequired("email")

	tierFlag(cmd, &opts.Tier)
	cmd.Flags().StringVar(&opts.Department, "instance_owner_department", config.DefaultDepartment, "Department of the owner")
	cmd.Flags().StringVarP(&opts.ProjectID, "project_id", "P", "UNDEFINED", "Project name or ID number")
	cmd.Flags().StringVar(&opts.SecurityGroup, "security_group", "", "Primary security group (default: the shared group for the kind)")
	cmd.Flags().StringVarP(&opts.TurbotAccount, "turbot_account", "T", "", `Turbot account ID, or "disabled" (default: from settings)`)
	boolFlag(cmd.Flags(), &opts.Debug, "debug_mode", false, "Enable debug logging and -vvv playbook output")
	cmd.Flags().IntVar(&opts.Verbosity, "ansible_verbosity", 0, "Number of -v flags passed to ansible-playbook")
	cmd.Flags().StringVar(&opts.InstanceType, "ec2_instance_type", "", "EC2 instance type (default: from settings)")
	cmd.Flags().IntVar(&opts.RootVolumeSize, "root_volume_size", 0, "Root volume size in GiB (default: from settings)")
	cmd.Flags().DurationVar(&confirmDelay, "confirm_delay", 0, "Window to abort before the build (default: from settings)")

	_ = cmd.RegisterFlagCompletionFunc("instance_owner_department", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return config.Departments, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}
