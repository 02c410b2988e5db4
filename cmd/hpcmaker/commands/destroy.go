package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/imamik/hpcmaker/cmd/hpcmaker/handlers"
	"github.com/imamik/hpcmaker/internal/config"
)

// Destroy returns the destroy command for kind.
func Destroy(g *handlers.Globals, kind config.Kind) *cobra.Command {
	opts := handlers.DestroyOptions{Kind: kind}
	var confirmDelay time.Duration

	cmd := &cobra.Command{
		Use:   "destroy",
		Short: fmt.Sprintf("Destroy a %s and release its resources", kind),
		Long: fmt.Sprintf(`Destroy a %[1]s created by hpcmaker.

The teardown resolves the serial number, waits out a confirm window,
runs the delete playbook and then releases:
  - the key pair and its private key
  - the IAM role, inline policy and instance profile
  - the notification topic
  - the data bucket (clusters)

The vars file and the serial record are removed only after the destroy
succeeded. If the destroy fails they are kept and the command that built
the %[1]s is printed.

Example:
  hpcmaker %[1]s destroy -A us-east-1a -N test01 -O alice

WARNING: This operation is irreversible.`, kind),
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts.ConfirmDelay = -1
			if cmd.Flags().Changed("confirm_delay") {
				opts.ConfirmDelay = confirmDelay
			}
			return handlers.Destroy(cmd.Context(), *g, opts)
		},
	}

	identityFlags(cmd, &opts.Zone, &opts.Name, &opts.Owner, kind)
	tierFlag(cmd, &opts.Tier)
	boolFlag(cmd.Flags(), &opts.DeleteDependents, "delete_dependents", true, "Release the key pair, IAM role, profile, topic and bucket")
	boolFlag(cmd.Flags(), &opts.Interactive, "interactive", false, "Ask for confirmation before the countdown")
	cmd.Flags().DurationVar(&confirmDelay, "confirm_delay", 0, "Window to abort before the destroy (default: from settings)")

	if kind == config.KindCluster {
		boolFlag(cmd.Flags(), &opts.DeleteEFS, "delete_efs", true, "Delete the EFS file system of the cluster")
		boolFlag(cmd.Flags(), &opts.DeleteFSX, "delete_fsx", true, "Delete the Lustre file system of the cluster")
		boolFlag(cmd.Flags(), &opts.DeleteS3Bucket, "delete_s3_bucketname", true, "Delete the S3 bucket of the cluster")
	}

	return cmd
}
