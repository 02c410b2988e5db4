package resources

import (
	"errors"
	"fmt"

	"github.com/imamik/hpcmaker/internal/platform/awscloud"
	"github.com/imamik/hpcmaker/internal/provisioning"
)

// Discover looks up the account, the zone's subnet and VPC, and the AMI.
func (p *Provisioner) Discover(ctx *provisioning.Context) error {
	account, err := ctx.Cloud.AccountID(ctx)
	if err != nil {
		return provisioning.Rejected("get caller identity", err)
	}
	ctx.State.Account = account

	subnet, err := ctx.Cloud.SubnetForZone(ctx, ctx.Entity.Zone)
	if err != nil {
		if errors.Is(err, awscloud.ErrNoSubnet) {
			return provisioning.Precondition(
				fmt.Sprintf("availability zone %s does not contain any valid subnets", ctx.Entity.Zone),
				"Choose another zone with -A or create a subnet in this one.",
			)
		}
		return provisioning.Rejected("describe subnets", err)
	}
	ctx.State.Subnet = subnet

	vpcName, err := ctx.Cloud.VPCName(ctx, subnet.VPCID)
	if err != nil {
		return provisioning.Precondition(
			fmt.Sprintf("%s (%s) lacks a valid Name tag: %v", subnet.VPCID, ctx.Entity.Zone, err), "")
	}
	ctx.State.VPCName = vpcName

	ami, err := ctx.Cloud.LatestAMI(ctx, awscloud.DefaultAMIPattern)
	if err != nil {
		return provisioning.Rejected("describe images", err)
	}
	ctx.State.AMI = ami

	ctx.Observer.Printf("[%s] Account %s, subnet %s in %s (%s), AMI %s",
		phase, account, subnet.ID, subnet.VPCID, vpcName, ami)
	return nil
}
