package awscloud

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// DefaultAMIPattern selects Amazon Linux 2 images.
const DefaultAMIPattern = "amzn2-ami-hvm-*-x86_64-gp2"

// ErrNoSubnet is returned when the zone has no subnet to place an instance in.
var ErrNoSubnet = errors.New("no subnet found in availability zone")

// Subnet is the placement target discovered for a zone.
type Subnet struct {
	ID    string
	VPCID string
}

// AccountID returns the account of the calling credentials.
func (c *Client) AccountID(ctx context.Context) (string, error) {
	if c.account != "" {
		return c.account, nil
	}

	ctx, cancel := c.callCtx(ctx)
	defer cancel()

	out, err := c.sts.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", fmt.Errorf("failed to get caller identity: %w", err)
	}
	c.account = aws.ToString(out.Account)
	return c.account, nil
}

// SubnetForZone returns the first subnet in zone.
func (c *Client) SubnetForZone(ctx context.Context, zone string) (*Subnet, error) {
	ctx, cancel := c.callCtx(ctx)
	defer cancel()

	out, err := c.ec2.DescribeSubnets(ctx, &ec2.DescribeSubnetsInput{
		Filters: []types.Filter{{
			Name:   aws.String("availability-zone"),
			Values: []string{zone},
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to describe subnets in %s: %w", zone, err)
	}
	if len(out.Subnets) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoSubnet, zone)
	}

	s := out.Subnets[0]
	return &Subnet{ID: aws.ToString(s.SubnetId), VPCID: aws.ToString(s.VpcId)}, nil
}

// VPCName returns the Name tag of the VPC.
func (c *Client) VPCName(ctx context.Context, vpcID string) (string, error) {
	ctx, cancel := c.callCtx(ctx)
	defer cancel()

	out, err := c.ec2.DescribeVpcs(ctx, &ec2.DescribeVpcsInput{VpcIds: []string{vpcID}})
	if err != nil {
		return "", fmt.Errorf("failed to describe vpc %s: %w", vpcID, err)
	}
	for _, vpc := range out.Vpcs {
		for _, tag := range vpc.Tags {
			if aws.ToString(tag.Key) == "Name" && aws.ToString(tag.Value) != "" {
				return aws.ToString(tag.Value), nil
			}
		}
	}
	return "", fmt.Errorf("vpc %s has no Name tag", vpcID)
}

// LatestAMI returns the newest available Amazon-owned image matching namePattern.
func (c *Client) LatestAMI(ctx context.Context, namePattern string) (string, error) {
	ctx, cancel := c.callCtx(ctx)
	defer cancel()

	out, err := c.ec2.DescribeImages(ctx, &ec2.DescribeImagesInput{
		Owners: []string{"amazon"},
		Filters: []types.Filter{
			{Name: aws.String("name"), Values: []string{namePattern}},
			{Name: aws.String("state"), Values: []string{"available"}},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to describe images: %w", err)
	}
	if len(out.Images) == 0 {
		return "", fmt.Errorf("no image matches %q in %s", namePattern, c.region)
	}

	images := out.Images
	// CreationDate is RFC 3339, so lexical order is chronological.
	sort.Slice(images, func(i, j int) bool {
		return aws.ToString(images[i].CreationDate) > aws.ToString(images[j].CreationDate)
	})
	return aws.ToString(images[0].ImageId), nil
}
