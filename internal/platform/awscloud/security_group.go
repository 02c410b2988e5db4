package awscloud

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
)

// SSHPort is opened on every security group created here.
const SSHPort int32 = 22

// SecurityGroup is a VPC security group.
type SecurityGroup struct {
	ID    string
	Name  string
	VPCID string
}

// EnsureSecurityGroup returns the group named name in vpcID, creating it
// if absent, and makes sure it carries the SSH ingress rule.
func (c *Client) EnsureSecurityGroup(ctx context.Context, name, vpcID string) (*SecurityGroup, error) {
	return (&EnsureOperation[*SecurityGroup]{
		Name:         name,
		ResourceType: "security group",
		Get: func(ctx context.Context) (*SecurityGroup, bool, error) {
			out, err := c.ec2.DescribeSecurityGroups(ctx, &ec2.DescribeSecurityGroupsInput{
				Filters: []types.Filter{
					{Name: aws.String("group-name"), Values: []string{name}},
					{Name: aws.String("vpc-id"), Values: []string{vpcID}},
				},
			})
			if err != nil {
				if IsNotFound(err) {
					return nil, false, nil
				}
				return nil, false, err
			}
			if len(out.SecurityGroups) == 0 {
				return nil, false, nil
			}
			return &SecurityGroup{ID: aws.ToString(out.SecurityGroups[0].GroupId), Name: name, VPCID: vpcID}, true, nil
		},
		Create: func(ctx context.Context) (*SecurityGroup, error) {
			out, err := c.ec2.CreateSecurityGroup(ctx, &ec2.CreateSecurityGroupInput{
				GroupName:   aws.String(name),
				Description: aws.String("hpcmaker SSH access"),
				VpcId:       aws.String(vpcID),
			})
			if err != nil {
				return nil, err
			}
			return &SecurityGroup{ID: aws.ToString(out.GroupId), Name: name, VPCID: vpcID}, nil
		},
		Reconcile: func(ctx context.Context, sg *SecurityGroup) error {
			_, err := c.ec2.AuthorizeSecurityGroupIngress(ctx, &ec2.AuthorizeSecurityGroupIngressInput{
				GroupId: aws.String(sg.ID),
				IpPermissions: []types.IpPermission{{
					IpProtocol: aws.String("tcp"),
					FromPort:   aws.Int32(SSHPort),
					ToPort:     aws.Int32(SSHPort),
					IpRanges:   []types.IpRange{{CidrIp: aws.String("0.0.0.0/0")}},
				}},
			})
			// InvalidPermission.Duplicate: the rule is already there.
			if err != nil && !IsAlreadyExists(err) {
				return fmt.Errorf("authorizing SSH ingress on %s: %w", sg.ID, err)
			}
			return nil
		},
	}).Execute(ctx, c)
}
