package awscloud

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"

	"github.com/imamik/hpcmaker/internal/util/retry"
)

// RoleSpec describes the per-entity instance role.
type RoleSpec struct {
	RoleName   string
	PolicyName string
	// Policy renders the inline policy document. It is rendered before any
	// call and put on the role by every ensure, found or created.
	Policy func() (string, error)
	Tags   map[string]string
}

// Role is an IAM role.
type Role struct {
	Name    string
	ARN     string
	Created bool
}

// InstanceProfile is an IAM instance profile.
type InstanceProfile struct {
	Name string
	ARN  string
}

// ec2TrustPolicy allows EC2 instances to assume the role.
func ec2TrustPolicy() (string, error) {
	doc := map[string]any{
		"Version": "2012-10-17",
		"Statement": []map[string]any{{
			"Effect":    "Allow",
			"Principal": map[string]any{"Service": []string{"ec2.amazonaws.com"}},
			"Action":    "sts:AssumeRole",
		}},
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("marshaling trust policy: %w", err)
	}
	return string(b), nil
}

// EnsureRole returns the role, creating it with the EC2 trust policy if
// absent, and puts the rendered inline policy on it.
func (c *Client) EnsureRole(ctx context.Context, spec RoleSpec) (*Role, error) {
	policy, err := spec.Policy()
	if err != nil {
		return nil, fmt.Errorf("rendering policy for %s: %w", spec.RoleName, err)
	}

	return (&EnsureOperation[*Role]{
		Name:         spec.RoleName,
		ResourceType: "IAM role",
		Get: func(ctx context.Context) (*Role, bool, error) {
			out, err := c.iam.GetRole(ctx, &iam.GetRoleInput{RoleName: aws.String(spec.RoleName)})
			if err != nil {
				if IsNotFound(err) {
					return nil, false, nil
				}
				return nil, false, err
			}
			return &Role{Name: spec.RoleName, ARN: aws.ToString(out.Role.Arn)}, true, nil
		},
		Create: func(ctx context.Context) (*Role, error) {
			trust, err := ec2TrustPolicy()
			if err != nil {
				return nil, err
			}

			tags := make([]iamtypes.Tag, 0, len(spec.Tags))
			for k, v := range spec.Tags {
				tags = append(tags, iamtypes.Tag{Key: aws.String(k), Value: aws.String(v)})
			}

			out, err := c.iam.CreateRole(ctx, &iam.CreateRoleInput{
				RoleName:                 aws.String(spec.RoleName),
				AssumeRolePolicyDocument: aws.String(trust),
				Description:              aws.String("hpcmaker instance role"),
				Tags:                     tags,
			})
			if err != nil {
				return nil, err
			}
			return &Role{Name: spec.RoleName, ARN: aws.ToString(out.Role.Arn), Created: true}, nil
		},
		Reconcile: func(ctx context.Context, _ *Role) error {
			// PutRolePolicy replaces a policy of the same name.
			if _, err := c.iam.PutRolePolicy(ctx, &iam.PutRolePolicyInput{
				RoleName:       aws.String(spec.RoleName),
				PolicyName:     aws.String(spec.PolicyName),
				PolicyDocument: aws.String(policy),
			}); err != nil {
				return fmt.Errorf("putting inline policy %s: %w", spec.PolicyName, err)
			}
			return nil
		},
	}).Execute(ctx, c)
}

// EnsureInstanceProfile returns the profile, creating it if absent, and
// makes sure roleName is attached. The role must already exist.
func (c *Client) EnsureInstanceProfile(ctx context.Context, profileName, roleName string) (*InstanceProfile, error) {
	attached := false

	profile, err := (&EnsureOperation[*InstanceProfile]{
		Name:         profileName,
		ResourceType: "instance profile",
		Get: func(ctx context.Context) (*InstanceProfile, bool, error) {
			out, err := c.iam.GetInstanceProfile(ctx, &iam.GetInstanceProfileInput{InstanceProfileName: aws.String(profileName)})
			if err != nil {
				if IsNotFound(err) {
					return nil, false, nil
				}
				return nil, false, err
			}
			for _, r := range out.InstanceProfile.Roles {
				if aws.ToString(r.RoleName) == roleName {
					attached = true
				}
			}
			return &InstanceProfile{Name: profileName, ARN: aws.ToString(out.InstanceProfile.Arn)}, true, nil
		},
		Create: func(ctx context.Context) (*InstanceProfile, error) {
			out, err := c.iam.CreateInstanceProfile(ctx, &iam.CreateInstanceProfileInput{InstanceProfileName: aws.String(profileName)})
			if err != nil {
				return nil, err
			}
			return &InstanceProfile{Name: profileName, ARN: aws.ToString(out.InstanceProfile.Arn)}, nil
		},
	}).Execute(ctx, c)
	if err != nil {
		return nil, err
	}

	if attached {
		return profile, nil
	}

	err = retry.WithExponentialBackoff(ctx, func() error {
		callCtx, cancel := c.callCtx(ctx)
		defer cancel()

		_, err := c.iam.AddRoleToInstanceProfile(callCtx, &iam.AddRoleToInstanceProfileInput{
			InstanceProfileName: aws.String(profileName),
			RoleName:            aws.String(roleName),
		})
		switch {
		case err == nil, hasErrorCode(err, "LimitExceeded"):
			// LimitExceeded: a profile holds one role and it is already there.
			return nil
		case isNotYetVisible(err):
			return err
		default:
			return retry.Fatal(err)
		}
	},
		retry.WithTimeouts(c.timeouts),
		retry.WithOnRetry(c.logRetry("instance profile role", profileName)))
	if err != nil {
		return nil, fmt.Errorf("adding role %s to instance profile %s: %w", roleName, profileName, err)
	}
	c.log.Info("added role to instance profile", "role", roleName, "profile", profileName)

	return profile, nil
}

// DeleteInstanceProfile detaches roleName and deletes the profile.
func (c *Client) DeleteInstanceProfile(ctx context.Context, profileName, roleName string) error {
	callCtx, cancel := c.callCtx(ctx)
	_, err := c.iam.RemoveRoleFromInstanceProfile(callCtx, &iam.RemoveRoleFromInstanceProfileInput{
		InstanceProfileName: aws.String(profileName),
		RoleName:            aws.String(roleName),
	})
	cancel()
	if err != nil && !IsNotFound(err) {
		return fmt.Errorf("removing role %s from instance profile %s: %w", roleName, profileName, err)
	}

	return (&DeleteOperation{
		Name:         profileName,
		ResourceType: "instance profile",
		Delete: func(ctx context.Context) error {
			_, err := c.iam.DeleteInstanceProfile(ctx, &iam.DeleteInstanceProfileInput{InstanceProfileName: aws.String(profileName)})
			return err
		},
	}).Execute(ctx, c)
}

// DeleteRole deletes the inline policy and then the role.
func (c *Client) DeleteRole(ctx context.Context, roleName, policyName string) error {
	if err := (&DeleteOperation{
		Name:         policyName,
		ResourceType: "role policy",
		Delete: func(ctx context.Context) error {
			_, err := c.iam.DeleteRolePolicy(ctx, &iam.DeleteRolePolicyInput{
				RoleName:   aws.String(roleName),
				PolicyName: aws.String(policyName),
			})
			return err
		},
	}).Execute(ctx, c); err != nil {
		return err
	}

	return (&DeleteOperation{
		Name:         roleName,
		ResourceType: "IAM role",
		Delete: func(ctx context.Context) error {
			_, err := c.iam.DeleteRole(ctx, &iam.DeleteRoleInput{RoleName: aws.String(roleName)})
			return err
		},
	}).Execute(ctx, c)
}
