package resources

import (
	"fmt"

	"github.com/imamik/hpcmaker/internal/platform/awscloud"
	"github.com/imamik/hpcmaker/internal/platform/s3"
	"github.com/imamik/hpcmaker/internal/provisioning"
	"github.com/imamik/hpcmaker/internal/render"
)

// EnsureSecurityGroup ensures the SSH security group in the zone's VPC.
func (p *Provisioner) EnsureSecurityGroup(ctx *provisioning.Context) error {
	name := ctx.State.Names.SecurityGroup
	sg, err := ctx.Cloud.EnsureSecurityGroup(ctx, name, ctx.State.Subnet.VPCID)
	if err != nil {
		provisioning.LogResourceFailed(ctx.Observer, phase, "security group", name, err)
		return fmt.Errorf("failed to ensure security group %s: %w", name, err)
	}
	ctx.State.SecurityGroup = sg
	ctx.Observer.Printf("[%s] Security group %s (%s)", phase, sg.Name, sg.ID)
	return nil
}

// EnsureKeyPair ensures the key pair and its local private key.
func (p *Provisioner) EnsureKeyPair(ctx *provisioning.Context) error {
	names := ctx.State.Names
	kp, err := ctx.Cloud.EnsureKeyPair(ctx, names.KeyPair, names.PEMPath)
	if err != nil {
		provisioning.LogResourceFailed(ctx.Observer, phase, "key pair", names.KeyPair, err)
		return fmt.Errorf("failed to ensure key pair %s: %w", names.KeyPair, err)
	}
	ctx.State.KeyPair = kp
	ctx.Observer.Printf("[%s] Key pair %s, private key %s", phase, kp.Name, kp.PEMPath)
	return nil
}

// EnsureTopic ensures the notification topic with the owner's e-mail
// subscribed.
func (p *Provisioner) EnsureTopic(ctx *provisioning.Context) error {
	name := ctx.State.Names.Topic
	topic, err := ctx.Cloud.EnsureTopic(ctx, name, ctx.Request.Email)
	if err != nil {
		provisioning.LogResourceFailed(ctx.Observer, phase, "SNS topic", name, err)
		return fmt.Errorf("failed to ensure SNS topic %s: %w", name, err)
	}
	ctx.State.Topic = topic
	ctx.Observer.Printf("[%s] SNS topic %s", phase, topic.ARN)
	return nil
}

// EnsureRole ensures the instance role. The inline policy is rendered
// only when the role has to be created.
func (p *Provisioner) EnsureRole(ctx *provisioning.Context) error {
	names := ctx.State.Names
	provisioning.LogResourceCreating(ctx.Observer, phase, "IAM role", names.Role)

	role, err := ctx.Cloud.EnsureRole(ctx, awscloud.RoleSpec{
		RoleName:   names.Role,
		PolicyName: names.Policy,
		Policy: func() (string, error) {
			out, err := ctx.Templates.Render(render.PolicyTemplate, render.PolicyDataFor(ctx))
			if err != nil {
				return "", err
			}
			return string(out), nil
		},
		Tags: Tags(ctx),
	})
	if err != nil {
		provisioning.LogResourceFailed(ctx.Observer, phase, "IAM role", names.Role, err)
		return fmt.Errorf("failed to ensure IAM role %s: %w", names.Role, err)
	}

	ctx.State.Role = role
	if role.Created {
		provisioning.LogResourceCreated(ctx.Observer, phase, "IAM role", role.Name, role.ARN)
	} else {
		provisioning.LogResourceExists(ctx.Observer, phase, "IAM role", role.Name, role.ARN)
	}
	return nil
}

// EnsureInstanceProfile ensures the profile with the role attached.
func (p *Provisioner) EnsureInstanceProfile(ctx *provisioning.Context) error {
	names := ctx.State.Names
	profile, err := ctx.Cloud.EnsureInstanceProfile(ctx, names.Profile, names.Role)
	if err != nil {
		provisioning.LogResourceFailed(ctx.Observer, phase, "instance profile", names.Profile, err)
		return fmt.Errorf("failed to ensure instance profile %s: %w", names.Profile, err)
	}
	ctx.State.Profile = profile
	ctx.Observer.Printf("[%s] Instance profile %s", phase, profile.Name)
	return nil
}

// EnsureBucket ensures the cluster data bucket. Jumphosts have none, and
// a nil bucket manager disables it.
func (p *Provisioner) EnsureBucket(ctx *provisioning.Context) error {
	name := ctx.State.Names.Bucket
	if name == "" || ctx.Buckets == nil {
		return nil
	}

	buckets := ctx.Buckets
	if c, ok := buckets.(*s3.Client); ok {
		buckets = c.WithTags(Tags(ctx))
	}

	created, err := buckets.EnsureBucket(ctx, name)
	if err != nil {
		provisioning.LogResourceFailed(ctx.Observer, phase, "S3 bucket", name, err)
		return fmt.Errorf("failed to ensure S3 bucket %s: %w", name, err)
	}
	ctx.State.Bucket = name
	if created {
		provisioning.LogResourceCreated(ctx.Observer, phase, "S3 bucket", name, name)
	} else {
		provisioning.LogResourceExists(ctx.Observer, phase, "S3 bucket", name, name)
	}
	return nil
}

// Tags are applied to every taggable resource of the entity.
func Tags(ctx *provisioning.Context) map[string]string {
	tags := map[string]string{
		"Name":      ctx.Entity.FullName(),
		"Owner":     ctx.Entity.Owner,
		"Tier":      ctx.Entity.Tier,
		"Serial":    ctx.State.Serial.String(),
		"ManagedBy": "hpcmaker",
	}
	if ctx.Request.Department != "" {
		tags["Department"] = ctx.Request.Department
	}
	if ctx.Request.ProjectID != "" {
		tags["ProjectID"] = ctx.Request.ProjectID
	}
	return tags
}
