package resources

import (
	"errors"
	"fmt"

	"github.com/imamik/hpcmaker/internal/platform/awscloud"
	"github.com/imamik/hpcmaker/internal/provisioning"
)

const releasePhase = "release"

// Release deletes the dependent resources of the entity whose serial is in
// ctx.State. The shared security group is never deleted. Every resource is
// attempted even after a failure; the failures are joined.
func Release(ctx *provisioning.Context) error {
	names := ctx.Names()
	ctx.State.Names = names

	var errs []error
	del := func(resourceType, name string, fn func() error) {
		provisioning.LogResourceDeleting(ctx.Observer, releasePhase, resourceType, name)
		if err := fn(); err != nil {
			provisioning.LogResourceFailed(ctx.Observer, releasePhase, resourceType, name, err)
			errs = append(errs, fmt.Errorf("%s %s: %w", resourceType, name, err))
			return
		}
		provisioning.LogResourceDeleted(ctx.Observer, releasePhase, resourceType, name)
	}

	del("instance profile", names.Profile, func() error {
		return ctx.Cloud.DeleteInstanceProfile(ctx, names.Profile, names.Role)
	})
	del("IAM role", names.Role, func() error {
		return ctx.Cloud.DeleteRole(ctx, names.Role, names.Policy)
	})
	del("key pair", names.KeyPair, func() error {
		return ctx.Cloud.DeleteKeyPair(ctx, names.KeyPair, names.PEMPath)
	})
	del("SNS topic", names.Topic, func() error {
		arn, err := topicARN(ctx, names.Topic)
		if err != nil {
			return err
		}
		return ctx.Cloud.DeleteTopic(ctx, arn)
	})
	if names.Bucket != "" && ctx.Buckets != nil {
		del("S3 bucket", names.Bucket, func() error {
			return ctx.Buckets.DeleteBucket(ctx, names.Bucket)
		})
	}

	return errors.Join(errs...)
}

func topicARN(ctx *provisioning.Context, name string) (string, error) {
	if ctx.State.Topic != nil && ctx.State.Topic.Name == name {
		return ctx.State.Topic.ARN, nil
	}
	account := ctx.State.Account
	if account == "" {
		var err error
		if account, err = ctx.Cloud.AccountID(ctx); err != nil {
			return "", fmt.Errorf("resolving account for topic ARN: %w", err)
		}
	}
	return awscloud.TopicARN(ctx.Cloud.Region(), account, name), nil
}
