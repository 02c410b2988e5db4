package awscloud

import (
	"errors"

	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/aws/smithy-go"
)

// errorCode returns the AWS API error code carried by err, or "".
func errorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}

// hasErrorCode checks if the error is an AWS API error with one of the given codes.
func hasErrorCode(err error, codes ...string) bool {
	if err == nil {
		return false
	}
	code := errorCode(err)
	if code == "" {
		return false
	}
	for _, c := range codes {
		if code == c {
			return true
		}
	}
	return false
}

// IsNotFound checks if an error indicates a resource was not found.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}

	var nse *iamtypes.NoSuchEntityException
	if errors.As(err, &nse) {
		return true
	}
	var nfe *snstypes.NotFoundException
	if errors.As(err, &nfe) {
		return true
	}

	return hasErrorCode(err,
		"InvalidKeyPair.NotFound",
		"InvalidGroup.NotFound",
		"InvalidVpcID.NotFound",
		"InvalidSubnetID.NotFound",
		"NoSuchEntity",
		"NotFound",
		"NoSuchBucket",
	)
}

// IsAlreadyExists checks if an error indicates the resource already exists.
// This happens when a concurrent run created it between lookup and create.
func IsAlreadyExists(err error) bool {
	return hasErrorCode(err,
		"EntityAlreadyExists",
		"InvalidKeyPair.Duplicate",
		"InvalidGroup.Duplicate",
		"InvalidPermission.Duplicate",
	)
}

// isDeleteConflict reports dependency errors that clear once a dependent
// resource is gone. These are retryable.
func isDeleteConflict(err error) bool {
	return hasErrorCode(err, "DeleteConflict", "DependencyViolation")
}

// isNotYetVisible reports IAM eventual-consistency errors seen right after
// creating a role or profile.
func isNotYetVisible(err error) bool {
	return hasErrorCode(err, "NoSuchEntity", "InvalidParameterValue")
}
