package s3

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/go-logr/logr"

	hpcconfig "github.com/imamik/hpcmaker/internal/config"
	"github.com/imamik/hpcmaker/internal/provisioning"
)

// ErrBucketTaken means the bucket name is owned by another account.
var ErrBucketTaken = errors.New("bucket name is owned by another account")

var _ provisioning.BucketManager = (*Client)(nil)

// API is the subset of the S3 client used here.
type API interface {
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, in *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
	PutBucketTagging(ctx context.Context, in *s3.PutBucketTaggingInput, optFns ...func(*s3.Options)) (*s3.PutBucketTaggingOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	DeleteObjects(ctx context.Context, in *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
	DeleteBucket(ctx context.Context, in *s3.DeleteBucketInput, optFns ...func(*s3.Options)) (*s3.DeleteBucketOutput, error)
}

// Client wraps the S3 client for the cluster data bucket.
type Client struct {
	s3       API
	region   string
	tags     map[string]string
	timeouts *hpcconfig.Timeouts
	log      logr.Logger
}

// NewClient creates a client from a loaded AWS configuration. A non-empty
// endpoint selects an S3-compatible service with path-style addressing.
func NewClient(cfg aws.Config, endpoint string, timeouts *hpcconfig.Timeouts, log logr.Logger) *Client {
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})
	return NewFromAPI(client, cfg.Region, timeouts, log)
}

// NewFromAPI wraps an existing API implementation.
func NewFromAPI(api API, region string, timeouts *hpcconfig.Timeouts, log logr.Logger) *Client {
	if timeouts == nil {
		timeouts = hpcconfig.LoadTimeouts()
	}
	return &Client{s3: api, region: region, timeouts: timeouts, log: log}
}

// WithTags returns a copy of c that tags buckets it creates.
func (c *Client) WithTags(tags map[string]string) *Client {
	cp := *c
	cp.tags = tags
	return &cp
}

func (c *Client) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.timeouts.API)
}

// EnsureBucket creates the bucket if it does not exist. created is false
// when the bucket was already ours.
func (c *Client) EnsureBucket(ctx context.Context, bucketName string) (bool, error) {
	exists, err := c.BucketExists(ctx, bucketName)
	if err != nil {
		return false, err
	}
	if exists {
		c.log.V(1).Info("bucket exists", "bucket", bucketName)
		return false, nil
	}

	if err := c.CreateBucket(ctx, bucketName); err != nil {
		return false, err
	}
	c.log.Info("created bucket", "bucket", bucketName, "region", c.region)
	return true, nil
}

// CreateBucket creates a new S3 bucket in the client's region.
// Returns nil if the bucket already exists and is owned by us.
func (c *Client) CreateBucket(ctx context.Context, bucketName string) error {
	ctx, cancel := c.callCtx(ctx)
	defer cancel()

	input := &s3.CreateBucketInput{Bucket: aws.String(bucketName)}
	// us-east-1 rejects an explicit location constraint.
	if c.region != "" && c.region != "us-east-1" {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(c.region),
		}
	}

	_, err := c.s3.CreateBucket(ctx, input)
	if err != nil {
		if isBucketAlreadyOwnedByYou(err) {
			return nil
		}
		if isBucketAlreadyExists(err) {
			return fmt.Errorf("%w: %s", ErrBucketTaken, bucketName)
		}
		return fmt.Errorf("failed to create bucket %s: %w", bucketName, err)
	}

	if len(c.tags) == 0 {
		return nil
	}
	tagSet := make([]types.Tag, 0, len(c.tags))
	for k, v := range c.tags {
		tagSet = append(tagSet, types.Tag{Key: aws.String(k), Value: aws.String(v)})
	}
	if _, err := c.s3.PutBucketTagging(ctx, &s3.PutBucketTaggingInput{
		Bucket:  aws.String(bucketName),
		Tagging: &types.Tagging{TagSet: tagSet},
	}); err != nil {
		return fmt.Errorf("failed to tag bucket %s: %w", bucketName, err)
	}
	return nil
}

// BucketExists checks if a bucket exists and is accessible.
func (c *Client) BucketExists(ctx context.Context, bucketName string) (bool, error) {
	ctx, cancel := c.callCtx(ctx)
	defer cancel()

	_, err := c.s3.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(bucketName),
	})
	if err != nil {
		if isNotFoundError(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check bucket %s: %w", bucketName, err)
	}
	return true, nil
}

// DeleteBucket deletes every object in the bucket and then the bucket.
// A bucket that does not exist is not an error.
func (c *Client) DeleteBucket(ctx context.Context, bucketName string) error {
	deleted, err := c.emptyBucket(ctx, bucketName)
	if err != nil {
		if isNotFoundError(err) {
			return nil
		}
		return err
	}
	if deleted > 0 {
		c.log.Info("emptied bucket", "bucket", bucketName, "objects", deleted)
	}

	callCtx, cancel := c.callCtx(ctx)
	defer cancel()
	if _, err := c.s3.DeleteBucket(callCtx, &s3.DeleteBucketInput{
		Bucket: aws.String(bucketName),
	}); err != nil {
		if isNotFoundError(err) {
			return nil
		}
		return fmt.Errorf("failed to delete bucket %s: %w", bucketName, err)
	}
	c.log.Info("deleted bucket", "bucket", bucketName)
	return nil
}

// emptyBucket deletes all objects page by page and returns how many were
// removed.
func (c *Client) emptyBucket(ctx context.Context, bucketName string) (int, error) {
	var deleted int
	paginator := s3.NewListObjectsV2Paginator(c.s3, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucketName),
	})

	for paginator.HasMorePages() {
		callCtx, cancel := c.callCtx(ctx)
		page, err := paginator.NextPage(callCtx)
		if err != nil {
			cancel()
			if isNotFoundError(err) {
				return deleted, err
			}
			return deleted, fmt.Errorf("failed to list objects in bucket %s: %w", bucketName, err)
		}
		if len(page.Contents) == 0 {
			cancel()
			continue
		}

		ids := make([]types.ObjectIdentifier, 0, len(page.Contents))
		for _, obj := range page.Contents {
			ids = append(ids, types.ObjectIdentifier{Key: obj.Key})
		}
		out, err := c.s3.DeleteObjects(callCtx, &s3.DeleteObjectsInput{
			Bucket: aws.String(bucketName),
			Delete: &types.Delete{Objects: ids, Quiet: aws.Bool(true)},
		})
		cancel()
		if err != nil {
			return deleted, fmt.Errorf("failed to delete objects from bucket %s: %w", bucketName, err)
		}
		if len(out.Errors) > 0 {
			first := out.Errors[0]
			return deleted, fmt.Errorf("failed to delete %d objects from bucket %s: %s: %s",
				len(out.Errors), bucketName, aws.ToString(first.Key), aws.ToString(first.Message))
		}
		deleted += len(ids)
	}
	return deleted, nil
}

// isBucketAlreadyOwnedByYou checks if the error indicates the bucket exists and is owned by us.
func isBucketAlreadyOwnedByYou(err error) bool {
	var baoby *types.BucketAlreadyOwnedByYou
	if errors.As(err, &baoby) {
		return true
	}
	return hasCode(err, "BucketAlreadyOwnedByYou")
}

// isBucketAlreadyExists checks if the bucket name is taken by another account.
func isBucketAlreadyExists(err error) bool {
	var bae *types.BucketAlreadyExists
	if errors.As(err, &bae) {
		return true
	}
	return hasCode(err, "BucketAlreadyExists")
}

// isNotFoundError checks if the error is a not found error.
func isNotFoundError(err error) bool {
	if err == nil {
		return false
	}

	var nsb *types.NoSuchBucket
	if errors.As(err, &nsb) {
		return true
	}

	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}

	return hasCode(err, "NotFound", "NoSuchBucket", "404")
}

func hasCode(err error, codes ...string) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	code := apiErr.ErrorCode()
	for _, c := range codes {
		if code == c {
			return true
		}
	}
	return false
}
