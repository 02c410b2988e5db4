package awscloud

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/go-logr/logr"

	"github.com/imamik/hpcmaker/internal/config"
)

// EC2API is the subset of the EC2 client used here.
type EC2API interface {
	DescribeAvailabilityZones(ctx context.Context, params *ec2.DescribeAvailabilityZonesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeAvailabilityZonesOutput, error)
	DescribeSubnets(ctx context.Context, params *ec2.DescribeSubnetsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeSubnetsOutput, error)
	DescribeVpcs(ctx context.Context, params *ec2.DescribeVpcsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeVpcsOutput, error)
	DescribeImages(ctx context.Context, params *ec2.DescribeImagesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeImagesOutput, error)
	DescribeSecurityGroups(ctx context.Context, params *ec2.DescribeSecurityGroupsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeSecurityGroupsOutput, error)
	CreateSecurityGroup(ctx context.Context, params *ec2.CreateSecurityGroupInput, optFns ...func(*ec2.Options)) (*ec2.CreateSecurityGroupOutput, error)
	AuthorizeSecurityGroupIngress(ctx context.Context, params *ec2.AuthorizeSecurityGroupIngressInput, optFns ...func(*ec2.Options)) (*ec2.AuthorizeSecurityGroupIngressOutput, error)
	DescribeKeyPairs(ctx context.Context, params *ec2.DescribeKeyPairsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeKeyPairsOutput, error)
	CreateKeyPair(ctx context.Context, params *ec2.CreateKeyPairInput, optFns ...func(*ec2.Options)) (*ec2.CreateKeyPairOutput, error)
	DeleteKeyPair(ctx context.Context, params *ec2.DeleteKeyPairInput, optFns ...func(*ec2.Options)) (*ec2.DeleteKeyPairOutput, error)
}

// IAMAPI is the subset of the IAM client used here.
type IAMAPI interface {
	GetRole(ctx context.Context, params *iam.GetRoleInput, optFns ...func(*iam.Options)) (*iam.GetRoleOutput, error)
	CreateRole(ctx context.Context, params *iam.CreateRoleInput, optFns ...func(*iam.Options)) (*iam.CreateRoleOutput, error)
	PutRolePolicy(ctx context.Context, params *iam.PutRolePolicyInput, optFns ...func(*iam.Options)) (*iam.PutRolePolicyOutput, error)
	DeleteRolePolicy(ctx context.Context, params *iam.DeleteRolePolicyInput, optFns ...func(*iam.Options)) (*iam.DeleteRolePolicyOutput, error)
	DeleteRole(ctx context.Context, params *iam.DeleteRoleInput, optFns ...func(*iam.Options)) (*iam.DeleteRoleOutput, error)
	GetInstanceProfile(ctx context.Context, params *iam.GetInstanceProfileInput, optFns ...func(*iam.Options)) (*iam.GetInstanceProfileOutput, error)
	CreateInstanceProfile(ctx context.Context, params *iam.CreateInstanceProfileInput, optFns ...func(*iam.Options)) (*iam.CreateInstanceProfileOutput, error)
	AddRoleToInstanceProfile(ctx context.Context, params *iam.AddRoleToInstanceProfileInput, optFns ...func(*iam.Options)) (*iam.AddRoleToInstanceProfileOutput, error)
	RemoveRoleFromInstanceProfile(ctx context.Context, params *iam.RemoveRoleFromInstanceProfileInput, optFns ...func(*iam.Options)) (*iam.RemoveRoleFromInstanceProfileOutput, error)
	DeleteInstanceProfile(ctx context.Context, params *iam.DeleteInstanceProfileInput, optFns ...func(*iam.Options)) (*iam.DeleteInstanceProfileOutput, error)
}

// SNSAPI is the subset of the SNS client used here.
type SNSAPI interface {
	GetTopicAttributes(ctx context.Context, params *sns.GetTopicAttributesInput, optFns ...func(*sns.Options)) (*sns.GetTopicAttributesOutput, error)
	CreateTopic(ctx context.Context, params *sns.CreateTopicInput, optFns ...func(*sns.Options)) (*sns.CreateTopicOutput, error)
	Subscribe(ctx context.Context, params *sns.SubscribeInput, optFns ...func(*sns.Options)) (*sns.SubscribeOutput, error)
	ListSubscriptionsByTopic(ctx context.Context, params *sns.ListSubscriptionsByTopicInput, optFns ...func(*sns.Options)) (*sns.ListSubscriptionsByTopicOutput, error)
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
	DeleteTopic(ctx context.Context, params *sns.DeleteTopicInput, optFns ...func(*sns.Options)) (*sns.DeleteTopicOutput, error)
}

// STSAPI is the subset of the STS client used here.
type STSAPI interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// ZoneChecker validates availability zones against the live region.
type ZoneChecker interface {
	ZoneAvailable(ctx context.Context, zone string) error
}

// NetworkDiscoverer performs read-only lookups needed to place an instance.
type NetworkDiscoverer interface {
	AccountID(ctx context.Context) (string, error)
	SubnetForZone(ctx context.Context, zone string) (*Subnet, error)
	VPCName(ctx context.Context, vpcID string) (string, error)
	LatestAMI(ctx context.Context, namePattern string) (string, error)
}

// SecurityGroupManager manages the shared SSH security group.
type SecurityGroupManager interface {
	EnsureSecurityGroup(ctx context.Context, name, vpcID string) (*SecurityGroup, error)
}

// KeyPairManager manages EC2 key pairs and their local private keys.
type KeyPairManager interface {
	EnsureKeyPair(ctx context.Context, name, pemPath string) (*KeyPair, error)
	DeleteKeyPair(ctx context.Context, name, pemPath string) error
}

// IAMManager manages the per-entity instance role and profile.
type IAMManager interface {
	EnsureRole(ctx context.Context, spec RoleSpec) (*Role, error)
	EnsureInstanceProfile(ctx context.Context, profileName, roleName string) (*InstanceProfile, error)
	DeleteInstanceProfile(ctx context.Context, profileName, roleName string) error
	DeleteRole(ctx context.Context, roleName, policyName string) error
}

// TopicManager manages the per-entity notification topic.
type TopicManager interface {
	EnsureTopic(ctx context.Context, name, email string) (*Topic, error)
	Publish(ctx context.Context, topicARN, subject, message string) error
	DeleteTopic(ctx context.Context, topicARN string) error
}

// InfrastructureManager combines all interfaces.
type InfrastructureManager interface {
	ZoneChecker
	NetworkDiscoverer
	SecurityGroupManager
	KeyPairManager
	IAMManager
	TopicManager
	Region() string
}

var _ InfrastructureManager = (*Client)(nil)

// Client implements InfrastructureManager on top of the AWS SDK.
type Client struct {
	ec2 EC2API
	iam IAMAPI
	sns SNSAPI
	sts STSAPI

	region   string
	account  string
	timeouts *config.Timeouts
	log      logr.Logger
}

// Options selects region and credentials for NewClient.
type Options struct {
	Region          string
	Profile         string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
}

// LoadAWSConfig builds an aws.Config from explicit options rather than
// ambient environment mutation.
func LoadAWSConfig(ctx context.Context, opts Options) (aws.Config, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(opts.Region),
	}
	switch {
	case opts.AccessKeyID != "":
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, opts.SessionToken)))
	case opts.Profile != "":
		loadOpts = append(loadOpts, awsconfig.WithSharedConfigProfile(opts.Profile))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return cfg, nil
}

// NewClient creates a client for the region in opts.
func NewClient(ctx context.Context, opts Options, timeouts *config.Timeouts, log logr.Logger) (*Client, error) {
	cfg, err := LoadAWSConfig(ctx, opts)
	if err != nil {
		return nil, err
	}
	return NewFromConfig(cfg, timeouts, log), nil
}

// NewFromConfig creates a client from an already loaded aws.Config, so
// other service clients can share its credentials.
func NewFromConfig(cfg aws.Config, timeouts *config.Timeouts, log logr.Logger) *Client {
	return NewFromClients(cfg.Region,
		ec2.NewFromConfig(cfg),
		iam.NewFromConfig(cfg),
		sns.NewFromConfig(cfg),
		sts.NewFromConfig(cfg),
		timeouts, log)
}

// NewFromClients wires explicit SDK clients. Tests pass fakes here.
func NewFromClients(region string, ec2c EC2API, iamc IAMAPI, snsc SNSAPI, stsc STSAPI, timeouts *config.Timeouts, log logr.Logger) *Client {
	if timeouts == nil {
		timeouts = config.LoadTimeouts()
	}
	return &Client{
		ec2:      ec2c,
		iam:      iamc,
		sns:      snsc,
		sts:      stsc,
		region:   region,
		timeouts: timeouts,
		log:      log,
	}
}

// Region returns the region the client is bound to.
func (c *Client) Region() string {
	return c.region
}

// callCtx bounds a single control-plane call.
func (c *Client) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.timeouts.API)
}
