package awscloud

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/smithy-go"
	"github.com/go-logr/logr"

	"github.com/imamik/hpcmaker/internal/config"
)

func apiError(code string) error {
	return &smithy.GenericAPIError{Code: code, Message: code}
}

func testTimeouts() *config.Timeouts {
	return &config.Timeouts{
		API:               5 * time.Second,
		RetryMaxAttempts:  3,
		RetryInitialDelay: time.Millisecond,
	}
}

// fakeEC2 keeps just enough state to model get-or-create.
type fakeEC2 struct {
	zones          []ec2types.AvailabilityZone
	zonesErr       error
	subnets        []ec2types.Subnet
	vpcs           []ec2types.Vpc
	images         []ec2types.Image
	securityGroups map[string]string // name -> id
	ingress        map[string]bool   // group id -> ssh rule present
	keyPairs       map[string]string // name -> id
	keyMaterial    string

	authorizeFailures int

	operations []string
}

func newFakeEC2() *fakeEC2 {
	return &fakeEC2{securityGroups: map[string]string{}, ingress: map[string]bool{}, keyPairs: map[string]string{}}
}

func (f *fakeEC2) DescribeAvailabilityZones(_ context.Context, _ *ec2.DescribeAvailabilityZonesInput, _ ...func(*ec2.Options)) (*ec2.DescribeAvailabilityZonesOutput, error) {
	f.operations = append(f.operations, "DescribeAvailabilityZones")
	if f.zonesErr != nil {
		return nil, f.zonesErr
	}
	return &ec2.DescribeAvailabilityZonesOutput{AvailabilityZones: f.zones}, nil
}

func (f *fakeEC2) DescribeSubnets(_ context.Context, _ *ec2.DescribeSubnetsInput, _ ...func(*ec2.Options)) (*ec2.DescribeSubnetsOutput, error) {
	f.operations = append(f.operations, "DescribeSubnets")
	return &ec2.DescribeSubnetsOutput{Subnets: f.subnets}, nil
}

func (f *fakeEC2) DescribeVpcs(_ context.Context, _ *ec2.DescribeVpcsInput, _ ...func(*ec2.Options)) (*ec2.DescribeVpcsOutput, error) {
	f.operations = append(f.operations, "DescribeVpcs")
	return &ec2.DescribeVpcsOutput{Vpcs: f.vpcs}, nil
}

func (f *fakeEC2) DescribeImages(_ context.Context, _ *ec2.DescribeImagesInput, _ ...func(*ec2.Options)) (*ec2.DescribeImagesOutput, error) {
	f.operations = append(f.operations, "DescribeImages")
	return &ec2.DescribeImagesOutput{Images: f.images}, nil
}

func (f *fakeEC2) DescribeSecurityGroups(_ context.Context, params *ec2.DescribeSecurityGroupsInput, _ ...func(*ec2.Options)) (*ec2.DescribeSecurityGroupsOutput, error) {
	f.operations = append(f.operations, "DescribeSecurityGroups")
	name := params.Filters[0].Values[0]
	id, ok := f.securityGroups[name]
	if !ok {
		return &ec2.DescribeSecurityGroupsOutput{}, nil
	}
	return &ec2.DescribeSecurityGroupsOutput{SecurityGroups: []ec2types.SecurityGroup{{GroupId: aws.String(id), GroupName: aws.String(name)}}}, nil
}

func (f *fakeEC2) CreateSecurityGroup(_ context.Context, params *ec2.CreateSecurityGroupInput, _ ...func(*ec2.Options)) (*ec2.CreateSecurityGroupOutput, error) {
	f.operations = append(f.operations, "CreateSecurityGroup")
	id := fmt.Sprintf("sg-%d", len(f.securityGroups)+1)
	f.securityGroups[*params.GroupName] = id
	return &ec2.CreateSecurityGroupOutput{GroupId: aws.String(id)}, nil
}

func (f *fakeEC2) AuthorizeSecurityGroupIngress(_ context.Context, params *ec2.AuthorizeSecurityGroupIngressInput, _ ...func(*ec2.Options)) (*ec2.AuthorizeSecurityGroupIngressOutput, error) {
	f.operations = append(f.operations, "AuthorizeSecurityGroupIngress")
	if f.authorizeFailures > 0 {
		f.authorizeFailures--
		return nil, apiError("RequestLimitExceeded")
	}
	if f.ingress[*params.GroupId] {
		return nil, apiError("InvalidPermission.Duplicate")
	}
	f.ingress[*params.GroupId] = true
	return &ec2.AuthorizeSecurityGroupIngressOutput{}, nil
}

func (f *fakeEC2) DescribeKeyPairs(_ context.Context, params *ec2.DescribeKeyPairsInput, _ ...func(*ec2.Options)) (*ec2.DescribeKeyPairsOutput, error) {
	f.operations = append(f.operations, "DescribeKeyPairs")
	id, ok := f.keyPairs[params.KeyNames[0]]
	if !ok {
		return nil, apiError("InvalidKeyPair.NotFound")
	}
	return &ec2.DescribeKeyPairsOutput{KeyPairs: []ec2types.KeyPairInfo{{KeyName: aws.String(params.KeyNames[0]), KeyPairId: aws.String(id)}}}, nil
}

func (f *fakeEC2) CreateKeyPair(_ context.Context, params *ec2.CreateKeyPairInput, _ ...func(*ec2.Options)) (*ec2.CreateKeyPairOutput, error) {
	f.operations = append(f.operations, "CreateKeyPair")
	id := "key-" + *params.KeyName
	f.keyPairs[*params.KeyName] = id
	return &ec2.CreateKeyPairOutput{KeyName: params.KeyName, KeyPairId: aws.String(id), KeyMaterial: aws.String(f.keyMaterial)}, nil
}

func (f *fakeEC2) DeleteKeyPair(_ context.Context, params *ec2.DeleteKeyPairInput, _ ...func(*ec2.Options)) (*ec2.DeleteKeyPairOutput, error) {
	f.operations = append(f.operations, "DeleteKeyPair")
	delete(f.keyPairs, *params.KeyName)
	return &ec2.DeleteKeyPairOutput{}, nil
}

type fakeIAM struct {
	roles            map[string]bool
	policies         map[string]string // role -> document
	profiles         map[string][]string
	addRoleFailures   int
	putPolicyFailures int
	deleteRoleErrors  []error

	operations []string
}

func newFakeIAM() *fakeIAM {
	return &fakeIAM{roles: map[string]bool{}, policies: map[string]string{}, profiles: map[string][]string{}}
}

func (f *fakeIAM) GetRole(_ context.Context, params *iam.GetRoleInput, _ ...func(*iam.Options)) (*iam.GetRoleOutput, error) {
	f.operations = append(f.operations, "GetRole")
	if !f.roles[*params.RoleName] {
		return nil, &iamtypes.NoSuchEntityException{Message: aws.String("no role")}
	}
	return &iam.GetRoleOutput{Role: &iamtypes.Role{RoleName: params.RoleName, Arn: aws.String("arn:aws:iam::123456789012:role/" + *params.RoleName)}}, nil
}

func (f *fakeIAM) CreateRole(_ context.Context, params *iam.CreateRoleInput, _ ...func(*iam.Options)) (*iam.CreateRoleOutput, error) {
	f.operations = append(f.operations, "CreateRole")
	f.roles[*params.RoleName] = true
	return &iam.CreateRoleOutput{Role: &iamtypes.Role{RoleName: params.RoleName, Arn: aws.String("arn:aws:iam::123456789012:role/" + *params.RoleName)}}, nil
}

func (f *fakeIAM) PutRolePolicy(_ context.Context, params *iam.PutRolePolicyInput, _ ...func(*iam.Options)) (*iam.PutRolePolicyOutput, error) {
	f.operations = append(f.operations, "PutRolePolicy")
	if f.putPolicyFailures > 0 {
		f.putPolicyFailures--
		return nil, apiError("ServiceFailure")
	}
	f.policies[*params.RoleName] = *params.PolicyDocument
	return &iam.PutRolePolicyOutput{}, nil
}

func (f *fakeIAM) DeleteRolePolicy(_ context.Context, params *iam.DeleteRolePolicyInput, _ ...func(*iam.Options)) (*iam.DeleteRolePolicyOutput, error) {
	f.operations = append(f.operations, "DeleteRolePolicy")
	if _, ok := f.policies[*params.RoleName]; !ok {
		return nil, apiError("NoSuchEntity")
	}
	delete(f.policies, *params.RoleName)
	return &iam.DeleteRolePolicyOutput{}, nil
}

func (f *fakeIAM) DeleteRole(_ context.Context, params *iam.DeleteRoleInput, _ ...func(*iam.Options)) (*iam.DeleteRoleOutput, error) {
	f.operations = append(f.operations, "DeleteRole")
	if len(f.deleteRoleErrors) > 0 {
		err := f.deleteRoleErrors[0]
		f.deleteRoleErrors = f.deleteRoleErrors[1:]
		return nil, err
	}
	if !f.roles[*params.RoleName] {
		return nil, apiError("NoSuchEntity")
	}
	delete(f.roles, *params.RoleName)
	return &iam.DeleteRoleOutput{}, nil
}

func (f *fakeIAM) GetInstanceProfile(_ context.Context, params *iam.GetInstanceProfileInput, _ ...func(*iam.Options)) (*iam.GetInstanceProfileOutput, error) {
	f.operations = append(f.operations, "GetInstanceProfile")
	roles, ok := f.profiles[*params.InstanceProfileName]
	if !ok {
		return nil, apiError("NoSuchEntity")
	}
	profile := &iamtypes.InstanceProfile{
		InstanceProfileName: params.InstanceProfileName,
		Arn:                 aws.String("arn:aws:iam::123456789012:instance-profile/" + *params.InstanceProfileName),
	}
	for _, r := range roles {
		profile.Roles = append(profile.Roles, iamtypes.Role{RoleName: aws.String(r)})
	}
	return &iam.GetInstanceProfileOutput{InstanceProfile: profile}, nil
}

func (f *fakeIAM) CreateInstanceProfile(_ context.Context, params *iam.CreateInstanceProfileInput, _ ...func(*iam.Options)) (*iam.CreateInstanceProfileOutput, error) {
	f.operations = append(f.operations, "CreateInstanceProfile")
	f.profiles[*params.InstanceProfileName] = nil
	return &iam.CreateInstanceProfileOutput{InstanceProfile: &iamtypes.InstanceProfile{
		InstanceProfileName: params.InstanceProfileName,
		Arn:                 aws.String("arn:aws:iam::123456789012:instance-profile/" + *params.InstanceProfileName),
	}}, nil
}

func (f *fakeIAM) AddRoleToInstanceProfile(_ context.Context, params *iam.AddRoleToInstanceProfileInput, _ ...func(*iam.Options)) (*iam.AddRoleToInstanceProfileOutput, error) {
	f.operations = append(f.operations, "AddRoleToInstanceProfile")
	if f.addRoleFailures > 0 {
		f.addRoleFailures--
		return nil, apiError("NoSuchEntity")
	}
	f.profiles[*params.InstanceProfileName] = append(f.profiles[*params.InstanceProfileName], *params.RoleName)
	return &iam.AddRoleToInstanceProfileOutput{}, nil
}

func (f *fakeIAM) RemoveRoleFromInstanceProfile(_ context.Context, params *iam.RemoveRoleFromInstanceProfileInput, _ ...func(*iam.Options)) (*iam.RemoveRoleFromInstanceProfileOutput, error) {
	f.operations = append(f.operations, "RemoveRoleFromInstanceProfile")
	if _, ok := f.profiles[*params.InstanceProfileName]; !ok {
		return nil, apiError("NoSuchEntity")
	}
	f.profiles[*params.InstanceProfileName] = nil
	return &iam.RemoveRoleFromInstanceProfileOutput{}, nil
}

func (f *fakeIAM) DeleteInstanceProfile(_ context.Context, params *iam.DeleteInstanceProfileInput, _ ...func(*iam.Options)) (*iam.DeleteInstanceProfileOutput, error) {
	f.operations = append(f.operations, "DeleteInstanceProfile")
	if _, ok := f.profiles[*params.InstanceProfileName]; !ok {
		return nil, apiError("NoSuchEntity")
	}
	delete(f.profiles, *params.InstanceProfileName)
	return &iam.DeleteInstanceProfileOutput{}, nil
}

type fakeSNS struct {
	topics        map[string]bool // arn
	subscriptions []string
	byTopic       map[string][]snstypes.Subscription
	published     []string

	subscribeFailures int

	operations []string
}

func newFakeSNS() *fakeSNS {
	return &fakeSNS{topics: map[string]bool{}, byTopic: map[string][]snstypes.Subscription{}}
}

func (f *fakeSNS) GetTopicAttributes(_ context.Context, params *sns.GetTopicAttributesInput, _ ...func(*sns.Options)) (*sns.GetTopicAttributesOutput, error) {
	f.operations = append(f.operations, "GetTopicAttributes")
	if !f.topics[*params.TopicArn] {
		return nil, apiError("NotFound")
	}
	return &sns.GetTopicAttributesOutput{}, nil
}

func (f *fakeSNS) CreateTopic(_ context.Context, params *sns.CreateTopicInput, _ ...func(*sns.Options)) (*sns.CreateTopicOutput, error) {
	f.operations = append(f.operations, "CreateTopic")
	arn := TopicARN("us-east-1", "123456789012", *params.Name)
	f.topics[arn] = true
	return &sns.CreateTopicOutput{TopicArn: aws.String(arn)}, nil
}

func (f *fakeSNS) Subscribe(_ context.Context, params *sns.SubscribeInput, _ ...func(*sns.Options)) (*sns.SubscribeOutput, error) {
	f.operations = append(f.operations, "Subscribe")
	if f.subscribeFailures > 0 {
		f.subscribeFailures--
		return nil, apiError("Throttled")
	}
	f.subscriptions = append(f.subscriptions, *params.Protocol+":"+*params.Endpoint)
	f.byTopic[*params.TopicArn] = append(f.byTopic[*params.TopicArn], snstypes.Subscription{
		TopicArn:        params.TopicArn,
		Protocol:        params.Protocol,
		Endpoint:        params.Endpoint,
		SubscriptionArn: aws.String("PendingConfirmation"),
	})
	return &sns.SubscribeOutput{}, nil
}

func (f *fakeSNS) ListSubscriptionsByTopic(_ context.Context, params *sns.ListSubscriptionsByTopicInput, _ ...func(*sns.Options)) (*sns.ListSubscriptionsByTopicOutput, error) {
	f.operations = append(f.operations, "ListSubscriptionsByTopic")
	return &sns.ListSubscriptionsByTopicOutput{Subscriptions: f.byTopic[*params.TopicArn]}, nil
}

func (f *fakeSNS) Publish(_ context.Context, params *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.operations = append(f.operations, "Publish")
	f.published = append(f.published, *params.Subject)
	return &sns.PublishOutput{}, nil
}

func (f *fakeSNS) DeleteTopic(_ context.Context, params *sns.DeleteTopicInput, _ ...func(*sns.Options)) (*sns.DeleteTopicOutput, error) {
	f.operations = append(f.operations, "DeleteTopic")
	delete(f.topics, *params.TopicArn)
	return &sns.DeleteTopicOutput{}, nil
}

type fakeSTS struct {
	calls int
}

func (f *fakeSTS) GetCallerIdentity(_ context.Context, _ *sts.GetCallerIdentityInput, _ ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error) {
	f.calls++
	return &sts.GetCallerIdentityOutput{Account: aws.String("123456789012")}, nil
}

type fakes struct {
	ec2 *fakeEC2
	iam *fakeIAM
	sns *fakeSNS
	sts *fakeSTS
}

func newTestClient() (*Client, *fakes) {
	f := &fakes{ec2: newFakeEC2(), iam: newFakeIAM(), sns: newFakeSNS(), sts: &fakeSTS{}}
	c := NewFromClients("us-east-1", f.ec2, f.iam, f.sns, f.sts, testTimeouts(), logr.Discard())
	return c, f
}

func countOps(ops []string, name string) int {
	n := 0
	for _, op := range ops {
		if op == name {
			n++
		}
	}
	return n
}
