package awscloud

import (
	"context"
	"fmt"
	"sync"
)

var _ InfrastructureManager = (*MockClient)(nil)

// MockClient is an in-memory InfrastructureManager for tests in other
// packages. Func fields override the default behavior; without overrides
// resources are tracked in maps so get-or-create semantics hold.
type MockClient struct {
	RegionName string
	Account    string

	ZoneAvailableFunc  func(ctx context.Context, zone string) error
	SubnetForZoneFunc  func(ctx context.Context, zone string) (*Subnet, error)
	EnsureKeyPairFunc  func(ctx context.Context, name, pemPath string) (*KeyPair, error)
	EnsureRoleFunc     func(ctx context.Context, spec RoleSpec) (*Role, error)
	PublishFunc        func(ctx context.Context, topicARN, subject, message string) error
	DeleteKeyPairFunc  func(ctx context.Context, name, pemPath string) error
	DeleteRoleFunc     func(ctx context.Context, roleName, policyName string) error
	DeleteTopicFunc    func(ctx context.Context, topicARN string) error
	DeleteProfileFunc  func(ctx context.Context, profileName, roleName string) error
	EnsureTopicFunc    func(ctx context.Context, name, email string) (*Topic, error)
	EnsureProfileFunc  func(ctx context.Context, profileName, roleName string) (*InstanceProfile, error)
	EnsureSecGroupFunc func(ctx context.Context, name, vpcID string) (*SecurityGroup, error)

	mu             sync.Mutex
	SecurityGroups map[string]*SecurityGroup
	KeyPairs       map[string]*KeyPair
	Roles          map[string]*Role
	Policies       map[string]string // role name -> inline policy
	Profiles       map[string]*InstanceProfile
	Topics         map[string]*Topic
	Published      []string
	// Calls records every method invocation in order.
	Calls []string
}

// NewMockClient returns a mock bound to region with default account 123456789012.
func NewMockClient(region string) *MockClient {
	return &MockClient{
		RegionName:     region,
		Account:        "123456789012",
		SecurityGroups: map[string]*SecurityGroup{},
		KeyPairs:       map[string]*KeyPair{},
		Roles:          map[string]*Role{},
		Policies:       map[string]string{},
		Profiles:       map[string]*InstanceProfile{},
		Topics:         map[string]*Topic{},
	}
}

func (m *MockClient) record(call string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, call)
}

// CallCount returns how many times call was recorded.
func (m *MockClient) CallCount(call string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.Calls {
		if c == call {
			n++
		}
	}
	return n
}

func (m *MockClient) Region() string { return m.RegionName }

func (m *MockClient) ZoneAvailable(ctx context.Context, zone string) error {
	m.record("ZoneAvailable")
	if m.ZoneAvailableFunc != nil {
		return m.ZoneAvailableFunc(ctx, zone)
	}
	if len(zone) < 2 || zone[:len(zone)-1] != m.RegionName {
		return fmt.Errorf("%w: %s", ErrInvalidZone, zone)
	}
	return nil
}

func (m *MockClient) AccountID(_ context.Context) (string, error) {
	m.record("AccountID")
	return m.Account, nil
}

func (m *MockClient) SubnetForZone(ctx context.Context, zone string) (*Subnet, error) {
	m.record("SubnetForZone")
	if m.SubnetForZoneFunc != nil {
		return m.SubnetForZoneFunc(ctx, zone)
	}
	return &Subnet{ID: "subnet-0abc", VPCID: "vpc-0abc"}, nil
}

func (m *MockClient) VPCName(_ context.Context, _ string) (string, error) {
	m.record("VPCName")
	return "research-vpc", nil
}

func (m *MockClient) LatestAMI(_ context.Context, _ string) (string, error) {
	m.record("LatestAMI")
	return "ami-0123456789abcdef0", nil
}

func (m *MockClient) EnsureSecurityGroup(ctx context.Context, name, vpcID string) (*SecurityGroup, error) {
	m.record("EnsureSecurityGroup")
	if m.EnsureSecGroupFunc != nil {
		return m.EnsureSecGroupFunc(ctx, name, vpcID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if sg, ok := m.SecurityGroups[name]; ok {
		return sg, nil
	}
	sg := &SecurityGroup{ID: fmt.Sprintf("sg-%04d", len(m.SecurityGroups)+1), Name: name, VPCID: vpcID}
	m.SecurityGroups[name] = sg
	return sg, nil
}

func (m *MockClient) EnsureKeyPair(ctx context.Context, name, pemPath string) (*KeyPair, error) {
	m.record("EnsureKeyPair")
	if m.EnsureKeyPairFunc != nil {
		return m.EnsureKeyPairFunc(ctx, name, pemPath)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if kp, ok := m.KeyPairs[name]; ok {
		return kp, nil
	}
	kp := &KeyPair{Name: name, ID: "key-" + name, PEMPath: pemPath, Fingerprint: "SHA256:mock/" + name}
	m.KeyPairs[name] = kp
	return kp, nil
}

func (m *MockClient) DeleteKeyPair(ctx context.Context, name, pemPath string) error {
	m.record("DeleteKeyPair")
	if m.DeleteKeyPairFunc != nil {
		return m.DeleteKeyPairFunc(ctx, name, pemPath)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.KeyPairs, name)
	return nil
}

func (m *MockClient) EnsureRole(ctx context.Context, spec RoleSpec) (*Role, error) {
	m.record("EnsureRole")
	if m.EnsureRoleFunc != nil {
		return m.EnsureRoleFunc(ctx, spec)
	}
	policy := ""
	if spec.Policy != nil {
		var err error
		if policy, err = spec.Policy(); err != nil {
			return nil, err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Policies[spec.RoleName] = policy
	if r, ok := m.Roles[spec.RoleName]; ok {
		return &Role{Name: r.Name, ARN: r.ARN}, nil
	}
	r := &Role{Name: spec.RoleName, ARN: "arn:aws:iam::" + m.Account + ":role/" + spec.RoleName, Created: true}
	m.Roles[spec.RoleName] = r
	return r, nil
}

func (m *MockClient) EnsureInstanceProfile(ctx context.Context, profileName, roleName string) (*InstanceProfile, error) {
	m.record("EnsureInstanceProfile")
	if m.EnsureProfileFunc != nil {
		return m.EnsureProfileFunc(ctx, profileName, roleName)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.Roles[roleName]; !ok {
		return nil, fmt.Errorf("role %s does not exist", roleName)
	}
	if p, ok := m.Profiles[profileName]; ok {
		return p, nil
	}
	p := &InstanceProfile{Name: profileName, ARN: "arn:aws:iam::" + m.Account + ":instance-profile/" + profileName}
	m.Profiles[profileName] = p
	return p, nil
}

func (m *MockClient) DeleteInstanceProfile(ctx context.Context, profileName, roleName string) error {
	m.record("DeleteInstanceProfile")
	if m.DeleteProfileFunc != nil {
		return m.DeleteProfileFunc(ctx, profileName, roleName)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Profiles, profileName)
	return nil
}

func (m *MockClient) DeleteRole(ctx context.Context, roleName, policyName string) error {
	m.record("DeleteRole")
	if m.DeleteRoleFunc != nil {
		return m.DeleteRoleFunc(ctx, roleName, policyName)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Policies, roleName)
	delete(m.Roles, roleName)
	return nil
}

func (m *MockClient) EnsureTopic(ctx context.Context, name, email string) (*Topic, error) {
	m.record("EnsureTopic")
	if m.EnsureTopicFunc != nil {
		return m.EnsureTopicFunc(ctx, name, email)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.Topics[name]; ok {
		return t, nil
	}
	t := &Topic{Name: name, ARN: TopicARN(m.RegionName, m.Account, name)}
	m.Topics[name] = t
	return t, nil
}

func (m *MockClient) Publish(ctx context.Context, topicARN, subject, message string) error {
	m.record("Publish")
	if m.PublishFunc != nil {
		return m.PublishFunc(ctx, topicARN, subject, message)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Published = append(m.Published, subject)
	return nil
}

func (m *MockClient) DeleteTopic(ctx context.Context, topicARN string) error {
	m.record("DeleteTopic")
	if m.DeleteTopicFunc != nil {
		return m.DeleteTopicFunc(ctx, topicARN)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for name, t := range m.Topics {
		if t.ARN == topicARN {
			delete(m.Topics, name)
		}
	}
	return nil
}
