package testing

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/imamik/hpcmaker/internal/provisioning"
)

var (
	_ provisioning.PlaybookRunner  = (*MockPlaybookRunner)(nil)
	_ provisioning.TerraformRunner = (*MockTerraform)(nil)
	_ provisioning.Notifier        = (*RecordingNotifier)(nil)
	_ provisioning.BucketManager   = (*MemoryBuckets)(nil)
)

// MockPlaybookRunner is a mock implementation of provisioning.PlaybookRunner.
type MockPlaybookRunner struct {
	mock.Mock
}

// NewMockPlaybookRunner returns a runner on which every playbook succeeds.
func NewMockPlaybookRunner() *MockPlaybookRunner {
	m := &MockPlaybookRunner{}
	m.On("RunPlaybook", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	return m
}

// RunPlaybook records the call.
func (m *MockPlaybookRunner) RunPlaybook(ctx context.Context, playbook string, extraVars map[string]string) error {
	args := m.Called(ctx, playbook, extraVars)
	return args.Error(0)
}

// Command mirrors the ansible-playbook argv layout.
func (m *MockPlaybookRunner) Command(playbook string, extraVars map[string]string) []string {
	vars, _ := json.Marshal(extraVars)
	return []string{"ansible-playbook", "--extra-vars", string(vars), playbook}
}

// Playbooks returns the playbooks run so far, in order.
func (m *MockPlaybookRunner) Playbooks() []string {
	var out []string
	for _, c := range m.Calls {
		if c.Method == "RunPlaybook" {
			out = append(out, c.Arguments.String(1))
		}
	}
	return out
}

// ExtraVars returns the extra vars of the n-th RunPlaybook call.
func (m *MockPlaybookRunner) ExtraVars(n int) map[string]string {
	i := 0
	for _, c := range m.Calls {
		if c.Method != "RunPlaybook" {
			continue
		}
		if i == n {
			return c.Arguments.Get(2).(map[string]string)
		}
		i++
	}
	return nil
}

// MockTerraform is a mock implementation of provisioning.TerraformRunner.
type MockTerraform struct {
	mock.Mock
}

// NewMockTerraform returns a runner whose applies succeed.
func NewMockTerraform() *MockTerraform {
	m := &MockTerraform{}
	m.On("Apply", mock.Anything, mock.Anything).Return(nil).Maybe()
	return m
}

// Apply records the call.
func (m *MockTerraform) Apply(ctx context.Context, workdir string) error {
	args := m.Called(ctx, workdir)
	return args.Error(0)
}

// RecordingNotifier keeps every notice it is handed.
type RecordingNotifier struct {
	mu      sync.Mutex
	Err     error
	notices []provisioning.Notice
}

// Notify records n and returns Err.
func (r *RecordingNotifier) Notify(_ context.Context, n provisioning.Notice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
	return r.Err
}

// Notices returns a copy of the recorded notices.
func (r *RecordingNotifier) Notices() []provisioning.Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]provisioning.Notice(nil), r.notices...)
}

// MemoryBuckets is an in-memory bucket store.
type MemoryBuckets struct {
	mu        sync.Mutex
	Buckets   map[string]bool
	EnsureErr error
	DeleteErr error
}

// NewMemoryBuckets returns an empty store.
func NewMemoryBuckets() *MemoryBuckets {
	return &MemoryBuckets{Buckets: map[string]bool{}}
}

// EnsureBucket creates name if absent.
func (b *MemoryBuckets) EnsureBucket(_ context.Context, name string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.EnsureErr != nil {
		return false, b.EnsureErr
	}
	if b.Buckets[name] {
		return false, nil
	}
	b.Buckets[name] = true
	return true, nil
}

// DeleteBucket removes name. Missing buckets are not an error.
func (b *MemoryBuckets) DeleteBucket(_ context.Context, name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.DeleteErr != nil {
		return b.DeleteErr
	}
	delete(b.Buckets, name)
	return nil
}

// Has reports whether name exists.
func (b *MemoryBuckets) Has(name string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.Buckets[name]
}
