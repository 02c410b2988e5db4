package testing

import (
	"context"
	"time"

	"github.com/go-logr/logr"

	"github.com/imamik/hpcmaker/internal/config"
	"github.com/imamik/hpcmaker/internal/platform/awscloud"
	"github.com/imamik/hpcmaker/internal/provisioning"
	"github.com/imamik/hpcmaker/internal/registry"
	"github.com/imamik/hpcmaker/internal/util/prerequisites"
)

// Fixture is a temp state tree with an open registry and mock
// collaborators for one entity.
type Fixture struct {
	Entity    config.Entity
	Settings  *config.Settings
	Cloud     *awscloud.MockClient
	Registry  *registry.Registry
	Ansible   *MockPlaybookRunner
	Terraform *MockTerraform
	Notifier  *RecordingNotifier
	Buckets   *MemoryBuckets
	Observer  *provisioning.MockObserver

	// ToolVersions are reported by the stub tool checker. Tools absent
	// from the map are reported missing.
	ToolVersions map[string]string
}

// TB is the part of testing.TB a fixture needs. GinkgoT() satisfies it.
type TB interface {
	Helper()
	TempDir() string
	Cleanup(func())
	Fatalf(format string, args ...any)
}

// NewFixture creates a fixture for e under t.TempDir().
func NewFixture(t TB, e config.Entity) *Fixture {
	t.Helper()

	settings := config.DefaultSettings()
	settings.StateDir = t.TempDir()
	settings.PlaybookDir = settings.StateDir
	settings.ConfirmDelay = time.Millisecond

	reg, err := registry.Open(settings.StateDir, time.Second)
	if err != nil {
		t.Fatalf("open registry: %v", err)
	}
	t.Cleanup(func() { _ = reg.Close() })

	return &Fixture{
		Entity:    e,
		Settings:  settings,
		Cloud:     awscloud.NewMockClient(e.Region()),
		Registry:  reg,
		Ansible:   NewMockPlaybookRunner(),
		Terraform: NewMockTerraform(),
		Notifier:  &RecordingNotifier{},
		Buckets:   NewMemoryBuckets(),
		Observer:  provisioning.NewMockObserver(),
		ToolVersions: map[string]string{
			"ansible":          "2.9.27",
			"ansible-playbook": "2.9.27",
			"terraform":        "v1.5.7",
			"pcluster":         "3.8.0",
		},
	}
}

// Deps returns the collaborators wired to the fixture's mocks. Templates
// is left nil for the caller to set.
func (f *Fixture) Deps() provisioning.Deps {
	return provisioning.Deps{
		Cloud:     f.Cloud,
		Buckets:   f.Buckets,
		Registry:  f.Registry,
		Ansible:   f.Ansible,
		Terraform: f.Terraform,
		Notifier:  f.Notifier,
	}
}

// Paths returns the state layout of the fixture's entity.
func (f *Fixture) Paths() config.Paths {
	return f.Settings.Paths(f.Entity)
}

// Context returns a provisioning context with a fixed clock, fast
// timeouts and a stub tool checker.
func (f *Fixture) Context(req *provisioning.Request) *provisioning.Context {
	return f.ContextWith(context.Background(), req, f.Deps())
}

// ContextWith is Context with an explicit parent and collaborators.
func (f *Fixture) ContextWith(parent context.Context, req *provisioning.Request, deps provisioning.Deps) *provisioning.Context {
	ctx := provisioning.NewContext(parent, f.Settings, f.Entity, req, deps, logr.Discard())
	ctx.Observer = f.Observer
	ctx.Now = func() time.Time { return FixedTime }
	ctx.RunID = "test-run"
	ctx.Argv = []string{"hpcmaker", string(f.Entity.Kind), "create", "-A", f.Entity.Zone, "-N", f.Entity.Name, "-O", f.Entity.Owner}
	ctx.Timeouts = &config.Timeouts{
		API:               5 * time.Second,
		Playbook:          5 * time.Second,
		Terraform:         5 * time.Second,
		Lock:              time.Second,
		RetryMaxAttempts:  2,
		RetryInitialDelay: time.Millisecond,
	}
	ctx.Tools = f.checkTools
	return ctx
}

func (f *Fixture) checkTools(_ context.Context, tools []prerequisites.Tool) *prerequisites.CheckResults {
	res := &prerequisites.CheckResults{}
	for _, tool := range tools {
		v, ok := f.ToolVersions[tool.Name]
		res.Results = append(res.Results, prerequisites.CheckResult{
			Tool: tool, Found: ok, Path: "/usr/bin/" + tool.Binary, Version: v,
		})
		if !ok {
			res.Missing = append(res.Missing, tool)
		}
	}
	return res
}
