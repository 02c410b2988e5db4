package provisioning

import (
	"context"
	"time"
)

// Phase defines the interface for a provisioning phase.
type Phase interface {
	// Name returns the human-readable name of this phase.
	Name() string

	// Provision executes the provisioning logic for this phase.
	Provision(ctx *Context) error
}

// PlaybookRunner runs configuration-management playbooks.
// Implemented by internal/driver.Ansible.
type PlaybookRunner interface {
	// RunPlaybook runs playbook with extraVars passed as one JSON document.
	RunPlaybook(ctx context.Context, playbook string, extraVars map[string]string) error

	// Command returns the argument vector RunPlaybook would execute.
	Command(playbook string, extraVars map[string]string) []string
}

// TerraformRunner applies the Terraform configuration in a working directory.
// Implemented by internal/driver.Terraform.
type TerraformRunner interface {
	Apply(ctx context.Context, workdir string) error
}

// TemplateRenderer renders named templates with data.
// Implemented by internal/render.Renderer.
type TemplateRenderer interface {
	Render(name string, data any) ([]byte, error)
}

// BucketManager manages the cluster data bucket.
// Implemented by internal/platform/s3.Client.
type BucketManager interface {
	EnsureBucket(ctx context.Context, name string) (created bool, err error)
	DeleteBucket(ctx context.Context, name string) error
}

// Notifier publishes lifecycle notices.
// Implemented by internal/notify.
type Notifier interface {
	Notify(ctx context.Context, n Notice) error
}

// PhaseRecorder observes phase outcomes.
// Implemented by internal/metrics.Recorder.
type PhaseRecorder interface {
	ObservePhase(kind, phase string, d time.Duration, err error)
}

// Lifecycle events announced through a Notifier.
const (
	EventCreated   = "created"
	EventDestroyed = "destroyed"
	EventFailed    = "failed"
)

// Notice is one lifecycle announcement.
type Notice struct {
	Kind     string
	Entity   string
	Event    string
	Serial   string
	RunID    string
	Region   string
	TopicARN string
	Subject  string
	Message  string
	Time     time.Time
}
