package provisioning

import (
	"context"
	"time"

	"github.com/go-logr/logr"

	"github.com/imamik/hpcmaker/internal/config"
	"github.com/imamik/hpcmaker/internal/platform/awscloud"
	"github.com/imamik/hpcmaker/internal/registry"
	"github.com/imamik/hpcmaker/internal/util/prerequisites"
)

// Request carries the validated create parameters that are not part of
// the entity identity.
type Request struct {
	Email          string
	Department     string
	ProjectID      string
	SecurityGroup  string
	TurbotAccount  string
	Debug          bool
	InstanceType   string
	RootVolumeSize int
}

// Deps are the collaborators a Context hands to phases. Nil optional
// collaborators (Buckets, Notifier, Metrics) disable what they serve.
type Deps struct {
	Cloud     awscloud.InfrastructureManager
	Buckets   BucketManager
	Registry  *registry.Registry
	Templates TemplateRenderer
	Ansible   PlaybookRunner
	Terraform TerraformRunner
	Notifier  Notifier
	Metrics   PhaseRecorder
}

// ToolChecker checks external tools. Swapped in tests.
type ToolChecker func(ctx context.Context, tools []prerequisites.Tool) *prerequisites.CheckResults

// Context wraps all dependencies and state needed for a provisioning phase.
type Context struct {
	context.Context
	Deps

	Settings *config.Settings
	Entity   config.Entity
	Paths    config.Paths
	Request  *Request
	State    *State
	Observer Observer
	Timeouts *config.Timeouts

	RunID string
	Argv  []string // invoking command line, recorded with the serial
	Now   func() time.Time
	Tools ToolChecker
}

// NewContext creates a new provisioning context.
func NewContext(
	ctx context.Context,
	settings *config.Settings,
	entity config.Entity,
	req *Request,
	deps Deps,
	log logr.Logger,
) *Context {
	if req == nil {
		req = &Request{}
	}
	return &Context{
		Context:  ctx,
		Deps:     deps,
		Settings: settings,
		Entity:   entity,
		Paths:    settings.Paths(entity),
		Request:  req,
		State:    NewState(),
		Observer: NewLogObserver(log).WithFields(map[string]string{
			"kind":   string(entity.Kind),
			"entity": entity.FullName(),
		}),
		Timeouts: config.LoadTimeouts(),
		Now:      time.Now,
		Tools:    prerequisites.Check,
	}
}

// Names returns the resource names for the allocated serial.
func (c *Context) Names() Names {
	return ResourceNames(c.Entity, c.Paths, c.State.Serial, c.Request.SecurityGroup)
}
