package configure

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/imamik/hpcmaker/internal/config"
	"github.com/imamik/hpcmaker/internal/provisioning"
	"github.com/imamik/hpcmaker/internal/render"
	"github.com/imamik/hpcmaker/internal/util/naming"
)

const phase = "configure"

// Provisioner writes the vars file and rendered templates and runs the
// templates playbook.
type Provisioner struct{}

// NewProvisioner creates a new configure provisioner.
func NewProvisioner() *Provisioner {
	return &Provisioner{}
}

// Name implements the provisioning.Phase interface.
func (p *Provisioner) Name() string {
	return phase
}

// Provision implements the provisioning.Phase interface.
func (p *Provisioner) Provision(ctx *provisioning.Context) error {
	steps := []func(*provisioning.Context) error{
		p.WriteVars,
		p.RenderTemplates,
		p.RunTemplatesPlaybook,
	}
	for i, step := range steps {
		ctx.Observer.Progress(phase, i+1, len(steps))
		if err := step(ctx); err != nil {
			return err
		}
	}
	return nil
}

// WriteVars writes the vars file. An existing file is never replaced.
func (p *Provisioner) WriteVars(ctx *provisioning.Context) error {
	path := ctx.Paths.VarsFile()
	rec := render.BuildVars(ctx)

	if err := render.WriteRecord(path, rec); err != nil {
		if errors.Is(err, render.ErrRecordExists) {
			return provisioning.Precondition(
				fmt.Sprintf("vars file %s already exists", path),
				fmt.Sprintf("Remove it to continue:\n\n  rm %s", path),
			)
		}
		return fmt.Errorf("failed to write vars file: %w", err)
	}

	ctx.State.VarsFile = path
	ctx.Observer.Printf("[%s] Wrote %s (%d fields)", phase, path, countFields(rec))
	return nil
}

// RenderTemplates renders the instance policy and, for jumphosts, the
// Terraform variables into the working directory.
func (p *Provisioner) RenderTemplates(ctx *provisioning.Context) error {
	workdir := ctx.Paths.WorkDir()
	if err := os.MkdirAll(workdir, 0o750); err != nil {
		return fmt.Errorf("failed to create working directory: %w", err)
	}

	policy := filepath.Join(workdir, naming.PolicyFile)
	if err := renderTo(ctx, render.PolicyTemplate, render.PolicyDataFor(ctx), policy); err != nil {
		return err
	}
	ctx.State.PolicyFile = policy

	if ctx.Entity.Kind == config.KindJumphost {
		tfvars := filepath.Join(workdir, naming.TFVarsFile)
		if err := renderTo(ctx, render.TFVarsTemplate, render.TFVarsDataFor(ctx), tfvars); err != nil {
			return err
		}
		ctx.State.TFVarsFile = tfvars
	}
	return nil
}

// RunTemplatesPlaybook records the templates playbook command in the
// serial record and runs it.
func (p *Provisioner) RunTemplatesPlaybook(ctx *provisioning.Context) error {
	playbook := naming.TemplatesPlaybook(ctx.Entity.Kind)
	vars := PlaybookVars(ctx)

	if err := ctx.Registry.Append(ctx.Entity, ctx.Ansible.Command(playbook, vars)); err != nil {
		return fmt.Errorf("failed to record templates playbook: %w", err)
	}

	ctx.Observer.Printf("[%s] Running %s", phase, playbook)
	if err := ctx.Ansible.RunPlaybook(ctx, playbook, vars); err != nil {
		return fmt.Errorf("templates playbook %s: %w", playbook, err)
	}
	return nil
}

// PlaybookVars are the extra vars identifying the entity to its create
// playbooks. Everything else is read from the vars file.
func PlaybookVars(ctx *provisioning.Context) map[string]string {
	serial := ctx.State.Serial.ResourceID()
	if ctx.Entity.Kind == config.KindCluster {
		return map[string]string{
			"cluster_name":          ctx.Entity.FullName(),
			"cluster_birth_name":    ctx.Entity.Name,
			"cluster_serial_number": serial,
			"turbot_account":        ctx.Settings.AWS.TurbotAccount,
		}
	}
	return map[string]string{
		"instance_name":          ctx.Entity.FullName(),
		"instance_serial_number": serial,
		"turbot_account":         ctx.Settings.AWS.TurbotAccount,
	}
}

func renderTo(ctx *provisioning.Context, name string, data any, path string) error {
	out, err := ctx.Templates.Render(name, data)
	if err != nil {
		return fmt.Errorf("failed to render %s: %w", name, err)
	}
	if err := render.WriteFile(path, out); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	ctx.Observer.Printf("[%s] Rendered %s", phase, path)
	return nil
}

func countFields(rec *render.Record) int {
	n := 0
	for _, f := range rec.Fields {
		if f.Key != "" {
			n++
		}
	}
	return n
}
