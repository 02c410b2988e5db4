package build

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/imamik/hpcmaker/internal/config"
	"github.com/imamik/hpcmaker/internal/notify"
	"github.com/imamik/hpcmaker/internal/provisioning"
	"github.com/imamik/hpcmaker/internal/provisioning/configure"
	"github.com/imamik/hpcmaker/internal/provisioning/resources"
	"github.com/imamik/hpcmaker/internal/render"
	"github.com/imamik/hpcmaker/internal/util/naming"
)

const phase = "build"

// Provisioner builds the entity after the confirm window.
type Provisioner struct{}

// NewProvisioner creates a new build provisioner.
func NewProvisioner() *Provisioner {
	return &Provisioner{}
}

// Name implements the provisioning.Phase interface.
func (p *Provisioner) Name() string {
	return phase
}

// Provision implements the provisioning.Phase interface.
func (p *Provisioner) Provision(ctx *provisioning.Context) error {
	action := fmt.Sprintf("Building %s %s", ctx.Entity.Kind, ctx.Entity.FullName())
	if err := provisioning.Countdown(ctx, ctx.Observer, ctx.Settings.ConfirmDelay, action); err != nil {
		if errors.Is(err, provisioning.ErrAborted) {
			if cerr := Abort(ctx); cerr != nil {
				return errors.Join(err, cerr)
			}
		}
		return err
	}

	var err error
	switch ctx.Entity.Kind {
	case config.KindJumphost:
		err = p.applyTerraform(ctx)
	case config.KindCluster:
		err = p.runCreatePlaybook(ctx)
	default:
		err = fmt.Errorf("%w: unknown kind %q", provisioning.ErrInvalidInput, ctx.Entity.Kind)
	}
	if err != nil {
		return err
	}

	p.announce(ctx)
	return nil
}

func (p *Provisioner) applyTerraform(ctx *provisioning.Context) error {
	workdir := ctx.Paths.WorkDir()
	ctx.Observer.Printf("[%s] Applying Terraform in %s", phase, workdir)
	if err := ctx.Terraform.Apply(ctx, workdir); err != nil {
		return fmt.Errorf("terraform apply: %w", err)
	}
	return nil
}

func (p *Provisioner) runCreatePlaybook(ctx *provisioning.Context) error {
	playbook := naming.BuildPlaybook(ctx.Entity.Kind)
	vars := configure.PlaybookVars(ctx)

	if err := ctx.Registry.Append(ctx.Entity, ctx.Ansible.Command(playbook, vars)); err != nil {
		return fmt.Errorf("failed to record %s: %w", playbook, err)
	}

	ctx.Observer.Printf("[%s] Running %s", phase, playbook)
	if err := ctx.Ansible.RunPlaybook(ctx, playbook, vars); err != nil {
		return fmt.Errorf("create playbook %s: %w", playbook, err)
	}
	return nil
}

// announce sends the creation notice. The entity exists at this point, so
// a failed notice is only logged.
func (p *Provisioner) announce(ctx *provisioning.Context) {
	if ctx.Notifier == nil {
		return
	}
	var message string
	if ctx.Templates != nil {
		out, err := ctx.Templates.Render(render.NoticeTemplate, render.NoticeDataFor(ctx))
		if err != nil {
			ctx.Observer.Printf("[%s] Warning: creation notice not rendered: %v", phase, err)
			return
		}
		message = string(out)
	}
	if err := ctx.Notifier.Notify(ctx, notify.NoticeFor(ctx, provisioning.EventCreated, message)); err != nil {
		ctx.Observer.Printf("[%s] Warning: creation notice not sent: %v", phase, err)
	}
}

// Abort undoes a create that was cancelled before the build: dependent
// resources are released and every record the run wrote is removed.
func Abort(ctx *provisioning.Context) error {
	ctx.Observer.Printf("[%s] Aborted, releasing %s", phase, ctx.Entity.FullName())

	// The parent context is cancelled by now.
	cleanup := *ctx
	cleanup.Context = context.WithoutCancel(ctx.Context)

	var errs []error
	if err := resources.Release(&cleanup); err != nil {
		errs = append(errs, err)
	}
	if err := os.Remove(ctx.Paths.VarsFile()); err != nil && !errors.Is(err, os.ErrNotExist) {
		errs = append(errs, fmt.Errorf("failed to remove vars file: %w", err))
	}
	if err := ctx.Registry.Remove(ctx.Entity); err != nil {
		errs = append(errs, err)
	}
	if err := os.RemoveAll(ctx.Paths.WorkDir()); err != nil {
		errs = append(errs, fmt.Errorf("failed to remove working directory: %w", err))
	}
	return errors.Join(errs...)
}
