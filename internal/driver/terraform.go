package driver

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/go-logr/logr"
	"github.com/hashicorp/terraform-exec/tfexec"

	"github.com/imamik/hpcmaker/internal/provisioning"
	"github.com/imamik/hpcmaker/internal/util/naming"
)

var _ provisioning.TerraformRunner = (*Terraform)(nil)

// tfRunner is the subset of *tfexec.Terraform used here.
type tfRunner interface {
	Init(ctx context.Context, opts ...tfexec.InitOption) error
	Plan(ctx context.Context, opts ...tfexec.PlanOption) (bool, error)
	Apply(ctx context.Context, opts ...tfexec.ApplyOption) error
	SetStdout(w io.Writer)
	SetStderr(w io.Writer)
}

var newRunner = func(workdir, execPath string) (tfRunner, error) {
	return tfexec.NewTerraform(workdir, execPath)
}

// Terraform applies the rendered configuration in an entity's working
// directory.
type Terraform struct {
	Path    string
	Timeout time.Duration
	Stdout  io.Writer
	Stderr  io.Writer
	Log     logr.Logger
}

// NewTerraform returns a runner streaming to the process stdout and stderr.
func NewTerraform(path string, timeout time.Duration, log logr.Logger) *Terraform {
	return &Terraform{
		Path:    path,
		Timeout: timeout,
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
		Log:     log,
	}
}

// Apply runs init, plan into the plan file and apply of that plan.
func (t *Terraform) Apply(ctx context.Context, workdir string) error {
	execPath, err := exec.LookPath(t.Path)
	if err != nil {
		return provisioning.Precondition(
			fmt.Sprintf("terraform executable %q not found", t.Path),
			"Please visit: https://www.terraform.io/downloads",
		)
	}

	tf, err := newRunner(workdir, execPath)
	if err != nil {
		return fmt.Errorf("failed to prepare terraform in %s: %w", workdir, err)
	}
	if t.Stdout != nil {
		tf.SetStdout(t.Stdout)
	}
	if t.Stderr != nil {
		tf.SetStderr(t.Stderr)
	}

	if t.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.Timeout)
		defer cancel()
	}

	t.Log.Info("terraform init", "workdir", workdir)
	if err := tf.Init(ctx); err != nil {
		return toolError(ctx, "terraform init", err)
	}

	t.Log.Info("terraform plan", "out", naming.PlanFile)
	if _, err := tf.Plan(ctx, tfexec.Out(naming.PlanFile)); err != nil {
		return toolError(ctx, "terraform plan", err)
	}

	t.Log.Info("terraform apply", "plan", naming.PlanFile)
	if err := tf.Apply(ctx, tfexec.DirOrPlan(naming.PlanFile)); err != nil {
		return toolError(ctx, "terraform apply", err)
	}
	return nil
}
