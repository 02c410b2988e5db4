//go:build unix

package driver

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/hashicorp/terraform-exec/tfexec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/hpcmaker/internal/provisioning"
)

type fakeTF struct {
	workdir  string
	calls    []string
	failStep string
	stdout   io.Writer
}

func (f *fakeTF) step(name string) error {
	f.calls = append(f.calls, name)
	if f.failStep == name {
		return errors.New(name + " failed")
	}
	return nil
}

func (f *fakeTF) Init(context.Context, ...tfexec.InitOption) error {
	return f.step("init")
}

func (f *fakeTF) Plan(context.Context, ...tfexec.PlanOption) (bool, error) {
	return true, f.step("plan")
}

func (f *fakeTF) Apply(context.Context, ...tfexec.ApplyOption) error {
	return f.step("apply")
}

func (f *fakeTF) SetStdout(w io.Writer) { f.stdout = w }

func (f *fakeTF) SetStderr(io.Writer) {}

func withFakeRunner(t *testing.T, fake *fakeTF) {
	t.Helper()
	orig := newRunner
	newRunner = func(workdir, _ string) (tfRunner, error) {
		fake.workdir = workdir
		return fake, nil
	}
	t.Cleanup(func() { newRunner = orig })
}

func fakeTerraformBinary(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "terraform")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"), 0o755))
	return path
}

func TestTerraform_Apply(t *testing.T) {
	fake := &fakeTF{}
	withFakeRunner(t, fake)

	tf := NewTerraform(fakeTerraformBinary(t), time.Minute, logr.Discard())
	workdir := t.TempDir()

	require.NoError(t, tf.Apply(context.Background(), workdir))
	assert.Equal(t, []string{"init", "plan", "apply"}, fake.calls)
	assert.Equal(t, workdir, fake.workdir)
	assert.Equal(t, os.Stdout, fake.stdout)
}

func TestTerraform_StepFailureStops(t *testing.T) {
	fake := &fakeTF{failStep: "plan"}
	withFakeRunner(t, fake)

	tf := NewTerraform(fakeTerraformBinary(t), time.Minute, logr.Discard())
	err := tf.Apply(context.Background(), t.TempDir())

	require.ErrorIs(t, err, provisioning.ErrExternalTool)
	var toolErr *provisioning.ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, "terraform plan", toolErr.Tool)
	assert.Equal(t, []string{"init", "plan"}, fake.calls)
}

func TestTerraform_MissingBinary(t *testing.T) {
	fake := &fakeTF{}
	withFakeRunner(t, fake)

	tf := NewTerraform(filepath.Join(t.TempDir(), "terraform"), time.Minute, logr.Discard())
	err := tf.Apply(context.Background(), t.TempDir())

	require.ErrorIs(t, err, provisioning.ErrPreconditionMissing)
	assert.Empty(t, fake.calls)
}
