package driver

import (
	"context"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/go-logr/logr"
	"github.com/kballard/go-shellquote"
)

// Process runs one-off external commands: the cluster access script, ssh
// and the pcluster status check.
type Process struct {
	Timeout   time.Duration // zero means no timeout
	WaitDelay time.Duration
	Stdin     io.Reader
	Stdout    io.Writer
	Stderr    io.Writer
	Log       logr.Logger
}

// NewProcess returns an interactive process runner attached to the
// terminal.
func NewProcess(log logr.Logger) *Process {
	return &Process{
		WaitDelay: DefaultWaitDelay,
		Stdin:     os.Stdin,
		Stdout:    os.Stdout,
		Stderr:    os.Stderr,
		Log:       log,
	}
}

// Run executes argv in dir. A non-zero exit is a *provisioning.ToolError
// naming argv[0].
func (p *Process) Run(ctx context.Context, dir string, argv ...string) error {
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	p.Log.V(1).Info("running", "argv", shellquote.Join(argv...), "dir", dir)

	// #nosec G204 -- argv comes from settings and recorded names
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = dir
	cmd.Stdin = p.Stdin
	cmd.Stdout = p.Stdout
	cmd.Stderr = p.Stderr
	cmd.Cancel = func() error {
		return cmd.Process.Signal(os.Interrupt)
	}
	cmd.WaitDelay = p.WaitDelay

	if err := cmd.Run(); err != nil {
		return toolError(ctx, argv[0], err)
	}
	return nil
}

// PclusterStatus reports whether pcluster still knows the cluster name in
// region. Output is discarded.
func PclusterStatus(ctx context.Context, path, region, name string, timeout time.Duration) error {
	p := &Process{Timeout: timeout, WaitDelay: DefaultWaitDelay, Log: logr.Discard()}
	return p.Run(ctx, "", path, "status", "--region", region, name)
}
