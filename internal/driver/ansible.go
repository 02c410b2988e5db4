package driver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"github.com/kballard/go-shellquote"

	"github.com/imamik/hpcmaker/internal/provisioning"
)

// DefaultWaitDelay bounds how long a cancelled tool may keep running
// after the interrupt before it is killed.
const DefaultWaitDelay = 10 * time.Second

var _ provisioning.PlaybookRunner = (*Ansible)(nil)

// Ansible runs playbooks with ansible-playbook.
type Ansible struct {
	Path        string // ansible-playbook executable
	PlaybookDir string // working directory of the run
	Verbosity   int    // number of -v flags
	Timeout     time.Duration
	WaitDelay   time.Duration
	Env         []string // extra environment, appended to os.Environ()
	Stdout      io.Writer
	Stderr      io.Writer
	Log         logr.Logger
}

// NewAnsible returns a runner streaming to the process stdout and stderr.
func NewAnsible(path, playbookDir string, timeout time.Duration, log logr.Logger) *Ansible {
	return &Ansible{
		Path:        path,
		PlaybookDir: playbookDir,
		Timeout:     timeout,
		WaitDelay:   DefaultWaitDelay,
		Stdout:      os.Stdout,
		Stderr:      os.Stderr,
		Log:         log,
	}
}

// Command returns the argv for running playbook. The extra vars are
// passed as a single JSON argument so no shell ever parses them.
func (a *Ansible) Command(playbook string, extraVars map[string]string) []string {
	argv := []string{a.Path}
	if len(extraVars) > 0 {
		// json.Marshal of a map[string]string cannot fail.
		vars, _ := json.Marshal(extraVars)
		argv = append(argv, "--extra-vars", string(vars))
	}
	argv = append(argv, playbook)
	if a.Verbosity > 0 {
		argv = append(argv, "-"+strings.Repeat("v", a.Verbosity))
	}
	return argv
}

// RunPlaybook runs playbook and waits for it. A non-zero exit is a
// *provisioning.ToolError.
func (a *Ansible) RunPlaybook(ctx context.Context, playbook string, extraVars map[string]string) error {
	if a.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.Timeout)
		defer cancel()
	}

	argv := a.Command(playbook, extraVars)
	a.Log.V(1).Info("running playbook", "playbook", playbook, "argv", shellquote.Join(argv...))

	// #nosec G204 -- argv is built from fixed flags and a JSON document
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = a.PlaybookDir
	cmd.Stdout = a.Stdout
	cmd.Stderr = a.Stderr
	if len(a.Env) > 0 {
		cmd.Env = append(os.Environ(), a.Env...)
	}
	cmd.Cancel = func() error {
		return cmd.Process.Signal(os.Interrupt)
	}
	cmd.WaitDelay = a.WaitDelay

	start := time.Now()
	err := cmd.Run()
	if err == nil {
		a.Log.V(1).Info("playbook finished", "playbook", playbook, "duration", time.Since(start).String())
		return nil
	}
	return toolError(ctx, "ansible-playbook "+playbook, err)
}

// toolError classifies a failed run. Timeouts and cancellations keep the
// context error in the chain.
func toolError(ctx context.Context, tool string, err error) error {
	code := -1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code = exitErr.ExitCode()
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		err = fmt.Errorf("%w (%w)", err, ctxErr)
	}
	return &provisioning.ToolError{Tool: tool, ExitCode: code, Err: err}
}
