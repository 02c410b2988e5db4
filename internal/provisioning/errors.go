package provisioning

import (
	"errors"
	"fmt"
)

// Error classes surfaced to the operator. Components wrap them with %w so
// callers can branch with errors.Is.
var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrPreconditionMissing = errors.New("precondition missing")
	ErrCloudRejected       = errors.New("cloud provider rejected request")
	ErrExternalTool        = errors.New("external tool failed")
	ErrAborted             = errors.New("aborted by operator")
)

// ToolError records a non-zero exit from an external tool.
type ToolError struct {
	Tool     string
	ExitCode int
	Err      error
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("%s: %s exited with status %d", ErrExternalTool, e.Tool, e.ExitCode)
}

func (e *ToolError) Unwrap() []error {
	return []error{ErrExternalTool, e.Err}
}

// Precondition wraps a missing-file or missing-tool condition with the
// remediation the operator should apply.
func Precondition(what, remediation string) error {
	if remediation == "" {
		return fmt.Errorf("%w: %s", ErrPreconditionMissing, what)
	}
	return fmt.Errorf("%w: %s\n\n%s", ErrPreconditionMissing, what, remediation)
}

// Rejected wraps an unexpected control-plane error.
func Rejected(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrCloudRejected, op, err)
}
