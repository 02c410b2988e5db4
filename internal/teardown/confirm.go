package teardown

import (
	"context"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/mattn/go-isatty"
)

// Confirmer asks the operator a yes/no question.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) (bool, error)
}

// HuhConfirmer prompts on the terminal. The form is drawn on stderr so
// stdout stays clean for the command's own output.
type HuhConfirmer struct{}

// Confirm implements Confirmer.
func (HuhConfirmer) Confirm(ctx context.Context, prompt string) (bool, error) {
	var ok bool
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(prompt).
				Affirmative("Destroy").
				Negative("Keep").
				Value(&ok),
		),
	).WithProgramOptions(tea.WithOutput(os.Stderr)).RunWithContext(ctx)
	if err != nil {
		return false, err
	}
	return ok, nil
}

// IsTerminal reports whether stdin and stderr are both terminals.
func IsTerminal() bool {
	return isTTY(os.Stdin.Fd()) && isTTY(os.Stderr.Fd())
}

func isTTY(fd uintptr) bool {
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
