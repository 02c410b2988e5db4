package orchestration

import (
	"errors"
	"fmt"

	"github.com/imamik/hpcmaker/internal/notify"
	"github.com/imamik/hpcmaker/internal/provisioning"
	"github.com/imamik/hpcmaker/internal/provisioning/build"
	"github.com/imamik/hpcmaker/internal/provisioning/configure"
	"github.com/imamik/hpcmaker/internal/provisioning/registration"
	"github.com/imamik/hpcmaker/internal/provisioning/resources"
)

// Reconciler orchestrates the create workflow.
type Reconciler struct {
	phases []provisioning.Phase
}

// NewReconciler creates a reconciler running the standard create phases.
func NewReconciler() *Reconciler {
	return &Reconciler{
		phases: []provisioning.Phase{
			provisioning.NewValidationPhase(),
			registration.NewProvisioner(),
			resources.NewProvisioner(),
			configure.NewProvisioner(),
			build.NewProvisioner(),
		},
	}
}

// Phases returns the phase names in execution order.
func (r *Reconciler) Phases() []string {
	names := make([]string, len(r.phases))
	for i, p := range r.phases {
		names[i] = p.Name()
	}
	return names
}

// Reconcile runs every phase against ctx. A failure after the serial has
// been allocated is announced on the entity's notifiers; an operator abort
// is not.
func (r *Reconciler) Reconcile(ctx *provisioning.Context) error {
	err := provisioning.RunPhases(ctx, r.phases)
	if err == nil {
		return nil
	}

	if ctx.Notifier != nil && ctx.State.Serial.Digest != "" && !errors.Is(err, provisioning.ErrAborted) {
		msg := fmt.Sprintf("%s %s failed: %v", ctx.Entity.Kind, ctx.Entity.FullName(), err)
		if nerr := ctx.Notifier.Notify(ctx, notify.NoticeFor(ctx, provisioning.EventFailed, msg)); nerr != nil {
			ctx.Observer.Printf("Warning: failure notice not sent: %v", nerr)
		}
	}
	return err
}
