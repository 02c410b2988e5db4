package registration

import (
	"fmt"

	"github.com/imamik/hpcmaker/internal/provisioning"
)

const phase = "registration"

// Provisioner allocates the serial for the entity in the context.
type Provisioner struct{}

// NewProvisioner creates a new registration provisioner.
func NewProvisioner() *Provisioner {
	return &Provisioner{}
}

// Name implements the provisioning.Phase interface.
func (p *Provisioner) Name() string {
	return phase
}

// Provision implements the provisioning.Phase interface. An existing
// serial record is reused, so a rerun after a failed create keeps the
// serial and every name derived from it.
func (p *Provisioner) Provision(ctx *provisioning.Context) error {
	alloc, err := ctx.Registry.Allocate(ctx.Entity, ctx.Argv, ctx.RunID, ctx.Now())
	if err != nil {
		return fmt.Errorf("failed to allocate serial: %w", err)
	}

	ctx.State.Serial = alloc.Serial
	ctx.State.SerialCreated = alloc.Created
	ctx.State.Names = ctx.Names()

	if alloc.Created {
		ctx.Observer.Printf("[%s] Allocated serial %s", phase, alloc.Serial)
	} else {
		ctx.Observer.Printf("[%s] Reusing serial %s from %s", phase, alloc.Serial, ctx.Paths.SerialFile())
	}
	return nil
}
