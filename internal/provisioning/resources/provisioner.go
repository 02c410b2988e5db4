package resources

import (
	"github.com/imamik/hpcmaker/internal/provisioning"
)

const phase = "resources"

// Provisioner discovers placement and ensures the dependent resources.
type Provisioner struct{}

// NewProvisioner creates a new resources provisioner.
func NewProvisioner() *Provisioner {
	return &Provisioner{}
}

// Name implements the provisioning.Phase interface.
func (p *Provisioner) Name() string {
	return phase
}

// Provision implements the provisioning.Phase interface.
func (p *Provisioner) Provision(ctx *provisioning.Context) error {
	if err := p.Discover(ctx); err != nil {
		return err
	}

	// The topic comes before the role: the rendered policy grants publish
	// on its ARN.
	steps := []func(*provisioning.Context) error{
		p.EnsureSecurityGroup,
		p.EnsureKeyPair,
		p.EnsureTopic,
		p.EnsureRole,
		p.EnsureInstanceProfile,
		p.EnsureBucket,
	}
	for i, step := range steps {
		ctx.Observer.Progress(phase, i+1, len(steps))
		if err := step(ctx); err != nil {
			return err
		}
	}
	return nil
}
