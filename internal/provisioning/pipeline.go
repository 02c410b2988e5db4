package provisioning

import (
	"fmt"
	"time"
)

// RunPhases executes all provisioning phases sequentially. The first
// failure stops the run; phases already completed are not rolled back.
func RunPhases(ctx *Context, phases []Phase) error {
	start := time.Now()
	ctx.Observer.Printf("Starting %s %s with %d phases", ctx.Entity.Kind, ctx.Entity.FullName(), len(phases))

	for i, phase := range phases {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s phase not started: %w", phase.Name(), err)
		}

		phaseStart := time.Now()
		name := fmt.Sprintf("%s (%d/%d)", phase.Name(), i+1, len(phases))
		LogPhaseStart(ctx.Observer, name)

		err := phase.Provision(ctx)
		elapsed := time.Since(phaseStart)
		if ctx.Metrics != nil {
			ctx.Metrics.ObservePhase(string(ctx.Entity.Kind), phase.Name(), elapsed, err)
		}
		if err != nil {
			LogPhaseFailed(ctx.Observer, name, err)
			return fmt.Errorf("%s phase failed: %w", phase.Name(), err)
		}

		LogPhaseComplete(ctx.Observer, name, elapsed)
	}

	ctx.Observer.Printf("Completed in %v", time.Since(start).Round(time.Millisecond))
	return nil
}

// phaseFunc adapts a function to the Phase interface.
type phaseFunc struct {
	name string
	fn   func(*Context) error
}

func (p phaseFunc) Name() string                 { return p.name }
func (p phaseFunc) Provision(ctx *Context) error { return p.fn(ctx) }

// PhaseFunc wraps fn as a named Phase.
func PhaseFunc(name string, fn func(*Context) error) Phase {
	return phaseFunc{name: name, fn: fn}
}
