package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/imamik/hpcmaker/internal/config"
	"github.com/imamik/hpcmaker/internal/orchestration"
	"github.com/imamik/hpcmaker/internal/provisioning"
)

// CreateOptions are the parsed create flags.
type CreateOptions struct {
	Kind  config.Kind
	Zone  string
	Name  string
	Owner string
	Email string
	Tier  string

	Department     string
	ProjectID      string
	SecurityGroup  string
	TurbotAccount  string
	Debug          bool
	Verbosity      int
	InstanceType   string
	RootVolumeSize int

	// ConfirmDelay overrides the settings when not negative.
	ConfirmDelay time.Duration

	// Argv is the invoking command line, recorded with the serial.
	Argv []string
}

// Reconciler runs the create pipeline. Matches orchestration.Reconciler.
type Reconciler interface {
	Reconcile(ctx *provisioning.Context) error
}

var newReconciler = func() Reconciler {
	return orchestration.NewReconciler()
}

// Create handles the create command for clusters and jumphosts.
//
// It runs the reconciler pipeline: validation, registration, resources,
// configure and build. The run outcome is recorded in the metrics
// textfile when one is configured.
func Create(ctx context.Context, g Globals, opts CreateOptions) (err error) {
	e := config.Entity{
		Kind:  opts.Kind,
		Owner: opts.Owner,
		Name:  opts.Name,
		Tier:  opts.Tier,
		Zone:  opts.Zone,
	}

	s, deps, err := openSession(ctx, g, e, sessionOptions{
		Debug:         opts.Debug,
		Verbosity:     opts.Verbosity,
		TurbotAccount: opts.TurbotAccount,
		ConfirmDelay:  opts.ConfirmDelay,
	})
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()
	defer func() { s.finish(e.Kind, "create", err) }()

	req := &provisioning.Request{
		Email:          opts.Email,
		Department:     opts.Department,
		ProjectID:      opts.ProjectID,
		SecurityGroup:  opts.SecurityGroup,
		TurbotAccount:  s.settings.AWS.TurbotAccount,
		Debug:          opts.Debug,
		InstanceType:   opts.InstanceType,
		RootVolumeSize: opts.RootVolumeSize,
	}
	pCtx := s.newContext(ctx, e, req, deps, opts.Argv)

	if err := newReconciler().Reconcile(pCtx); err != nil {
		if pCtx.State.Serial.Digest != "" {
			fmt.Fprintln(out, dimStyle.Render("  Records kept. Rerun the same command to resume with serial "+pCtx.State.Serial.String()))
		}
		return fmt.Errorf("%s create failed: %w", e.Kind, err)
	}

	printCreateSummary(pCtx)
	return nil
}

func printCreateSummary(ctx *provisioning.Context) {
	printTitle(out, "hpcmaker %s: %s", ctx.Entity.Kind, ctx.Entity.FullName())
	if ctx.State.SerialCreated {
		printField(out, "Serial", ctx.State.Serial.String())
	} else {
		printField(out, "Serial", ctx.State.Serial.String()+" "+dimStyle.Render("(resumed)"))
	}
	printField(out, "Zone", ctx.Entity.Zone)
	printField(out, "Tier", ctx.Entity.Tier)
	printField(out, "Vars file", ctx.Paths.VarsFile())
	printField(out, "Work dir", ctx.Paths.WorkDir())
	if kp := ctx.State.KeyPair; kp != nil {
		printField(out, "Key", kp.Fingerprint)
	}
	if ctx.State.Topic != nil {
		printField(out, "Topic", ctx.State.Topic.ARN)
	}
	if ctx.State.Bucket != "" {
		printField(out, "Bucket", ctx.State.Bucket)
	}
	fmt.Fprintln(out)
	printSuccess(out, "%s %s created", ctx.Entity.Kind.Title(), ctx.Entity.FullName())
}
