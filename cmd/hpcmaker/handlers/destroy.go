package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/imamik/hpcmaker/internal/config"
	"github.com/imamik/hpcmaker/internal/provisioning"
	"github.com/imamik/hpcmaker/internal/teardown"
)

// DestroyOptions are the parsed destroy flags.
type DestroyOptions struct {
	Kind  config.Kind
	Zone  string
	Name  string
	Owner string
	Tier  string

	DeleteDependents bool
	DeleteEFS        bool
	DeleteFSX        bool
	DeleteS3Bucket   bool
	Interactive      bool

	// ConfirmDelay overrides the settings when not negative.
	ConfirmDelay time.Duration
}

// Teardown runs the teardown state machine. Matches teardown.Coordinator.
type Teardown interface {
	Run(ctx *provisioning.Context) (*teardown.Result, error)
}

// Factory function variables for destroy - can be replaced in tests.
var (
	newTeardown = func(opts teardown.Options) Teardown {
		return teardown.New(opts)
	}

	newConfirmer = func() teardown.Confirmer {
		if !teardown.IsTerminal() {
			return nil
		}
		return teardown.HuhConfirmer{}
	}
)

// Destroy handles the destroy command for clusters and jumphosts.
//
// The serial record and vars file are removed only after the delete
// playbook succeeded. On failure the command that built the entity is
// printed so the operator can inspect or recreate it.
func Destroy(ctx context.Context, g Globals, opts DestroyOptions) (err error) {
	e := config.Entity{
		Kind:  opts.Kind,
		Owner: opts.Owner,
		Name:  opts.Name,
		Tier:  opts.Tier,
		Zone:  opts.Zone,
	}

	s, deps, err := openSession(ctx, g, e, sessionOptions{ConfirmDelay: opts.ConfirmDelay})
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()
	defer func() { s.finish(e.Kind, "destroy", err) }()

	tdOpts := teardown.Options{
		DeleteDependents: opts.DeleteDependents,
		DeleteEFS:        opts.DeleteEFS,
		DeleteFSX:        opts.DeleteFSX,
		DeleteS3Bucket:   opts.DeleteS3Bucket,
	}
	if opts.Interactive {
		tdOpts.Interactive = true
		tdOpts.Confirmer = newConfirmer()
		if tdOpts.Confirmer == nil {
			printWarning(out, "--interactive ignored: stdin is not a terminal")
		}
	}
	if e.Kind == config.KindCluster {
		pcluster, timeout := s.settings.Tools.Pcluster, s.timeouts.API
		tdOpts.StatusCheck = func(ctx context.Context, region, name string) error {
			return pclusterStatus(ctx, pcluster, region, name, timeout)
		}
	}

	pCtx := s.newContext(ctx, e, nil, deps, nil)
	res, err := newTeardown(tdOpts).Run(pCtx)
	if res != nil {
		for _, w := range res.Warnings {
			printWarning(out, w)
		}
	}
	if err != nil {
		if res != nil && res.RebuildCommand != "" && res.State != teardown.StateAbort {
			fmt.Fprintln(out, dimStyle.Render("  Records kept. The entity was built with:"))
			fmt.Fprintln(out, "    "+res.RebuildCommand)
		}
		return fmt.Errorf("%s destroy failed: %w", e.Kind, err)
	}

	printTitle(out, "hpcmaker %s: %s", e.Kind, e.FullName())
	if res.RebuildCommand != "" {
		printField(out, "Built with", res.RebuildCommand)
	}
	fmt.Fprintln(out)
	printSuccess(out, "%s %s destroyed", e.Kind.Title(), e.FullName())
	return nil
}
