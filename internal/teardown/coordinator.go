package teardown

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/imamik/hpcmaker/internal/config"
	"github.com/imamik/hpcmaker/internal/notify"
	"github.com/imamik/hpcmaker/internal/platform/awscloud"
	"github.com/imamik/hpcmaker/internal/provisioning"
	"github.com/imamik/hpcmaker/internal/provisioning/resources"
	"github.com/imamik/hpcmaker/internal/util/naming"
	"github.com/imamik/hpcmaker/internal/util/prerequisites"
)

// pythonInterpreter is forced for the cluster delete playbook.
const pythonInterpreter = "/usr/bin/python3"

// Options control one teardown.
type Options struct {
	// DeleteDependents releases the key pair, IAM role and profile, topic
	// and bucket after the destroy.
	DeleteDependents bool

	// Cluster storage flags handed to the delete playbook.
	DeleteEFS      bool
	DeleteFSX      bool
	DeleteS3Bucket bool

	// Interactive asks Confirmer before the countdown. It is ignored when
	// Confirmer is nil.
	Interactive bool
	Confirmer   Confirmer

	// StatusCheck checks that pcluster still knows a cluster. Failures
	// are warnings. Nil skips the check.
	StatusCheck func(ctx context.Context, region, name string) error
}

// Result describes a finished or failed teardown.
type Result struct {
	State          State
	History        []State
	RebuildCommand string
	Warnings       []string
}

func (r *Result) warn(obs provisioning.Observer, format string, v ...any) {
	msg := fmt.Sprintf(format, v...)
	r.Warnings = append(r.Warnings, msg)
	obs.Printf("Warning: %s", msg)
}

// Coordinator runs the teardown state machine.
type Coordinator struct {
	opts Options
}

// New returns a coordinator with opts.
func New(opts Options) *Coordinator {
	return &Coordinator{opts: opts}
}

// Run tears down the entity in ctx. The returned Result is never nil.
func (c *Coordinator) Run(ctx *provisioning.Context) (*Result, error) {
	res := &Result{}
	state := StateResolveName

	for {
		res.History = append(res.History, state)
		res.State = state
		if state == StateDone {
			return res, nil
		}

		ctx.Observer.Event(provisioning.Event{
			Type:    provisioning.EventProgress,
			Phase:   "teardown",
			Message: string(state),
		})

		if err := c.step(ctx, state, res); err != nil {
			if state.abortable() {
				res.History = append(res.History, StateAbort)
				res.State = StateAbort
			}
			return res, fmt.Errorf("%s: %w", state, err)
		}
		state = state.next()
	}
}

func (c *Coordinator) step(ctx *provisioning.Context, state State, res *Result) error {
	switch state {
	case StateResolveName:
		return c.resolveName(ctx)
	case StateValidateZone:
		return provisioning.ValidateZone(ctx, ctx.Cloud, ctx.Entity.Zone)
	case StateLocateRecords:
		return c.locateRecords(ctx, res)
	case StateConfirm:
		return c.confirm(ctx)
	case StateExecuteDestroy:
		return c.executeDestroy(ctx, res)
	case StateReleaseDependents:
		c.releaseDependents(ctx, res)
		return nil
	case StateCleanupRecords:
		return c.cleanupRecords(ctx, res)
	}
	return fmt.Errorf("unknown teardown state %s", state)
}

func (c *Coordinator) resolveName(ctx *provisioning.Context) error {
	return provisioning.CheckValidation(ctx.Observer, provisioning.ValidateIdentifiers(provisioning.Identifiers{
		Kind:  ctx.Entity.Kind,
		Owner: ctx.Entity.Owner,
		Name:  ctx.Entity.Name,
		Tier:  ctx.Entity.Tier,
	}))
}

func (c *Coordinator) locateRecords(ctx *provisioning.Context, res *Result) error {
	if err := provisioning.CheckTeardownPreconditions(ctx.Paths); err != nil {
		return err
	}

	serial, err := ctx.Registry.Resolve(ctx.Entity)
	if err != nil {
		return fmt.Errorf("failed to resolve serial: %w", err)
	}
	ctx.State.Serial = serial
	ctx.State.Names = ctx.Names()

	if res.RebuildCommand, err = ctx.Registry.Command(ctx.Entity); err != nil {
		res.warn(ctx.Observer, "no rebuild command recorded: %v", err)
	}

	tools := ctx.Tools(ctx, prerequisites.ForDestroy(ctx.Settings.Tools, ctx.Entity.Kind))
	if err := tools.Error(); err != nil {
		return fmt.Errorf("%w: %w", provisioning.ErrPreconditionMissing, err)
	}
	if ctx.Entity.Kind == config.KindCluster && c.opts.StatusCheck != nil {
		if tools.Version("pcluster") == "" {
			res.warn(ctx.Observer, "pcluster not installed, cluster status unknown")
		} else if err := c.opts.StatusCheck(ctx, ctx.Entity.Region(), ctx.Entity.FullName()); err != nil {
			res.warn(ctx.Observer, "pcluster does not report %s in %s: %v", ctx.Entity.FullName(), ctx.Entity.Region(), err)
		}
	}

	if account, err := ctx.Cloud.AccountID(ctx); err != nil {
		res.warn(ctx.Observer, "account lookup failed, no deletion notice will be sent: %v", err)
	} else {
		ctx.State.Account = account
		ctx.State.Topic = &awscloud.Topic{
			Name: ctx.State.Names.Topic,
			ARN:  awscloud.TopicARN(ctx.Entity.Region(), account, ctx.State.Names.Topic),
		}
	}

	ctx.Observer.Printf("[teardown] %s %s has serial %s", ctx.Entity.Kind, ctx.Entity.FullName(), serial)
	return nil
}

func (c *Coordinator) confirm(ctx *provisioning.Context) error {
	action := fmt.Sprintf("Destroying %s %s (%s)", ctx.Entity.Kind, ctx.Entity.FullName(), ctx.State.Serial)

	if c.opts.Interactive && c.opts.Confirmer != nil {
		ok, err := c.opts.Confirmer.Confirm(ctx, action+"?")
		if err != nil {
			return fmt.Errorf("%w: %w", provisioning.ErrAborted, err)
		}
		if !ok {
			return fmt.Errorf("%w: operator declined", provisioning.ErrAborted)
		}
	}
	return provisioning.Countdown(ctx, ctx.Observer, ctx.Settings.ConfirmDelay, action)
}

// DeleteVars are the extra vars for the delete playbook of the entity in ctx.
// The cluster playbook takes the serial as recorded (name.digest); the
// jumphost playbook takes the resource form its create playbook was given.
func (c *Coordinator) DeleteVars(ctx *provisioning.Context) map[string]string {
	if ctx.Entity.Kind == config.KindCluster {
		return map[string]string{
			"cluster_name":               ctx.Entity.FullName(),
			"cluster_birth_name":         ctx.Entity.Name,
			"cluster_serial_number":      ctx.State.Serial.String(),
			"delete_s3_bucketname":       strconv.FormatBool(c.opts.DeleteS3Bucket),
			"delete_efs":                 strconv.FormatBool(c.opts.DeleteEFS),
			"delete_fsx":                 strconv.FormatBool(c.opts.DeleteFSX),
			"ansible_python_interpreter": pythonInterpreter,
		}
	}
	return map[string]string{
		"instance_name":          ctx.Entity.FullName(),
		"instance_serial_number": ctx.State.Serial.ResourceID(),
	}
}

func (c *Coordinator) executeDestroy(ctx *provisioning.Context, res *Result) error {
	playbook := naming.DeletePlaybook(ctx.Entity.Kind)
	ctx.Observer.Printf("[teardown] Running %s", playbook)
	if err := ctx.Ansible.RunPlaybook(ctx, playbook, c.DeleteVars(ctx)); err != nil {
		return fmt.Errorf("delete playbook %s: %w", playbook, err)
	}

	if ctx.Notifier != nil {
		msg := fmt.Sprintf("%s %s (%s) has been destroyed.", ctx.Entity.Kind, ctx.Entity.FullName(), ctx.State.Serial)
		if err := ctx.Notifier.Notify(ctx, notify.NoticeFor(ctx, provisioning.EventDestroyed, msg)); err != nil {
			res.warn(ctx.Observer, "deletion notice not sent: %v", err)
		}
	}
	return nil
}

func (c *Coordinator) releaseDependents(ctx *provisioning.Context, res *Result) {
	if !c.opts.DeleteDependents {
		ctx.Observer.Printf("[teardown] Keeping dependent resources")
		return
	}
	if err := resources.Release(ctx); err != nil {
		res.warn(ctx.Observer, "some dependent resources were not released: %v", err)
	}
}

func (c *Coordinator) cleanupRecords(ctx *provisioning.Context, res *Result) error {
	var errs []error
	if err := os.Remove(ctx.Paths.VarsFile()); err != nil && !errors.Is(err, os.ErrNotExist) {
		errs = append(errs, fmt.Errorf("failed to remove vars file: %w", err))
	}
	if err := ctx.Registry.Remove(ctx.Entity); err != nil {
		errs = append(errs, err)
	}
	if err := os.RemoveAll(ctx.Paths.WorkDir()); err != nil {
		errs = append(errs, fmt.Errorf("failed to remove working directory: %w", err))
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	ctx.Observer.Printf("[teardown] Removed records of %s", ctx.Entity.FullName())
	if res.RebuildCommand != "" {
		ctx.Observer.Printf("[teardown] To rebuild:\n\n$ %s", res.RebuildCommand)
	}
	return nil
}
