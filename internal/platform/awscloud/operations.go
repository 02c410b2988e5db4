package awscloud

import (
	"context"
	"fmt"
	"time"

	"github.com/imamik/hpcmaker/internal/util/retry"
)

// EnsureOperation encapsulates get-or-create logic for any AWS resource.
//
// Usage example:
//
//	sg, err := (&EnsureOperation[*SecurityGroup]{
//	    Name:         name,
//	    ResourceType: "security group",
//	    Get:          func(ctx context.Context) (*SecurityGroup, bool, error) { ... },
//	    Create:       func(ctx context.Context) (*SecurityGroup, error) { ... },
//	}).Execute(ctx, c)
type EnsureOperation[T any] struct {
	Name         string
	ResourceType string

	// Get looks the resource up by its deterministic name. It reports
	// found=false, not an error, when the provider says NotFound.
	Get func(ctx context.Context) (T, bool, error)

	// Create makes the resource. Only called when Get reports absence.
	Create func(ctx context.Context) (T, error)

	// Reconcile brings the found or created resource to its desired state,
	// e.g. attaching a policy or a subscription. It runs on every Execute,
	// so a step that failed after Create is repaired on the next run. It
	// must be idempotent.
	Reconcile func(ctx context.Context, resource T) error

	// Verify checks post-conditions on the found or created resource.
	Verify func(resource T, created bool) error
}

// Execute runs the lookup, creation, reconciliation and verification. A create that loses
// a race with a concurrent creator falls back to a second lookup.
func (op *EnsureOperation[T]) Execute(ctx context.Context, c *Client) (T, error) {
	var zero T

	resource, found, err := op.get(ctx, c)
	if err != nil {
		return zero, err
	}

	created := false
	if found {
		c.log.Info("found existing resource", "type", op.ResourceType, "name", op.Name)
	} else {
		c.log.Info("creating resource", "type", op.ResourceType, "name", op.Name)
		callCtx, cancel := c.callCtx(ctx)
		resource, err = op.Create(callCtx)
		cancel()
		switch {
		case err == nil:
			created = true
		case IsAlreadyExists(err):
			resource, found, err = op.get(ctx, c)
			if err != nil {
				return zero, err
			}
			if !found {
				return zero, fmt.Errorf("%s %s reported as existing but lookup found nothing", op.ResourceType, op.Name)
			}
		default:
			return zero, fmt.Errorf("failed to create %s %s: %w", op.ResourceType, op.Name, err)
		}
	}

	if op.Reconcile != nil {
		callCtx, cancel := c.callCtx(ctx)
		err := op.Reconcile(callCtx, resource)
		cancel()
		if err != nil {
			return zero, fmt.Errorf("failed to reconcile %s %s: %w", op.ResourceType, op.Name, err)
		}
	}

	if op.Verify != nil {
		if err := op.Verify(resource, created); err != nil {
			return zero, err
		}
	}

	if created {
		c.log.Info("created resource", "type", op.ResourceType, "name", op.Name)
	}
	return resource, nil
}

func (op *EnsureOperation[T]) get(ctx context.Context, c *Client) (T, bool, error) {
	callCtx, cancel := c.callCtx(ctx)
	defer cancel()

	resource, found, err := op.Get(callCtx)
	if err != nil {
		var zero T
		return zero, false, fmt.Errorf("failed to get %s %s: %w", op.ResourceType, op.Name, err)
	}
	return resource, found, nil
}

// DeleteOperation encapsulates deletion logic for any AWS resource.
// The operation is idempotent: it succeeds if the resource doesn't exist.
// Dependency conflicts are retried with exponential backoff.
type DeleteOperation struct {
	Name         string
	ResourceType string
	Delete       func(ctx context.Context) error
}

// Execute performs the delete with retry.
func (op *DeleteOperation) Execute(ctx context.Context, c *Client) error {
	return retry.WithExponentialBackoff(ctx, func() error {
		callCtx, cancel := c.callCtx(ctx)
		defer cancel()

		err := op.Delete(callCtx)
		switch {
		case err == nil:
			c.log.Info("deleted resource", "type", op.ResourceType, "name", op.Name)
			return nil
		case IsNotFound(err):
			c.log.V(1).Info("resource already gone", "type", op.ResourceType, "name", op.Name)
			return nil
		case isDeleteConflict(err):
			return err
		default:
			return retry.Fatal(fmt.Errorf("failed to delete %s %s: %w", op.ResourceType, op.Name, err))
		}
	},
		retry.WithTimeouts(c.timeouts),
		retry.WithOnRetry(c.logRetry(op.ResourceType, op.Name)))
}

// logRetry returns a retry hook that logs transient failures.
func (c *Client) logRetry(resourceType, name string) func(int, error, time.Duration) {
	return func(attempt int, err error, wait time.Duration) {
		c.log.Info("retrying", "type", resourceType, "name", name, "attempt", attempt, "wait", wait.String(), "error", err.Error())
	}
}
