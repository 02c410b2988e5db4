package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/imamik/hpcmaker/internal/platform/awscloud"
	"github.com/imamik/hpcmaker/internal/provisioning"
)

var (
	_ provisioning.Notifier = (*SNS)(nil)
	_ provisioning.Notifier = Multi(nil)
)

// SNS publishes notices to the topic named in the notice.
type SNS struct {
	Topics awscloud.TopicManager
}

// Notify publishes n. Notices without a topic are skipped.
func (s *SNS) Notify(ctx context.Context, n provisioning.Notice) error {
	if n.TopicARN == "" {
		return nil
	}
	if err := s.Topics.Publish(ctx, n.TopicARN, n.Subject, n.Message); err != nil {
		return fmt.Errorf("sns notice for %s: %w", n.Entity, err)
	}
	return nil
}

// Multi fans a notice out to every notifier and joins their errors.
type Multi []provisioning.Notifier

// Notify calls every non-nil notifier, even after one fails.
func (m Multi) Notify(ctx context.Context, n provisioning.Notice) error {
	var errs []error
	for _, notifier := range m {
		if notifier == nil {
			continue
		}
		if err := notifier.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Subject returns the notice e-mail subject for kind and event.
func Subject(kind, event string) string {
	title := "Jumphost"
	product := "Pcluster Jumphost Instance"
	if kind == "cluster" {
		title = "Cluster"
		product = "Pcluster Cluster"
	}
	var what string
	switch event {
	case provisioning.EventCreated:
		what = "Creation"
	case provisioning.EventDestroyed:
		what = "Deletion"
	default:
		what = "Failure"
	}
	return fmt.Sprintf("[ParallelClusterMaker/%sMaker] %s %s Notice", title, product, what)
}

// NoticeFor builds the notice for event on the entity in ctx.
func NoticeFor(ctx *provisioning.Context, event, message string) provisioning.Notice {
	n := provisioning.Notice{
		Kind:    string(ctx.Entity.Kind),
		Entity:  ctx.Entity.FullName(),
		Event:   event,
		RunID:   ctx.RunID,
		Region:  ctx.Entity.Region(),
		Subject: Subject(string(ctx.Entity.Kind), event),
		Message: message,
		Time:    ctx.Now(),
	}
	if ctx.State.Serial.Digest != "" {
		n.Serial = ctx.State.Serial.String()
	}
	if ctx.State.Topic != nil {
		n.TopicARN = ctx.State.Topic.ARN
	}
	return n
}
