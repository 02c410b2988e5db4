package awscloud

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

// Topic is an SNS topic.
type Topic struct {
	Name string
	ARN  string
}

// TopicARN derives a topic ARN from its parts.
func TopicARN(region, account, name string) string {
	return fmt.Sprintf("arn:aws:sns:%s:%s:%s", region, account, name)
}

// EnsureTopic returns the topic, creating it if absent, and subscribes
// email unless a subscription for it already exists.
func (c *Client) EnsureTopic(ctx context.Context, name, email string) (*Topic, error) {
	account, err := c.AccountID(ctx)
	if err != nil {
		return nil, err
	}
	arn := TopicARN(c.region, account, name)

	return (&EnsureOperation[*Topic]{
		Name:         name,
		ResourceType: "SNS topic",
		Get: func(ctx context.Context) (*Topic, bool, error) {
			_, err := c.sns.GetTopicAttributes(ctx, &sns.GetTopicAttributesInput{TopicArn: aws.String(arn)})
			if err != nil {
				if IsNotFound(err) {
					return nil, false, nil
				}
				return nil, false, err
			}
			return &Topic{Name: name, ARN: arn}, true, nil
		},
		Create: func(ctx context.Context) (*Topic, error) {
			out, err := c.sns.CreateTopic(ctx, &sns.CreateTopicInput{Name: aws.String(name)})
			if err != nil {
				return nil, err
			}
			return &Topic{Name: name, ARN: aws.ToString(out.TopicArn)}, nil
		},
		Reconcile: func(ctx context.Context, topic *Topic) error {
			if email == "" {
				return nil
			}
			subscribed, err := c.hasEmailSubscription(ctx, topic.ARN, email)
			if err != nil {
				return err
			}
			if subscribed {
				return nil
			}
			if _, err := c.sns.Subscribe(ctx, &sns.SubscribeInput{
				TopicArn: aws.String(topic.ARN),
				Protocol: aws.String("email"),
				Endpoint: aws.String(email),
			}); err != nil {
				return fmt.Errorf("subscribing %s to %s: %w", email, name, err)
			}
			c.log.Info("subscribed to topic", "email", email, "topic", name)
			return nil
		},
	}).Execute(ctx, c)
}

// hasEmailSubscription reports whether email is subscribed to the topic,
// confirmed or pending.
func (c *Client) hasEmailSubscription(ctx context.Context, topicARN, email string) (bool, error) {
	var next *string
	for {
		out, err := c.sns.ListSubscriptionsByTopic(ctx, &sns.ListSubscriptionsByTopicInput{
			TopicArn:  aws.String(topicARN),
			NextToken: next,
		})
		if err != nil {
			return false, fmt.Errorf("listing subscriptions of %s: %w", topicARN, err)
		}
		for _, s := range out.Subscriptions {
			if aws.ToString(s.Protocol) == "email" && strings.EqualFold(aws.ToString(s.Endpoint), email) {
				return true, nil
			}
		}
		if aws.ToString(out.NextToken) == "" {
			return false, nil
		}
		next = out.NextToken
	}
}

// Publish sends a notice to the topic.
func (c *Client) Publish(ctx context.Context, topicARN, subject, message string) error {
	ctx, cancel := c.callCtx(ctx)
	defer cancel()

	_, err := c.sns.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(topicARN),
		Subject:  aws.String(subject),
		Message:  aws.String(message),
	})
	if err != nil {
		return fmt.Errorf("publishing to %s: %w", topicARN, err)
	}
	return nil
}

// DeleteTopic deletes the topic and its subscriptions.
func (c *Client) DeleteTopic(ctx context.Context, topicARN string) error {
	return (&DeleteOperation{
		Name:         topicARN,
		ResourceType: "SNS topic",
		Delete: func(ctx context.Context) error {
			_, err := c.sns.DeleteTopic(ctx, &sns.DeleteTopicInput{TopicArn: aws.String(topicARN)})
			return err
		},
	}).Execute(ctx, c)
}
