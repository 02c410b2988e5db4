// Package notify delivers lifecycle notices: to the entity's SNS topic,
// which mails its subscribed owner, and optionally to a NATS subject for
// operators watching every entity.
package notify
