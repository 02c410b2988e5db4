package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"github.com/nats-io/nats.go"

	"github.com/imamik/hpcmaker/internal/provisioning"
)

var _ provisioning.Notifier = (*NATS)(nil)

// publisher is the subset of *nats.Conn used here.
type publisher interface {
	Publish(subject string, data []byte) error
	FlushWithContext(ctx context.Context) error
	Drain() error
}

// NATS publishes notices as JSON on <prefix>.<kind>.<event>.
type NATS struct {
	conn   publisher
	prefix string
}

// DialNATS connects to url. The connection is short-lived, so it does not
// reconnect.
func DialNATS(url, prefix string, log logr.Logger) (*NATS, error) {
	nc, err := nats.Connect(url,
		nats.Name("hpcmaker"),
		nats.Timeout(5*time.Second),
		nats.NoReconnect(),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Info("nats disconnected", "error", err.Error())
			}
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats %s: %w", url, err)
	}
	return newNATS(nc, prefix), nil
}

func newNATS(conn publisher, prefix string) *NATS {
	if prefix == "" {
		prefix = "hpcmaker"
	}
	return &NATS{conn: conn, prefix: prefix}
}

// Subject returns the subject a notice of kind and event is published on.
func (n *NATS) Subject(kind, event string) string {
	return n.prefix + "." + kind + "." + event
}

type natsNotice struct {
	Kind   string    `json:"kind"`
	Entity string    `json:"entity"`
	Event  string    `json:"event"`
	Serial string    `json:"serial"`
	RunID  string    `json:"run_id,omitempty"`
	Region string    `json:"region"`
	Time   time.Time `json:"time"`
}

// Notify publishes notice and waits for the server to acknowledge it.
func (n *NATS) Notify(ctx context.Context, notice provisioning.Notice) error {
	data, err := json.Marshal(natsNotice{
		Kind:   notice.Kind,
		Entity: notice.Entity,
		Event:  notice.Event,
		Serial: notice.Serial,
		RunID:  notice.RunID,
		Region: notice.Region,
		Time:   notice.Time.UTC(),
	})
	if err != nil {
		return fmt.Errorf("encoding notice: %w", err)
	}

	subject := n.Subject(notice.Kind, notice.Event)
	if err := n.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("nats publish %s: %w", subject, err)
	}
	if err := n.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("nats flush %s: %w", subject, err)
	}
	return nil
}

// Close drains the connection.
func (n *NATS) Close() error {
	return n.conn.Drain()
}
