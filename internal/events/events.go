package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
)

// Subjects published by the billing lifecycle. Downstream fulfillment
// and notification workers subscribe to these.
const (
	SubjectSubscriptionCreated = "subber.subscription.created"
	SubjectOrderCreated        = "subber.order.created"
)

// Publisher emits domain events. Publishing is best-effort: the billing
// lifecycle never fails an operation because an event could not be sent.
type Publisher interface {
	Publish(ctx context.Context, subject string, payload any) error
}

// NatsPublisher publishes events to a NATS server as JSON.
type NatsPublisher struct {
	conn *nats.Conn
}

// Compile-time check that NatsPublisher implements Publisher.
var _ Publisher = (*NatsPublisher)(nil)

// NewNatsPublisher connects to NATS and returns a publisher. Callers
// own the connection and should Close it on shutdown.
func NewNatsPublisher(url string) (*NatsPublisher, error) {
	conn, err := nats.Connect(url, nats.Name("subber-server"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &NatsPublisher{conn: conn}, nil
}

// Publish sends the payload as JSON on the subject.
func (p *NatsPublisher) Publish(_ context.Context, subject string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode event payload: %w", err)
	}
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish %s: %w", subject, err)
	}
	return nil
}

// Close drains and closes the underlying connection.
func (p *NatsPublisher) Close() {
	p.conn.Drain()
}

// NoopPublisher discards events. Used when NATS is not configured and
// in tests that do not assert on events.
type NoopPublisher struct{}

var _ Publisher = (*NoopPublisher)(nil)

func (NoopPublisher) Publish(context.Context, string, any) error { return nil }
