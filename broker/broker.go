package broker

import (
	"context"
)

// Handler consumes a message body received from the transport. Returning an
// error signals the transport that handling failed; what happens next (redeliver,
// dead-letter, drop) is transport-specific.
type Handler func(ctx context.Context, body []byte) error

// PublishOptions carries the transport addressing metadata for one publish
// call. All fields are optional; a broker implementation maps them onto its
// own concepts (topic, subject, message key) and ignores what it cannot use.
type PublishOptions struct {
	RoutingKey string
	Exchange   string
	Headers    map[string]interface{}
}

// SubscribeOptions selects what a subscriber receives.
type SubscribeOptions struct {
	RoutingKey string
	Exchange   string
}

// MessageBroker is the pub/sub transport the outbox layer wraps. Publish
// accepts any message value; implementations serialize it with their
// configured Serializer before handing it to the wire.
type MessageBroker interface {
	Publish(ctx context.Context, msg interface{}, opts PublishOptions) error
	Subscribe(ctx context.Context, handler Handler, opts SubscribeOptions) error
	Start(ctx context.Context) error
	Stop() error
}
