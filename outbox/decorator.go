package outbox

import (
	"context"
	"fmt"

	"github.com/genc-murat/outbox-broker/broker"
	"github.com/genc-murat/outbox-broker/log"

	"github.com/sirupsen/logrus"
)

// BrokerDecorator wraps a MessageBroker and redirects publishes through the
// outbox store when the pattern is enabled. A successful Publish means the
// message is durably stored, not that it has reached the transport; the
// worker completes delivery later. Subscribe, Start and Stop pass through
// untouched since the outbox only affects the publish path.
type BrokerDecorator struct {
	inner      broker.MessageBroker
	store      Store
	serializer broker.Serializer
	opts       Options
}

func NewBrokerDecorator(inner broker.MessageBroker, store Store, opts Options) *BrokerDecorator {
	return NewBrokerDecoratorWithSerializer(inner, store, broker.JSONSerializer{}, opts)
}

func NewBrokerDecoratorWithSerializer(inner broker.MessageBroker, store Store, ser broker.Serializer, opts Options) *BrokerDecorator {
	return &BrokerDecorator{
		inner:      inner,
		store:      store,
		serializer: ser,
		opts:       opts,
	}
}

func (d *BrokerDecorator) Publish(ctx context.Context, msg interface{}, opts broker.PublishOptions) error {
	if msg == nil {
		return ErrNilMessage
	}

	if !d.opts.Enabled {
		return d.inner.Publish(ctx, msg, opts)
	}

	payload, err := d.serializer.Serialize(msg)
	if err != nil {
		return fmt.Errorf("outbox: error serializing message for storage: %w", err)
	}

	stored, err := d.store.Store(ctx, &Message{
		MessageType: broker.TypeName(msg),
		Payload:     payload,
		RoutingKey:  opts.RoutingKey,
		Exchange:    opts.Exchange,
		Headers:     opts.Headers,
	})
	if err != nil {
		return err
	}

	log.Logger.WithFields(logrus.Fields{
		"message_id":   stored.Id.String(),
		"message_type": stored.MessageType,
	}).Debug("message stored in the outbox for deferred publication")

	return nil
}

func (d *BrokerDecorator) Subscribe(ctx context.Context, handler broker.Handler, opts broker.SubscribeOptions) error {
	return d.inner.Subscribe(ctx, handler, opts)
}

func (d *BrokerDecorator) Start(ctx context.Context) error {
	return d.inner.Start(ctx)
}

func (d *BrokerDecorator) Stop() error {
	return d.inner.Stop()
}
