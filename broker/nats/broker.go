package nats

import (
	"context"
	"fmt"
	"sync"

	natspkg "github.com/nats-io/nats.go"

	"github.com/genc-murat/outbox-broker/broker"
	"github.com/genc-murat/outbox-broker/log"
)

// Broker is the NATS-backed MessageBroker. The routing key maps onto the
// NATS subject, falling back to the exchange when no routing key is given;
// headers travel as NATS message headers.
type Broker struct {
	url        string
	serializer broker.Serializer

	mu   sync.Mutex
	nc   *natspkg.Conn
	subs []*natspkg.Subscription
}

func NewBroker(url string) *Broker {
	return NewBrokerWithSerializer(url, broker.JSONSerializer{})
}

func NewBrokerWithSerializer(url string, ser broker.Serializer) *Broker {
	return &Broker{
		url:        url,
		serializer: ser,
	}
}

func (b *Broker) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.nc != nil {
		return nil
	}

	nc, err := natspkg.Connect(b.url)
	if err != nil {
		return fmt.Errorf("nats: could not connect to %s: %w", b.url, err)
	}

	b.nc = nc
	return nil
}

func (b *Broker) Stop() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.subs {
		if err := sub.Unsubscribe(); err != nil {
			log.Logger.WithError(err).Error("error removing nats subscription during shutdown")
		}
	}
	b.subs = nil

	if b.nc == nil {
		return nil
	}

	if err := b.nc.Drain(); err != nil {
		b.nc.Close()
		b.nc = nil
		return err
	}

	b.nc = nil
	return nil
}

func (b *Broker) Publish(ctx context.Context, msg interface{}, opts broker.PublishOptions) error {
	b.mu.Lock()
	nc := b.nc
	b.mu.Unlock()

	if nc == nil {
		return fmt.Errorf("nats: broker is not started")
	}

	subject := resolveSubject(opts.RoutingKey, opts.Exchange)
	if subject == "" {
		return fmt.Errorf("nats: no subject resolved for message (routing key and exchange are both empty)")
	}

	body, err := b.serializer.Serialize(msg)
	if err != nil {
		return err
	}

	m := natspkg.NewMsg(subject)
	m.Data = body
	for k, v := range opts.Headers {
		if str, ok := v.(string); ok {
			m.Header.Add(k, str)
		} else {
			m.Header.Add(k, fmt.Sprintf("%v", v))
		}
	}

	if err := nc.PublishMsg(m); err != nil {
		wrapErr := fmt.Errorf("nats: error publishing message to subject %s: %w", subject, err)
		log.Logger.Error(wrapErr)
		return wrapErr
	}

	log.Logger.Debugf("published message to NATS subject %s", subject)

	return nil
}

func (b *Broker) Subscribe(ctx context.Context, handler broker.Handler, opts broker.SubscribeOptions) error {
	b.mu.Lock()
	nc := b.nc
	b.mu.Unlock()

	if nc == nil {
		return fmt.Errorf("nats: broker is not started")
	}

	subject := resolveSubject(opts.RoutingKey, opts.Exchange)
	if subject == "" {
		return fmt.Errorf("nats: no subject resolved for subscription (routing key and exchange are both empty)")
	}

	sub, err := nc.Subscribe(subject, func(msg *natspkg.Msg) {
		if err := handler(ctx, msg.Data); err != nil {
			log.Logger.WithError(err).Errorf("message handler returned an error for subject %s", subject)
		}
	})
	if err != nil {
		return fmt.Errorf("nats: error subscribing to subject %s: %w", subject, err)
	}

	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()

	return nil
}

func resolveSubject(routingKey, exchange string) string {
	if routingKey != "" {
		return routingKey
	}
	return exchange
}
