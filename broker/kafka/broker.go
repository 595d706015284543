package kafka

import (
	"context"
	"fmt"
	"sync"

	"github.com/Shopify/sarama"

	"github.com/genc-murat/outbox-broker/broker"
	"github.com/genc-murat/outbox-broker/log"
)

// Broker is the Kafka-backed MessageBroker. Publish options map onto Kafka
// concepts: Exchange selects the topic (falling back to the configured
// default), RoutingKey becomes the message key, Headers become record
// headers.
type Broker struct {
	addrs        []string
	cfg          *sarama.Config
	serializer   broker.Serializer
	defaultTopic string
	groupID      string

	mu       sync.Mutex
	producer sarama.SyncProducer
	groups   []sarama.ConsumerGroup
}

func NewBroker(addrs []string, defaultTopic, groupID string, cfg *sarama.Config) *Broker {
	return NewBrokerWithSerializer(addrs, defaultTopic, groupID, cfg, broker.JSONSerializer{})
}

func NewBrokerWithSerializer(addrs []string, defaultTopic, groupID string, cfg *sarama.Config, ser broker.Serializer) *Broker {
	return &Broker{
		addrs:        addrs,
		cfg:          cfg,
		serializer:   ser,
		defaultTopic: defaultTopic,
		groupID:      groupID,
	}
}

// newBrokerWithProducer exists for tests that inject a mock producer.
func newBrokerWithProducer(prod sarama.SyncProducer, defaultTopic string, ser broker.Serializer) *Broker {
	return &Broker{
		serializer:   ser,
		defaultTopic: defaultTopic,
		producer:     prod,
	}
}

func (b *Broker) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.producer != nil {
		return nil
	}

	producer, err := sarama.NewSyncProducer(b.addrs, b.cfg)
	if err != nil {
		return fmt.Errorf("kafka: could not start producer: %w", err)
	}

	b.producer = producer
	return nil
}

func (b *Broker) Stop() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, g := range b.groups {
		if err := g.Close(); err != nil {
			log.Logger.WithError(err).Error("error closing kafka consumer group during shutdown")
		}
	}
	b.groups = nil

	if b.producer == nil {
		return nil
	}

	err := b.producer.Close()
	b.producer = nil

	return err
}

func (b *Broker) Publish(ctx context.Context, msg interface{}, opts broker.PublishOptions) error {
	b.mu.Lock()
	producer := b.producer
	b.mu.Unlock()

	if producer == nil {
		return fmt.Errorf("kafka: broker is not started")
	}

	topic := b.resolveTopic(opts.Exchange)
	if topic == "" {
		return fmt.Errorf("kafka: no topic resolved for message (no exchange given and no default topic configured)")
	}

	body, err := b.serializer.Serialize(msg)
	if err != nil {
		return err
	}

	pm := &sarama.ProducerMessage{
		Topic:   topic,
		Headers: toRecordHeaders(opts.Headers),
		Value:   sarama.ByteEncoder(body),
	}
	if opts.RoutingKey != "" {
		pm.Key = sarama.StringEncoder(opts.RoutingKey)
	}

	partition, offset, err := producer.SendMessage(pm)
	if err != nil {
		wrapErr := fmt.Errorf("kafka: error producing message: %w", err)
		log.Logger.Error(wrapErr)
		return wrapErr
	}

	log.Logger.Debugf("produced message in Kafka (topic: %s, partition: %d, offset: %d)", topic, partition, offset)

	return nil
}

func (b *Broker) Subscribe(ctx context.Context, handler broker.Handler, opts broker.SubscribeOptions) error {
	if b.groupID == "" {
		return fmt.Errorf("kafka: a consumer group id is required to subscribe")
	}

	topic := b.resolveTopic(opts.Exchange)
	if topic == "" {
		return fmt.Errorf("kafka: no topic resolved for subscription (no exchange given and no default topic configured)")
	}

	group, err := sarama.NewConsumerGroup(b.addrs, b.groupID, b.cfg)
	if err != nil {
		return fmt.Errorf("kafka: could not create consumer group: %w", err)
	}

	b.mu.Lock()
	b.groups = append(b.groups, group)
	b.mu.Unlock()

	go func() {
		h := groupHandler{handler: handler}
		for {
			if err := group.Consume(ctx, []string{topic}, h); err != nil {
				log.Logger.WithError(err).Error("error consuming from kafka")
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()

	return nil
}

func (b *Broker) resolveTopic(exchange string) string {
	if exchange != "" {
		return exchange
	}
	return b.defaultTopic
}

type groupHandler struct {
	handler broker.Handler
}

func (groupHandler) Setup(sarama.ConsumerGroupSession) error {
	return nil
}

func (groupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

func (h groupHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		if err := h.handler(sess.Context(), msg.Value); err != nil {
			log.Logger.WithError(err).Error("message handler returned an error, the offset is still committed")
		}
		sess.MarkMessage(msg, "")
	}

	return nil
}

func toRecordHeaders(headers map[string]interface{}) []sarama.RecordHeader {
	recs := []sarama.RecordHeader{}
	for k, v := range headers {
		rec := sarama.RecordHeader{
			Key: []byte(k),
		}

		if str, ok := v.(string); ok {
			rec.Value = []byte(str)
		} else {
			rec.Value = []byte(fmt.Sprintf("%v", v))
		}
		recs = append(recs, rec)
	}

	return recs
}
