package outbox

import (
	"context"
	"errors"
	"testing"

	"github.com/genc-murat/outbox-broker/broker"
	brokertest "github.com/genc-murat/outbox-broker/broker/test"
)

type productCreated struct {
	Sku string `json:"sku"`
}

type failingSerializer struct{}

func (failingSerializer) Serialize(msg interface{}) ([]byte, error) {
	return nil, errors.New("oops")
}

func TestBrokerDecorator_PublishWhenEnabled(t *testing.T) {
	inner := brokertest.NewMockBroker()
	store := NewMemoryStore()
	d := NewBrokerDecorator(inner, store, Options{Enabled: true})

	err := d.Publish(context.Background(), &productCreated{Sku: "abc"}, broker.PublishOptions{
		RoutingKey: "product.created",
		Exchange:   "events",
		Headers:    map[string]interface{}{"source": "catalog"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	if inner.PublishedCount() != 0 {
		t.Errorf("expected no direct publish to the inner broker, got %d", inner.PublishedCount())
	}

	pending, _ := store.GetPending(context.Background(), 10)
	if len(pending) != 1 {
		t.Fatalf("expected 1 stored message, got %d", len(pending))
	}

	msg := pending[0]
	if msg.MessageType != "outbox.productCreated" {
		t.Errorf("unexpected message type: %q", msg.MessageType)
	}

	if string(msg.Payload) != `{"sku":"abc"}` {
		t.Errorf("unexpected payload: %s", msg.Payload)
	}

	if msg.RoutingKey != "product.created" || msg.Exchange != "events" {
		t.Errorf("publish options were not copied onto the stored message: %+v", msg)
	}

	if msg.Headers["source"] != "catalog" {
		t.Errorf("headers were not copied onto the stored message: %v", msg.Headers)
	}
}

func TestBrokerDecorator_PublishWhenDisabled(t *testing.T) {
	inner := brokertest.NewMockBroker()
	store := NewMemoryStore()
	d := NewBrokerDecorator(inner, store, Options{Enabled: false})

	msg := &productCreated{Sku: "abc"}
	if err := d.Publish(context.Background(), msg, broker.PublishOptions{}); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	if !inner.MessageWasPublished(msg) {
		t.Error("expected the message to be delegated to the inner broker")
	}

	pending, _ := store.GetPending(context.Background(), 10)
	if len(pending) != 0 {
		t.Errorf("expected the outbox store to remain empty, got %d messages", len(pending))
	}
}

func TestBrokerDecorator_PublishWithNilMessage(t *testing.T) {
	d := NewBrokerDecorator(brokertest.NewMockBroker(), NewMemoryStore(), Options{Enabled: true})

	if err := d.Publish(context.Background(), nil, broker.PublishOptions{}); err != ErrNilMessage {
		t.Errorf("expected ErrNilMessage, got %v", err)
	}
}

func TestBrokerDecorator_PublishWithSerializationError(t *testing.T) {
	store := NewMemoryStore()
	d := NewBrokerDecoratorWithSerializer(brokertest.NewMockBroker(), store, failingSerializer{}, Options{Enabled: true})

	if err := d.Publish(context.Background(), &productCreated{}, broker.PublishOptions{}); err == nil {
		t.Error("expected a serialization error to propagate to the caller")
	}

	pending, _ := store.GetPending(context.Background(), 10)
	if len(pending) != 0 {
		t.Errorf("expected nothing to be stored after a serialization failure, got %d messages", len(pending))
	}
}

func TestBrokerDecorator_Passthroughs(t *testing.T) {
	inner := brokertest.NewMockBroker()
	d := NewBrokerDecorator(inner, NewMemoryStore(), Options{Enabled: true})
	ctx := context.Background()

	if err := d.Subscribe(ctx, func(ctx context.Context, body []byte) error { return nil }, broker.SubscribeOptions{}); err != nil {
		t.Errorf("unexpected error: %s", err)
	}

	if err := d.Start(ctx); err != nil {
		t.Errorf("unexpected error: %s", err)
	}

	if err := d.Stop(); err != nil {
		t.Errorf("unexpected error: %s", err)
	}

	if inner.SubscribeCount() != 1 || inner.StartCalls() != 1 || inner.StopCalls() != 1 {
		t.Errorf("expected subscribe/start/stop to pass through to the inner broker")
	}
}
