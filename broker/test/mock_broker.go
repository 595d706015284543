package test

import (
	"context"
	"reflect"
	"sync"

	"github.com/genc-murat/outbox-broker/broker"
)

type PublishedMessage struct {
	Msg  interface{}
	Opts broker.PublishOptions
}

// MockBroker records every call made against it and can be scripted to fail
// a fixed number of publishes, or all of them.
type MockBroker struct {
	sync.RWMutex
	published        []PublishedMessage
	subscribed       []broker.SubscribeOptions
	startCalls       int
	stopCalls        int
	publishErr       error
	failuresToReturn int
	alwaysFail       bool
}

func NewMockBroker() *MockBroker {
	return &MockBroker{
		published: []PublishedMessage{},
	}
}

func (b *MockBroker) Publish(ctx context.Context, msg interface{}, opts broker.PublishOptions) error {
	b.Lock()
	defer b.Unlock()

	if b.alwaysFail {
		return b.publishErr
	}

	if b.failuresToReturn > 0 {
		b.failuresToReturn--
		return b.publishErr
	}

	b.published = append(b.published, PublishedMessage{Msg: msg, Opts: opts})

	return nil
}

func (b *MockBroker) Subscribe(ctx context.Context, handler broker.Handler, opts broker.SubscribeOptions) error {
	b.Lock()
	defer b.Unlock()
	b.subscribed = append(b.subscribed, opts)

	return nil
}

func (b *MockBroker) Start(ctx context.Context) error {
	b.Lock()
	defer b.Unlock()
	b.startCalls++

	return nil
}

func (b *MockBroker) Stop() error {
	b.Lock()
	defer b.Unlock()
	b.stopCalls++

	return nil
}

// AlwaysFailWith makes every subsequent publish return err.
func (b *MockBroker) AlwaysFailWith(err error) {
	b.Lock()
	defer b.Unlock()
	b.alwaysFail = true
	b.publishErr = err
}

// FailTimesWith makes the next n publishes return err before publishes
// succeed again.
func (b *MockBroker) FailTimesWith(n int, err error) {
	b.Lock()
	defer b.Unlock()
	b.failuresToReturn = n
	b.publishErr = err
}

func (b *MockBroker) MessageWasPublished(exp interface{}) bool {
	b.RLock()
	defer b.RUnlock()
	for _, p := range b.published {
		if reflect.DeepEqual(p.Msg, exp) {
			return true
		}
	}

	return false
}

func (b *MockBroker) PublishedMessages() []PublishedMessage {
	b.RLock()
	defer b.RUnlock()
	msgs := make([]PublishedMessage, len(b.published))
	copy(msgs, b.published)

	return msgs
}

func (b *MockBroker) PublishedCount() int {
	b.RLock()
	defer b.RUnlock()
	return len(b.published)
}

func (b *MockBroker) SubscribeCount() int {
	b.RLock()
	defer b.RUnlock()
	return len(b.subscribed)
}

func (b *MockBroker) StartCalls() int {
	b.RLock()
	defer b.RUnlock()
	return b.startCalls
}

func (b *MockBroker) StopCalls() int {
	b.RLock()
	defer b.RUnlock()
	return b.stopCalls
}
