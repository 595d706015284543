package test

import (
	"context"
	"errors"
	"sync"

	"github.com/genc-murat/outbox-broker/outbox"

	"github.com/google/uuid"
)

// MockStore wraps a real in-memory store with call counting and scriptable
// polling outages, for exercising the worker's failure paths.
type MockStore struct {
	sync.RWMutex
	inner             *outbox.MemoryStore
	getPendingCalls   int
	markPublishedIds  []uuid.UUID
	markFailedIds     []uuid.UUID
	incrementRetryIds []uuid.UUID
	returnError       bool
}

func NewMockStore() *MockStore {
	return &MockStore{
		inner: outbox.NewMemoryStore(),
	}
}

func (s *MockStore) Store(ctx context.Context, msg *outbox.Message) (*outbox.Message, error) {
	return s.inner.Store(ctx, msg)
}

func (s *MockStore) GetPending(ctx context.Context, batchSize int) ([]*outbox.Message, error) {
	s.Lock()
	s.getPendingCalls++
	fail := s.returnError
	s.Unlock()

	if fail {
		return nil, errors.New("oops")
	}

	return s.inner.GetPending(ctx, batchSize)
}

func (s *MockStore) GetFailed(ctx context.Context, batchSize int) ([]*outbox.Message, error) {
	return s.inner.GetFailed(ctx, batchSize)
}

func (s *MockStore) MarkAsPublished(ctx context.Context, id uuid.UUID) error {
	s.Lock()
	s.markPublishedIds = append(s.markPublishedIds, id)
	s.Unlock()

	return s.inner.MarkAsPublished(ctx, id)
}

func (s *MockStore) MarkAsFailed(ctx context.Context, id uuid.UUID, errorMessage string) error {
	s.Lock()
	s.markFailedIds = append(s.markFailedIds, id)
	s.Unlock()

	return s.inner.MarkAsFailed(ctx, id, errorMessage)
}

func (s *MockStore) IncrementRetryCount(ctx context.Context, id uuid.UUID, errorMessage string) error {
	s.Lock()
	s.incrementRetryIds = append(s.incrementRetryIds, id)
	s.Unlock()

	return s.inner.IncrementRetryCount(ctx, id, errorMessage)
}

func (s *MockStore) ReturnErrors() {
	s.Lock()
	defer s.Unlock()
	s.returnError = true
}

func (s *MockStore) StopReturningErrors() {
	s.Lock()
	defer s.Unlock()
	s.returnError = false
}

func (s *MockStore) GetPendingCallCount() int {
	s.RLock()
	defer s.RUnlock()
	return s.getPendingCalls
}

func (s *MockStore) MarkPublishedCallCount() int {
	s.RLock()
	defer s.RUnlock()
	return len(s.markPublishedIds)
}

func (s *MockStore) MarkFailedCallCount() int {
	s.RLock()
	defer s.RUnlock()
	return len(s.markFailedIds)
}

func (s *MockStore) IncrementRetryCallCount() int {
	s.RLock()
	defer s.RUnlock()
	return len(s.incrementRetryIds)
}
