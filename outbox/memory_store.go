package outbox

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// MemoryStore is a mutex-guarded in-process Store. It is intended for tests
// and single-process scenarios; it is not safe to share across processes.
type MemoryStore struct {
	mu       sync.RWMutex
	seq      uint64
	messages map[uuid.UUID]*memoryRecord
}

// memoryRecord pairs the message with an insertion sequence so that reads
// stay FIFO-stable even when two messages share a creation timestamp.
type memoryRecord struct {
	seq uint64
	msg *Message
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		messages: map[uuid.UUID]*memoryRecord{},
	}
}

func (s *MemoryStore) Store(ctx context.Context, msg *Message) (*Message, error) {
	if msg == nil {
		return nil, ErrNilMessage
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	m := msg.copy()
	if m.Id == uuid.Nil {
		m.Id = uuid.New()
	}

	if _, exists := s.messages[m.Id]; exists {
		return nil, errors.Errorf("outbox: a message with id %s is already stored", m.Id)
	}

	m.Status = StatusPending
	m.CreatedAt = time.Now().In(time.UTC)

	s.seq++
	s.messages[m.Id] = &memoryRecord{seq: s.seq, msg: m}

	return m.copy(), nil
}

func (s *MemoryStore) GetPending(ctx context.Context, batchSize int) ([]*Message, error) {
	return s.getByStatus(StatusPending, batchSize), nil
}

func (s *MemoryStore) GetFailed(ctx context.Context, batchSize int) ([]*Message, error) {
	return s.getByStatus(StatusFailed, batchSize), nil
}

func (s *MemoryStore) MarkAsPublished(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.messages[id]
	if !ok || rec.msg.Status.Terminal() {
		return nil
	}

	rec.msg.Status = StatusPublished
	rec.msg.PublishedAt.Time = time.Now().In(time.UTC)
	rec.msg.PublishedAt.Valid = true

	return nil
}

func (s *MemoryStore) MarkAsFailed(ctx context.Context, id uuid.UUID, errorMessage string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.messages[id]
	if !ok || rec.msg.Status.Terminal() {
		return nil
	}

	rec.msg.Status = StatusFailed
	rec.msg.LastError = errorMessage
	rec.msg.RetryCount++

	return nil
}

func (s *MemoryStore) IncrementRetryCount(ctx context.Context, id uuid.UUID, errorMessage string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.messages[id]
	if !ok || rec.msg.Status.Terminal() {
		return nil
	}

	rec.msg.RetryCount++
	rec.msg.LastError = errorMessage

	return nil
}

func (s *MemoryStore) PendingCount(ctx context.Context) (uint, error) {
	return s.countByStatus(StatusPending), nil
}

func (s *MemoryStore) FailedCount(ctx context.Context) (uint, error) {
	return s.countByStatus(StatusFailed), nil
}

// DeletePublished removes published messages whose publication time is at or
// before olderThan, returning the number of removed records. Retention is an
// operational concern that lives outside the worker loop.
func (s *MemoryStore) DeletePublished(ctx context.Context, olderThan time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for id, rec := range s.messages {
		if rec.msg.Status == StatusPublished && rec.msg.PublishedAt.Valid && !rec.msg.PublishedAt.Time.After(olderThan) {
			delete(s.messages, id)
			deleted++
		}
	}

	return deleted, nil
}

func (s *MemoryStore) getByStatus(status Status, batchSize int) []*Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recs := make([]*memoryRecord, 0, len(s.messages))
	for _, rec := range s.messages {
		if rec.msg.Status == status {
			recs = append(recs, rec)
		}
	}

	sort.Slice(recs, func(i, j int) bool {
		if recs[i].msg.CreatedAt.Equal(recs[j].msg.CreatedAt) {
			return recs[i].seq < recs[j].seq
		}
		return recs[i].msg.CreatedAt.Before(recs[j].msg.CreatedAt)
	})

	if batchSize < 0 {
		batchSize = 0
	}
	if batchSize < len(recs) {
		recs = recs[:batchSize]
	}

	msgs := make([]*Message, 0, len(recs))
	for _, rec := range recs {
		msgs = append(msgs, rec.msg.copy())
	}

	return msgs
}

func (s *MemoryStore) countByStatus(status Status) uint {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count uint
	for _, rec := range s.messages {
		if rec.msg.Status == status {
			count++
		}
	}

	return count
}
