package outbox

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	// ErrNilMessage is returned when a caller passes a nil message to Store
	// or to the decorator's Publish.
	ErrNilMessage = errors.New("outbox: message must not be nil")
)

// Store persists outbox messages and owns the pending/failed query logic.
//
// MarkAsPublished, MarkAsFailed and IncrementRetryCount are no-ops when the
// id does not exist or the message has already reached a terminal state;
// multiple workers may process overlapping batches and the loser of that
// race must not fail.
type Store interface {
	// Store persists the message with a pending status, assigning an id when
	// none is set, and returns the persisted record.
	Store(ctx context.Context, msg *Message) (*Message, error)
	// GetPending returns up to batchSize pending messages, oldest first.
	GetPending(ctx context.Context, batchSize int) ([]*Message, error)
	// GetFailed returns up to batchSize failed messages, oldest first.
	GetFailed(ctx context.Context, batchSize int) ([]*Message, error)
	// MarkAsPublished records a successful delivery.
	MarkAsPublished(ctx context.Context, id uuid.UUID) error
	// MarkAsFailed terminally fails the message, recording the reason and
	// counting the final attempt.
	MarkAsFailed(ctx context.Context, id uuid.UUID, errorMessage string) error
	// IncrementRetryCount records a transient delivery failure, keeping the
	// message pending for the next poll cycle.
	IncrementRetryCount(ctx context.Context, id uuid.UUID, errorMessage string) error
}
