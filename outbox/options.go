package outbox

import (
	"fmt"
	"time"
)

// MinPollInterval is the floor applied to the worker polling interval.
const MinPollInterval = 100 * time.Millisecond

// Options configure the outbox decorator and worker.
type Options struct {
	// Enabled routes publishes through the store when true; when false the
	// decorator delegates straight to the inner broker.
	Enabled bool
	// BatchSize is the maximum number of messages fetched per poll cycle.
	BatchSize int
	// PollInterval is the sleep between poll cycles, never below MinPollInterval.
	PollInterval time.Duration
	// MaxRetryAttempts bounds delivery attempts before a message is marked failed.
	MaxRetryAttempts int
	// RetryBaseDelay seeds the exponential backoff between retried deliveries.
	RetryBaseDelay time.Duration
}

// Validate fails fast on option values the worker cannot run with.
func (o Options) Validate() error {
	if o.BatchSize < 1 {
		return fmt.Errorf("outbox: batch size must be greater than zero, got %d", o.BatchSize)
	}

	if o.MaxRetryAttempts < 1 {
		return fmt.Errorf("outbox: max retry attempts must be greater than zero, got %d", o.MaxRetryAttempts)
	}

	if o.RetryBaseDelay <= 0 {
		return fmt.Errorf("outbox: retry base delay must be greater than zero, got %s", o.RetryBaseDelay)
	}

	if o.PollInterval < MinPollInterval {
		return fmt.Errorf("outbox: poll interval must be at least %s, got %s", MinPollInterval, o.PollInterval)
	}

	return nil
}
