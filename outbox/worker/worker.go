package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/genc-murat/outbox-broker/broker"
	"github.com/genc-murat/outbox-broker/log"
	"github.com/genc-murat/outbox-broker/outbox"

	"github.com/sirupsen/logrus"
)

// maxBackoff caps the exponential retry delay.
const maxBackoff = time.Minute

// Worker is the background dispatcher completing deliveries for stored
// outbox messages. One Worker runs a sequential poll-process-sleep loop;
// multiple replicas may run against a shared durable store because the store
// keeps the terminal transitions idempotent.
type Worker struct {
	store  outbox.Store
	broker broker.MessageBroker
	opts   outbox.Options
}

// New builds a Worker, clamping the polling interval to the supported
// minimum and rejecting options the loop cannot run with.
func New(store outbox.Store, b broker.MessageBroker, opts outbox.Options) (*Worker, error) {
	if opts.PollInterval < outbox.MinPollInterval {
		opts.PollInterval = outbox.MinPollInterval
	}

	if err := opts.Validate(); err != nil {
		return nil, err
	}

	return &Worker{
		store:  store,
		broker: b,
		opts:   opts,
	}, nil
}

// Run polls the store until ctx is cancelled. Errors from the store or the
// broker never escape this loop; they are logged or recorded on the message.
func (w *Worker) Run(ctx context.Context) error {
	log.Logger.WithFields(logrus.Fields{
		"batch_size":    w.opts.BatchSize,
		"poll_interval": w.opts.PollInterval.String(),
	}).Info("starting outbox worker")

	for {
		w.processBatch(ctx)

		if !sleepContext(ctx, w.opts.PollInterval) {
			log.Logger.Info("outbox worker stopped")
			return ctx.Err()
		}
	}
}

func (w *Worker) processBatch(ctx context.Context) {
	msgs, err := w.store.GetPending(ctx, w.opts.BatchSize)
	if err != nil {
		log.Logger.WithError(err).Error("an unexpected error occurred when polling the outbox")
		return
	}

	for _, msg := range msgs {
		// finish the in-flight message on cancellation, but never start
		// another one
		if ctx.Err() != nil {
			return
		}
		w.processMessage(ctx, msg)
	}
}

func (w *Worker) processMessage(ctx context.Context, msg *outbox.Message) {
	logger := log.Logger.WithFields(logrus.Fields{
		"message_id":   msg.Id.String(),
		"message_type": msg.MessageType,
		"retry_count":  msg.RetryCount,
	})

	if msg.RetryCount >= w.opts.MaxRetryAttempts {
		reason := fmt.Sprintf("Exceeded maximum retry attempts (%d)", w.opts.MaxRetryAttempts)
		if err := w.store.MarkAsFailed(ctx, msg.Id, reason); err != nil {
			logger.WithError(err).Error("error marking an exhausted message as failed")
			return
		}
		logger.Warn("message exceeded the maximum retry attempts and was marked as failed")
		return
	}

	if msg.RetryCount > 0 {
		if !sleepContext(ctx, calculateBackoff(w.opts.RetryBaseDelay, msg.RetryCount)) {
			return
		}
	}

	logger.Debug("sending outbox message to the broker")

	err := w.broker.Publish(ctx, json.RawMessage(msg.Payload), broker.PublishOptions{
		RoutingKey: msg.RoutingKey,
		Exchange:   msg.Exchange,
		Headers:    msg.Headers,
	})
	if err == nil {
		if err = w.store.MarkAsPublished(ctx, msg.Id); err != nil {
			logger.WithError(err).Error("error marking a delivered message as published")
		}
		return
	}

	logger.WithError(err).Debug("error encountered whilst publishing an outbox message to the broker")

	if msg.RetryCount+1 >= w.opts.MaxRetryAttempts {
		if err = w.store.MarkAsFailed(ctx, msg.Id, err.Error()); err != nil {
			logger.WithError(err).Error("error marking an undeliverable message as failed")
		}
		return
	}

	if err = w.store.IncrementRetryCount(ctx, msg.Id, err.Error()); err != nil {
		logger.WithError(err).Error("error recording a failed delivery attempt")
	}
}

// calculateBackoff doubles the base delay for every attempt after the first,
// so retryCount 1 waits base, 2 waits 2*base and so on, capped at maxBackoff.
func calculateBackoff(base time.Duration, retryCount int) time.Duration {
	if retryCount < 1 {
		return 0
	}

	d := base
	for i := 1; i < retryCount; i++ {
		d *= 2
		if d >= maxBackoff {
			return maxBackoff
		}
	}

	if d > maxBackoff {
		return maxBackoff
	}

	return d
}

// sleepContext waits for d, returning false when ctx is cancelled before the
// wait completes.
func sleepContext(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
