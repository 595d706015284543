package job

import (
	"context"
	"time"

	"github.com/genc-murat/outbox-broker/config"
	"github.com/genc-murat/outbox-broker/log"
)

type PublishedDeleter interface {
	DeletePublished(ctx context.Context, olderThan time.Time) (int64, error)
}

// RunCleanup deletes published outbox records older than the configured
// retention age. It runs as a one-shot job, separate from the worker loop,
// and returns a process exit code.
func RunCleanup(ctx context.Context, store PublishedDeleter, cfg *config.Config) int {
	j := newCleanup(store, cfg.GetCleanupAge())

	if _, err := j.Execute(ctx); err != nil {
		return 1
	}

	return 0
}

type cleanup struct {
	pd  PublishedDeleter
	age time.Duration
}

func newCleanup(pd PublishedDeleter, age time.Duration) *cleanup {
	return &cleanup{
		pd:  pd,
		age: age,
	}
}

func (c *cleanup) Execute(ctx context.Context) (int64, error) {
	rows, err := c.pd.DeletePublished(ctx, time.Now().Add(-c.age))
	if err != nil {
		log.Logger.WithError(err).Error("an error occurred whilst deleting published outbox records")
		return 0, err
	}

	log.Logger.Infof("deleted %d published outbox records", rows)

	return rows, nil
}
