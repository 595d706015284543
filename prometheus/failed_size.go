package prometheus

import (
	"context"
	"time"

	"github.com/genc-murat/outbox-broker/log"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var outboxFailedSize prom.Gauge

type failedSizer interface {
	FailedCount(ctx context.Context) (uint, error)
}

func init() {
	outboxFailedSize = promauto.NewGauge(prom.GaugeOpts{
		Name: "outbox_failed_size",
		Help: "The number of outbox messages that exhausted their delivery attempts",
	})
}

func ObserveFailedSize(sizer failedSizer, ctx context.Context) {
	for {
		size, err := sizer.FailedCount(ctx)
		if err != nil {
			log.Logger.WithError(err).Error("an error occurred determining the number of failed outbox messages")
			time.Sleep(time.Second * 1)
			continue
		}

		select {
		case <-ctx.Done():
			return
		default:
			outboxFailedSize.Set(float64(size))

			time.Sleep(time.Second * 1)
		}
	}
}
