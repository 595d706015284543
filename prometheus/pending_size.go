package prometheus

import (
	"context"
	"time"

	"github.com/genc-murat/outbox-broker/log"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var outboxPendingSize prom.Gauge

type pendingSizer interface {
	PendingCount(ctx context.Context) (uint, error)
}

func init() {
	outboxPendingSize = promauto.NewGauge(prom.GaugeOpts{
		Name: "outbox_pending_size",
		Help: "The current number of outbox messages awaiting publication",
	})
}

func ObservePendingSize(sizer pendingSizer, ctx context.Context) {
	for {
		size, err := sizer.PendingCount(ctx)
		if err != nil {
			log.Logger.WithError(err).Error("an error occurred determining the number of pending outbox messages")
			time.Sleep(time.Second * 1)
			continue
		}

		select {
		case <-ctx.Done():
			return
		default:
			outboxPendingSize.Set(float64(size))

			time.Sleep(time.Second * 1)
		}
	}
}
