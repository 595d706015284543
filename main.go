package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/genc-murat/outbox-broker/broker"
	"github.com/genc-murat/outbox-broker/broker/kafka"
	"github.com/genc-murat/outbox-broker/broker/nats"
	"github.com/genc-murat/outbox-broker/config"
	"github.com/genc-murat/outbox-broker/job"
	"github.com/genc-murat/outbox-broker/log"
	"github.com/genc-murat/outbox-broker/outbox"
	"github.com/genc-murat/outbox-broker/outbox/data"
	"github.com/genc-murat/outbox-broker/outbox/worker"
	"github.com/genc-murat/outbox-broker/prometheus"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.NewConfig()
	if err != nil {
		log.Logger.Fatalf("unable to create configuration: %s", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-stop
		cancel()
	}()

	db, dbClose := data.NewDB(cfg)
	defer dbClose()

	store := outbox.NewSQLStore(db, cfg.DBDriver.String(), cfg.DBOutboxTable)

	if cfg.RunCleanup {
		exitCode := job.RunCleanup(ctx, store, cfg)
		if exitCode > 0 {
			dbClose() // we call this manually because os.Exit() does not respect defer
			os.Exit(exitCode)
		}
		return
	}

	b := newBroker(cfg)
	if err = b.Start(ctx); err != nil {
		log.Logger.Fatalf("unable to start the message broker: %s", err)
	}
	defer func() {
		if err := b.Stop(); err != nil {
			log.Logger.WithError(err).Error("error stopping the message broker during shutdown")
		}
	}()

	w, err := worker.New(store, b, cfg.Outbox())
	if err != nil {
		log.Logger.Fatalf("unable to create the outbox worker: %s", err)
	}

	go prometheus.ObservePendingSize(store, ctx)
	go prometheus.ObserveFailedSize(store, ctx)
	go prometheus.StartHttpServer(cfg, db)

	if err = w.Run(ctx); err != nil && err != context.Canceled {
		log.Logger.WithError(err).Error("the outbox worker stopped unexpectedly")
	}
}

func newBroker(cfg *config.Config) broker.MessageBroker {
	switch cfg.Broker {
	case config.Nats:
		return nats.NewBroker(cfg.NatsURL)
	default:
		return kafka.NewBroker(cfg.KafkaHost, cfg.KafkaDefaultTopic, cfg.KafkaConsumerGroup, kafka.NewSaramaConfig(cfg.TLSEnable, cfg.TLSSkipVerifyPeer))
	}
}
