package prometheus

import (
	"net/http"

	"github.com/genc-murat/outbox-broker/config"
	h "github.com/genc-murat/outbox-broker/http"
	"github.com/genc-murat/outbox-broker/log"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func StartHttpServer(cfg *config.Config, db h.Pinger) {
	http.Handle("/metrics", promhttp.Handler())
	http.Handle("/healthz", h.NewHealthzHandler(cfg.GetDependencySystemAddresses(), db))

	err := http.ListenAndServe(":80", nil)
	if err != nil {
		log.Logger.Fatalf("failed to start prometheus HTTP server: %s", err)
	}
}
