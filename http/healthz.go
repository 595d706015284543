package http

import (
	"net"
	"net/http"
	"time"

	"github.com/genc-murat/outbox-broker/log"
)

const dialTimeout = 1 * time.Second

type Pinger interface {
	Ping() error
}

// healthzHandler reports liveness from a database ping; with ?readiness=1 it
// also dials the broker addresses the relay depends on.
type healthzHandler struct {
	checkAddr []string
	db        Pinger
}

func NewHealthzHandler(checkAddr []string, db Pinger) http.Handler {
	return &healthzHandler{
		checkAddr: checkAddr,
		db:        db,
	}
}

func (h healthzHandler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	healthy := h.checkDatabase()
	if req.URL.Query().Get("readiness") == "1" {
		healthy = healthy && h.checkBrokerAddresses()
	}

	if healthy {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
}

func (h healthzHandler) checkDatabase() bool {
	if err := h.db.Ping(); err != nil {
		log.Logger.Debug("database is not available or there is a problem with connectivity")
		return false
	}
	return true
}

func (h healthzHandler) checkBrokerAddresses() bool {
	healthy := true
	for _, host := range h.checkAddr {
		log.Logger.Debugf("checking connectivity to %s", host)
		conn, err := net.DialTimeout("tcp", host, dialTimeout)
		if err != nil {
			healthy = false
			log.Logger.Debugf("unable to connect to %s", host)
		} else {
			_ = conn.Close()
		}
	}
	return healthy
}
