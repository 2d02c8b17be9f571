// Package telemetry publishes the thermostat state after each reconciliation.
// Reporter failures are logged and never interrupt control.
package telemetry

import (
	"encoding/json"

	nats "github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/alittlebrighter/homekit-thermostat/models"
)

// DefaultSubject is the NATS subject state snapshots are published on.
const DefaultSubject = "otto.thermostat.state"

type natsPublisher interface {
	Publish(subject string, data []byte) error
}

// NATSReporter publishes snapshots as JSON on a NATS subject.
type NATSReporter struct {
	conn    natsPublisher
	subject string
	log     *zap.SugaredLogger
}

func NewNATSReporter(nc *nats.Conn, subject string, log *zap.SugaredLogger) *NATSReporter {
	return newNATSReporter(nc, subject, log)
}

func newNATSReporter(conn natsPublisher, subject string, log *zap.SugaredLogger) *NATSReporter {
	if subject == "" {
		subject = DefaultSubject
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &NATSReporter{conn: conn, subject: subject, log: log}
}

func (r *NATSReporter) Report(update models.StateUpdate) {
	dat, err := json.Marshal(update)
	if err != nil {
		r.log.Errorw("could not encode state", "err", err)
		return
	}
	if err := r.conn.Publish(r.subject, dat); err != nil {
		r.log.Warnw("nats publish failed", "subject", r.subject, "err", err)
	}
}
