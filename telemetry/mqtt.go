package telemetry

import (
	"encoding/json"
	"errors"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/alittlebrighter/homekit-thermostat/models"
)

const (
	DefaultTopic = "thermostat/state"
	mqttTimeout  = 5 * time.Second
)

var ErrMQTTTimeout = errors.New("telemetry: mqtt operation timed out")

type MQTTOptions struct {
	Broker   string
	ClientID string
	Topic    string
}

// MQTTReporter publishes retained snapshots so dashboards see the last state
// as soon as they subscribe.
type MQTTReporter struct {
	client mqtt.Client
	topic  string
	log    *zap.SugaredLogger
}

// NewMQTTReporter connects to the broker. Later connection losses are
// handled by the client's auto reconnect.
func NewMQTTReporter(opts MQTTOptions, log *zap.SugaredLogger) (*MQTTReporter, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if opts.ClientID == "" {
		opts.ClientID = "thermostat-" + time.Now().Format("150405.000")
	}

	co := mqtt.NewClientOptions()
	co.AddBroker(opts.Broker)
	co.SetClientID(opts.ClientID)
	co.SetAutoReconnect(true)
	co.SetConnectRetry(true)
	co.OnConnect = func(mqtt.Client) { log.Infow("mqtt connected", "broker", opts.Broker) }
	co.OnConnectionLost = func(_ mqtt.Client, err error) { log.Warnw("mqtt connection lost", "err", err) }

	client := mqtt.NewClient(co)
	t := client.Connect()
	if !t.WaitTimeout(mqttTimeout) {
		log.Warnw("mqtt broker not reachable yet, retrying in background", "broker", opts.Broker)
	} else if t.Error() != nil {
		return nil, t.Error()
	}

	return newMQTTReporter(client, opts.Topic, log), nil
}

func newMQTTReporter(client mqtt.Client, topic string, log *zap.SugaredLogger) *MQTTReporter {
	if topic == "" {
		topic = DefaultTopic
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &MQTTReporter{client: client, topic: topic, log: log}
}

func (r *MQTTReporter) Report(update models.StateUpdate) {
	dat, err := json.Marshal(update)
	if err != nil {
		r.log.Errorw("could not encode state", "err", err)
		return
	}

	t := r.client.Publish(r.topic, 1, true, dat)
	if !t.WaitTimeout(mqttTimeout) {
		r.log.Warnw("mqtt publish failed", "topic", r.topic, "err", ErrMQTTTimeout)
		return
	}
	if err := t.Error(); err != nil {
		r.log.Warnw("mqtt publish failed", "topic", r.topic, "err", err)
	}
}

func (r *MQTTReporter) Close() {
	r.client.Disconnect(250)
}
