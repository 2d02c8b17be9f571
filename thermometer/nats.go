package thermometer

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/alittlebrighter/homekit-thermostat/models"
	"github.com/alittlebrighter/homekit-thermostat/util"
	nats "github.com/nats-io/nats.go"
)

// DefaultSubject is where remote sensors publish their temperature.
const DefaultSubject = "otto.sensor.temperature.current"

// NATSThermometer keeps the latest SensorUpdate received over NATS.
type NATSThermometer struct {
	sub    *nats.Subscription
	maxAge time.Duration
	now    func() time.Time

	mu       sync.Mutex
	last     Reading
	received time.Time
}

func NewNATSThermometer(nc *nats.Conn, subject string, maxAge time.Duration) (*NATSThermometer, error) {
	if subject == "" {
		subject = DefaultSubject
	}
	meter := &NATSThermometer{maxAge: maxAge, now: time.Now}

	var err error
	meter.sub, err = nc.Subscribe(subject, func(m *nats.Msg) {
		meter.handle(m.Data)
	})
	if err != nil {
		return nil, err
	}
	return meter, nil
}

func (meter *NATSThermometer) handle(data []byte) error {
	update := new(models.SensorUpdate)
	if err := json.Unmarshal(data, update); err != nil {
		return err
	}

	reading := Reading{Temperature: util.ToCelsius(update.Value.Degrees, update.Value.Unit)}
	if update.Humidity != nil {
		reading.Humidity, reading.HasHumidity = *update.Humidity, true
	}

	meter.mu.Lock()
	meter.last = reading
	meter.received = meter.now()
	meter.mu.Unlock()
	return nil
}

// Measure returns the latest update, failing when none arrived within maxAge.
func (meter *NATSThermometer) Measure() (Reading, error) {
	meter.mu.Lock()
	defer meter.mu.Unlock()

	if meter.received.IsZero() {
		return Reading{}, ErrNoReading
	}
	if meter.maxAge > 0 && meter.now().Sub(meter.received) > meter.maxAge {
		return Reading{}, ErrStale
	}
	return meter.last, nil
}

func (meter *NATSThermometer) Shutdown() {
	if meter.sub != nil {
		meter.sub.Unsubscribe()
	}
}
