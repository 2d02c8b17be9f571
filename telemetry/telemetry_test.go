package telemetry

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/alittlebrighter/homekit-thermostat/models"
)

var testUpdate = models.StateUpdate{
	Timestamp:          time.Date(2026, 10, 17, 8, 15, 0, 0, time.UTC),
	CurrentTemperature: 18,
	Humidity:           41,
	TargetTemperature:  20,
	TargetMode:         "heat",
	CurrentMode:        "heat",
	Status:             "heating",
	RelayOn:            true,
}

type MockNATS struct {
	subject string
	data    []byte
	err     error
}

func (n *MockNATS) Publish(subject string, data []byte) error {
	n.subject, n.data = subject, data
	return n.err
}

func TestNATSReporter(t *testing.T) {
	conn := new(MockNATS)
	r := newNATSReporter(conn, "", nil)
	r.Report(testUpdate)

	if conn.subject != DefaultSubject {
		t.Errorf("subject = %q", conn.subject)
	}
	var got models.StateUpdate
	if err := json.Unmarshal(conn.data, &got); err != nil {
		t.Fatal(err)
	}
	if !got.Timestamp.Equal(testUpdate.Timestamp) || got.Status != "heating" || !got.RelayOn {
		t.Errorf("published %+v", got)
	}

	conn.err = errors.New("nats: connection closed")
	r.Report(testUpdate)
}

type MockToken struct {
	mqtt.Token
	err error
}

func (t *MockToken) Wait() bool                     { return true }
func (t *MockToken) WaitTimeout(time.Duration) bool { return true }
func (t *MockToken) Error() error                   { return t.err }

type MockMQTT struct {
	mqtt.Client
	topic    string
	retained bool
	payload  []byte
	err      error
}

func (c *MockMQTT) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.topic, c.retained = topic, retained
	c.payload, _ = payload.([]byte)
	return &MockToken{err: c.err}
}

func TestMQTTReporter(t *testing.T) {
	client := new(MockMQTT)
	r := newMQTTReporter(client, "home/thermostat", nil)
	r.Report(testUpdate)

	if client.topic != "home/thermostat" || !client.retained {
		t.Errorf("topic %q retained %v", client.topic, client.retained)
	}
	if !strings.Contains(string(client.payload), `"targetTemperature":20`) {
		t.Errorf("payload %s", client.payload)
	}

	client.err = errors.New("not connected")
	r.Report(testUpdate)
}

type MockWriteAPI struct {
	api.WriteAPI
	points []*write.Point
}

func (w *MockWriteAPI) WritePoint(p *write.Point) { w.points = append(w.points, p) }
func (w *MockWriteAPI) Errors() <-chan error      { return nil }
func (w *MockWriteAPI) Flush()                    {}

func TestInfluxReporter(t *testing.T) {
	w := new(MockWriteAPI)
	r := newInfluxReporter(w, "", nil)
	r.Report(testUpdate)
	r.Close()

	if len(w.points) != 1 {
		t.Fatalf("points = %d", len(w.points))
	}
	p := w.points[0]
	if p.Name() != "thermostat" || !p.Time().Equal(testUpdate.Timestamp) {
		t.Errorf("point %s at %v", p.Name(), p.Time())
	}

	fields := map[string]interface{}{}
	for _, f := range p.FieldList() {
		fields[f.Key] = f.Value
	}
	if fields["current_temperature"] != 18.0 || fields["status"] != "heating" {
		t.Errorf("fields %v", fields)
	}
}

func TestMetrics(t *testing.T) {
	m := NewMetrics()

	m.Report(testUpdate)
	off := testUpdate
	off.RelayOn = false
	off.CurrentTemperature = 21
	m.Report(off)
	m.Report(off)

	if v := testutil.ToFloat64(m.current); v != 21 {
		t.Errorf("current = %v", v)
	}
	if v := testutil.ToFloat64(m.relay); v != 0 {
		t.Errorf("relay = %v", v)
	}
	if v := testutil.ToFloat64(m.switches); v != 1 {
		t.Errorf("switches = %v", v)
	}

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(w.Body.String(), "thermostat_target_temperature_celsius 20") {
		t.Errorf("exposition missing target:\n%s", w.Body.String())
	}
}

func TestMetricsQueueDepth(t *testing.T) {
	m := NewMetrics()
	depth := 3
	m.WatchQueue(func() int { return depth })

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(w.Body.String(), "thermostat_event_queue_depth 3") {
		t.Errorf("exposition missing queue depth:\n%s", w.Body.String())
	}
}
