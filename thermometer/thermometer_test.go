package thermometer

import (
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type fakeDev struct {
	writes []byte
	reads  int
	frame  []byte
	err    error
}

func (d *fakeDev) Tx(w, r []byte) error {
	if len(w) > 0 && len(r) > 0 {
		return errors.New("combined write/read transfer")
	}
	d.writes = append(d.writes, w...)
	if len(r) > 0 {
		d.reads++
		copy(r, d.frame)
	}
	return d.err
}

func TestCRC8(t *testing.T) {
	if got := crc8([]byte{0xBE, 0xEF}); got != 0x92 {
		t.Errorf("crc8(0xBEEF) = %#x, want 0x92", got)
	}
}

func frameFor(rawT, rawRH uint16) []byte {
	t := []byte{byte(rawT >> 8), byte(rawT)}
	rh := []byte{byte(rawRH >> 8), byte(rawRH)}
	return []byte{t[0], t[1], crc8(t), rh[0], rh[1], crc8(rh)}
}

func TestSHT40Measure(t *testing.T) {
	bus := &fakeDev{frame: frameFor(0x6666, 0x8000)}
	var slept []time.Duration
	sensor, err := newSHT40(bus, func(d time.Duration) { slept = append(slept, d) }, nil)
	if err != nil {
		t.Fatal(err)
	}

	reading, err := sensor.Measure()
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(reading.Temperature-25) > 0.01 {
		t.Errorf("temperature = %f, want 25", reading.Temperature)
	}
	if !reading.HasHumidity || math.Abs(reading.Humidity-56.5) > 0.01 {
		t.Errorf("humidity = %f, want 56.5", reading.Humidity)
	}
	if len(bus.writes) != 2 || bus.writes[0] != sht40SoftReset || bus.writes[1] != sht40MeasureHigh {
		t.Errorf("unexpected commands %#v", bus.writes)
	}
	if bus.reads != 1 {
		t.Errorf("reads = %d, want 1", bus.reads)
	}
	if len(slept) != 2 || slept[1] != sht40MeasureDelay {
		t.Errorf("expected a conversion delay before the read, got %v", slept)
	}
}

func TestSHT40ReadError(t *testing.T) {
	bus := &fakeDev{frame: frameFor(0x6666, 0x8000)}
	sensor, _ := newSHT40(bus, func(time.Duration) {}, nil)
	bus.err = errors.New("nack")

	if _, err := sensor.Measure(); err == nil {
		t.Error("expected bus error")
	}
}

func TestSHT40RejectsBadChecksum(t *testing.T) {
	frame := frameFor(0x6666, 0x8000)
	frame[2] ^= 0xFF
	sensor, _ := newSHT40(&fakeDev{frame: frame}, func(time.Duration) {}, nil)

	if _, err := sensor.Measure(); !errors.Is(err, ErrCRC) {
		t.Errorf("expected ErrCRC, got %v", err)
	}
}

func TestSHT40ClampsHumidity(t *testing.T) {
	reading, err := decodeSHT40(frameFor(0x6666, 0xFFFF))
	if err != nil {
		t.Fatal(err)
	}
	if reading.Humidity != 100 {
		t.Errorf("humidity = %f, want 100", reading.Humidity)
	}
}

func TestJSONWebService(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"temperature":68,"units":"Fahrenheit","humidity":40}`))
	}))
	defer srv.Close()

	meter, err := NewJSONWebService(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	reading, err := meter.Measure()
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(reading.Temperature-20) > 0.001 || reading.Humidity != 40 {
		t.Errorf("unexpected reading %+v", reading)
	}
}

func TestJSONWebServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	if _, err := NewJSONWebService(srv.URL); err == nil {
		t.Error("expected error from failing endpoint")
	}
}

func TestNATSThermometerStaleness(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	meter := &NATSThermometer{maxAge: time.Minute, now: func() time.Time { return now }}

	if _, err := meter.Measure(); !errors.Is(err, ErrNoReading) {
		t.Fatalf("expected ErrNoReading, got %v", err)
	}

	if err := meter.handle([]byte(`{"location":"hall","type":"temperature","value":{"degrees":21.5,"unit":"Celsius"}}`)); err != nil {
		t.Fatal(err)
	}
	reading, err := meter.Measure()
	if err != nil || reading.Temperature != 21.5 || reading.HasHumidity {
		t.Fatalf("unexpected reading %+v, %v", reading, err)
	}

	now = now.Add(2 * time.Minute)
	if _, err := meter.Measure(); !errors.Is(err, ErrStale) {
		t.Errorf("expected ErrStale, got %v", err)
	}
}

func TestNewUnknownType(t *testing.T) {
	if _, err := New(Options{Type: "thermocouple"}); err == nil {
		t.Error("expected error for unknown type")
	}
}
