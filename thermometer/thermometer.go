package thermometer

import (
	"errors"
	"fmt"
	"time"

	nats "github.com/nats-io/nats.go"
)

var (
	ErrNoReading = errors.New("thermometer: no reading available")
	ErrStale     = errors.New("thermometer: reading is stale")
)

// Reading is one sample in degrees Celsius.
type Reading struct {
	Temperature float64
	Humidity    float64
	HasHumidity bool
}

// Thermometer defines the basic functions needed of a thermometer.
type Thermometer interface {
	Measure() (Reading, error)
	Shutdown()
}

// Options carries the settings of every supported thermometer type.
type Options struct {
	Type     string
	Bus      int
	Endpoint string
	Conn     *nats.Conn
	Subject  string
	MaxAge   time.Duration
}

// New returns the thermometer selected by opts.Type.
func New(opts Options) (Thermometer, error) {
	switch opts.Type {
	case "", "sht40":
		return NewSHT40(opts.Bus)
	case "mcp9808":
		return NewMCP9808(opts.Bus)
	case "web":
		return NewJSONWebService(opts.Endpoint)
	case "nats":
		if opts.Conn == nil {
			return nil, errors.New("thermometer: nats type needs a connection")
		}
		return NewNATSThermometer(opts.Conn, opts.Subject, opts.MaxAge)
	default:
		return nil, fmt.Errorf("thermometer: unknown type %q", opts.Type)
	}
}
