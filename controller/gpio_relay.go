package controller

import (
	"sync"

	"github.com/stianeikeland/go-rpio"
	"go.uber.org/zap"
)

// GPIORelay drives a single relay coil from a Raspberry Pi GPIO pin.
type GPIORelay struct {
	mu      sync.Mutex
	heat    rpio.Pin
	on, off rpio.State
	closed  bool
	engaged bool
	log     *zap.SugaredLogger
}

// NewGPIORelay opens the GPIO memory range and sets the heat pin as an output,
// starting de-energized. Boards with an inverting driver stage set activeLow.
func NewGPIORelay(heatPin int, activeLow bool, log *zap.SugaredLogger) (*GPIORelay, error) {
	if err := rpio.Open(); err != nil {
		return nil, err
	}

	r := &GPIORelay{
		heat: rpio.Pin(heatPin),
		on:   rpio.High,
		off:  rpio.Low,
		log:  log,
	}
	if activeLow {
		r.on, r.off = rpio.Low, rpio.High
	}

	r.heat.Output()
	r.heat.Write(r.off)

	return r, nil
}

// On energizes the relay.
func (r *GPIORelay) On() error {
	return r.set(true)
}

// Off de-energizes the relay.
func (r *GPIORelay) Off() error {
	return r.set(false)
}

func (r *GPIORelay) set(engaged bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}

	level := r.off
	if engaged {
		level = r.on
	}
	r.heat.Write(level)
	r.engaged = engaged

	r.log.Infow("relay switched", "on", engaged)
	return nil
}

// IsOn reports whether the relay is energized.
func (r *GPIORelay) IsOn() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.engaged
}

// Shutdown turns the relay off and closes the GPIO connection.
func (r *GPIORelay) Shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	r.heat.Write(r.off)
	r.engaged = false
	r.closed = true

	rpio.Close()
}
