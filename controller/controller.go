package controller

import "errors"

var ErrClosed = errors.New("relay: closed")

// Relay switches the heating circuit.
type Relay interface {
	On() error
	Off() error
	IsOn() bool
	Shutdown()
}
