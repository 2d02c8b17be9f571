package connectivity

import "errors"

var (
	// ErrNotStarted means the wireless interface or its supplicant is not up.
	ErrNotStarted = errors.New("wifi: not started")
	// ErrConnection means the station could not associate or reach the network.
	ErrConnection = errors.New("wifi: connection failed")

	ErrNotProvisioned = errors.New("wifi: no credentials stored")
	ErrBadPOP         = errors.New("wifi: proof of possession mismatch")
)

// IsTransient reports whether err is a WiFi condition that a reconnect can
// recover from.
func IsTransient(err error) bool {
	return errors.Is(err, ErrNotStarted) || errors.Is(err, ErrConnection)
}
