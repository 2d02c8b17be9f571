// Package fault decides between reconnecting and restarting the device.
package fault

import (
	"os"
	"sync"

	"github.com/alittlebrighter/homekit-thermostat/connectivity"
	"github.com/alittlebrighter/homekit-thermostat/controller"
	"go.uber.org/zap"
)

// Handler turns unrecoverable errors into a process exit. The supervisor
// (systemd Restart=always) brings the daemon back up in a clean state.
type Handler struct {
	relay controller.Relay
	log   *zap.SugaredLogger
	exit  func(code int)
	once  sync.Once
}

func NewHandler(relay controller.Relay, log *zap.SugaredLogger) *Handler {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Handler{relay: relay, log: log, exit: os.Exit}
}

// Check returns true for nil and transient WiFi errors, which the caller
// recovers from by reconnecting. Anything else is fatal.
func (h *Handler) Check(err error) bool {
	if err == nil {
		return true
	}
	if connectivity.IsTransient(err) {
		h.log.Warnw("wifi error, reconnecting", "err", err)
		return true
	}
	h.Fatal(err)
	return false
}

// Fatal leaves the heating off and exits. Only the first call has an effect.
func (h *Handler) Fatal(err error) {
	h.once.Do(func() {
		h.log.Errorw("fatal error, restarting", "err", err)
		if h.relay != nil {
			if offErr := h.relay.Off(); offErr != nil {
				h.log.Errorw("could not switch relay off", "err", offErr)
			}
			h.relay.Shutdown()
		}
		h.log.Sync()
		h.exit(1)
	})
}
