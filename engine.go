package thermostat

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/alittlebrighter/homekit-thermostat/controller"
	"github.com/alittlebrighter/homekit-thermostat/models"
	tmeter "github.com/alittlebrighter/homekit-thermostat/thermometer"
	"github.com/alittlebrighter/homekit-thermostat/util"
	"go.uber.org/zap"
)

var ErrTempReading = errors.New("could not read temperature")

// Accessory is the remote-facing owner of the characteristic values.
type Accessory interface {
	State() State
	SetCurrentTemp(r tmeter.Reading)
	SetTargetTemp(t float64)
	SetTargetMode(m Mode)
	SetCurrentMode(m Mode)
}

// Display receives the numbers shown on the main screen.
type Display interface {
	SetTargetTemp(text string)
	SetCurrentTemp(text string)
	SetStatus(text string)
}

// Reporter receives a snapshot after every reconciliation.
type Reporter interface {
	Report(update models.StateUpdate)
}

// FaultHandler takes errors the engine cannot recover from.
type FaultHandler interface {
	Fatal(err error)
}

// Options configure an Engine.
type Options struct {
	Limits       Limits
	PollInterval time.Duration
	MaxErrors    uint8
	SettingsFile string
	Reporters    []Reporter
	Fault        FaultHandler
	Log          *zap.SugaredLogger
}

// Engine reconciles the accessory state, the sensor and the relay. Every
// trigger (poll, remote write, button) goes through Refresh.
type Engine struct {
	accessory Accessory
	relay     controller.Relay
	sensor    tmeter.Thermometer
	display   Display
	opts      Options
	log       *zap.SugaredLogger

	// mu covers read inputs -> decide -> relay -> notify.
	mu         sync.Mutex
	errorCount uint8

	saveMu sync.Mutex
}

func NewEngine(accessory Accessory, relay controller.Relay, sensor tmeter.Thermometer, display Display, opts Options) *Engine {
	if opts.Log == nil {
		opts.Log = zap.NewNop().Sugar()
	}
	if opts.Limits.Step == 0 {
		opts.Limits.Step = 1
	}
	return &Engine{
		accessory: accessory,
		relay:     relay,
		sensor:    sensor,
		display:   display,
		opts:      opts,
		log:       opts.Log,
	}
}

// Refresh re-evaluates the decision from the current accessory state and
// applies it: relay first, then the accessory's current mode, then the panel.
func (e *Engine) Refresh() error {
	return e.reconcile(nil)
}

// reconcile runs adjust, if any, and the decision under mu, then updates the
// panel and the reporters.
func (e *Engine) reconcile(adjust func()) error {
	e.mu.Lock()
	if adjust != nil {
		adjust()
	}
	state, status, err := e.apply()
	e.mu.Unlock()
	if err != nil {
		return err
	}

	e.show(state, status)
	e.report(state, status)
	return nil
}

func (e *Engine) apply() (State, Status, error) {
	state := e.accessory.State()

	if target := e.opts.Limits.Clamp(state.TargetTemperature); target != state.TargetTemperature {
		e.log.Warnw("target temperature out of range, clamping",
			"requested", state.TargetTemperature, "target", target)
		e.accessory.SetTargetTemp(target)
		state.TargetTemperature = target
	}

	decision := Reconcile(state.TargetTemperature, state.TargetMode, state.CurrentTemperature)
	wasOn := e.relay.IsOn()
	on, status := decision.Resolve(wasOn)

	if on != wasOn {
		if err := e.switchRelay(on); err != nil {
			return state, status, err
		}
		e.log.Infow("relay changed",
			"on", on,
			"current", state.CurrentTemperature,
			"target", state.TargetTemperature,
			"mode", state.TargetMode)
	}

	mode := ModeOff
	if on {
		mode = ModeHeat
	}
	if mode != state.CurrentMode {
		e.accessory.SetCurrentMode(mode)
		state.CurrentMode = mode
	}

	return state, status, nil
}

func (e *Engine) switchRelay(on bool) error {
	var err error
	if on {
		err = e.relay.On()
	} else {
		err = e.relay.Off()
	}
	if err != nil {
		return fmt.Errorf("switch relay on=%v: %w", on, err)
	}
	return nil
}

func (e *Engine) show(state State, status Status) {
	if e.display == nil {
		return
	}
	e.display.SetTargetTemp(util.FormatTemp(state.TargetTemperature))
	e.display.SetCurrentTemp(util.FormatTemp(state.CurrentTemperature))
	e.display.SetStatus(status.String())
}

func (e *Engine) report(state State, status Status) {
	if len(e.opts.Reporters) == 0 {
		return
	}
	update := models.StateUpdate{
		Timestamp:          time.Now(),
		CurrentTemperature: state.CurrentTemperature,
		Humidity:           state.Humidity,
		TargetTemperature:  state.TargetTemperature,
		TargetMode:         state.TargetMode.String(),
		CurrentMode:        state.CurrentMode.String(),
		Status:             status.String(),
		RelayOn:            state.CurrentMode == ModeHeat,
	}
	for _, r := range e.opts.Reporters {
		r.Report(update)
	}
}

// Poll takes a sensor reading, publishes it to the accessory and reconciles.
func (e *Engine) Poll() error {
	reading, err := e.sensor.Measure()
	if err != nil {
		return e.handleError(err)
	}

	e.mu.Lock()
	e.errorCount = 0
	e.mu.Unlock()

	e.log.Infow("temperature measured",
		"temperature", reading.Temperature,
		"humidity", reading.Humidity)
	e.accessory.SetCurrentTemp(reading)

	return e.Refresh()
}

// handleError keeps the relay off while readings fail. Failures beyond
// MaxErrors are returned to the caller as fatal.
func (e *Engine) handleError(readErr error) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.errorCount++
	if e.errorCount > e.opts.MaxErrors {
		return fmt.Errorf("%w: %v", ErrTempReading, readErr)
	}

	e.log.Warnw("temperature reading failed",
		"err", readErr,
		"failures", e.errorCount,
		"max", e.opts.MaxErrors)

	if e.relay.IsOn() {
		if err := e.switchRelay(false); err != nil {
			return err
		}
	}
	if e.accessory.State().CurrentMode != ModeOff {
		e.accessory.SetCurrentMode(ModeOff)
	}
	return nil
}

// Run polls the sensor every PollInterval until ctx is cancelled. A failing
// poll is handed to the fault handler and stops the loop.
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := e.Poll(); err != nil {
				e.fatal(err)
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// HandleRemoteUpdate is registered as the accessory's remote write callback.
func (e *Engine) HandleRemoteUpdate(state State) {
	e.log.Infow("remote update",
		"target", state.TargetTemperature,
		"mode", state.TargetMode)

	if err := e.Refresh(); err != nil {
		e.fatal(err)
		return
	}
	e.saveSettings()
}

// AdjustTarget moves the target one step and writes it back to the accessory
// in the same critical section as the reconciliation that follows.
func (e *Engine) AdjustTarget(b Button) {
	err := e.reconcile(func() {
		target := e.accessory.State().TargetTemperature
		switch b {
		case ButtonIncrease:
			target += e.opts.Limits.Step
		case ButtonDecrease:
			target -= e.opts.Limits.Step
		}
		e.accessory.SetTargetTemp(e.opts.Limits.Clamp(target))
	})
	if err != nil {
		e.fatal(err)
		return
	}
	e.saveSettings()
}

// RestoreSettings applies the saved target to the accessory. A missing
// settings file is not an error.
func (e *Engine) RestoreSettings() error {
	if e.opts.SettingsFile == "" {
		return nil
	}
	settings, err := LoadSettings(e.opts.SettingsFile)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}

	e.accessory.SetTargetTemp(e.opts.Limits.Clamp(settings.TargetTemperature))
	e.accessory.SetTargetMode(settings.TargetMode)
	return nil
}

func (e *Engine) saveSettings() {
	if e.opts.SettingsFile == "" {
		return
	}
	state := e.accessory.State()

	e.saveMu.Lock()
	defer e.saveMu.Unlock()
	err := SaveSettings(e.opts.SettingsFile, Settings{
		TargetTemperature: state.TargetTemperature,
		TargetMode:        state.TargetMode,
	})
	if err != nil {
		e.log.Errorw("could not save settings", "err", err)
	}
}

func (e *Engine) fatal(err error) {
	if e.opts.Fault == nil {
		e.log.Errorw("unhandled engine error", "err", err)
		return
	}
	e.opts.Fault.Fatal(err)
}
