// Package homekit exposes the thermostat as a HomeKit accessory.
package homekit

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/brutella/hap"
	"github.com/brutella/hap/accessory"
	"github.com/brutella/hap/characteristic"
	"go.uber.org/zap"

	thermostat "github.com/alittlebrighter/homekit-thermostat"
	tmeter "github.com/alittlebrighter/homekit-thermostat/thermometer"
)

var ErrAlreadyRegistered = errors.New("homekit: remote update callback already registered")

// current heating/cooling state values
const (
	currentOff  = 0
	currentHeat = 1
)

// Accessory owns the characteristic values shared with HomeKit controllers.
type Accessory struct {
	name     string
	acc      *accessory.Thermostat
	humidity *characteristic.CurrentRelativeHumidity
	limits   thermostat.Limits
	server   *hap.Server
	log      *zap.SugaredLogger

	mu       sync.Mutex
	onUpdate func(thermostat.State)

	startOnce sync.Once
}

// New builds the accessory and its HAP server. The server is not started.
func New(cfg thermostat.HomeKitConfig, limits thermostat.Limits, target float64, log *zap.SugaredLogger) (*Accessory, error) {
	a := newAccessory(cfg, limits, target, log)

	server, err := hap.NewServer(hap.NewFsStore(cfg.StoragePath), a.acc.A)
	if err != nil {
		return nil, fmt.Errorf("create hap server: %w", err)
	}
	server.Pin = cfg.Pin
	if cfg.Port > 0 {
		server.Addr = fmt.Sprintf(":%d", cfg.Port)
	}
	a.server = server

	return a, nil
}

func newAccessory(cfg thermostat.HomeKitConfig, limits thermostat.Limits, target float64, log *zap.SugaredLogger) *Accessory {
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	info := accessory.Info{
		Name:         cfg.Name,
		Manufacturer: cfg.Manufacturer,
		SerialNumber: cfg.Serial,
		Model:        cfg.Model,
		Firmware:     cfg.Firmware,
	}
	acc := accessory.NewThermostat(info)

	t := acc.Thermostat
	t.TargetTemperature.SetMinValue(limits.Min)
	t.TargetTemperature.SetMaxValue(limits.Max)
	t.TargetTemperature.SetStepValue(limits.Step)
	t.TargetTemperature.SetValue(limits.Clamp(target))

	humidity := characteristic.NewCurrentRelativeHumidity()
	t.AddC(humidity.C)

	a := &Accessory{
		name:     cfg.Name,
		acc:      acc,
		humidity: humidity,
		limits:   limits,
		log:      log,
	}
	t.TargetTemperature.OnValueRemoteUpdate(a.remoteTarget)
	t.TargetHeatingCoolingState.OnValueRemoteUpdate(a.remoteMode)

	return a
}

// OnRemoteUpdate registers the callback run after a controller writes the
// target temperature or mode. Only one callback may be registered.
func (a *Accessory) OnRemoteUpdate(fn func(thermostat.State)) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.onUpdate != nil {
		return ErrAlreadyRegistered
	}
	a.onUpdate = fn
	return nil
}

func (a *Accessory) remoteTarget(v float64) {
	if clamped := a.limits.Clamp(v); clamped != v {
		a.log.Warnw("remote target out of range", "requested", v, "target", clamped)
		a.acc.Thermostat.TargetTemperature.SetValue(clamped)
	}
	a.notify()
}

func (a *Accessory) remoteMode(v int) {
	mode := thermostat.ModeFromCharacteristic(v)
	if mode == thermostat.ModeUnsupported {
		a.log.Warnw("unsupported mode requested, treating as off", "value", v)
	}
	a.notify()
}

func (a *Accessory) notify() {
	a.mu.Lock()
	fn := a.onUpdate
	a.mu.Unlock()

	if fn != nil {
		fn(a.State())
	}
}

// Start serves the accessory until ctx ends. Only the first call starts the
// server.
func (a *Accessory) Start(ctx context.Context) error {
	if a.server == nil {
		return errors.New("homekit: no server")
	}
	a.startOnce.Do(func() {
		a.log.Infow("starting homekit server", "name", a.name, "addr", a.server.Addr)
		go func() {
			if err := a.server.ListenAndServe(ctx); err != nil && ctx.Err() == nil {
				a.log.Errorw("homekit server stopped", "err", err)
			}
		}()
	})
	return nil
}

func (a *Accessory) State() thermostat.State {
	t := a.acc.Thermostat

	current := thermostat.ModeOff
	if t.CurrentHeatingCoolingState.Value() == currentHeat {
		current = thermostat.ModeHeat
	}
	return thermostat.State{
		CurrentTemperature: t.CurrentTemperature.Value(),
		Humidity:           a.humidity.Value(),
		TargetTemperature:  t.TargetTemperature.Value(),
		TargetMode:         thermostat.ModeFromCharacteristic(t.TargetHeatingCoolingState.Value()),
		CurrentMode:        current,
	}
}

func (a *Accessory) SetCurrentTemp(r tmeter.Reading) {
	a.acc.Thermostat.CurrentTemperature.SetValue(r.Temperature)
	if r.HasHumidity {
		a.humidity.SetValue(r.Humidity)
	}
}

func (a *Accessory) SetTargetTemp(v float64) {
	a.acc.Thermostat.TargetTemperature.SetValue(a.limits.Clamp(v))
}

func (a *Accessory) SetTargetMode(m thermostat.Mode) {
	_ = a.acc.Thermostat.TargetHeatingCoolingState.SetValue(m.Characteristic())
}

func (a *Accessory) SetCurrentMode(m thermostat.Mode) {
	v := currentOff
	if m == thermostat.ModeHeat {
		v = currentHeat
	}
	_ = a.acc.Thermostat.CurrentHeatingCoolingState.SetValue(v)
}
