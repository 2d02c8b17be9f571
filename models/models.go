package models

import (
	"time"

	"github.com/alittlebrighter/homekit-thermostat/util"
)

// SensorUpdate is what remote sensors publish on the message bus.
type SensorUpdate struct {
	Location string      `json:"location"`
	Type     string      `json:"type"`
	Value    Temperature `json:"value"`
	Humidity *float64    `json:"humidity,omitempty"`
}

type Temperature struct {
	Degrees float64               `json:"degrees"`
	Unit    util.TemperatureUnits `json:"unit"`
}

// StateUpdate is the snapshot reported after every reconciliation.
type StateUpdate struct {
	Timestamp          time.Time `json:"timestamp"`
	CurrentTemperature float64   `json:"currentTemperature"`
	Humidity           float64   `json:"humidity"`
	TargetTemperature  float64   `json:"targetTemperature"`
	TargetMode         string    `json:"targetMode"`
	CurrentMode        string    `json:"currentMode"`
	Status             string    `json:"status"`
	RelayOn            bool      `json:"relayOn"`
}
