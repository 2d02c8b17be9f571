package thermostat

import (
	"fmt"
	"time"
	_ "time/tzdata"

	"github.com/alittlebrighter/homekit-thermostat/util"
)

// Config defines the configuration needed to run the thermostat.
type Config struct {
	Thermostat  ThermostatConfig  `json:"thermostat"`
	Controller  ControllerConfig  `json:"controller"`
	Thermometer ThermometerConfig `json:"thermometer"`
	Network     NetworkConfig     `json:"network"`
	HomeKit     HomeKitConfig     `json:"homekit"`
	Display     DisplayConfig     `json:"display"`
	Time        TimeConfig        `json:"time"`
	NATS        NATSConfig        `json:"nats"`
	MQTT        MQTTConfig        `json:"mqtt"`
	InfluxDB    InfluxDBConfig    `json:"influxdb"`
	Log         LogConfig         `json:"log"`
}

type ThermostatConfig struct {
	MinTemp       float64       `json:"minTemp"`
	MaxTemp       float64       `json:"maxTemp"`
	Step          float64       `json:"step"`
	DefaultTarget float64       `json:"defaultTarget"`
	PollInterval  util.Duration `json:"pollInterval"`
	MaxErrors     uint8         `json:"maxErrors"`
	StateFile     string        `json:"stateFile"`
}

type ControllerConfig struct {
	Pins      struct{ Heat int } `json:"pins"`
	ActiveLow bool               `json:"activeLow"`
}

type ThermometerConfig struct {
	Type     string        `json:"type"`
	Bus      int           `json:"bus"`
	Endpoint string        `json:"endpoint"`
	Subject  string        `json:"subject"`
	MaxAge   util.Duration `json:"maxAge"`
}

type NetworkConfig struct {
	CredentialsFile string        `json:"credentialsFile"`
	Interface       string        `json:"interface"`
	WPAConfig       string        `json:"wpaConfig"`
	ProbeAddress    string        `json:"probeAddress"`
	ProbeInterval   util.Duration `json:"probeInterval"`
	ProvisionAddr   string        `json:"provisionAddr"`
	POP             string        `json:"pop"`
	DeviceName      string        `json:"deviceName"`
	MaxAttempts     int           `json:"maxAttempts"`
}

type HomeKitConfig struct {
	Name         string `json:"name"`
	Manufacturer string `json:"manufacturer"`
	Serial       string `json:"serial"`
	Model        string `json:"model"`
	Firmware     string `json:"firmware"`
	Pin          string `json:"pin"`
	Port         int    `json:"port"`
	StoragePath  string `json:"storagePath"`
}

type DisplayConfig struct {
	ServeAt string `json:"serveAt"`
}

type TimeConfig struct {
	Server   string        `json:"server"`
	Timezone string        `json:"timezone"`
	Attempts int           `json:"attempts"`
	Wait     util.Duration `json:"wait"`
}

type NATSConfig struct {
	URL          string `json:"url"`
	StateSubject string `json:"stateSubject"`
}

type MQTTConfig struct {
	Broker   string `json:"broker"`
	ClientID string `json:"clientID"`
	Topic    string `json:"topic"`
}

type InfluxDBConfig struct {
	URL    string `json:"url"`
	Token  string `json:"token"`
	Org    string `json:"org"`
	Bucket string `json:"bucket"`
}

type LogConfig struct {
	Level string `json:"level"`
}

// DefaultConfig returns the configuration used for every field the file omits.
func DefaultConfig() *Config {
	c := new(Config)
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	t := &c.Thermostat
	if t.MinTemp == 0 && t.MaxTemp == 0 {
		t.MinTemp, t.MaxTemp = 10, 38
	}
	if t.Step == 0 {
		t.Step = 1
	}
	if t.DefaultTarget == 0 {
		t.DefaultTarget = 20
	}
	if t.PollInterval == 0 {
		t.PollInterval = util.Duration(30 * time.Second)
	}
	if t.StateFile == "" {
		t.StateFile = "/var/lib/thermostat/settings.yaml"
	}

	if c.Controller.Pins.Heat == 0 {
		c.Controller.Pins.Heat = 3
	}
	if c.Thermometer.Bus == 0 {
		c.Thermometer.Bus = 1
	}
	if c.Thermometer.MaxAge == 0 {
		c.Thermometer.MaxAge = util.Duration(5 * time.Minute)
	}

	n := &c.Network
	if n.CredentialsFile == "" {
		n.CredentialsFile = "/var/lib/thermostat/wifi.yaml"
	}
	if n.Interface == "" {
		n.Interface = "wlan0"
	}
	if n.WPAConfig == "" {
		n.WPAConfig = "/etc/wpa_supplicant/wpa_supplicant.conf"
	}
	if n.ProbeAddress == "" {
		n.ProbeAddress = "1.1.1.1:53"
	}
	if n.ProbeInterval == 0 {
		n.ProbeInterval = util.Duration(10 * time.Second)
	}
	if n.ProvisionAddr == "" {
		n.ProvisionAddr = ":8081"
	}
	if n.POP == "" {
		n.POP = "abcd1234"
	}
	if n.DeviceName == "" {
		n.DeviceName = "PROV_THERMOSTAT"
	}
	if n.MaxAttempts == 0 {
		n.MaxAttempts = 5
	}

	h := &c.HomeKit
	if h.Name == "" {
		h.Name = "Thermostat"
	}
	if h.Manufacturer == "" {
		h.Manufacturer = "alittlebrighter"
	}
	if h.Serial == "" {
		h.Serial = "THERMOSTAT-1"
	}
	if h.Model == "" {
		h.Model = "RPi Thermostat"
	}
	if h.Firmware == "" {
		h.Firmware = "1.0"
	}
	if h.Pin == "" {
		h.Pin = "00102003"
	}
	if h.StoragePath == "" {
		h.StoragePath = "/var/lib/thermostat/hap"
	}

	if c.Display.ServeAt == "" {
		c.Display.ServeAt = ":8080"
	}

	if c.Time.Server == "" {
		c.Time.Server = "pool.ntp.org"
	}
	if c.Time.Timezone == "" {
		c.Time.Timezone = "Europe/Prague"
	}
	if c.Time.Attempts == 0 {
		c.Time.Attempts = 15
	}
	if c.Time.Wait == 0 {
		c.Time.Wait = util.Duration(2 * time.Second)
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Limits returns the target temperature bounds.
func (c *Config) Limits() Limits {
	return Limits{Min: c.Thermostat.MinTemp, Max: c.Thermostat.MaxTemp, Step: c.Thermostat.Step}
}

// Validate checks that a configuration is usable and returns a string explaining any issues. An empty string denotes a valid configuration.
func (c *Config) Validate() string {
	t := c.Thermostat
	if t.MinTemp >= t.MaxTemp {
		return fmt.Sprintf("thermostat minTemp (%.1f) must be below maxTemp (%.1f).", t.MinTemp, t.MaxTemp)
	}
	if t.DefaultTarget < t.MinTemp || t.DefaultTarget > t.MaxTemp {
		return fmt.Sprintf("thermostat defaultTarget (%.1f) is outside of [%.1f, %.1f].", t.DefaultTarget, t.MinTemp, t.MaxTemp)
	}
	if t.Step <= 0 {
		return "thermostat step must be positive."
	}
	if t.PollInterval.Std() <= 0 {
		return "thermostat pollInterval must be positive."
	}
	if c.Network.MaxAttempts < 1 {
		return "network maxAttempts must be at least 1."
	}
	if len(c.HomeKit.Pin) != 8 {
		return "homekit pin must have 8 digits."
	}
	if _, err := time.LoadLocation(c.Time.Timezone); err != nil {
		return fmt.Sprintf("time zone %q is not valid.", c.Time.Timezone)
	}
	switch c.Thermometer.Type {
	case "", "sht40", "mcp9808":
	case "web":
		if c.Thermometer.Endpoint == "" {
			return "thermometer endpoint is required for the web type."
		}
	case "nats":
		if c.NATS.URL == "" {
			return "nats url is required for the nats thermometer."
		}
	default:
		return fmt.Sprintf("thermometer type %q is not supported.", c.Thermometer.Type)
	}
	return ""
}
