package thermostat

import (
	"io/ioutil"
	"path/filepath"
	"testing"
	"time"
)

func TestReadConfigDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "thermostat.conf")
	conf := `
thermostat:
  maxTemp: 30
  pollInterval: 1m
controller:
  pins:
    heat: 17
thermometer:
  type: mcp9808
homekit:
  name: Living Room
`
	if err := ioutil.WriteFile(path, []byte(conf), 0600); err != nil {
		t.Fatal(err)
	}

	config, err := ReadConfig(path)
	if err != nil {
		t.Fatal(err)
	}

	if config.Thermostat.MinTemp != 10 || config.Thermostat.MaxTemp != 30 {
		t.Errorf("limits = %v..%v", config.Thermostat.MinTemp, config.Thermostat.MaxTemp)
	}
	if config.Thermostat.PollInterval.Std() != time.Minute {
		t.Errorf("poll interval = %v", config.Thermostat.PollInterval.Std())
	}
	if config.Controller.Pins.Heat != 17 {
		t.Errorf("heat pin = %d", config.Controller.Pins.Heat)
	}
	if config.HomeKit.Name != "Living Room" || config.HomeKit.Pin != "00102003" {
		t.Errorf("homekit = %+v", config.HomeKit)
	}
	if config.Network.MaxAttempts != 5 || config.Time.Attempts != 15 {
		t.Errorf("network attempts %d, time attempts %d", config.Network.MaxAttempts, config.Time.Attempts)
	}
	if msg := config.Validate(); msg != "" {
		t.Errorf("expected valid config, got %q", msg)
	}
}

func TestReadConfigMissingFile(t *testing.T) {
	if _, err := ReadConfig(filepath.Join(t.TempDir(), "nope.conf")); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(c *Config)
		valid  bool
	}{
		{"defaults", func(c *Config) {}, true},
		{"inverted limits", func(c *Config) { c.Thermostat.MinTemp = 40 }, false},
		{"target out of range", func(c *Config) { c.Thermostat.DefaultTarget = 50 }, false},
		{"negative step", func(c *Config) { c.Thermostat.Step = -1 }, false},
		{"short pin", func(c *Config) { c.HomeKit.Pin = "123" }, false},
		{"bad zone", func(c *Config) { c.Time.Timezone = "Mars/Olympus" }, false},
		{"web without endpoint", func(c *Config) { c.Thermometer.Type = "web" }, false},
		{"nats without url", func(c *Config) { c.Thermometer.Type = "nats" }, false},
		{"nats with url", func(c *Config) {
			c.Thermometer.Type = "nats"
			c.NATS.URL = "nats://localhost:4222"
		}, true},
		{"unknown sensor", func(c *Config) { c.Thermometer.Type = "dht22" }, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := DefaultConfig()
			tc.mutate(c)
			msg := c.Validate()
			if tc.valid && msg != "" {
				t.Errorf("expected valid, got %q", msg)
			}
			if !tc.valid && msg == "" {
				t.Error("expected a validation message")
			}
		})
	}
}

func TestLimits(t *testing.T) {
	l := DefaultConfig().Limits()
	if l != (Limits{Min: 10, Max: 38, Step: 1}) {
		t.Errorf("limits = %+v", l)
	}
}
