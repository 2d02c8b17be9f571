package thermostat

import (
	"io/ioutil"
	"os"

	"github.com/ghodss/yaml"
)

// ReadConfig loads the configuration file and fills in defaults.
func ReadConfig(path string) (*Config, error) {
	dat, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, err
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(dat, config); err != nil {
		return nil, err
	}
	config.applyDefaults()
	return config, nil
}

// Settings are the user's choices that survive a restart.
type Settings struct {
	TargetTemperature float64 `json:"targetTemperature"`
	TargetMode        Mode    `json:"targetMode"`
}

func LoadSettings(path string) (Settings, error) {
	var settings Settings

	dat, err := ioutil.ReadFile(path)
	if err != nil {
		return settings, err
	}
	err = yaml.Unmarshal(dat, &settings)
	return settings, err
}

func SaveSettings(path string, settings Settings) error {
	dat, err := yaml.Marshal(settings)
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := ioutil.WriteFile(tmp, dat, os.FileMode(int(0660))); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
