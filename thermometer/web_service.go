package thermometer

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/alittlebrighter/homekit-thermostat/util"
)

// JSONWebService polls a thermometer exposed over HTTP.
type JSONWebService struct {
	client   *http.Client
	endpoint string
}

func NewJSONWebService(endpoint string) (*JSONWebService, error) {
	thermometer := &JSONWebService{client: &http.Client{Timeout: 10 * time.Second}, endpoint: endpoint}

	if _, err := thermometer.Measure(); err != nil {
		return nil, errors.New("could not connect to thermometer web service: " + err.Error())
	}

	return thermometer, nil
}

func (meter *JSONWebService) Measure() (Reading, error) {
	req, err := http.NewRequest(http.MethodGet, meter.endpoint, nil)
	if err != nil {
		return Reading{}, err
	}
	req.Header.Add("Accept", "application/json")

	resp, err := meter.client.Do(req)
	if err != nil {
		return Reading{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return Reading{}, fmt.Errorf("thermometer web service returned %d", resp.StatusCode)
	}

	tempReading := new(TemperatureReading)
	if err := json.NewDecoder(resp.Body).Decode(tempReading); err != nil {
		return Reading{}, err
	}

	return tempReading.Explode()
}

func (meter *JSONWebService) Shutdown() {}

type TemperatureReading struct {
	Temperature float64               `json:"temperature"`
	Units       util.TemperatureUnits `json:"units"`
	Humidity    *float64              `json:"humidity,omitempty"`
	Error       string                `json:"error,omitempty"`
}

func (r *TemperatureReading) Explode() (Reading, error) {
	if r.Error != "" {
		return Reading{}, errors.New(r.Error)
	}

	reading := Reading{Temperature: util.ToCelsius(r.Temperature, r.Units)}
	if r.Humidity != nil {
		reading.Humidity, reading.HasHumidity = *r.Humidity, true
	}
	return reading, nil
}
