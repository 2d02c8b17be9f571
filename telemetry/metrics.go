package telemetry

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alittlebrighter/homekit-thermostat/models"
)

// Metrics exposes the latest snapshot as Prometheus gauges.
type Metrics struct {
	registry *prometheus.Registry

	current  prometheus.Gauge
	target   prometheus.Gauge
	humidity prometheus.Gauge
	relay    prometheus.Gauge
	heatMode prometheus.Gauge
	switches prometheus.Counter

	mu      sync.Mutex
	relayOn bool
	seen    bool
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		current: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "thermostat_current_temperature_celsius",
			Help: "Last measured temperature.",
		}),
		target: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "thermostat_target_temperature_celsius",
			Help: "Target temperature.",
		}),
		humidity: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "thermostat_relative_humidity_percent",
			Help: "Last measured relative humidity.",
		}),
		relay: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "thermostat_relay_on",
			Help: "1 while the heating relay is energized.",
		}),
		heatMode: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "thermostat_heat_mode",
			Help: "1 while the target mode is heat.",
		}),
		switches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "thermostat_relay_switches_total",
			Help: "Relay state changes.",
		}),
	}
	m.registry.MustRegister(m.current, m.target, m.humidity, m.relay, m.heatMode, m.switches)
	return m
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func (m *Metrics) Report(update models.StateUpdate) {
	m.current.Set(update.CurrentTemperature)
	m.target.Set(update.TargetTemperature)
	m.humidity.Set(update.Humidity)
	m.relay.Set(boolGauge(update.RelayOn))
	m.heatMode.Set(boolGauge(update.TargetMode == "heat"))

	m.mu.Lock()
	if m.seen && m.relayOn != update.RelayOn {
		m.switches.Inc()
	}
	m.relayOn, m.seen = update.RelayOn, true
	m.mu.Unlock()
}

// WatchQueue exposes depth as the number of lifecycle events waiting for the
// consumer.
func (m *Metrics) WatchQueue(depth func() int) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "thermostat_event_queue_depth",
		Help: "Lifecycle events waiting for the consumer.",
	}, func() float64 { return float64(depth()) }))
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
