package telemetry

import (
	"context"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"go.uber.org/zap"

	"github.com/alittlebrighter/homekit-thermostat/models"
)

const influxPingTimeout = 5 * time.Second

type InfluxOptions struct {
	URL    string
	Token  string
	Org    string
	Bucket string
	Device string
}

// InfluxReporter writes every snapshot as a point of the "thermostat"
// measurement. Writes are batched and non-blocking.
type InfluxReporter struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	device   string
	log      *zap.SugaredLogger
}

func NewInfluxReporter(opts InfluxOptions, log *zap.SugaredLogger) (*InfluxReporter, error) {
	client := influxdb2.NewClientWithOptions(opts.URL, opts.Token,
		influxdb2.DefaultOptions().SetBatchSize(20).SetFlushInterval(10_000))

	ctx, cancel := context.WithTimeout(context.Background(), influxPingTimeout)
	defer cancel()
	healthy, err := client.Ping(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("influxdb ping: %w", err)
	}
	if !healthy {
		client.Close()
		return nil, fmt.Errorf("influxdb at %s is not healthy", opts.URL)
	}

	r := newInfluxReporter(client.WriteAPI(opts.Org, opts.Bucket), opts.Device, log)
	r.client = client
	return r, nil
}

func newInfluxReporter(writeAPI api.WriteAPI, device string, log *zap.SugaredLogger) *InfluxReporter {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if device == "" {
		device = "thermostat"
	}
	r := &InfluxReporter{writeAPI: writeAPI, device: device, log: log}

	if errs := writeAPI.Errors(); errs != nil {
		go func() {
			for err := range errs {
				r.log.Warnw("influxdb write failed", "err", err)
			}
		}()
	}
	return r
}

func (r *InfluxReporter) Report(update models.StateUpdate) {
	relay := 0
	if update.RelayOn {
		relay = 1
	}
	point := write.NewPoint(
		"thermostat",
		map[string]string{
			"device": r.device,
			"mode":   update.TargetMode,
		},
		map[string]interface{}{
			"current_temperature": update.CurrentTemperature,
			"target_temperature":  update.TargetTemperature,
			"humidity":            update.Humidity,
			"relay":               relay,
			"status":              update.Status,
		},
		update.Timestamp,
	)
	r.writeAPI.WritePoint(point)
}

func (r *InfluxReporter) Close() {
	r.writeAPI.Flush()
	if r.client != nil {
		r.client.Close()
	}
}
