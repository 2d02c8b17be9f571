package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	nats "github.com/nats-io/nats.go"
	"go.uber.org/zap"

	thermostat "github.com/alittlebrighter/homekit-thermostat"
	"github.com/alittlebrighter/homekit-thermostat/connectivity"
	"github.com/alittlebrighter/homekit-thermostat/controller"
	"github.com/alittlebrighter/homekit-thermostat/display"
	"github.com/alittlebrighter/homekit-thermostat/events"
	"github.com/alittlebrighter/homekit-thermostat/fault"
	"github.com/alittlebrighter/homekit-thermostat/homekit"
	"github.com/alittlebrighter/homekit-thermostat/lifecycle"
	"github.com/alittlebrighter/homekit-thermostat/logger"
	"github.com/alittlebrighter/homekit-thermostat/telemetry"
	"github.com/alittlebrighter/homekit-thermostat/thermometer"
	"github.com/alittlebrighter/homekit-thermostat/timesync"
)

var ConfigPath = "/etc/thermostat.conf"

func main() {
	flag.StringVar(&ConfigPath, "config", ConfigPath, "Path to the configuration file to use.")
	flag.Parse()

	config, err := thermostat.ReadConfig(ConfigPath)
	if err != nil {
		logger.Get(logger.InfoLevel).Fatalw("could not read configuration", "path", ConfigPath, "err", err)
	}
	log := logger.Get(config.Log.Level)
	if msg := config.Validate(); msg != "" {
		log.Fatalw("invalid configuration", "path", ConfigPath, "problem", msg)
	}
	log.Infow("starting thermostat", "config", ConfigPath)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	relay, err := controller.NewGPIORelay(config.Controller.Pins.Heat, config.Controller.ActiveLow, log.Named("relay"))
	if err != nil {
		log.Fatalw("could not open gpio", "err", err)
	}
	defer relay.Shutdown()

	faults := fault.NewHandler(relay, log.Named("fault"))

	var nc *nats.Conn
	if config.NATS.URL != "" {
		if nc, err = nats.Connect(config.NATS.URL); err != nil {
			if config.Thermometer.Type == "nats" {
				log.Fatalw("could not connect to message bus", "url", config.NATS.URL, "err", err)
			}
			log.Warnw("could not connect to message bus", "url", config.NATS.URL, "err", err)
			nc = nil
		} else {
			defer nc.Close()
		}
	}

	sensor, err := thermometer.New(thermometer.Options{
		Type:     config.Thermometer.Type,
		Bus:      config.Thermometer.Bus,
		Endpoint: config.Thermometer.Endpoint,
		Conn:     nc,
		Subject:  config.Thermometer.Subject,
		MaxAge:   config.Thermometer.MaxAge.Std(),
	})
	if err != nil {
		log.Fatalw("could not open thermometer", "type", config.Thermometer.Type, "err", err)
	}
	defer sensor.Shutdown()

	accessory, err := homekit.New(config.HomeKit, config.Limits(), config.Thermostat.DefaultTarget, log.Named("homekit"))
	if err != nil {
		log.Fatalw("could not create accessory", "err", err)
	}

	panel := display.NewPanel()
	metrics := telemetry.NewMetrics()
	reporters := []thermostat.Reporter{metrics}
	for _, q := range optionalReporters(config, nc, log) {
		defer q.Close()
		reporters = append(reporters, q)
	}

	engine := thermostat.NewEngine(accessory, relay, sensor, panel, thermostat.Options{
		Limits:       config.Limits(),
		PollInterval: config.Thermostat.PollInterval.Std(),
		MaxErrors:    config.Thermostat.MaxErrors,
		SettingsFile: config.Thermostat.StateFile,
		Reporters:    reporters,
		Fault:        faults,
		Log:          log.Named("engine"),
	})
	if err := engine.RestoreSettings(); err != nil {
		log.Warnw("could not restore settings", "path", config.Thermostat.StateFile, "err", err)
	}
	if err := accessory.OnRemoteUpdate(engine.HandleRemoteUpdate); err != nil {
		log.Fatalw("could not register remote updates", "err", err)
	}
	panel.OnButtonPressed(engine.AdjustTarget)

	bus := events.NewBus(events.DefaultCapacity)
	metrics.WatchQueue(bus.Len)

	network := config.Network
	link := connectivity.NewSystemLink(network.Interface, network.WPAConfig, network.ProbeAddress)
	conn := connectivity.NewManager(connectivity.Options{
		Link:          link,
		Store:         connectivity.NewCredentialStore(network.CredentialsFile),
		Bus:           bus,
		Fault:         faults,
		ProbeInterval: network.ProbeInterval.Std(),
		ProvisionAddr: network.ProvisionAddr,
		POP:           network.POP,
		DeviceName:    network.DeviceName,
		Log:           log.Named("connectivity"),
	})
	panel.OnReconnect(conn.Reprovision)

	syncer, err := timesync.NewSyncer(timesync.Options{
		Server:   config.Time.Server,
		Timezone: config.Time.Timezone,
		Attempts: config.Time.Attempts,
		Wait:     config.Time.Wait.Std(),
		Log:      log.Named("timesync"),
	})
	if err != nil {
		log.Fatalw("could not set up time sync", "err", err)
	}
	clock := &timesync.Clock{Now: syncer.Now, Display: panel, Interval: time.Second}

	machine := lifecycle.NewMachine(lifecycle.Options{
		Bus:          bus,
		Connectivity: conn,
		Screens:      panel,
		Engine:       engine,
		Fault:        faults,
		Initialize: func(ctx context.Context) error {
			err := syncer.Sync(ctx, func(line string) {
				if err := bus.Publish(events.Log(line)); err != nil {
					log.Debugw("log line dropped", "err", err)
				}
			})
			if err != nil && !errors.Is(err, timesync.ErrNotSynced) {
				return err
			}
			return accessory.Start(ctx)
		},
		Tasks:       []lifecycle.Task{clock.Run},
		MaxAttempts: network.MaxAttempts,
		Log:         log.Named("lifecycle"),
	})
	if err := bus.Subscribe(machine.Handle); err != nil {
		log.Fatalw("could not subscribe lifecycle", "err", err)
	}

	server := display.NewServer(panel, metrics.Handler(), log.Named("display"))
	go func() {
		if err := server.Run(ctx, config.Display.ServeAt); err != nil {
			faults.Fatal(err)
		}
	}()
	go conn.Run(ctx)

	start := events.Event{Kind: events.ProvisioningRequested}
	if conn.IsProvisioned() {
		start.Kind = events.LifecycleStarted
	}
	if err := bus.Publish(start); err != nil {
		log.Fatalw("could not publish startup event", "event", start.Kind, "err", err)
	}
	if start.Kind == events.LifecycleStarted {
		conn.Connect()
	}

	if err := bus.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Errorw("event bus stopped", "err", err)
	}
	log.Info("shutting down")
}

// optionalReporters connects the telemetry sinks present in the configuration.
// Each sink is fed through its own queue so a slow broker never holds up the
// control loop. A sink that cannot be reached is skipped.
func optionalReporters(config *thermostat.Config, nc *nats.Conn, log *zap.SugaredLogger) []*telemetry.Queue {
	var reporters []*telemetry.Queue

	if nc != nil {
		reporters = append(reporters, telemetry.NewQueue(telemetry.NewNATSReporter(nc, config.NATS.StateSubject, log.Named("nats"))))
	}

	if config.MQTT.Broker != "" {
		r, err := telemetry.NewMQTTReporter(telemetry.MQTTOptions{
			Broker:   config.MQTT.Broker,
			ClientID: config.MQTT.ClientID,
			Topic:    config.MQTT.Topic,
		}, log.Named("mqtt"))
		if err != nil {
			log.Warnw("mqtt reporting disabled", "broker", config.MQTT.Broker, "err", err)
		} else {
			reporters = append(reporters, telemetry.NewQueue(r))
		}
	}

	if config.InfluxDB.URL != "" {
		r, err := telemetry.NewInfluxReporter(telemetry.InfluxOptions{
			URL:    config.InfluxDB.URL,
			Token:  config.InfluxDB.Token,
			Org:    config.InfluxDB.Org,
			Bucket: config.InfluxDB.Bucket,
			Device: config.HomeKit.Serial,
		}, log.Named("influxdb"))
		if err != nil {
			log.Warnw("influxdb reporting disabled", "url", config.InfluxDB.URL, "err", err)
		} else {
			reporters = append(reporters, telemetry.NewQueue(r))
		}
	}

	return reporters
}
