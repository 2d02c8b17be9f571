// Package lifecycle sequences the device from provisioning through
// connectivity and initialization into steady-state control.
package lifecycle

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/alittlebrighter/homekit-thermostat/events"
	"go.uber.org/zap"
)

// State is the coarse phase of device bring-up.
type State int32

const (
	AwaitingProvisioning State = iota
	Provisioning
	Connecting
	LinkDown
	Initializing
	Running
)

func (s State) String() string {
	switch s {
	case AwaitingProvisioning:
		return "awaiting_provisioning"
	case Provisioning:
		return "provisioning"
	case Connecting:
		return "connecting"
	case LinkDown:
		return "link_down"
	case Initializing:
		return "initializing"
	case Running:
		return "running"
	default:
		return "unknown"
	}
}

// loading reports whether the loading screen is the active screen in s.
func (s State) loading() bool {
	return s == Connecting || s == LinkDown || s == Initializing
}

// Connectivity is the network side the machine drives.
type Connectivity interface {
	StartProvisioning() (payload string, err error)
	Reconnect()
}

// Screens selects what the panel shows.
type Screens interface {
	ShowProvisioningScreen(payload string)
	ShowLoadingScreen()
	AppendLog(text string)
	ShowReconnectButton()
	ShowMainScreen()
}

// Engine is the thermostat control loop started on entry to Running.
type Engine interface {
	Refresh() error
	Poll() error
	Run(ctx context.Context)
}

// Fault takes conditions that require a device restart.
type Fault interface {
	Fatal(err error)
}

// Task is a periodic job that runs until its context ends.
type Task func(ctx context.Context)

type Options struct {
	Bus          events.Publisher
	Connectivity Connectivity
	Screens      Screens
	Engine       Engine
	Fault        Fault

	// Initialize runs off the bus consumer after the link comes up. A nil
	// error publishes LifecycleReady.
	Initialize func(ctx context.Context) error

	// Tasks are started together with the engine, once per process.
	Tasks []Task

	MaxAttempts int
	Log         *zap.SugaredLogger
}

// Machine is the device lifecycle state machine. Handle must only be called
// from the bus consumer; State may be read from any goroutine.
type Machine struct {
	opts  Options
	log   *zap.SugaredLogger
	state atomic.Int32
	retry *RetryCounter

	initialized  atomic.Bool
	tasksStarted bool
}

func NewMachine(opts Options) *Machine {
	if opts.Log == nil {
		opts.Log = zap.NewNop().Sugar()
	}
	m := &Machine{
		opts:  opts,
		log:   opts.Log,
		retry: NewRetryCounter(opts.MaxAttempts),
	}
	m.state.Store(int32(AwaitingProvisioning))
	return m
}

func (m *Machine) State() State {
	return State(m.state.Load())
}

// Initialized reports whether the device has reached Running at least once.
func (m *Machine) Initialized() bool {
	return m.initialized.Load()
}

func (m *Machine) Retry() *RetryCounter {
	return m.retry
}

func (m *Machine) set(ev events.Event, to State) {
	from := m.State()
	m.state.Store(int32(to))
	m.log.Infow("lifecycle transition", "from", from, "event", ev.Kind, "to", to)
}

// Handle is the bus handler.
func (m *Machine) Handle(ctx context.Context, ev events.Event) {
	switch ev.Kind {
	case events.ProvisioningRequested:
		m.onProvisioningRequested(ev)
	case events.LifecycleStarted:
		m.onStarted(ev)
	case events.LinkUp:
		m.onLinkUp(ctx, ev)
	case events.LinkDown:
		m.onLinkDown(ev)
	case events.LifecycleReady:
		m.onReady(ctx, ev)
	case events.LogMessage:
		if m.State().loading() {
			m.opts.Screens.AppendLog(ev.Payload)
		}
	default:
		m.log.Warnw("unhandled event", "event", ev.Kind, "state", m.State())
	}
}

func (m *Machine) onProvisioningRequested(ev events.Event) {
	switch s := m.State(); {
	case s == AwaitingProvisioning:
	case s == LinkDown && !m.retry.Enabled():
	default:
		m.ignore(ev)
		return
	}

	m.set(ev, Provisioning)
	payload, err := m.opts.Connectivity.StartProvisioning()
	if err != nil {
		m.opts.Fault.Fatal(fmt.Errorf("start provisioning: %w", err))
		return
	}
	m.opts.Screens.ShowProvisioningScreen(payload)
}

func (m *Machine) onStarted(ev events.Event) {
	if m.State() != AwaitingProvisioning {
		m.ignore(ev)
		return
	}
	m.set(ev, Connecting)
	m.opts.Screens.ShowLoadingScreen()
}

func (m *Machine) onLinkUp(ctx context.Context, ev events.Event) {
	switch m.State() {
	case Provisioning, LinkDown, Connecting:
	default:
		m.ignore(ev)
		return
	}

	m.set(ev, Initializing)
	m.opts.Screens.ShowLoadingScreen()
	m.retry.Reset()

	go m.initialize(ctx)
}

func (m *Machine) initialize(ctx context.Context) {
	if m.opts.Initialize != nil {
		if err := m.opts.Initialize(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			m.opts.Fault.Fatal(fmt.Errorf("initialize: %w", err))
			return
		}
	}
	if err := m.opts.Bus.Publish(events.Event{Kind: events.LifecycleReady}); err != nil {
		m.log.Warnw("could not publish ready", "err", err)
	}
}

func (m *Machine) onLinkDown(ev events.Event) {
	m.set(ev, LinkDown)
	m.opts.Screens.ShowLoadingScreen()

	if m.Initialized() {
		m.opts.Screens.AppendLog("Connection lost, reconnecting...")
		m.opts.Connectivity.Reconnect()
		return
	}

	if m.retry.Enabled() && m.retry.Fail() {
		m.opts.Screens.AppendLog(fmt.Sprintf("Connection failed, retrying... (%d/%d)",
			m.retry.Attempts(), m.retry.maxAttempts))
		m.opts.Connectivity.Reconnect()
		return
	}

	// With the budget spent, every drop leaves the manual recovery on screen,
	// including a failed attempt with freshly provisioned credentials.
	m.log.Warnw("reconnect attempts exhausted", "attempts", m.retry.Attempts())
	m.opts.Screens.AppendLog("Could not connect to WiFi.")
	m.opts.Screens.ShowReconnectButton()
}

func (m *Machine) onReady(ctx context.Context, ev events.Event) {
	if m.State() != Initializing {
		m.ignore(ev)
		return
	}

	m.set(ev, Running)
	m.opts.Screens.ShowMainScreen()
	if err := m.opts.Engine.Refresh(); err != nil {
		m.opts.Fault.Fatal(err)
		return
	}
	m.startTasks(ctx)
	m.initialized.Store(true)
}

func (m *Machine) startTasks(ctx context.Context) {
	if m.tasksStarted {
		return
	}
	m.tasksStarted = true

	go func() {
		if err := m.opts.Engine.Poll(); err != nil {
			m.opts.Fault.Fatal(err)
			return
		}
		m.opts.Engine.Run(ctx)
	}()
	for _, task := range m.opts.Tasks {
		go task(ctx)
	}
}

func (m *Machine) ignore(ev events.Event) {
	m.log.Debugw("event ignored", "event", ev.Kind, "state", m.State())
}
