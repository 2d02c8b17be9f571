// Package display holds the panel model shown on the kiosk screen and serves it
// to the kiosk browser.
package display

import (
	"sync"

	thermostat "github.com/alittlebrighter/homekit-thermostat"
	"github.com/alittlebrighter/homekit-thermostat/util"
)

const (
	LogLines = 30
	LogWidth = 100
)

type Screen uint8

const (
	ScreenBlank Screen = iota
	ScreenProvisioning
	ScreenLoading
	ScreenMain
)

func (s Screen) String() string {
	switch s {
	case ScreenProvisioning:
		return "provisioning"
	case ScreenLoading:
		return "loading"
	case ScreenMain:
		return "main"
	default:
		return "blank"
	}
}

func (s Screen) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Snapshot is everything the kiosk needs to render the active screen.
type Snapshot struct {
	Screen         Screen   `json:"screen"`
	Payload        string   `json:"payload,omitempty"`
	Log            []string `json:"log,omitempty"`
	Reconnect      bool     `json:"reconnect"`
	TargetTemp     string   `json:"targetTemp"`
	CurrentTemp    string   `json:"currentTemp"`
	Status         string   `json:"status"`
	ButtonsEnabled bool     `json:"buttonsEnabled"`
	Date           string   `json:"date"`
	Time           string   `json:"time"`

	seq uint64
}

// Panel is the state behind the kiosk screens.
type Panel struct {
	guard Guard

	screen    Screen
	payload   string
	log       *util.LogRing
	reconnect bool
	target    string
	current   string
	status    string
	buttons   bool
	date      string
	clock     string

	onButton    func(thermostat.Button)
	onReconnect func()

	seq uint64

	subMu sync.Mutex
	subs  map[chan Snapshot]struct{}
	sent  uint64
}

func NewPanel() *Panel {
	return &Panel{
		log:     util.NewLogRing(LogLines, LogWidth),
		target:  "--",
		current: "--",
		status:  thermostat.StatusOff.String(),
		subs:    make(map[chan Snapshot]struct{}),
	}
}

// OnButtonPressed registers the +/- handler.
func (p *Panel) OnButtonPressed(fn func(thermostat.Button)) {
	p.guard.Do(func() { p.onButton = fn })
}

// OnReconnect registers the handler of the reconnect button.
func (p *Panel) OnReconnect(fn func()) {
	p.guard.Do(func() { p.onReconnect = fn })
}

// update applies fn under the guard and pushes the result to subscribers.
func (p *Panel) update(fn func()) {
	p.broadcast(p.apply(fn))
}

// apply runs fn under the guard and returns the resulting snapshot, numbered
// in the order the changes were made.
func (p *Panel) apply(fn func()) Snapshot {
	var snap Snapshot
	p.guard.Do(func() {
		fn()
		p.seq++
		snap = p.snapshot()
	})
	return snap
}

func (p *Panel) ShowProvisioningScreen(payload string) {
	p.update(func() {
		p.screen = ScreenProvisioning
		p.payload = payload
	})
}

// ShowLoadingScreen switches to the loading screen with an empty log. Showing
// it while it is already active keeps the log.
func (p *Panel) ShowLoadingScreen() {
	p.update(func() {
		if p.screen == ScreenLoading {
			return
		}
		p.screen = ScreenLoading
		p.reconnect = false
		p.log.Reset()
	})
}

func (p *Panel) AppendLog(text string) {
	p.update(func() {
		if p.screen != ScreenLoading {
			return
		}
		p.log.Add(text)
	})
}

func (p *Panel) ShowReconnectButton() {
	p.update(func() { p.reconnect = true })
}

func (p *Panel) ShowMainScreen() {
	p.update(func() {
		p.screen = ScreenMain
		p.reconnect = false
	})
}

func (p *Panel) SetTargetTemp(text string) {
	p.update(func() { p.target = text })
}

func (p *Panel) SetCurrentTemp(text string) {
	p.update(func() { p.current = text })
}

// SetStatus shows the heating status; the +/- buttons only work while the
// thermostat is not off.
func (p *Panel) SetStatus(text string) {
	p.update(func() {
		p.status = text
		p.buttons = text != thermostat.StatusOff.String()
	})
}

func (p *Panel) SetDateTime(date, clock string) {
	p.update(func() {
		p.date = date
		p.clock = clock
	})
}

// Press handles a touch on a +/- button. It reports whether the press was
// delivered.
func (p *Panel) Press(b thermostat.Button) bool {
	var fn func(thermostat.Button)
	p.guard.Do(func() {
		if p.screen == ScreenMain && p.buttons {
			fn = p.onButton
		}
	})
	if fn == nil {
		return false
	}
	fn(b)
	return true
}

// PressReconnect handles a touch on the reconnect button.
func (p *Panel) PressReconnect() bool {
	var fn func()
	p.guard.Do(func() {
		if p.screen == ScreenLoading && p.reconnect {
			fn = p.onReconnect
			p.reconnect = false
		}
	})
	if fn == nil {
		return false
	}
	fn()
	return true
}

func (p *Panel) Snapshot() Snapshot {
	var snap Snapshot
	p.guard.Do(func() { snap = p.snapshot() })
	return snap
}

func (p *Panel) snapshot() Snapshot {
	snap := Snapshot{
		Screen:         p.screen,
		Reconnect:      p.reconnect,
		TargetTemp:     p.target,
		CurrentTemp:    p.current,
		Status:         p.status,
		ButtonsEnabled: p.buttons,
		Date:           p.date,
		Time:           p.clock,
		seq:            p.seq,
	}
	switch p.screen {
	case ScreenProvisioning:
		snap.Payload = p.payload
	case ScreenLoading:
		snap.Log = p.log.GetAll()
	}
	return snap
}

// Subscribe returns a channel holding the latest snapshot after each change.
// Slow readers only see the newest one.
func (p *Panel) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	p.subMu.Lock()
	p.subs[ch] = struct{}{}
	p.subMu.Unlock()

	cancel := func() {
		p.subMu.Lock()
		delete(p.subs, ch)
		p.subMu.Unlock()
	}
	return ch, cancel
}

// broadcast drops snapshots older than the last one sent, so a subscriber
// never ends on a stale screen when updates race.
func (p *Panel) broadcast(snap Snapshot) {
	p.subMu.Lock()
	defer p.subMu.Unlock()

	if snap.seq <= p.sent {
		return
	}
	p.sent = snap.seq

	for ch := range p.subs {
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}
