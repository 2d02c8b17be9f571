// Package connectivity owns the network link: it connects with stored
// credentials, runs the provisioning endpoint, and reports link changes on the
// event bus.
package connectivity

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/alittlebrighter/homekit-thermostat/events"
	"go.uber.org/zap"
)

// Fault classifies connection errors. Check returns true when the error is
// recoverable by reconnecting.
type Fault interface {
	Check(err error) bool
}

type Options struct {
	Link          Link
	Store         *CredentialStore
	Bus           events.Publisher
	Fault         Fault
	ProbeInterval time.Duration
	ProvisionAddr string
	POP           string
	DeviceName    string
	Log           *zap.SugaredLogger
}

// Manager connects the station and watches the link.
type Manager struct {
	opts Options
	log  *zap.SugaredLogger
	kick chan struct{}

	// up is owned by the Run goroutine.
	up bool

	provMu sync.Mutex
	prov   *http.Server
}

func NewManager(opts Options) *Manager {
	if opts.Log == nil {
		opts.Log = zap.NewNop().Sugar()
	}
	if opts.ProbeInterval <= 0 {
		opts.ProbeInterval = 10 * time.Second
	}
	return &Manager{
		opts: opts,
		log:  opts.Log,
		kick: make(chan struct{}, 1),
	}
}

func (m *Manager) IsProvisioned() bool {
	return m.opts.Store.Exists()
}

// Connect asks the Run loop for a connection attempt. It never blocks.
func (m *Manager) Connect() {
	select {
	case m.kick <- struct{}{}:
	default:
	}
}

// Reconnect is Connect; a pending attempt absorbs repeated calls.
func (m *Manager) Reconnect() {
	m.Connect()
}

// Reset forgets the stored credentials.
func (m *Manager) Reset() error {
	return m.opts.Store.Clear()
}

// Reprovision clears the credentials and asks for provisioning. It backs the
// reconnect button on the loading screen.
func (m *Manager) Reprovision() {
	if err := m.Reset(); err != nil {
		m.log.Errorw("could not clear credentials", "err", err)
	}
	if err := m.opts.Bus.Publish(events.Event{Kind: events.ProvisioningRequested}); err != nil {
		m.log.Warnw("could not request provisioning", "err", err)
	}
}

func (m *Manager) Payload() Payload {
	return Payload{
		Version:   "v1",
		Name:      m.opts.DeviceName,
		POP:       m.opts.POP,
		Transport: "softap",
	}
}

// StartProvisioning starts the provisioning endpoint and returns the payload
// shown to the user. Calling it while the endpoint is running returns the
// same payload.
func (m *Manager) StartProvisioning() (string, error) {
	m.provMu.Lock()
	defer m.provMu.Unlock()

	payload := m.Payload()
	if m.prov != nil {
		return payload.String(), nil
	}

	ln, err := net.Listen("tcp", m.opts.ProvisionAddr)
	if err != nil {
		return "", err
	}

	p := &provisioner{
		payload: payload,
		store:   m.opts.Store,
		onSaved: func(Credentials) { m.Connect() },
		log:     m.log,
	}
	m.prov = &http.Server{Handler: p.routes()}

	go func(srv *http.Server) {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.log.Errorw("provisioning endpoint stopped", "err", err)
		}
	}(m.prov)

	m.log.Infow("provisioning started", "addr", ln.Addr().String(), "name", payload.Name)
	return payload.String(), nil
}

func (m *Manager) stopProvisioning() {
	m.provMu.Lock()
	defer m.provMu.Unlock()

	if m.prov == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := m.prov.Shutdown(ctx); err != nil {
		m.log.Warnw("provisioning endpoint shutdown", "err", err)
	}
	m.prov = nil
}

// Run serves connection requests and probes the link until ctx ends.
func (m *Manager) Run(ctx context.Context) error {
	defer m.stopProvisioning()

	ticker := time.NewTicker(m.opts.ProbeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.kick:
			m.connect(ctx)
		case <-ticker.C:
			m.probe(ctx)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (m *Manager) connect(ctx context.Context) {
	creds, err := m.opts.Store.Load()
	if err != nil {
		m.log.Warnw("cannot connect", "err", err)
		return
	}

	m.log.Infow("connecting", "ssid", creds.SSID)
	if err := m.opts.Link.Connect(ctx, creds); err != nil {
		if ctx.Err() != nil {
			return
		}
		m.up = false
		if m.recoverable(err) {
			m.publish(events.LinkDown)
		}
		return
	}

	m.stopProvisioning()
	if !m.up {
		m.up = true
		m.publish(events.LinkUp)
	}
}

func (m *Manager) recoverable(err error) bool {
	if m.opts.Fault != nil {
		return m.opts.Fault.Check(err)
	}
	m.log.Warnw("connection failed", "err", err)
	return IsTransient(err)
}

func (m *Manager) probe(ctx context.Context) {
	if !m.IsProvisioned() {
		return
	}

	up := m.opts.Link.Up(ctx)
	if up == m.up {
		return
	}
	m.up = up
	if up {
		m.publish(events.LinkUp)
	} else {
		m.publish(events.LinkDown)
	}
}

func (m *Manager) publish(kind events.Kind) {
	m.log.Infow("link changed", "event", kind)
	if err := m.opts.Bus.Publish(events.Event{Kind: kind}); err != nil {
		m.log.Warnw("could not publish link change", "err", err)
	}
}
