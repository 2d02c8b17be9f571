package connectivity

import (
	"context"
	"fmt"
	"io/ioutil"
	"net"
	"os/exec"
	"strings"
	"time"
)

// Link is the wireless station.
type Link interface {
	// Connect applies creds and blocks until the network is reachable.
	Connect(ctx context.Context, creds Credentials) error
	// Up reports whether the network is currently reachable.
	Up(ctx context.Context) bool
}

// SystemLink drives wpa_supplicant through wpa_cli and checks reachability by
// dialing a probe address.
type SystemLink struct {
	Interface      string
	WPAConfig      string
	ProbeAddress   string
	ConnectTimeout time.Duration

	run func(ctx context.Context, name string, args ...string) ([]byte, error)
}

func NewSystemLink(iface, wpaConfig, probeAddress string) *SystemLink {
	return &SystemLink{
		Interface:      iface,
		WPAConfig:      wpaConfig,
		ProbeAddress:   probeAddress,
		ConnectTimeout: 20 * time.Second,
		run: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return exec.CommandContext(ctx, name, args...).CombinedOutput()
		},
	}
}

func (l *SystemLink) Connect(ctx context.Context, creds Credentials) error {
	if _, err := net.InterfaceByName(l.Interface); err != nil {
		return fmt.Errorf("%w: interface %s: %v", ErrNotStarted, l.Interface, err)
	}

	if l.WPAConfig != "" {
		if err := ioutil.WriteFile(l.WPAConfig, []byte(wpaNetwork(creds)), 0600); err != nil {
			return err
		}
	}

	out, err := l.run(ctx, "wpa_cli", "-i", l.Interface, "reconfigure")
	if err != nil || !strings.Contains(string(out), "OK") {
		return fmt.Errorf("%w: wpa_cli reconfigure: %v %s", ErrNotStarted, err, strings.TrimSpace(string(out)))
	}

	ctx, cancel := context.WithTimeout(ctx, l.ConnectTimeout)
	defer cancel()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		if l.Up(ctx) {
			return nil
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return fmt.Errorf("%w: %s unreachable after %v", ErrConnection, creds.SSID, l.ConnectTimeout)
		}
	}
}

func (l *SystemLink) Up(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", l.ProbeAddress)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

func wpaNetwork(creds Credentials) string {
	var b strings.Builder
	b.WriteString("ctrl_interface=DIR=/var/run/wpa_supplicant GROUP=netdev\n")
	b.WriteString("update_config=1\n\n")
	b.WriteString("network={\n")
	fmt.Fprintf(&b, "\tssid=%q\n", creds.SSID)
	if creds.Passphrase == "" {
		b.WriteString("\tkey_mgmt=NONE\n")
	} else {
		fmt.Fprintf(&b, "\tpsk=%q\n", creds.Passphrase)
	}
	b.WriteString("}\n")
	return b.String()
}
