package fault

import (
	"errors"
	"fmt"
	"testing"

	"github.com/alittlebrighter/homekit-thermostat/connectivity"
)

type MockRelay struct {
	on       bool
	shutdown bool
}

func (r *MockRelay) On() error  { r.on = true; return nil }
func (r *MockRelay) Off() error { r.on = false; return nil }
func (r *MockRelay) IsOn() bool { return r.on }
func (r *MockRelay) Shutdown()  { r.shutdown = true }

func newTestHandler() (*Handler, *MockRelay, *[]int) {
	relay := &MockRelay{on: true}
	var codes []int
	h := NewHandler(relay, nil)
	h.exit = func(code int) { codes = append(codes, code) }
	return h, relay, &codes
}

func TestCheck(t *testing.T) {
	cases := []struct {
		name  string
		err   error
		ok    bool
		exits int
	}{
		{"nil", nil, true, 0},
		{"not started", connectivity.ErrNotStarted, true, 0},
		{"connection", fmt.Errorf("join: %w", connectivity.ErrConnection), true, 0},
		{"hardware", errors.New("i2c: remote I/O error"), false, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h, relay, codes := newTestHandler()
			if got := h.Check(tc.err); got != tc.ok {
				t.Errorf("Check() = %v, want %v", got, tc.ok)
			}
			if len(*codes) != tc.exits {
				t.Errorf("exits = %v", *codes)
			}
			if tc.exits > 0 && (relay.on || !relay.shutdown) {
				t.Error("relay left on after a fatal error")
			}
		})
	}
}

func TestFatalOnce(t *testing.T) {
	h, _, codes := newTestHandler()
	h.Fatal(errors.New("first"))
	h.Fatal(errors.New("second"))
	if len(*codes) != 1 || (*codes)[0] != 1 {
		t.Errorf("exit codes = %v, want [1]", *codes)
	}
}
