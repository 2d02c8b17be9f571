package timesync

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

func newTestSyncer(t *testing.T, attempts int, query func(string) (time.Duration, error)) *Syncer {
	t.Helper()
	s, err := NewSyncer(Options{Server: "pool.ntp.org", Timezone: "Europe/Prague", Attempts: attempts, Wait: time.Millisecond})
	if err != nil {
		t.Fatal(err)
	}
	s.query = query
	return s
}

func TestSyncRetriesUntilAnswer(t *testing.T) {
	calls := 0
	s := newTestSyncer(t, 15, func(string) (time.Duration, error) {
		calls++
		if calls < 3 {
			return 0, errors.New("i/o timeout")
		}
		return time.Hour, nil
	})

	var lines []string
	if err := s.Sync(context.Background(), func(l string) { lines = append(lines, l) }); err != nil {
		t.Fatal(err)
	}
	if calls != 3 || !s.Synced() {
		t.Errorf("calls = %d synced = %v", calls, s.Synced())
	}
	if lines[0] != "Waiting for system time to be set... (1/15)" || lines[2] != "Waiting for system time to be set... (3/15)" {
		t.Errorf("progress %q", lines)
	}

	if d := s.Now().Sub(time.Now()); d < 59*time.Minute || d > 61*time.Minute {
		t.Errorf("offset not applied: %v", d)
	}
	if s.Now().Location().String() != "Europe/Prague" {
		t.Errorf("zone %v", s.Now().Location())
	}
}

func TestSyncGivesUp(t *testing.T) {
	calls := 0
	s := newTestSyncer(t, 4, func(string) (time.Duration, error) {
		calls++
		return 0, errors.New("no route to host")
	})

	var lines []string
	err := s.Sync(context.Background(), func(l string) { lines = append(lines, l) })
	if !errors.Is(err, ErrNotSynced) {
		t.Fatalf("err = %v", err)
	}
	if calls != 4 || s.Synced() {
		t.Errorf("calls = %d synced = %v", calls, s.Synced())
	}
	if !strings.Contains(lines[len(lines)-1], "Could not set system time") {
		t.Errorf("last line %q", lines[len(lines)-1])
	}
}

func TestSyncCancelled(t *testing.T) {
	s := newTestSyncer(t, 15, func(string) (time.Duration, error) { return 0, errors.New("timeout") })
	s.opts.Wait = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Sync(ctx, nil); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v", err)
	}
}

func TestBadTimezone(t *testing.T) {
	if _, err := NewSyncer(Options{Timezone: "Nowhere/Special"}); err == nil {
		t.Error("expected an error")
	}
}

type MockDisplay struct {
	mu     sync.Mutex
	labels [][2]string
}

func (d *MockDisplay) SetDateTime(date, clock string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.labels = append(d.labels, [2]string{date, clock})
}

func (d *MockDisplay) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.labels)
}

func TestClock(t *testing.T) {
	now := time.Date(2026, 10, 17, 8, 15, 0, 0, time.UTC)
	display := new(MockDisplay)
	clock := &Clock{
		Now:      func() time.Time { return now },
		Display:  display,
		Interval: time.Millisecond,
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		clock.Run(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	<-done

	if display.count() != 1 {
		t.Fatalf("updates = %d, want 1 for an unchanged minute", display.count())
	}
	if display.labels[0] != [2]string{"17.10.2026\nSaturday", "08:15"} {
		t.Errorf("labels %q", display.labels[0])
	}
}
