package events

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestBusDeliversInOrder(t *testing.T) {
	bus := NewBus(4)
	got := make(chan Event, 10)
	if err := bus.Subscribe(func(_ context.Context, ev Event) { got <- ev }); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go bus.Run(ctx)

	sent := []Event{{Kind: LifecycleStarted}, Log("hello"), {Kind: LinkUp}, {Kind: LifecycleReady}, {Kind: LinkDown}}
	for _, ev := range sent {
		if err := bus.Publish(ev); err != nil {
			t.Fatal(err)
		}
	}

	for i, want := range sent {
		select {
		case ev := <-got:
			if ev != want {
				t.Errorf("event %d: got %v, want %v", i, ev, want)
			}
		case <-time.After(time.Second):
			t.Fatalf("event %d not delivered", i)
		}
	}
}

func TestBusSingleHandler(t *testing.T) {
	bus := NewBus(1)
	noop := func(context.Context, Event) {}
	if err := bus.Subscribe(noop); err != nil {
		t.Fatal(err)
	}
	if err := bus.Subscribe(noop); !errors.Is(err, ErrAlreadySubscribed) {
		t.Errorf("expected ErrAlreadySubscribed, got %v", err)
	}
}

func TestBusRunWithoutHandler(t *testing.T) {
	if err := NewBus(1).Run(context.Background()); !errors.Is(err, ErrNoHandler) {
		t.Errorf("expected ErrNoHandler, got %v", err)
	}
}

func TestBusPublishBlocksWhenFull(t *testing.T) {
	bus := NewBus(1)
	release := make(chan struct{})
	delivered := make(chan Event, 3)
	bus.Subscribe(func(_ context.Context, ev Event) {
		<-release
		delivered <- ev
	})

	if err := bus.Publish(Event{Kind: LinkUp}); err != nil {
		t.Fatal(err)
	}
	if bus.Len() != 1 {
		t.Errorf("Len = %d, want 1", bus.Len())
	}

	blocked := make(chan error)
	go func() { blocked <- bus.Publish(Event{Kind: LinkDown}) }()

	select {
	case <-blocked:
		t.Fatal("publish on a full queue returned before the consumer ran")
	case <-time.After(50 * time.Millisecond):
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go bus.Run(ctx)
	close(release)

	select {
	case err := <-blocked:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(time.Second):
		t.Fatal("publish stayed blocked after the consumer started")
	}

	for _, want := range []Kind{LinkUp, LinkDown} {
		select {
		case ev := <-delivered:
			if ev.Kind != want {
				t.Errorf("got %v, want %v", ev.Kind, want)
			}
		case <-time.After(time.Second):
			t.Fatalf("%v not delivered", want)
		}
	}
}

func TestBusClosedAfterRun(t *testing.T) {
	bus := NewBus(1)
	bus.Subscribe(func(context.Context, Event) {})

	ctx, cancel := context.WithCancel(context.Background())
	finished := make(chan struct{})
	go func() {
		bus.Run(ctx)
		close(finished)
	}()
	cancel()
	<-finished

	if err := bus.Publish(Event{Kind: LinkUp}); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestKindString(t *testing.T) {
	if LinkDown.String() != "link_down" {
		t.Errorf("got %q", LinkDown.String())
	}
	if Kind(99).String() != "unknown" {
		t.Errorf("got %q", Kind(99).String())
	}
}
