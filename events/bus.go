// Package events carries lifecycle signals from the device collaborators to the
// single lifecycle handler, in publish order.
package events

import (
	"context"
	"errors"
	"sync"
)

// DefaultCapacity is the number of events that can be queued before Publish blocks.
const DefaultCapacity = 20

var (
	ErrAlreadySubscribed = errors.New("events: handler already registered")
	ErrNoHandler         = errors.New("events: no handler registered")
	ErrClosed            = errors.New("events: bus closed")
)

// Kind identifies a lifecycle event.
type Kind uint8

const (
	ProvisioningRequested Kind = iota
	LinkUp
	LinkDown
	LifecycleStarted
	LogMessage
	LifecycleReady
)

func (k Kind) String() string {
	switch k {
	case ProvisioningRequested:
		return "provisioning_requested"
	case LinkUp:
		return "link_up"
	case LinkDown:
		return "link_down"
	case LifecycleStarted:
		return "lifecycle_started"
	case LogMessage:
		return "log_message"
	case LifecycleReady:
		return "lifecycle_ready"
	default:
		return "unknown"
	}
}

// Event is a lifecycle signal with an optional text payload.
type Event struct {
	Kind    Kind
	Payload string
}

// Log builds a LogMessage event.
func Log(text string) Event {
	return Event{Kind: LogMessage, Payload: text}
}

// Handler consumes events on the bus's consumer goroutine.
type Handler func(ctx context.Context, ev Event)

// Publisher is the write side of the bus handed to collaborators.
type Publisher interface {
	Publish(ev Event) error
}

// Bus is a bounded FIFO queue drained by one consumer goroutine. Publishing to a
// full queue blocks until there is room; events are never dropped.
type Bus struct {
	queue chan Event
	done  chan struct{}

	mu      sync.Mutex
	handler Handler
	running bool
}

func NewBus(capacity int) *Bus {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Bus{
		queue: make(chan Event, capacity),
		done:  make(chan struct{}),
	}
}

// Subscribe registers the handler. Only one handler may ever be registered.
func (b *Bus) Subscribe(h Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.handler != nil {
		return ErrAlreadySubscribed
	}
	b.handler = h
	return nil
}

// Publish enqueues ev, blocking while the queue is full.
func (b *Bus) Publish(ev Event) error {
	select {
	case <-b.done:
		return ErrClosed
	default:
	}

	select {
	case b.queue <- ev:
		return nil
	case <-b.done:
		return ErrClosed
	}
}

// Run delivers queued events to the handler until ctx is cancelled. After Run
// returns the bus is closed and Publish fails with ErrClosed.
func (b *Bus) Run(ctx context.Context) error {
	b.mu.Lock()
	h := b.handler
	if h == nil {
		b.mu.Unlock()
		return ErrNoHandler
	}
	if b.running {
		b.mu.Unlock()
		return errors.New("events: bus already running")
	}
	b.running = true
	b.mu.Unlock()

	defer close(b.done)

	for {
		select {
		case ev := <-b.queue:
			h(ctx, ev)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Len reports how many events are waiting for the consumer.
func (b *Bus) Len() int {
	return len(b.queue)
}
