package telemetry

import (
	"sync"

	"github.com/alittlebrighter/homekit-thermostat/models"
)

// Reporter is anything that can take a state snapshot.
type Reporter interface {
	Report(update models.StateUpdate)
}

type closer interface {
	Close()
}

// Queue hands snapshots to a slow reporter from its own goroutine. Report
// never blocks; while the reporter is busy only the newest snapshot is kept.
type Queue struct {
	reporter Reporter
	pending  chan models.StateUpdate
	stop     chan struct{}
	done     chan struct{}
	once     sync.Once
}

func NewQueue(r Reporter) *Queue {
	q := &Queue{
		reporter: r,
		pending:  make(chan models.StateUpdate, 1),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go q.run()
	return q
}

func (q *Queue) Report(update models.StateUpdate) {
	for {
		select {
		case q.pending <- update:
			return
		default:
		}
		// drop the stale snapshot and try again
		select {
		case <-q.pending:
		default:
		}
	}
}

func (q *Queue) run() {
	defer close(q.done)
	for {
		select {
		case update := <-q.pending:
			q.reporter.Report(update)
		case <-q.stop:
			select {
			case update := <-q.pending:
				q.reporter.Report(update)
			default:
			}
			return
		}
	}
}

// Close delivers the last queued snapshot, then closes the wrapped reporter
// if it has a Close method. Reports after Close are dropped.
func (q *Queue) Close() {
	q.once.Do(func() {
		close(q.stop)
		<-q.done
		if c, ok := q.reporter.(closer); ok {
			c.Close()
		}
	})
}
