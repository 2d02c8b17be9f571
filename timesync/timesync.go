// Package timesync sets the clock shown on the panel from NTP.
package timesync

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"
	_ "time/tzdata"

	"github.com/beevik/ntp"
	"go.uber.org/zap"

	"github.com/alittlebrighter/homekit-thermostat/util"
)

var ErrNotSynced = errors.New("timesync: no answer from time server")

type Options struct {
	Server   string
	Timezone string
	Attempts int
	Wait     time.Duration
	Log      *zap.SugaredLogger
}

// Syncer measures the offset between the local clock and an NTP server.
type Syncer struct {
	opts   Options
	loc    *time.Location
	log    *zap.SugaredLogger
	offset atomic.Int64
	synced atomic.Bool

	query func(server string) (time.Duration, error)
}

func NewSyncer(opts Options) (*Syncer, error) {
	if opts.Log == nil {
		opts.Log = zap.NewNop().Sugar()
	}
	if opts.Attempts < 1 {
		opts.Attempts = 15
	}
	if opts.Wait <= 0 {
		opts.Wait = 2 * time.Second
	}

	loc, err := time.LoadLocation(opts.Timezone)
	if err != nil {
		return nil, err
	}

	return &Syncer{
		opts:  opts,
		loc:   loc,
		log:   opts.Log,
		query: queryOffset,
	}, nil
}

func queryOffset(server string) (time.Duration, error) {
	resp, err := ntp.QueryWithOptions(server, ntp.QueryOptions{Timeout: 2 * time.Second})
	if err != nil {
		return 0, err
	}
	if err := resp.Validate(); err != nil {
		return 0, err
	}
	return resp.ClockOffset, nil
}

// Sync queries the server up to Attempts times, reporting progress lines to
// progress. It returns ErrNotSynced when every attempt failed; the local
// clock is then used as is.
func (s *Syncer) Sync(ctx context.Context, progress func(string)) error {
	if progress == nil {
		progress = func(string) {}
	}

	for i := 1; i <= s.opts.Attempts; i++ {
		progress(fmt.Sprintf("Waiting for system time to be set... (%d/%d)", i, s.opts.Attempts))

		offset, err := s.query(s.opts.Server)
		if err == nil {
			s.offset.Store(int64(offset))
			s.synced.Store(true)
			s.log.Infow("time synchronized", "server", s.opts.Server, "offset", offset)
			progress("Time set: " + s.Now().Format("02.01.2006 15:04:05"))
			return nil
		}
		s.log.Debugw("time query failed", "attempt", i, "err", err)

		if i == s.opts.Attempts {
			break
		}
		select {
		case <-time.After(s.opts.Wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	s.log.Warnw("could not synchronize time, using local clock", "server", s.opts.Server)
	progress("Could not set system time")
	return ErrNotSynced
}

func (s *Syncer) Synced() bool {
	return s.synced.Load()
}

// Now is the corrected time in the configured zone.
func (s *Syncer) Now() time.Time {
	return time.Now().Add(time.Duration(s.offset.Load())).In(s.loc)
}

// DateTimeDisplay shows the clock labels.
type DateTimeDisplay interface {
	SetDateTime(date, clock string)
}

// Clock pushes the date and time labels to the display every interval.
type Clock struct {
	Now      func() time.Time
	Display  DateTimeDisplay
	Interval time.Duration
}

// Run updates the labels immediately and then on every tick, skipping ticks
// that would not change the text.
func (c *Clock) Run(ctx context.Context) {
	interval := c.Interval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastDate, lastClock string
	for {
		date, clock := util.ClockLabels(c.Now())
		if date != lastDate || clock != lastClock {
			c.Display.SetDateTime(date, clock)
			lastDate, lastClock = date, clock
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}
