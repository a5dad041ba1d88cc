// Package feeding matches the clock against the schedule and triggers the
// servo for due slots.
package feeding

import (
	"log/slog"
	"sync"
	"time"

	"github.com/fishfeeder/feeder-go/pkg/rtc"
	"github.com/fishfeeder/feeder-go/pkg/schedule"
	"github.com/fishfeeder/feeder-go/pkg/servo"
)

// SlotSource is the read side of the schedule store.
type SlotSource interface {
	All() (schedule.Schedule, error)
	AnyWithin(hour, minute, window int) (bool, error)
}

var _ SlotSource = (*schedule.Store)(nil)

// Feeding describes a scheduled slot that came due.
type Feeding struct {
	Slot     int
	Hour     int
	Minute   int
	Duration time.Duration

	// Started is false when the servo was already running.
	Started bool
}

// Coordinator triggers scheduled feedings.
type Coordinator struct {
	slots  SlotSource
	servo  servo.Starter
	clock  rtc.Clock
	window int
	logger *slog.Logger

	mu        sync.RWMutex
	onFeeding func(Feeding)
}

// NewCoordinator creates a coordinator. A nil logger uses slog.Default.
func NewCoordinator(slots SlotSource, starter servo.Starter, clock rtc.Clock, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		slots:  slots,
		servo:  starter,
		clock:  clock,
		window: schedule.DefaultWindow,
		logger: logger,
	}
}

// OnFeeding sets a callback invoked for every due slot.
func (c *Coordinator) OnFeeding(fn func(Feeding)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onFeeding = fn
}

// CheckFeedingTime starts the servo for the first used slot at hour:minute.
// At most one slot triggers per call. It must be called at most once per
// distinct minute; see MinuteWatcher.
func (c *Coordinator) CheckFeedingTime(hour, minute int) (bool, error) {
	sched, err := c.slots.All()
	if err != nil {
		return false, err
	}

	for i, slot := range sched {
		if !slot.IsUsed() || slot.Hour() != hour || slot.Minute() != minute {
			continue
		}

		f := Feeding{
			Slot:     i,
			Hour:     hour,
			Minute:   minute,
			Duration: slot.Duration(),
		}
		f.Started = c.servo.Start(f.Duration)
		c.logger.Info("feeding time", "slot", i, "time", slot.String(), "started", f.Started)

		c.mu.RLock()
		fn := c.onFeeding
		c.mu.RUnlock()
		if fn != nil {
			fn(f)
		}
		return true, nil
	}
	return false, nil
}

// NoFeedingTimeWithin5Min reports whether no used slot is within five
// minutes of the current clock time.
func (c *Coordinator) NoFeedingTimeWithin5Min() (bool, error) {
	now, err := c.clock.Now()
	if err != nil {
		return false, err
	}
	near, err := c.slots.AnyWithin(now.Hour, now.Minute, c.window)
	if err != nil {
		return false, err
	}
	return !near, nil
}

// MinuteWatcher detects minute changes in a stream of clock readings.
// The zero value is ready to use.
type MinuteWatcher struct {
	armed  bool
	minute int
	retry  bool
}

// Observe returns true when dt is in a different minute than the previous
// reading. The first reading only arms the watcher.
func (w *MinuteWatcher) Observe(dt rtc.DateTime) bool {
	m := dt.Hour*60 + dt.Minute
	if !w.armed {
		w.armed = true
		w.minute = m
		return false
	}
	if m == w.minute {
		if w.retry {
			w.retry = false
			return true
		}
		return false
	}
	w.minute = m
	w.retry = false
	return true
}

// Retry makes the next reading in the current minute report a change
// again. Once the minute moves on the retry is dropped.
func (w *MinuteWatcher) Retry() {
	if w.armed {
		w.retry = true
	}
}

// Pending reports whether a retry is outstanding.
func (w *MinuteWatcher) Pending() bool {
	return w.retry
}
