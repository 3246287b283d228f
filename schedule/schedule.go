// Package schedule computes a day's wake plan and runs it on one goroutine.
//
// A plan is a pure function of the current time: one hourly wake per
// remaining hour of today at minute :01, one hourly wake tomorrow at 00:01
// and one daily wake tomorrow at 00:31. Nothing is persisted; a supervisor
// restarts the scheduler once the plan is exhausted.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/xraph/bond/id"
)

// Wake priorities. Lower runs first on a timestamp collision.
const (
	PriorityDaily  = 1
	PriorityHourly = 2
)

// Wake offsets within the hour.
const (
	HourlyMinute = 1
	DailyMinute  = 31
)

// CycleFunc is the work bound to a wake event.
type CycleFunc func(ctx context.Context)

// WakeEvent is one scheduled run of a cycle.
type WakeEvent struct {
	ID       id.WakeID
	At       time.Time
	Priority int
	Label    string
	Cycle    CycleFunc

	seq int
}

func (w WakeEvent) String() string {
	return fmt.Sprintf("%s@%s(p%d)", w.Label, w.At.Format("02-Jan-2006 15:04"), w.Priority)
}

// Plan returns the wake events for the rest of the day starting at now,
// in execution order. daily runs every item; hourly runs hourly items.
func Plan(now time.Time, daily, hourly CycleFunc) []WakeEvent {
	var events []WakeEvent
	add := func(at time.Time, priority int, label string, cycle CycleFunc) {
		events = append(events, WakeEvent{
			ID:       id.NewWakeID(),
			At:       at,
			Priority: priority,
			Label:    label,
			Cycle:    cycle,
			seq:      len(events),
		})
	}

	y, m, d := now.Date()
	loc := now.Location()
	for h := 0; h < 24; h++ {
		at := time.Date(y, m, d, h, HourlyMinute, 0, 0, loc)
		if at.After(now) {
			add(at, PriorityHourly, "hourly", hourly)
		}
	}
	add(time.Date(y, m, d+1, 0, HourlyMinute, 0, 0, loc), PriorityHourly, "hourly", hourly)

	dailyAt := time.Date(y, m, d+1, 0, DailyMinute, 0, 0, loc)
	if !dailyAt.After(now) {
		dailyAt = dailyAt.AddDate(0, 0, 1)
	}
	add(dailyAt, PriorityDaily, "daily", daily)

	Sort(events)
	return events
}

// Sort orders events by time, then priority, then insertion order.
func Sort(events []WakeEvent) {
	slices.SortStableFunc(events, func(a, b WakeEvent) int {
		if c := a.At.Compare(b.At); c != 0 {
			return c
		}
		if a.Priority != b.Priority {
			return a.Priority - b.Priority
		}
		return a.seq - b.seq
	})
}

// Clock abstracts time for the scheduler.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SystemClock is the wall clock.
var SystemClock Clock = systemClock{}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock overrides SystemClock.
func WithClock(c Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// Scheduler runs wake events one at a time.
type Scheduler struct {
	events []WakeEvent
	clock  Clock
	logger *slog.Logger
}

// New creates a scheduler over events. The slice order is the insertion
// order used to break ties; the caller's slice is not modified.
func New(events []WakeEvent, opts ...Option) *Scheduler {
	s := &Scheduler{
		events: slices.Clone(events),
		clock:  SystemClock,
		logger: slog.Default(),
	}
	for i := range s.events {
		s.events[i].seq = i
	}
	Sort(s.events)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Pending returns the events not yet run.
func (s *Scheduler) Pending() []WakeEvent {
	return slices.Clone(s.events)
}

// Run blocks until each event is due and runs its cycle to completion.
// Events already due run immediately, in order. Run returns nil once the
// plan is exhausted, or ctx.Err() when ctx is done first.
func (s *Scheduler) Run(ctx context.Context) error {
	for _, ev := range s.events {
		s.logger.Info("next event", "label", ev.Label, "at", ev.At.Format("02-Jan-2006 15:04"), "priority", ev.Priority)
	}

	for len(s.events) > 0 {
		ev := s.events[0]
		if wait := ev.At.Sub(s.clock.Now()); wait > 0 {
			s.logger.Debug("waiting", "event", ev.String(), "wait", wait)
			if err := s.clock.Sleep(ctx, wait); err != nil {
				return err
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		s.events = s.events[1:]
		s.fire(ctx, ev)
	}

	s.logger.Info("wake plan exhausted")
	return nil
}

func (s *Scheduler) fire(ctx context.Context, ev WakeEvent) {
	s.logger.Info("awake",
		"event", ev.ID.String(),
		"label", ev.Label,
		"priority", ev.Priority,
		"now", s.clock.Now().Format("02-Jan-2006 15:04"),
	)
	if ev.Cycle == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("wake cycle panicked", "event", ev.ID.String(), "panic", r)
		}
	}()
	ev.Cycle(ctx)
}
