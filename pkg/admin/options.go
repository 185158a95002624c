package admin

import (
	"log/slog"
	"time"

	"github.com/Saiteja21M/studentsvc/pkg/core"
)

// Option configures a Scheduler.
type Option interface {
	apply(*Scheduler)
}

type optionFunc func(*Scheduler)

func (f optionFunc) apply(s *Scheduler) { f(s) }

// Emitter receives lifecycle events. *engine.Engine satisfies it.
type Emitter interface {
	Emit(core.Event)
}

// WithEmitter sends scheduling events to e.
func WithEmitter(e Emitter) Option {
	return optionFunc(func(s *Scheduler) { s.events = e })
}

// WithClock replaces the wall clock used to compute first fire times.
func WithClock(now func() time.Time) Option {
	return optionFunc(func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	})
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(s *Scheduler) { s.logger = l })
}

// ScheduleOption adjusts a single Schedule, Reschedule or
// ScheduleAfterCommit call.
type ScheduleOption interface {
	applySchedule(*scheduleOptions)
}

type scheduleOptionFunc func(*scheduleOptions)

func (f scheduleOptionFunc) applySchedule(o *scheduleOptions) { f(o) }

type scheduleOptions struct {
	job         core.JobKey
	trigger     core.TriggerKey
	durable     bool
	description string
}

// JobKey names the job. A blank group means core.DefaultGroup.
func JobKey(name, group string) ScheduleOption {
	return scheduleOptionFunc(func(o *scheduleOptions) {
		o.job = core.NewJobKey(name, group)
	})
}

// TriggerKey names the trigger. A blank group means core.DefaultGroup.
func TriggerKey(name, group string) ScheduleOption {
	return scheduleOptionFunc(func(o *scheduleOptions) {
		o.trigger = core.NewTriggerKey(name, group)
	})
}

// Durable keeps the job after its last trigger is gone.
func Durable() ScheduleOption {
	return scheduleOptionFunc(func(o *scheduleOptions) { o.durable = true })
}

// Description attaches a human readable note to the job.
func Description(d string) ScheduleOption {
	return scheduleOptionFunc(func(o *scheduleOptions) { o.description = d })
}
