// Package studentsvc provides a persistent job scheduler backed by GORM.
//
// This is the package library users import. It re-exports the public
// types of the pkg/ packages and bundles an engine with its admin facade.
//
// Basic usage:
//
//	db, _ := gorm.Open(sqlite.Open("jobs.db"), &gorm.Config{})
//	s := studentsvc.NewScheduler(db)
//	s.Migrate(ctx)
//
//	s.Register("send-report", func(ctx context.Context, data map[string]string) error {
//	    return sendReport(data["to"])
//	})
//
//	s.Schedule(ctx, "send-report", map[string]string{"to": "ops"},
//	    studentsvc.Cron("0 0 9 * * ?"))
//
//	s.Start(ctx) // blocks until ctx is done
package studentsvc

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/Saiteja21M/studentsvc/pkg/admin"
	"github.com/Saiteja21M/studentsvc/pkg/core"
	"github.com/Saiteja21M/studentsvc/pkg/engine"
	"github.com/Saiteja21M/studentsvc/pkg/jobctx"
	"github.com/Saiteja21M/studentsvc/pkg/registry"
	"github.com/Saiteja21M/studentsvc/pkg/schedule"
	"github.com/Saiteja21M/studentsvc/pkg/storage"
)

type (
	// JobKey identifies a job definition.
	JobKey = core.JobKey

	// TriggerKey identifies a trigger.
	TriggerKey = core.TriggerKey

	// TriggerSpec describes when a trigger fires.
	TriggerSpec = core.TriggerSpec

	// TriggerState is the lifecycle state of a trigger.
	TriggerState = core.TriggerState

	// JobStatus is the operator view of a job and its triggers.
	JobStatus = core.JobStatus

	// TriggerStatus is the operator view of one trigger.
	TriggerStatus = core.TriggerStatus

	// FireRecord is one entry of a job's fire history.
	FireRecord = core.FireRecord

	// Event is the interface for all scheduler events.
	Event = core.Event

	// WorkFunc is the body of a job type.
	WorkFunc = registry.WorkFunc

	// Fire describes the fire a work function is running for.
	Fire = jobctx.Fire

	// ScheduleOption configures a single Schedule call.
	ScheduleOption = admin.ScheduleOption

	// EngineOption configures the engine.
	EngineOption = engine.Option

	// GormStorage is the GORM-backed job store.
	GormStorage = storage.GormStorage
)

// Trigger states
const (
	StateNormal   = core.StateNormal
	StatePaused   = core.StatePaused
	StateComplete = core.StateComplete
	StateError    = core.StateError
	StateBlocked  = core.StateBlocked
	StateNone     = core.StateNone
)

// RepeatForever makes an interval trigger unbounded.
const RepeatForever = core.RepeatForever

// Error variables
var (
	ErrInvalidSchedule = core.ErrInvalidSchedule
	ErrJobNotFound     = core.ErrJobNotFound
	ErrUnknownJobType  = core.ErrUnknownJobType
)

// Scheduler bundles the store, the job type registry, the engine and the
// admin facade over one database.
type Scheduler struct {
	*admin.Scheduler
	Store    *GormStorage
	Registry *registry.Registry
	Engine   *engine.Engine
}

// NewScheduler wires a scheduler over db. Events emitted by the admin
// facade are delivered through the engine's hub.
func NewScheduler(db *gorm.DB, opts ...EngineOption) *Scheduler {
	store := storage.NewGormStorage(db)
	reg := registry.New()
	eng := engine.New(store, reg, opts...)
	return &Scheduler{
		Scheduler: admin.New(store, reg, admin.WithEmitter(eng), admin.WithClock(eng.Config().Now)),
		Store:     store,
		Registry:  reg,
		Engine:    eng,
	}
}

// Migrate creates the scheduler tables.
func (s *Scheduler) Migrate(ctx context.Context) error {
	return s.Store.Migrate(ctx)
}

// Register adds a job type. A zero timeout means none.
func (s *Scheduler) Register(jobType string, fn WorkFunc, timeout ...time.Duration) error {
	var opts []registry.Option
	if len(timeout) > 0 && timeout[0] > 0 {
		opts = append(opts, registry.Timeout(timeout[0]))
	}
	return s.Registry.Register(jobType, fn, opts...)
}

// Start runs the engine until ctx is done.
func (s *Scheduler) Start(ctx context.Context) error {
	return s.Engine.Start(ctx)
}

// Events subscribes to scheduler events.
func (s *Scheduler) Events() <-chan Event {
	return s.Engine.Events()
}

// Trigger specs

// OneTime fires once at the given instant.
func OneTime(at time.Time) TriggerSpec { return core.OneTime(at) }

// After fires once, d from now.
func After(d time.Duration) TriggerSpec { return core.OneTime(time.Now().Add(d)) }

// Every fires every d starting now, repeat times in total.
func Every(d time.Duration, repeat int) TriggerSpec {
	return core.Interval(d, repeat, time.Now())
}

// Cron fires on a six or seven field expression evaluated in UTC.
func Cron(expr string) TriggerSpec { return core.Cron(expr) }

// CronIn is Cron evaluated in loc.
func CronIn(expr string, loc *time.Location) TriggerSpec { return core.CronIn(expr, loc) }

// ValidateSpec reports whether spec can ever fire.
func ValidateSpec(spec TriggerSpec) error { return schedule.Validate(spec, time.Now()) }

// Schedule options

// WithJobKey names the job.
func WithJobKey(name, group string) ScheduleOption { return admin.JobKey(name, group) }

// WithTriggerKey names the trigger.
func WithTriggerKey(name, group string) ScheduleOption { return admin.TriggerKey(name, group) }

// Durable keeps the job after its last trigger is gone.
func Durable() ScheduleOption { return admin.Durable() }

// Engine options

// PollInterval sets how often the engine looks for due triggers.
func PollInterval(d time.Duration) EngineOption { return engine.PollInterval(d) }

// Concurrency bounds parallel fires.
func Concurrency(n int) EngineOption { return engine.Concurrency(n) }

// Context helpers

// FireFromContext returns the fire a work function is running for, or nil.
func FireFromContext(ctx context.Context) *Fire { return jobctx.FireFromContext(ctx) }

// JobKeyFromContext returns the key of the running job.
func JobKeyFromContext(ctx context.Context) JobKey { return jobctx.JobKeyFromContext(ctx) }
