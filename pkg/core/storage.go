package core

import (
	"context"
	"time"
)

// Starter is the interface for long-running components.
type Starter interface {
	Start(ctx context.Context) error
}

// FireOutcome is the post-fire write the engine hands to the store.
type FireOutcome struct {
	State      TriggerState // NORMAL, COMPLETE or ERROR
	NextFireAt *time.Time
	PrevFireAt *time.Time
	TimesFired int
	Error      string
}

// Store defines the persistence layer for jobs and triggers.
//
// Lookups return nil, nil for unknown keys. Mutations on unknown keys
// report false rather than an error.
type Store interface {
	// Migrate creates the necessary database tables.
	Migrate(ctx context.Context) error

	// Definitions
	ScheduleJob(ctx context.Context, job *Job, trigger *Trigger) error
	ReplaceTrigger(ctx context.Context, job *Job, trigger *Trigger) error
	GetJob(ctx context.Context, key JobKey) (*Job, error)
	GetTrigger(ctx context.Context, key TriggerKey) (*Trigger, error)
	DeleteTrigger(ctx context.Context, key TriggerKey) (deleted bool, jobDeleted bool, err error)
	DeleteJob(ctx context.Context, key JobKey) (bool, error)

	// Queries
	TriggersOfJob(ctx context.Context, key JobKey) ([]*Trigger, error)
	JobGroups(ctx context.Context) ([]string, error)
	JobKeys(ctx context.Context, group string) ([]JobKey, error)
	TriggerState(ctx context.Context, key TriggerKey) (TriggerState, error)

	// Pause
	PauseJob(ctx context.Context, key JobKey) (bool, error)
	ResumeJob(ctx context.Context, key JobKey) (bool, error)
	PauseTrigger(ctx context.Context, key TriggerKey) (bool, error)
	ResumeTrigger(ctx context.Context, key TriggerKey) (bool, error)

	// Firing
	DueTriggers(ctx context.Context, asOf time.Time, limit int) ([]*Trigger, error)
	AcquireTrigger(ctx context.Context, key TriggerKey, token string, asOf time.Time) (bool, error)
	ReleaseTrigger(ctx context.Context, key TriggerKey, token string, outcome FireOutcome) (bool, error)
	RecoverBlocked(ctx context.Context) (int64, error)
	PurgeCompleted(ctx context.Context, before time.Time) (int64, error)
	StateCounts(ctx context.Context) (map[TriggerState]int64, error)

	// History
	RecordFire(ctx context.Context, rec *FireRecord) error
	FireHistory(ctx context.Context, key JobKey, limit int) ([]*FireRecord, error)
}
