package core

import "time"

// Event is the interface for all scheduler events.
type Event interface {
	eventMarker()
}

// JobScheduled is emitted when a trigger is stored for a job.
type JobScheduled struct {
	Job        JobKey
	Trigger    TriggerKey
	NextFireAt time.Time
	Timestamp  time.Time
}

func (*JobScheduled) eventMarker() {}

// TriggerCancelled is emitted when a trigger is removed.
type TriggerCancelled struct {
	Trigger    TriggerKey
	JobDeleted bool
	Timestamp  time.Time
}

func (*TriggerCancelled) eventMarker() {}

// JobDeleted is emitted when a job and all of its triggers are removed.
type JobDeleted struct {
	Job       JobKey
	Timestamp time.Time
}

func (*JobDeleted) eventMarker() {}

// JobPaused is emitted when every trigger of a job is paused.
type JobPaused struct {
	Job       JobKey
	Timestamp time.Time
}

func (*JobPaused) eventMarker() {}

// JobResumed is emitted when a paused job is enabled again.
type JobResumed struct {
	Job       JobKey
	Timestamp time.Time
}

func (*JobResumed) eventMarker() {}

// TriggerFired is emitted when the engine starts a fire.
type TriggerFired struct {
	Trigger     TriggerKey
	Job         JobKey
	ScheduledAt time.Time
	Timestamp   time.Time
}

func (*TriggerFired) eventMarker() {}

// FireCompleted is emitted after a work function returns successfully.
type FireCompleted struct {
	Trigger    TriggerKey
	Job        JobKey
	Duration   time.Duration
	NextFireAt *time.Time
	Timestamp  time.Time
}

func (*FireCompleted) eventMarker() {}

// FireFailed is emitted when a work function fails and its trigger
// moves to ERROR.
type FireFailed struct {
	Trigger   TriggerKey
	Job       JobKey
	Error     error
	Timestamp time.Time
}

func (*FireFailed) eventMarker() {}

// TriggerCompleted is emitted when a trigger has no further fire times.
type TriggerCompleted struct {
	Trigger   TriggerKey
	Job       JobKey
	Timestamp time.Time
}

func (*TriggerCompleted) eventMarker() {}
