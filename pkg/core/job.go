// Package core provides the domain models and interfaces of the scheduler.
package core

import (
	"fmt"
	"time"
)

// Job is a persisted job definition.
type Job struct {
	Name        string            `gorm:"column:job_name;primaryKey;size:200"`
	Group       string            `gorm:"column:job_group;primaryKey;size:200"`
	Type        string            `gorm:"column:job_type;size:255;not null"`
	Data        map[string]string `gorm:"serializer:json;type:text"`
	Durable     bool              `gorm:"default:false"`
	Description string            `gorm:"size:255"`
	CreatedAt   time.Time         `gorm:"autoCreateTime"`
	UpdatedAt   time.Time         `gorm:"autoUpdateTime"`
}

// TableName overrides the GORM table name.
func (Job) TableName() string { return "scheduler_jobs" }

// Key returns the job's identity.
func (j *Job) Key() JobKey { return JobKey{Name: j.Name, Group: j.Group} }

// Trigger is a persisted schedule attached to one job.
type Trigger struct {
	Name     string `gorm:"column:trigger_name;primaryKey;size:200"`
	Group    string `gorm:"column:trigger_group;primaryKey;size:200"`
	JobName  string `gorm:"column:job_name;size:200;not null;index:idx_trigger_job"`
	JobGroup string `gorm:"column:job_group;size:200;not null;index:idx_trigger_job"`

	Kind           TriggerKind `gorm:"size:20;not null"`
	FireAt         *time.Time
	StartAt        *time.Time
	EveryMillis    int64
	RepeatCount    int
	TimesFired     int    `gorm:"default:0"`
	CronExpression string `gorm:"size:255"`
	Timezone       string `gorm:"size:64"`

	State      TriggerState `gorm:"index;size:20;not null"`
	NextFireAt *time.Time   `gorm:"index"`
	PrevFireAt *time.Time
	FireToken  string `gorm:"size:36;default:''"`
	FiredAt    *time.Time
	LastError  string    `gorm:"type:text"`
	CreatedAt  time.Time `gorm:"autoCreateTime"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime"`
}

// TableName overrides the GORM table name.
func (Trigger) TableName() string { return "scheduler_triggers" }

// Key returns the trigger's identity.
func (t *Trigger) Key() TriggerKey { return TriggerKey{Name: t.Name, Group: t.Group} }

// JobKey returns the identity of the job the trigger fires.
func (t *Trigger) JobKey() JobKey { return JobKey{Name: t.JobName, Group: t.JobGroup} }

// NewTrigger builds an unsaved trigger row for spec. NextFireAt and State
// are left for the caller to fill in.
func NewTrigger(key TriggerKey, job JobKey, spec TriggerSpec) *Trigger {
	t := &Trigger{
		Name:     key.Name,
		Group:    key.Group,
		JobName:  job.Name,
		JobGroup: job.Group,
		Kind:     spec.Kind,
	}
	switch spec.Kind {
	case KindOneTime:
		at := spec.FireAt.UTC()
		t.FireAt = &at
	case KindInterval:
		start := spec.StartAt.UTC()
		t.StartAt = &start
		t.EveryMillis = spec.Every.Milliseconds()
		t.RepeatCount = spec.RepeatCount
	case KindCron:
		t.CronExpression = spec.Expression
		if spec.Location != nil {
			t.Timezone = spec.Location.String()
		}
	}
	return t
}

// Spec rebuilds the TriggerSpec stored in the row.
func (t *Trigger) Spec() (TriggerSpec, error) {
	switch t.Kind {
	case KindOneTime:
		if t.FireAt == nil {
			return TriggerSpec{}, fmt.Errorf("scheduler: trigger %s has no fire time", t.Key())
		}
		return OneTime(*t.FireAt), nil
	case KindInterval:
		var start time.Time
		if t.StartAt != nil {
			start = *t.StartAt
		}
		return Interval(time.Duration(t.EveryMillis)*time.Millisecond, t.RepeatCount, start), nil
	case KindCron:
		loc := time.UTC
		if t.Timezone != "" {
			l, err := time.LoadLocation(t.Timezone)
			if err != nil {
				return TriggerSpec{}, fmt.Errorf("scheduler: trigger %s: %w", t.Key(), err)
			}
			loc = l
		}
		return CronIn(t.CronExpression, loc), nil
	default:
		return TriggerSpec{}, fmt.Errorf("scheduler: trigger %s has unknown kind %q", t.Key(), t.Kind)
	}
}

// RemainingRepeats is the number of fires left, or RepeatForever.
func (t *Trigger) RemainingRepeats() int {
	if t.Kind != KindInterval || t.RepeatCount == RepeatForever {
		return RepeatForever
	}
	if left := t.RepeatCount - t.TimesFired; left > 0 {
		return left
	}
	return 0
}

// FireRecord is one entry of a job's execution history.
type FireRecord struct {
	ID           string     `gorm:"primaryKey;size:36"`
	TriggerName  string     `gorm:"size:200;not null"`
	TriggerGroup string     `gorm:"size:200;not null"`
	JobName      string     `gorm:"size:200;not null;index:idx_fire_job"`
	JobGroup     string     `gorm:"size:200;not null;index:idx_fire_job"`
	JobType      string     `gorm:"size:255"`
	ScheduledAt  time.Time  `gorm:"not null"`
	StartedAt    time.Time  `gorm:"index;not null"`
	FinishedAt   time.Time
	DurationMS   int64
	Status       FireStatus `gorm:"size:20;not null"`
	Error        string     `gorm:"type:text"`
}

// TableName overrides the GORM table name.
func (FireRecord) TableName() string { return "scheduler_fire_records" }
