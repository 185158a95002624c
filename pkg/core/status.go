package core

import "time"

// TriggerStatus is the operator view of one trigger.
type TriggerStatus struct {
	TriggerName      string       `json:"triggerName"`
	TriggerGroup     string       `json:"triggerGroup"`
	Kind             TriggerKind  `json:"kind,omitempty"`
	State            TriggerState `json:"state"`
	NextFireTime     *time.Time   `json:"nextFireTime"`
	PreviousFireTime *time.Time   `json:"previousFireTime"`
	TimesFired       int          `json:"timesFired"`
	LastError        string       `json:"lastError,omitempty"`
}

// NoneStatus is the status reported for an unknown trigger key.
func NoneStatus(key TriggerKey) TriggerStatus {
	return TriggerStatus{TriggerName: key.Name, TriggerGroup: key.Group, State: StateNone}
}

// StatusOf summarizes a trigger row.
func StatusOf(t *Trigger) TriggerStatus {
	return TriggerStatus{
		TriggerName:      t.Name,
		TriggerGroup:     t.Group,
		Kind:             t.Kind,
		State:            t.State,
		NextFireTime:     t.NextFireAt,
		PreviousFireTime: t.PrevFireAt,
		TimesFired:       t.TimesFired,
		LastError:        t.LastError,
	}
}

// JobStatus is the operator view of a job and its triggers.
type JobStatus struct {
	JobName  string          `json:"jobName"`
	JobGroup string          `json:"jobGroup"`
	JobType  string          `json:"jobType,omitempty"`
	Durable  bool            `json:"durable"`
	Triggers []TriggerStatus `json:"triggers"`
}

// GroupSummary lists the jobs of one job group.
type GroupSummary struct {
	Group string      `json:"jobGroup"`
	Jobs  []JobStatus `json:"jobs"`
}
