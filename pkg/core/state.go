package core

// TriggerState is the lifecycle state of a trigger.
type TriggerState string

const (
	StateNormal   TriggerState = "NORMAL"
	StatePaused   TriggerState = "PAUSED"
	StateComplete TriggerState = "COMPLETE"
	StateError    TriggerState = "ERROR"
	StateBlocked  TriggerState = "BLOCKED" // firing in progress
	StateNone     TriggerState = "NONE"    // unknown key, never stored
)

// Terminal reports whether no further fires can happen from this state.
func (s TriggerState) Terminal() bool {
	return s == StateComplete || s == StateError
}

// FireStatus is the outcome of a single fire.
type FireStatus string

const (
	StatusCompleted FireStatus = "completed"
	StatusFailed    FireStatus = "failed"
)
