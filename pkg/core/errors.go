package core

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidSchedule   = errors.New("scheduler: invalid schedule")
	ErrJobNotFound       = errors.New("scheduler: job not found")
	ErrTriggerNotFound   = errors.New("scheduler: trigger not found")
	ErrUnknownJobType    = errors.New("scheduler: unknown job type")
	ErrInvalidName       = errors.New("scheduler: invalid name (must be alphanumeric, start with letter)")
	ErrNameTooLong       = errors.New("scheduler: name too long")
	ErrJobDataTooLarge   = errors.New("scheduler: job data exceeds size limit")
	ErrEngineNotStarted  = errors.New("scheduler: engine not started")
	ErrEngineAlreadyRuns = errors.New("scheduler: engine already running")
)

// ValidationError reports a rejected schedule request. It matches
// ErrInvalidSchedule under errors.Is.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("scheduler: invalid schedule: %s", e.Reason)
	}
	return fmt.Sprintf("scheduler: invalid schedule: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Err }

func (e *ValidationError) Is(target error) bool { return target == ErrInvalidSchedule }

// Invalid builds a ValidationError.
func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// InvalidErr builds a ValidationError wrapping cause.
func InvalidErr(field string, cause error) error {
	return &ValidationError{Field: field, Reason: cause.Error(), Err: cause}
}

// StoreError wraps a persistence failure.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("scheduler: store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// WrapStore wraps err as a StoreError, passing nil and existing
// StoreErrors through.
func WrapStore(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}

// IsStoreError reports whether err came from the persistence layer.
func IsStoreError(err error) bool {
	var se *StoreError
	return errors.As(err, &se)
}

// ExecutionError is a failed fire of a job's work function.
type ExecutionError struct {
	Job     JobKey
	Trigger TriggerKey
	Err     error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("scheduler: job %s (trigger %s) failed: %v", e.Job, e.Trigger, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }
