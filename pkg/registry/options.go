package registry

import "time"

// Option configures a registered job type.
type Option interface {
	apply(*Entry)
}

type optionFunc func(*Entry)

func (f optionFunc) apply(e *Entry) { f(e) }

// Timeout bounds each fire of the job type. Fires that overrun fail with
// context.DeadlineExceeded and move their trigger to ERROR.
func Timeout(d time.Duration) Option {
	return optionFunc(func(e *Entry) {
		e.Timeout = d
	})
}

// Description documents the job type for operators.
func Description(s string) Option {
	return optionFunc(func(e *Entry) {
		e.Description = s
	})
}
